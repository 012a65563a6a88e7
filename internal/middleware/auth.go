package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mtlprog/casetask/internal/domain"
)

type contextKey string

const (
	// ContextKeyAuthor is the key for storing the change author in request context.
	ContextKeyAuthor contextKey = "author"
)

// Claims are the JWT claims of a caseworker. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// AuthMiddleware handles HS256 Bearer token authentication.
type AuthMiddleware struct {
	secret []byte
	logger *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(secret string, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		secret: []byte(secret),
		logger: logger,
	}
}

// Authenticate validates the Bearer token and adds the change author to the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		author, err := m.Verify(parts[1])
		if err != nil {
			m.logger.Debug("token rejected", "error", err, "path", r.URL.Path)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyAuthor, author)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify parses a signed token and returns the author it identifies.
func (m *AuthMiddleware) Verify(token string) (domain.Author, error) {
	if len(m.secret) == 0 {
		return domain.Author{}, fmt.Errorf("%w: jwt secret not configured", domain.ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return domain.Author{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	if claims.Subject == "" || strings.TrimSpace(claims.Name) == "" {
		return domain.Author{}, fmt.Errorf("%w: sub and name claims are required", domain.ErrInvalidToken)
	}

	return domain.Author{ChangeAuthor: claims.Name, ChangeAuthorID: claims.Subject}, nil
}

// IssueToken signs a token for a caseworker, valid for ttl.
func (m *AuthMiddleware) IssueToken(userID, name string, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// GetAuthorFromContext retrieves the authenticated change author from request context.
func GetAuthorFromContext(ctx context.Context) (domain.Author, error) {
	author, ok := ctx.Value(ContextKeyAuthor).(domain.Author)
	if !ok {
		return domain.Author{}, domain.ErrInvalidToken
	}
	return author, nil
}
