package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/casetask/internal/domain"
	"github.com/mtlprog/casetask/internal/middleware"
)

const userID = "11111111-1111-4111-8111-111111111111"

func TestAuthenticate(t *testing.T) {
	auth := middleware.NewAuthMiddleware("s3cret", nil)
	valid, err := auth.IssueToken(userID, "Clerk A", time.Hour)
	require.NoError(t, err)
	expired, err := auth.IssueToken(userID, "Clerk A", -time.Minute)
	require.NoError(t, err)
	foreign, err := middleware.NewAuthMiddleware("other", nil).IssueToken(userID, "Clerk A", time.Hour)
	require.NoError(t, err)
	nameless, err := auth.IssueToken(userID, "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"missing name", "Bearer " + nameless, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.Author
			handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var err error
				got, err = middleware.GetAuthorFromContext(r.Context())
				require.NoError(t, err)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, domain.Author{ChangeAuthor: "Clerk A", ChangeAuthorID: userID}, got)
			}
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	auth := middleware.NewAuthMiddleware("s3cret", nil)

	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name: "Clerk A",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = auth.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerify_NoSecret(t *testing.T) {
	_, err := middleware.NewAuthMiddleware("", nil).Verify("anything")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestGetAuthorFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := middleware.GetAuthorFromContext(req.Context())
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
