package aggregate

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mtlprog/casetask/internal/domain"
)

// ValidateID checks that value is a well-formed UUID.
func ValidateID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %s %q is not a valid UUID", domain.ErrInvalidArgument, field, value)
	}
	return nil
}

func validateOptionalID(field string, value *string) error {
	if value == nil {
		return nil
	}
	return ValidateID(field, *value)
}

func validateAuthor(author domain.Author) error {
	if strings.TrimSpace(author.ChangeAuthor) == "" {
		return fmt.Errorf("%w: change author is required", domain.ErrInvalidArgument)
	}
	return ValidateID("change author id", author.ChangeAuthorID)
}
