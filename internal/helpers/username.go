package helpers

import (
	"fmt"
	"strings"

	"xui-quota-bot/internal/constants"
	apperrors "xui-quota-bot/internal/errors"
)

// ValidateUsername checks that a username is usable as a client email on the panel
func ValidateUsername(username string) error {
	if len(username) < constants.MinUsernameLength {
		return &apperrors.ValidationError{Field: "username", Message: fmt.Sprintf("must be at least %d characters", constants.MinUsernameLength)}
	}
	if len(username) > constants.MaxUsernameLength {
		return &apperrors.ValidationError{Field: "username", Message: fmt.Sprintf("must be at most %d characters", constants.MaxUsernameLength)}
	}
	for _, r := range username {
		if !isUsernameChar(r) {
			return &apperrors.ValidationError{Field: "username", Message: "only letters, digits, '-', '_' and '.' are allowed"}
		}
	}
	return nil
}

func isUsernameChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	}
	return false
}

// NormalizeUsername lowercases and trims a username entered in chat
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
