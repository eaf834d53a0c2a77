package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "xui-quota-bot/internal/errors"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.NoError(t, ValidateUsername("bob-phone_2.home"))

	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("no spaces"))
	assert.Error(t, ValidateUsername("emoji💥"))
	assert.Error(t, ValidateUsername("waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaay-too-long"))
}

func TestValidateUsername_ReturnsValidationError(t *testing.T) {
	err := ValidateUsername("x")
	require.Error(t, err)

	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "username", validationErr.Field)
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUsername("  Alice "))
}
