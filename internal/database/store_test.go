package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "xui-quota-bot/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return NewStore(db)
}

func TestStore_NotFoundErrorsAreTyped(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOwner(404)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = store.GetConfig(404)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = store.GetConfigByEmail("nobody")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	var notFound *apperrors.ConfigNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nobody", notFound.Email)
}

func TestStore_GetConfigByEmail(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.EnsureOwner(1, RoleUser, 50))
	cfg := &Config{OwnerID: 1, ClientEmail: "alice-main", InboundID: 3}
	require.NoError(t, store.CreateConfig(cfg))

	found, err := store.GetConfigByEmail("alice-main")
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, found.ID)
	assert.Equal(t, int64(1), found.OwnerID)
}
