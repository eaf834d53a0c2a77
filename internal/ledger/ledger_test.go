package ledger

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xui-quota-bot/internal/database"
	apperrors "xui-quota-bot/internal/errors"
)

func newTestLedger(t *testing.T) (*Ledger, *database.Store) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return New(db, logger), database.NewStore(db)
}

func createConfig(t *testing.T, store *database.Store, ownerID int64, email string) *database.Config {
	t.Helper()
	cfg := &database.Config{
		OwnerID:     ownerID,
		ClientEmail: email,
		InboundID:   1,
	}
	require.NoError(t, store.CreateConfig(cfg))
	return cfg
}

func TestRecordUsage_Overwrites(t *testing.T) {
	ledger, store := newTestLedger(t)
	require.NoError(t, store.EnsureOwner(100, database.RoleUser, 50))
	cfg := createConfig(t, store, 100, "bob")

	// The panel reports cumulative totals, so repeated and out-of-order
	// reports overwrite rather than accumulate.
	require.NoError(t, ledger.RecordUsage(cfg.ID, 1.5))
	require.NoError(t, ledger.RecordUsage(cfg.ID, 1.5))
	require.NoError(t, ledger.RecordUsage(cfg.ID, 2.25))

	total, err := ledger.TotalUsage(100)
	require.NoError(t, err)
	assert.Equal(t, 2.25, total)
}

func TestRecordUsage_UnknownConfig(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.RecordUsage(999, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSoftDelete_FreezesUsage(t *testing.T) {
	ledger, store := newTestLedger(t)
	require.NoError(t, store.EnsureOwner(100, database.RoleUser, 50))
	cfg := createConfig(t, store, 100, "bob")

	require.NoError(t, ledger.RecordUsage(cfg.ID, 10))
	require.NoError(t, ledger.SoftDelete(cfg.ID, 12.5))

	got, err := store.GetConfig(cfg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, 12.5, got.DeletedTrafficGB)
	assert.Equal(t, 12.5, got.Usage())

	// Late reports against a deleted config are ignored: the frozen figure
	// survives and the config stays deleted.
	require.NoError(t, ledger.RecordUsage(cfg.ID, 99))
	got, err = store.GetConfig(cfg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, 12.5, got.DeletedTrafficGB)

	// SoftDelete itself is idempotent.
	require.NoError(t, ledger.SoftDelete(cfg.ID, 3))
	got, err = store.GetConfig(cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.DeletedTrafficGB)
}

func TestTotalUsage_SurvivesDeletion(t *testing.T) {
	ledger, store := newTestLedger(t)
	require.NoError(t, store.EnsureOwner(100, database.RoleUser, 50))

	first := createConfig(t, store, 100, "bob-1")
	second := createConfig(t, store, 100, "bob-2")

	require.NoError(t, ledger.RecordUsage(first.ID, 8))
	require.NoError(t, ledger.RecordUsage(second.ID, 4))

	total, err := ledger.TotalUsage(100)
	require.NoError(t, err)
	assert.Equal(t, 12.0, total)

	// Deletion freezes the contribution; the owner's total never shrinks.
	require.NoError(t, ledger.SoftDelete(first.ID, 8))
	total, err = ledger.TotalUsage(100)
	require.NoError(t, err)
	assert.Equal(t, 12.0, total)

	require.NoError(t, ledger.RecordUsage(second.ID, 7))
	total, err = ledger.TotalUsage(100)
	require.NoError(t, err)
	assert.Equal(t, 15.0, total)
}

func TestTotalUsage_ScopedToOwner(t *testing.T) {
	ledger, store := newTestLedger(t)
	require.NoError(t, store.EnsureOwner(100, database.RoleUser, 50))
	require.NoError(t, store.EnsureOwner(200, database.RoleUser, 50))

	mine := createConfig(t, store, 100, "bob")
	theirs := createConfig(t, store, 200, "eve")
	require.NoError(t, ledger.RecordUsage(mine.ID, 5))
	require.NoError(t, ledger.RecordUsage(theirs.ID, 20))

	total, err := ledger.TotalUsage(100)
	require.NoError(t, err)
	assert.Equal(t, 5.0, total)
}

func TestExtend_AdditiveOnLimit(t *testing.T) {
	ledger, store := newTestLedger(t)
	require.NoError(t, store.EnsureOwner(100, database.RoleUser, 50))
	cfg := &database.Config{OwnerID: 100, ClientEmail: "bob", InboundID: 1, TrafficLimitGB: 10, ExpiryTime: 1000}
	require.NoError(t, store.CreateConfig(cfg))
	require.NoError(t, ledger.RecordUsage(cfg.ID, 6))

	require.NoError(t, ledger.Extend(cfg.ID, 2000, 5))

	got, err := store.GetConfig(cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.TrafficLimitGB, "extension adds to the limit, never replaces it")
	assert.Equal(t, int64(2000), got.ExpiryTime)
	assert.Equal(t, 6.0, got.TrafficUsedGB, "extension never resets usage")
}

func TestExtend_UnknownConfig(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.Extend(42, 1000, 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRemainingQuota(t *testing.T) {
	ledger, store := newTestLedger(t)

	// Owner at 50 GB with one active config at 30 and one deleted config
	// frozen at 25: total 55, remaining clamps to zero instead of going
	// negative.
	require.NoError(t, store.EnsureOwner(100, database.RoleUser, 50))
	active := createConfig(t, store, 100, "bob-1")
	deleted := createConfig(t, store, 100, "bob-2")
	require.NoError(t, ledger.RecordUsage(active.ID, 30))
	require.NoError(t, ledger.SoftDelete(deleted.ID, 25))

	total, err := ledger.TotalUsage(100)
	require.NoError(t, err)
	assert.Equal(t, 55.0, total)

	remaining, err := ledger.RemainingQuota(100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, remaining)

	// Under the cap the remainder is reported as-is.
	require.NoError(t, ledger.RecordUsage(active.ID, 10))
	remaining, err = ledger.RemainingQuota(100)
	require.NoError(t, err)
	assert.Equal(t, 15.0, remaining)

	// Zero limit means no cap at all.
	require.NoError(t, store.EnsureOwner(200, database.RoleUser, 0))
	remaining, err = ledger.RemainingQuota(200)
	require.NoError(t, err)
	assert.Equal(t, float64(Unlimited), remaining)
}

func TestRemainingQuota_UnknownOwner(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.RemainingQuota(31337)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
