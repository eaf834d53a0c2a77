package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xui-quota-bot/internal/database"
)

func TestUsersNearLimit(t *testing.T) {
	ledger, store := newTestLedger(t)

	seed := func(ownerID int64, limitGB, usedGB float64, blocked bool) {
		require.NoError(t, store.EnsureOwner(ownerID, database.RoleUser, limitGB))
		if blocked {
			require.NoError(t, store.SetOwnerBlocked(ownerID, true))
		}
		cfg := createConfig(t, store, ownerID, "owner")
		require.NoError(t, ledger.RecordUsage(cfg.ID, usedGB))
	}

	seed(1, 50, 40, false)  // exactly 80%
	seed(2, 100, 95, false) // 95%
	seed(3, 100, 50, false) // 50%, below threshold
	seed(4, 0, 500, false)  // unlimited, never reported
	seed(5, 50, 49, true)   // blocked, never reported

	near, err := ledger.UsersNearLimit(80)
	require.NoError(t, err)

	ids := make(map[int64]OwnerUsage, len(near))
	for _, usage := range near {
		ids[usage.OwnerID] = usage
	}

	assert.Len(t, near, 2)
	assert.Contains(t, ids, int64(1), "the threshold boundary is inclusive")
	assert.Contains(t, ids, int64(2))
	assert.Equal(t, 80.0, ids[1].Percent)
	assert.Equal(t, 40.0, ids[1].UsedGB)
	assert.Equal(t, 50.0, ids[1].LimitGB)
}

func TestUsersNearLimit_CountsDeletedUsage(t *testing.T) {
	ledger, store := newTestLedger(t)
	require.NoError(t, store.EnsureOwner(1, database.RoleUser, 100))

	active := createConfig(t, store, 1, "a")
	gone := createConfig(t, store, 1, "b")
	require.NoError(t, ledger.RecordUsage(active.ID, 40))
	require.NoError(t, ledger.SoftDelete(gone.ID, 45))

	near, err := ledger.UsersNearLimit(80)
	require.NoError(t, err)
	require.Len(t, near, 1, "frozen usage of deleted configs counts toward the threshold")
	assert.Equal(t, 85.0, near[0].UsedGB)
}

func TestUsersNearLimit_EmptyWhenNobodyClose(t *testing.T) {
	ledger, store := newTestLedger(t)
	require.NoError(t, store.EnsureOwner(1, database.RoleUser, 100))

	near, err := ledger.UsersNearLimit(80)
	require.NoError(t, err)
	assert.Empty(t, near)
}
