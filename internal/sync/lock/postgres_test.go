package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillSOS/CleverSyncSOS-sub001/database"
)

func TestPostgresStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := database.SetupTestDB(t)
	m := NewManager(NewPostgresStore(pool))

	first, err := m.TryAcquire(ctx, "school:5", "worker-a", "cli", time.Hour)
	require.NoError(t, err)
	require.True(t, first.Granted)

	second, err := m.TryAcquire(ctx, "school:5", "worker-b", "scheduler", time.Hour)
	require.NoError(t, err)
	assert.False(t, second.Granted)
	require.NotNil(t, second.Current)
	assert.Equal(t, "worker-a", second.Current.Holder)
	assert.Equal(t, "cli", second.Current.Initiator)
	assert.GreaterOrEqual(t, second.Current.Age, time.Duration(0))
	assert.True(t, second.Current.ExpiresAt.After(second.Current.AcquiredAt))

	released, err := m.Release(ctx, "school:5", second.Token)
	require.NoError(t, err)
	assert.False(t, released)

	released, err = m.Release(ctx, "school:5", "garbage")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = m.Release(ctx, "school:5", first.Token)
	require.NoError(t, err)
	assert.True(t, released)

	info, err := m.GetInfo(ctx, "school:5")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestPostgresStoreExpiredLockIsReplaced(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := database.SetupTestDB(t)
	m := NewManager(NewPostgresStore(pool))

	first, err := m.TryAcquire(ctx, "all", "worker-a", "cli", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, first.Granted)

	require.Eventually(t, func() bool {
		acq, err := m.TryAcquire(ctx, "all", "worker-b", "cli", time.Hour)
		return err == nil && acq.Granted
	}, 5*time.Second, 50*time.Millisecond)

	info, err := m.GetInfo(ctx, "all")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "worker-b", info.Holder)
}
