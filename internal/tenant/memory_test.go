package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTenants() []Tenant {
	return []Tenant{
		{ID: 3, ExternalID: "sch-3", Name: "North", DistrictID: "d1", DatabaseName: "north", Active: true},
		{ID: 1, ExternalID: "sch-1", Name: "East", DistrictID: "d1", DatabaseName: "east", Active: true},
		{ID: 2, ExternalID: "sch-2", Name: "West", DistrictID: "d2", DatabaseName: "west", Active: true},
		{ID: 4, ExternalID: "sch-4", Name: "Closed", DistrictID: "d3", DatabaseName: "closed", Active: false},
	}
}

func TestMemoryDirectory_Lists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := NewMemoryDirectory(testTenants()...)

	active, err := dir.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{active[0].ID, active[1].ID, active[2].ID})

	d1, err := dir.ListActiveByDistrict(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, d1, 2)
	assert.Equal(t, int64(1), d1[0].ID)
	assert.Equal(t, int64(3), d1[1].ID)

	d3, err := dir.ListActiveByDistrict(ctx, "d3")
	require.NoError(t, err)
	assert.Empty(t, d3)

	exists, err := dir.DistrictExists(ctx, "d3")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = dir.DistrictExists(ctx, "d9")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryDirectory_FullSyncFlag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := NewMemoryDirectory(testTenants()...)

	require.NoError(t, dir.RequestFullSync(ctx, 2))
	got, err := dir.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, got.RequiresFullSync)

	require.NoError(t, dir.ClearFullSyncFlag(ctx, 2))
	got, err = dir.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, got.RequiresFullSync)

	err = dir.RequestFullSync(ctx, 42)
	require.ErrorIs(t, err, ErrTenantNotFound)

	_, err = dir.Get(ctx, 42)
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestMemoryDirectory_SaveKeepsFullSyncFlag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := NewMemoryDirectory()

	require.NoError(t, dir.Save(ctx, Tenant{ID: 7, Name: "New", Active: true, RequiresFullSync: true}))
	require.NoError(t, dir.Save(ctx, Tenant{ID: 7, Name: "Renamed", Active: true}))

	got, err := dir.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.RequiresFullSync)
}

func TestTenantScopeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "school:42", Tenant{ID: 42}.ScopeKey())
}
