package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster/mocks"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/baseline"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenantdb"
)

type testRouter struct {
	handle *tenantdb.Handle
}

func (r *testRouter) Open(context.Context, tenant.Tenant) (*tenantdb.Handle, error) {
	return r.handle, nil
}

func createValidTestConfig() *config.Config {
	return &config.Config{
		Database: &config.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "cleversync",
			Database: "cleversync",
		},
		TenantDatabase: config.TenantDatabaseConfig{
			Driver:    config.DriverSQLite,
			SQLiteDir: "/tmp/tenants",
		},
		Lock: config.LockConfig{Backend: config.LockBackendMemory},
	}
}

// inMemoryOptions injects every store so no control database is needed
func inMemoryOptions(t *testing.T, tenants ...tenant.Tenant) []SyncAppOptions {
	t.Helper()

	clk := clocktesting.NewFakeClock(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC))
	ctrl := gomock.NewController(t)
	return []SyncAppOptions{
		WithConfig(createValidTestConfig()),
		WithTenantDirectory(tenant.NewMemoryDirectory(tenants...)),
		WithHistoryRecorder(history.NewMemoryRecorder(clk)),
		WithBaselineStore(baseline.NewMemoryStore()),
		WithLockStore(lock.NewMemoryStore(clk)),
		WithRosterClient(mocks.NewMockClient(ctrl)),
		WithDatabaseRouter(&testRouter{handle: tenantdb.NewTestHandle(t)}),
	}
}

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()
		built, err := baseConfig()
		require.Error(t, err)
		assert.Nil(t, built)
	})

	t.Run("address defaults to the configured server address", func(t *testing.T) {
		t.Parallel()
		built, err := baseConfig(WithConfig(createValidTestConfig()))
		require.NoError(t, err)
		assert.Equal(t, config.DefaultServerAddress, built.address)
		assert.Equal(t, defaultReadHeaderTimeout, built.readHeaderTimeout)
	})

	t.Run("address from config", func(t *testing.T) {
		t.Parallel()
		cfg := createValidTestConfig()
		cfg.Server.Address = "127.0.0.1:9000"
		built, err := baseConfig(WithConfig(cfg))
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9000", built.address)
	})
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":9090"},
		{name: "host and port", addr: "127.0.0.1:9090"},
		{name: "missing port", addr: ":", wantErr: true},
		{name: "no colon", addr: "9090", wantErr: true},
		{name: "bad host", addr: "not-an-ip:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			built, err := baseConfig(WithConfig(createValidTestConfig()), WithAddress(tt.addr))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, built.address)
		})
	}
}

func TestNeedsDatabase(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakeClock(time.Now())
	all := func(b *syncAppConfig) {
		b.tenants = tenant.NewMemoryDirectory()
		b.history = history.NewMemoryRecorder(clk)
		b.baselines = baseline.NewMemoryStore()
	}

	tests := []struct {
		name    string
		backend string
		setup   func(*syncAppConfig)
		want    bool
	}{
		{name: "nothing injected", backend: config.LockBackendMemory, setup: func(*syncAppConfig) {}, want: true},
		{name: "stores injected with memory locks", backend: config.LockBackendMemory, setup: all, want: false},
		{name: "stores injected with database locks", backend: config.LockBackendDatabase, setup: all, want: true},
		{
			name:    "stores and lock store injected",
			backend: config.LockBackendDatabase,
			setup: func(b *syncAppConfig) {
				all(b)
				b.lockStore = lock.NewMemoryStore(clk)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := createValidTestConfig()
			cfg.Lock.Backend = tt.backend
			b := &syncAppConfig{config: cfg}
			tt.setup(b)
			assert.Equal(t, tt.want, b.needsDatabase())
		})
	}
}

func TestBuildComponents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	components, err := BuildComponents(ctx, inMemoryOptions(t)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Close(ctx) })

	assert.Nil(t, components.Database)
	assert.NotNil(t, components.Orchestrator)
	assert.NotNil(t, components.Locks)
	assert.NotNil(t, components.Telemetry)
	assert.Nil(t, components.SyncCoordinator)
	require.NoError(t, components.SyncService.CheckReadiness(ctx))

	info, err := components.SyncService.LockInfo(ctx, "school:1")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestBuildComponents_MemoryLockBackendFromConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clocktesting.NewFakeClock(time.Now())
	ctrl := gomock.NewController(t)
	components, err := BuildComponents(ctx,
		WithConfig(createValidTestConfig()),
		WithTenantDirectory(tenant.NewMemoryDirectory()),
		WithHistoryRecorder(history.NewMemoryRecorder(clk)),
		WithBaselineStore(baseline.NewMemoryStore()),
		WithRosterClient(mocks.NewMockClient(ctrl)),
		WithDatabaseRouter(&testRouter{}),
		WithClock(clk),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Close(ctx) })

	acq, err := components.Locks.TryAcquire(ctx, "school:5", "test", "cli", time.Minute)
	require.NoError(t, err)
	assert.True(t, acq.Granted)
}

//nolint:paralleltest // mutates the environment
func TestBuildComponents_MissingCleverToken(t *testing.T) {
	t.Setenv(config.CleverTokenEnv, "")

	clk := clocktesting.NewFakeClock(time.Now())
	_, err := BuildComponents(context.Background(),
		WithConfig(createValidTestConfig()),
		WithTenantDirectory(tenant.NewMemoryDirectory()),
		WithHistoryRecorder(history.NewMemoryRecorder(clk)),
		WithBaselineStore(baseline.NewMemoryStore()),
		WithDatabaseRouter(&testRouter{}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.CleverTokenEnv)
}

//nolint:paralleltest // mutates the environment
func TestBuildComponents_CleverClientFromConfig(t *testing.T) {
	t.Setenv(config.CleverTokenEnv, "district-token")

	ctx := context.Background()
	clk := clocktesting.NewFakeClock(time.Now())
	components, err := BuildComponents(ctx,
		WithConfig(createValidTestConfig()),
		WithTenantDirectory(tenant.NewMemoryDirectory()),
		WithHistoryRecorder(history.NewMemoryRecorder(clk)),
		WithBaselineStore(baseline.NewMemoryStore()),
	)
	require.NoError(t, err)
	require.NoError(t, components.Close(ctx))
}

func TestBuildStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clocktesting.NewFakeClock(time.Now())
	components, err := BuildStores(ctx,
		WithConfig(createValidTestConfig()),
		WithTenantDirectory(tenant.NewMemoryDirectory(tenant.Tenant{ID: 5, Active: true})),
		WithHistoryRecorder(history.NewMemoryRecorder(clk)),
		WithBaselineStore(baseline.NewMemoryStore()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Close(ctx) })

	assert.Nil(t, components.Orchestrator)
	assert.Nil(t, components.SyncService)
	got, err := components.Tenants.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
}
