package tenantdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
)

type staticSecrets map[string]string

func (s staticSecrets) Password(_ context.Context, name string) (string, error) {
	if v, ok := s[name]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestRouter_OpenSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewRouter(config.TenantDatabaseConfig{Driver: config.DriverSQLite, SQLiteDir: t.TempDir()}, nil)
	t.Cleanup(func() { _ = r.Close() })

	tn := tenant.Tenant{ID: 1, DatabaseName: "east"}
	h1, err := r.Open(ctx, tn)
	require.NoError(t, err)
	h2, err := r.Open(ctx, tn)
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	records, err := h1.List(ctx, roster.EntityStudent)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = r.Open(ctx, tenant.Tenant{ID: 2, DatabaseName: "../escape"})
	require.Error(t, err)

	_, err = r.Open(ctx, tenant.Tenant{ID: 3})
	require.Error(t, err)

	require.NoError(t, r.Close())
}

func TestRouter_DataSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tn := tenant.Tenant{ID: 1, DatabaseName: "east"}
	provider := staticSecrets{"east": "p@ss"}

	pg := NewRouter(config.TenantDatabaseConfig{Driver: config.DriverPostgres, Host: "db", User: "roster"}, provider)
	driver, dsn, err := pg.dataSource(ctx, tn)
	require.NoError(t, err)
	assert.Equal(t, driverPgx, driver)
	assert.Equal(t, "postgres://roster:p%40ss@db:5432/east?sslmode=require", dsn)

	my := NewRouter(config.TenantDatabaseConfig{Driver: config.DriverMySQL, Host: "db", Port: 3307, User: "roster"}, provider)
	driver, dsn, err = my.dataSource(ctx, tn)
	require.NoError(t, err)
	assert.Equal(t, driverMySQL, driver)
	assert.Contains(t, dsn, "roster:p@ss@tcp(db:3307)/east")
	assert.Contains(t, dsn, "parseTime=true")

	_, _, err = pg.dataSource(ctx, tenant.Tenant{ID: 2, DatabaseName: "west"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve database password")

	noSecrets := NewRouter(config.TenantDatabaseConfig{Driver: config.DriverPostgres, Host: "db"}, nil)
	_, _, err = noSecrets.dataSource(ctx, tn)
	require.Error(t, err)
}
