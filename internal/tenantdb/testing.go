package tenantdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewTestHandle opens a sqlite roster database in a temporary directory with
// the schema applied. It is closed when the test finishes.
func NewTestHandle(t *testing.T) *Handle {
	t.Helper()

	db, err := sqlx.Open(driverSQLite3, sqliteDSN(filepath.Join(t.TempDir(), "tenant.db")))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	h := NewHandle(db, driverSQLite3)
	require.NoError(t, h.EnsureSchema(context.Background()))
	return h
}
