// Package tenantdb opens the per-tenant roster databases and implements the
// record store the sync engines write through.
package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 database/sql driver

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/secrets"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
)

// database/sql driver names
const (
	driverPgx     = "pgx"
	driverMySQL   = "mysql"
	driverSQLite3 = "sqlite3"
)

const (
	defaultMaxOpenConns = 4
	defaultMaxIdleConns = 2
	defaultPingTimeout  = 10 * time.Second
)

// Router opens and caches one Handle per tenant
type Router struct {
	cfg     config.TenantDatabaseConfig
	secrets secrets.Provider

	mu      sync.Mutex
	handles map[int64]*Handle
}

// NewRouter creates a router for the configured driver. secrets may be nil
// for the sqlite driver.
func NewRouter(cfg config.TenantDatabaseConfig, provider secrets.Provider) *Router {
	return &Router{
		cfg:     cfg,
		secrets: provider,
		handles: make(map[int64]*Handle),
	}
}

// Open returns the tenant's handle, opening and pinging the database on first use.
// Failures are not retried here.
func (r *Router) Open(ctx context.Context, t tenant.Tenant) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[t.ID]; ok {
		return h, nil
	}
	if t.DatabaseName == "" {
		return nil, fmt.Errorf("tenant %d has no database configured", t.ID)
	}

	driverName, dsn, err := r.dataSource(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("tenant %d: %w", t.ID, err)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("tenant %d: failed to open database: %w", t.ID, err)
	}
	db.SetMaxOpenConns(orDefault(r.cfg.MaxOpenConns, defaultMaxOpenConns))
	db.SetMaxIdleConns(orDefault(r.cfg.MaxIdleConns, defaultMaxIdleConns))

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tenant %d: failed to connect to database %s: %w", t.ID, t.DatabaseName, err)
	}

	h := NewHandle(db, driverName)
	if driverName == driverSQLite3 {
		if err := h.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("tenant %d: %w", t.ID, err)
		}
	}

	slog.Debug("Opened tenant database", "tenant", t.ID, "driver", driverName, "database", t.DatabaseName)
	r.handles[t.ID] = h
	return h, nil
}

// Close closes every cached handle
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, h := range r.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %d: %w", id, err))
		}
		delete(r.handles, id)
	}
	return errors.Join(errs...)
}

func (r *Router) dataSource(ctx context.Context, t tenant.Tenant) (string, string, error) {
	switch r.cfg.Driver {
	case config.DriverSQLite:
		name := filepath.Base(t.DatabaseName)
		if name != t.DatabaseName {
			return "", "", fmt.Errorf("invalid sqlite database name %q", t.DatabaseName)
		}
		if err := os.MkdirAll(r.cfg.SQLiteDir, 0o750); err != nil {
			return "", "", fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		path := filepath.Join(r.cfg.SQLiteDir, name+".db")
		return driverSQLite3, sqliteDSN(path), nil

	case config.DriverPostgres:
		password, err := r.password(ctx, t)
		if err != nil {
			return "", "", err
		}
		sslMode := r.cfg.SSLMode
		if sslMode == "" {
			sslMode = "require"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(r.cfg.User, password),
			Host:     net.JoinHostPort(r.cfg.Host, strconv.Itoa(orDefault(r.cfg.Port, 5432))),
			Path:     "/" + t.DatabaseName,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return driverPgx, u.String(), nil

	case config.DriverMySQL:
		password, err := r.password(ctx, t)
		if err != nil {
			return "", "", err
		}
		mc := mysql.NewConfig()
		mc.User = r.cfg.User
		mc.Passwd = password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(r.cfg.Host, strconv.Itoa(orDefault(r.cfg.Port, 3306)))
		mc.DBName = t.DatabaseName
		mc.ParseTime = true
		mc.Loc = time.UTC
		return driverMySQL, mc.FormatDSN(), nil

	default:
		return "", "", fmt.Errorf("unsupported tenant database driver %q", r.cfg.Driver)
	}
}

func (r *Router) password(ctx context.Context, t tenant.Tenant) (string, error) {
	if r.secrets == nil {
		return "", fmt.Errorf("no secrets provider configured")
	}
	password, err := r.secrets.Password(ctx, t.DatabaseName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database password: %w", err)
	}
	return password, nil
}

func sqliteDSN(path string) string {
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
