package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/db/pgtypes"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/db/sqlc"
)

// PostgresStore keeps locks in the sync_locks table of the control database.
// Expiry is evaluated with the database clock so every process agrees on it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over the control database pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Acquire implements Store
func (s *PostgresStore) Acquire(
	ctx context.Context, scope, holder, initiator, token string, ttl time.Duration,
) (bool, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return false, fmt.Errorf("invalid lock token: %w", err)
	}

	_, err = sqlc.New(s.pool).AcquireLock(ctx, sqlc.AcquireLockParams{
		Scope:     scope,
		Holder:    holder,
		Initiator: initiator,
		Token:     id,
		Ttl:       pgtypes.NewInterval(ttl),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get implements Store
func (s *PostgresStore) Get(ctx context.Context, scope string) (*Info, error) {
	row, err := sqlc.New(s.pool).GetActiveLock(ctx, scope)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Info{
		Scope:      row.Scope,
		Holder:     row.Holder,
		Initiator:  row.Initiator,
		AcquiredAt: row.AcquiredAt,
		ExpiresAt:  row.ExpiresAt,
		Age:        row.ObservedAt.Sub(row.AcquiredAt),
	}, nil
}

// Release implements Store
func (s *PostgresStore) Release(ctx context.Context, scope, token string) (bool, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		// a malformed token can never match
		return false, nil
	}
	n, err := sqlc.New(s.pool).ReleaseLock(ctx, sqlc.ReleaseLockParams{Scope: scope, Token: id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
