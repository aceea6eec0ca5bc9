// Package baseline stores the per-tenant event baseline: the id of the last
// source event whose effects are known to be applied to the tenant database.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/db/sqlc"
)

// ErrNoBaseline is returned when the tenant has no baseline
var ErrNoBaseline = errors.New("no event baseline")

// Store reads and writes event baselines
type Store interface {
	// Get returns the tenant's baseline event id or ErrNoBaseline
	Get(ctx context.Context, tenantID int64) (string, error)
	// Set replaces the tenant's baseline; an empty event id is rejected
	Set(ctx context.Context, tenantID int64, eventID string) error
	// Delete removes the tenant's baseline, forcing the timestamp fallback
	Delete(ctx context.Context, tenantID int64) error
}

type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a store backed by the control database
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{pool: pool}
}

func (s *dbStore) Get(ctx context.Context, tenantID int64) (string, error) {
	row, err := sqlc.New(s.pool).GetEventBaseline(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoBaseline
		}
		return "", fmt.Errorf("failed to get baseline for tenant %d: %w", tenantID, err)
	}
	if row.EventID == "" {
		return "", ErrNoBaseline
	}
	return row.EventID, nil
}

func (s *dbStore) Set(ctx context.Context, tenantID int64, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("baseline event id for tenant %d is empty", tenantID)
	}
	err := sqlc.New(s.pool).UpsertEventBaseline(ctx, sqlc.UpsertEventBaselineParams{
		TenantID: tenantID,
		EventID:  eventID,
	})
	if err != nil {
		return fmt.Errorf("failed to set baseline for tenant %d: %w", tenantID, err)
	}
	return nil
}

func (s *dbStore) Delete(ctx context.Context, tenantID int64) error {
	if err := sqlc.New(s.pool).DeleteEventBaseline(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to delete baseline for tenant %d: %w", tenantID, err)
	}
	return nil
}

// MemoryStore keeps baselines in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	baselines map[int64]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{baselines: make(map[int64]string)}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, tenantID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.baselines[tenantID]
	if !ok || id == "" {
		return "", ErrNoBaseline
	}
	return id, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, tenantID int64, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("baseline event id for tenant %d is empty", tenantID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[tenantID] = eventID
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, tenantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.baselines, tenantID)
	return nil
}
