// Package lock implements the advisory sync lock keyed by scope. A lock is
// acquired with a single atomic conditional write that only succeeds when no
// unexpired lock exists, expires on its own after the TTL, and can only be
// released with the token it was issued with.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotHeld is returned when a release token does not match the stored lock
var ErrNotHeld = errors.New("lock not held by this token")

// Info describes the current holder of a lock
type Info struct {
	Scope      string
	Holder     string
	Initiator  string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	// Age is how long the lock has been held when it was observed
	Age time.Duration
}

// Acquisition is the result of TryAcquire
type Acquisition struct {
	Granted bool
	// Token must be presented to Release; empty unless Granted
	Token string
	// Current describes the holder that blocked the acquisition, when known
	Current *Info
}

// Store is a lock backend. Acquire and Release must each be a single atomic
// operation against the shared store.
type Store interface {
	// Acquire writes the lock unless an unexpired one exists for scope
	Acquire(ctx context.Context, scope, holder, initiator, token string, ttl time.Duration) (bool, error)
	// Get returns the unexpired lock for scope, or nil
	Get(ctx context.Context, scope string) (*Info, error)
	// Release deletes the lock if token matches
	Release(ctx context.Context, scope, token string) (bool, error)
}

// Manager hands out scope locks from a Store
type Manager struct {
	store Store
}

// NewManager creates a manager over store
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// TryAcquire attempts to take the lock for scope without waiting. When the
// lock is held elsewhere the result is not granted and Current describes the
// holder; that is not an error.
func (m *Manager) TryAcquire(
	ctx context.Context, scope, holder, initiator string, ttl time.Duration,
) (Acquisition, error) {
	if scope == "" {
		return Acquisition{}, fmt.Errorf("scope is required")
	}
	if ttl <= 0 {
		return Acquisition{}, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}

	token := uuid.NewString()
	granted, err := m.store.Acquire(ctx, scope, holder, initiator, token, ttl)
	if err != nil {
		return Acquisition{}, fmt.Errorf("failed to acquire lock %s: %w", scope, err)
	}
	if granted {
		return Acquisition{Granted: true, Token: token}, nil
	}

	current, err := m.store.Get(ctx, scope)
	if err != nil {
		return Acquisition{}, fmt.Errorf("failed to read lock %s: %w", scope, err)
	}
	return Acquisition{Current: current}, nil
}

// Release releases the lock if token is the one it was issued with. It
// returns false, leaving the lock untouched, for any other token.
func (m *Manager) Release(ctx context.Context, scope, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	released, err := m.store.Release(ctx, scope, token)
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", scope, err)
	}
	return released, nil
}

// GetInfo returns the current holder of scope, or nil when unlocked
func (m *Manager) GetInfo(ctx context.Context, scope string) (*Info, error) {
	info, err := m.store.Get(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock %s: %w", scope, err)
	}
	return info, nil
}
