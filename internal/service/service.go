// Package service provides the operations behind the admin API
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
)

var (
	// ErrNotReady is returned by CheckReadiness when a dependency is unavailable
	ErrNotReady = errors.New("service not ready")
	// ErrInvalidArgument is returned when an option value is out of range
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	// DefaultHistoryLimit is the number of history rows returned when no limit is given
	DefaultHistoryLimit = 20

	// MaxHistoryLimit caps the number of history rows per request
	MaxHistoryLimit = 500
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go SyncService

// SyncService defines the operations exposed by the admin API
type SyncService interface {
	// CheckReadiness checks that the control database is reachable
	CheckReadiness(ctx context.Context) error

	// Sync runs an orchestrated sync and waits for it to finish
	Sync(ctx context.Context, req orchestrator.Request) (*orchestrator.Summary, error)

	// LockInfo returns the live lock for scope, or nil when none is held
	LockInfo(ctx context.Context, scope string) (*lock.Info, error)

	// History returns a tenant's most recent history rows, newest first
	History(ctx context.Context, tenantID int64, opts ...Option[HistoryOptions]) ([]history.Record, error)
}

// Option is a function that sets an option on an operation's options struct
type Option[T HistoryOptions] func(*T) error

// HistoryOptions is the options for the History operation
type HistoryOptions struct {
	Limit int
}

// WithLimit sets the maximum number of history rows returned
func WithLimit(limit int) Option[HistoryOptions] {
	return func(o *HistoryOptions) error {
		if limit <= 0 || limit > MaxHistoryLimit {
			return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, MaxHistoryLimit)
		}
		o.Limit = limit
		return nil
	}
}
