package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
)

// Pinger checks connectivity of a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// Runner runs orchestrated syncs
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Summary, error)
}

type syncService struct {
	db      Pinger
	runner  Runner
	locks   *lock.Manager
	history history.Recorder
}

var _ SyncService = (*syncService)(nil)

// New creates the admin service. db may be nil when there is no control
// database to check, e.g. with in-memory stores.
func New(db Pinger, runner Runner, locks *lock.Manager, recorder history.Recorder) SyncService {
	return &syncService{db: db, runner: runner, locks: locks, history: recorder}
}

// CheckReadiness implements SyncService
func (s *syncService) CheckReadiness(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: control database: %w", ErrNotReady, err)
	}
	return nil
}

// Sync implements SyncService
func (s *syncService) Sync(ctx context.Context, req orchestrator.Request) (*orchestrator.Summary, error) {
	if req.Initiator == "" {
		req.Initiator = "api"
	}
	slog.Info("Sync requested via API", "scope", req.Scope, "mode", req.Mode, "force_full", req.ForceFull)
	return s.runner.Run(ctx, req)
}

// LockInfo implements SyncService
func (s *syncService) LockInfo(ctx context.Context, scope string) (*lock.Info, error) {
	return s.locks.GetInfo(ctx, scope)
}

// History implements SyncService
func (s *syncService) History(
	ctx context.Context, tenantID int64, opts ...Option[HistoryOptions],
) ([]history.Record, error) {
	options := HistoryOptions{Limit: DefaultHistoryLimit}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}
	return s.history.List(ctx, tenantID, options.Limit)
}
