// Package history records one audit row per tenant, entity type and run.
// Rows are opened IN_PROGRESS when work on an entity type starts and are
// finalized exactly once with a terminal status.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
)

var (
	// ErrNoHistory is returned when no matching history row exists
	ErrNoHistory = errors.New("no sync history")

	// ErrAlreadyFinalized is returned when finishing a row that is no longer IN_PROGRESS
	ErrAlreadyFinalized = errors.New("sync history already finalized")
)

// maxErrorLength bounds the stored error message
const maxErrorLength = 2000

// Record is one sync_history row
type Record struct {
	ID              uuid.UUID
	RunID           uuid.UUID
	TenantID        int64
	EntityType      roster.EntityType
	Mode            status.SyncMode
	Status          status.RunStatus
	StartedAt       time.Time
	EndedAt         *time.Time
	RecordsExamined int
	RecordsChanged  int
	RecordsFailed   int
	Error           string
	LastSeenAt      *time.Time
	LastEventID     string
}

// Result is the terminal state written by Finish
type Result struct {
	Status   status.RunStatus
	Examined int
	Changed  int
	Failed   int
	Err      error

	// LastSeenAt is the newest source timestamp applied, used as the next
	// timestamp-fallback starting point
	LastSeenAt *time.Time

	// LastEventID is the newest event applied by an incremental run
	LastEventID string
}

// Recorder persists sync history
type Recorder interface {
	// Start opens an IN_PROGRESS row and returns its id
	Start(ctx context.Context, runID uuid.UUID, tenantID int64, entityType roster.EntityType, mode status.SyncMode) (uuid.UUID, error)
	// Finish finalizes the row. It returns ErrNoHistory for an unknown id and
	// ErrAlreadyFinalized when the row was already finished.
	Finish(ctx context.Context, id uuid.UUID, result Result) error
	// LastSuccessful returns the newest SUCCESS row for the tenant and entity
	// type, or ErrNoHistory
	LastSuccessful(ctx context.Context, tenantID int64, entityType roster.EntityType) (*Record, error)
	// HasPriorSuccess reports whether the tenant ever completed an entity type successfully
	HasPriorSuccess(ctx context.Context, tenantID int64) (bool, error)
	// List returns the tenant's newest rows, newest first
	List(ctx context.Context, tenantID int64, limit int) ([]Record, error)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return msg
}

func validateResult(result Result) error {
	if !result.Status.Terminal() {
		return errors.New("finish requires a terminal status, got " + string(result.Status))
	}
	return nil
}
