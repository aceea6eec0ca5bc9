package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/engine"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
)

// Mode is the strategy requested by the caller
type Mode string

const (
	// ModeAuto lets each tenant's state decide between full and incremental
	ModeAuto Mode = "auto"

	// ModeFull forces a full reconciliation
	ModeFull Mode = "full"

	// ModeIncremental asks for incremental sync; tenants that require a full
	// reconciliation still get one
	ModeIncremental Mode = "incremental"
)

// ParseMode converts a user supplied mode, defaulting to ModeAuto
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, true
	case ModeFull:
		return ModeFull, true
	case ModeIncremental:
		return ModeIncremental, true
	default:
		return "", false
	}
}

// Request describes one orchestrated run
type Request struct {
	// Scope is a scope token such as "school:5", "district:d1" or "all"
	Scope string

	Mode Mode

	// Concurrency overrides the configured number of parallel tenants when positive
	Concurrency int

	// ForceFull is OR'd into the full sync decision
	ForceFull bool

	// Initiator is recorded in lock metadata, e.g. "cli" or "scheduler"
	Initiator string

	// Observer, when set, receives every tenant result as it completes.
	// Calls are serialized.
	Observer func(TenantResult)
}

// TenantResult is the outcome of one tenant
type TenantResult struct {
	TenantID   int64
	TenantName string
	Outcome    status.Outcome

	// Mode and Reason are empty when the tenant never got past the lock
	Mode   status.SyncMode
	Reason string

	Entities []engine.EntityResult

	// Baseline is the event id written as the new baseline, if any
	Baseline string

	// Holder describes the lock owner when the tenant was skipped
	Holder *lock.Info

	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Changed sums the rows written across entity types
func (r TenantResult) Changed() int {
	var n int
	for _, e := range r.Entities {
		n += e.Changed()
	}
	return n
}

// Summary aggregates a run
type Summary struct {
	RunID     uuid.UUID
	Scope     string
	StartedAt time.Time
	Duration  time.Duration

	Total     int
	Succeeded int
	Failed    int
	Partial   int
	Skipped   int
	Cancelled int

	// Results are ordered by tenant id
	Results []TenantResult
}

func (s *Summary) tally() {
	s.Total = len(s.Results)
	for _, r := range s.Results {
		switch r.Outcome {
		case status.OutcomeSuccess:
			s.Succeeded++
		case status.OutcomeFailed:
			s.Failed++
		case status.OutcomePartial:
			s.Partial++
		case status.OutcomeSkipped:
			s.Skipped++
		case status.OutcomeCancelled:
			s.Cancelled++
		}
	}
}
