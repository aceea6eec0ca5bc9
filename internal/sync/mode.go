package sync

import (
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
)

// Mode selection reasons
const (
	// ReasonRequiresFullSync means the tenant is flagged for a full reconciliation
	ReasonRequiresFullSync = "tenant-requires-full-sync"

	// ReasonFullRequested means the caller asked for a full run
	ReasonFullRequested = "full-sync-requested"

	// ReasonNoPriorSuccess means the tenant has never completed a sync
	ReasonNoPriorSuccess = "no-prior-successful-sync"

	// ReasonIncremental means nothing forces a full run
	ReasonIncremental = "incremental"

	// ReasonIncrementalRequested means the caller asked for incremental mode
	// and the tenant does not require a full run
	ReasonIncrementalRequested = "incremental-sync-requested"
)

// ModeInput holds everything the mode decision looks at
type ModeInput struct {
	// RequiresFullSync is the tenant's flag
	RequiresFullSync bool

	// FullRequested is true when the caller asked for full mode or forced it
	FullRequested bool

	// IncrementalRequested is true when the caller asked for incremental mode
	IncrementalRequested bool

	// HasPriorSuccess is true when at least one successful history row exists
	HasPriorSuccess bool
}

// DecideMode selects full or incremental sync for a tenant. A tenant flagged
// for full sync or without any successful history is always fully
// reconciled, even when incremental mode was requested.
func DecideMode(in ModeInput) (status.SyncMode, string) {
	switch {
	case in.RequiresFullSync:
		return status.SyncModeFull, ReasonRequiresFullSync
	case in.FullRequested:
		return status.SyncModeFull, ReasonFullRequested
	case !in.HasPriorSuccess:
		return status.SyncModeFull, ReasonNoPriorSuccess
	case in.IncrementalRequested:
		return status.SyncModeIncremental, ReasonIncrementalRequested
	default:
		return status.SyncModeIncremental, ReasonIncremental
	}
}

// IsForcedFull reports whether the reason came from the tenant flag or the caller
func IsForcedFull(reason string) bool {
	return reason == ReasonRequiresFullSync || reason == ReasonFullRequested
}
