// Package status defines the vocabulary shared by the sync engines, the
// history recorder and the orchestrator summary.
package status

// RunStatus is the state of one history record (tenant x entity type x run)
type RunStatus string

const (
	// RunStatusInProgress means the record was opened and not yet finalized
	RunStatusInProgress RunStatus = "IN_PROGRESS"

	// RunStatusSuccess means every record of the entity type was applied
	RunStatusSuccess RunStatus = "SUCCESS"

	// RunStatusFailed means the entity type failed before any change was applied
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusPartial means some changes were applied before the entity type failed
	RunStatusPartial RunStatus = "PARTIAL"
)

// Terminal reports whether the status is a final one
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusPartial
}

// SyncMode is the strategy used for a tenant run
type SyncMode string

const (
	// SyncModeFull reconciles the complete dataset and resets the event baseline
	SyncModeFull SyncMode = "FULL"

	// SyncModeIncremental replays events since the baseline
	SyncModeIncremental SyncMode = "INCREMENTAL"
)

// Outcome is the result of one tenant within an orchestrated run
type Outcome string

const (
	// OutcomeSuccess means every entity type succeeded
	OutcomeSuccess Outcome = "Success"

	// OutcomePartial means some entity types succeeded and some failed
	OutcomePartial Outcome = "Partial"

	// OutcomeFailed means the tenant could not be synced
	OutcomeFailed Outcome = "Failed"

	// OutcomeSkipped means another holder owned the tenant lock
	OutcomeSkipped Outcome = "Skipped"

	// OutcomeCancelled means the run was cancelled before the tenant started
	OutcomeCancelled Outcome = "Cancelled"
)

// Aggregate folds per-entity-type statuses into a tenant outcome. An empty
// slice is a success: there was nothing to do.
func Aggregate(statuses []RunStatus) Outcome {
	var succeeded, failed int
	for _, s := range statuses {
		switch s {
		case RunStatusSuccess:
			succeeded++
		case RunStatusFailed:
			failed++
		case RunStatusPartial:
			return OutcomePartial
		case RunStatusInProgress:
			failed++
		}
	}
	switch {
	case failed == 0:
		return OutcomeSuccess
	case succeeded == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}
