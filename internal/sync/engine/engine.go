// Package engine implements the two per-tenant sync strategies: a full
// reconciliation of every entity type followed by a baseline reset, and an
// incremental replay of the source's event log since the baseline.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/upsert"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
)

// ErrStopped marks entity types that were not run because a stop was requested
var ErrStopped = errors.New("sync stopped before this entity type ran")

// ErrNotApplied marks entity types whose events were left unapplied because
// replay stopped at an earlier failing event
var ErrNotApplied = errors.New("events not applied")

// Job is one tenant's unit of work
type Job struct {
	Tenant tenant.Tenant

	// Store is the tenant database
	Store upsert.Store

	// Upserter applies records to Store; it must not be shared across tenants
	Upserter *upsert.Engine

	// Stop is closed when the caller asks the run to wind down. It is only
	// observed between entity types (and between events during replay) so
	// work already started completes. A nil channel never stops.
	Stop <-chan struct{}
}

func (j Job) stopped() bool {
	select {
	case <-j.Stop:
		return true
	default:
		return false
	}
}

// EntityResult is the outcome of one entity type within a run
type EntityResult struct {
	EntityType roster.EntityType
	Status     status.RunStatus
	Counts     upsert.Counts

	// Deactivated counts soft deletions
	Deactivated int

	// HardDeleted counts rows removed after a full reconciliation
	HardDeleted int

	// SkippedEvents counts events of this type with an unknown action
	SkippedEvents int

	// LastSeenAt is the newest source modification time applied
	LastSeenAt *time.Time

	// LastEventID is the newest event applied for this type
	LastEventID string

	Err error
}

// Changed is the number of rows written, including soft deletions
func (r EntityResult) Changed() int {
	return r.Counts.Changed() + r.Deactivated + r.HardDeleted
}

// fail sets the terminal status for err. Work already applied makes the
// entity type partial rather than failed.
func (r *EntityResult) fail(err error) {
	r.Err = err
	if r.Changed() > 0 {
		r.Status = status.RunStatusPartial
	} else {
		r.Status = status.RunStatusFailed
	}
}

func (r *EntityResult) observe(e roster.Entity) {
	if e.LastModified == nil {
		return
	}
	if r.LastSeenAt == nil || e.LastModified.After(*r.LastSeenAt) {
		ts := e.LastModified.UTC()
		r.LastSeenAt = &ts
	}
}

// Result is the outcome of one tenant run
type Result struct {
	Mode     status.SyncMode
	Entities []EntityResult

	// Baseline is the event id written as the new baseline; empty when the
	// baseline was not changed
	Baseline string

	// SkippedEvents counts events that referenced an unknown entity type
	SkippedEvents int

	// Err is a tenant level error raised after the entity types ran, such as
	// a failure to write the baseline
	Err error
}

// Statuses returns the status of every entity type in run order
func (r *Result) Statuses() []status.RunStatus {
	out := make([]status.RunStatus, len(r.Entities))
	for i, e := range r.Entities {
		out[i] = e.Status
	}
	return out
}

// Succeeded reports whether every entity type succeeded
func (r *Result) Succeeded() bool {
	if r.Err != nil {
		return false
	}
	for _, e := range r.Entities {
		if e.Status != status.RunStatusSuccess {
			return false
		}
	}
	return true
}

// Entity returns the result for entityType
func (r *Result) Entity(entityType roster.EntityType) *EntityResult {
	for i := range r.Entities {
		if r.Entities[i].EntityType == entityType {
			return &r.Entities[i]
		}
	}
	return nil
}

// Runner is implemented by both engines
type Runner interface {
	Run(ctx context.Context, job Job) (*Result, error)
}

func newResult(mode status.SyncMode) *Result {
	types := roster.EntityTypes()
	r := &Result{Mode: mode, Entities: make([]EntityResult, len(types))}
	for i, t := range types {
		r.Entities[i] = EntityResult{EntityType: t, Status: status.RunStatusInProgress}
	}
	return r
}

// stopRemaining fails every entity type that has not reached a terminal status
func (r *Result) stopRemaining() {
	for i := range r.Entities {
		if !r.Entities[i].Status.Terminal() {
			r.Entities[i].fail(ErrStopped)
		}
	}
}
