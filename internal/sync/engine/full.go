package engine

import (
	"context"
	"fmt"
	"log/slog"

	"k8s.io/utils/clock"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/baseline"
)

// FullSync reconciles every entity type against the complete source dataset
type FullSync struct {
	client    roster.Client
	baselines baseline.Store
	clock     clock.PassiveClock
}

var _ Runner = (*FullSync)(nil)

// NewFullSync creates a full sync engine. A nil clock uses the wall clock.
func NewFullSync(client roster.Client, baselines baseline.Store, clk clock.PassiveClock) *FullSync {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &FullSync{client: client, baselines: baselines, clock: clk}
}

// Run reconciles the tenant. The latest event id is captured before any
// data is fetched so events emitted during the run are replayed by the next
// incremental sync. For each entity type every record is soft-deactivated,
// the full dataset is upserted with reactivation, and whatever is still
// inactive is hard-deleted. The captured event id becomes the new baseline
// only when every entity type succeeded.
//
// An error is returned only when the run could not start at all.
func (f *FullSync) Run(ctx context.Context, job Job) (*Result, error) {
	t := job.Tenant

	latest, err := f.client.LatestEventID(ctx, t.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to capture latest event for tenant %d: %w", t.ID, err)
	}

	result := newResult(status.SyncModeFull)
	for i := range result.Entities {
		if job.stopped() {
			slog.Info("Stop requested, skipping remaining entity types", "tenant", t.ID)
			result.stopRemaining()
			break
		}
		er := &result.Entities[i]
		f.syncEntityType(ctx, job, er)
		if er.Status == status.RunStatusSuccess {
			er.LastEventID = latest
		}

		slog.Info("Full sync of entity type finished",
			"tenant", t.ID,
			"entity_type", er.EntityType,
			"status", er.Status,
			"inserted", er.Counts.Inserted,
			"updated", er.Counts.Updated,
			"deactivated", er.Deactivated,
			"hard_deleted", er.HardDeleted)
	}

	if !result.Succeeded() {
		slog.Warn("Full sync incomplete, baseline left unchanged", "tenant", t.ID)
		return result, nil
	}
	if latest == "" {
		slog.Info("Source has no events, no baseline written", "tenant", t.ID)
		return result, nil
	}
	if err := f.baselines.Set(ctx, t.ID, latest); err != nil {
		result.Err = err
		return result, nil
	}
	result.Baseline = latest
	return result, nil
}

func (f *FullSync) syncEntityType(ctx context.Context, job Job, er *EntityResult) {
	cutoff := f.clock.Now().UTC()

	deactivated, err := job.Upserter.SoftDeactivate(ctx, job.Store, er.EntityType, cutoff)
	if err != nil {
		er.fail(fmt.Errorf("deactivate: %w", err))
		return
	}
	er.Deactivated = deactivated

	entities, err := f.client.FetchEntities(ctx, job.Tenant.ExternalID, er.EntityType, nil)
	if err != nil {
		er.fail(fmt.Errorf("fetch: %w", err))
		return
	}
	for _, e := range entities {
		er.observe(e)
	}

	counts, err := job.Upserter.Upsert(ctx, job.Store, er.EntityType, entities, true)
	er.Counts = counts
	if err != nil {
		er.fail(fmt.Errorf("upsert: %w", err))
		return
	}

	deleted, err := job.Upserter.HardDeleteInactive(ctx, job.Store, er.EntityType)
	if err != nil {
		er.fail(fmt.Errorf("hard delete: %w", err))
		return
	}
	er.HardDeleted = deleted
	er.Status = status.RunStatusSuccess
}
