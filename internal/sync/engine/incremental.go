package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/baseline"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
)

// IncrementalSync applies only what changed since the last run. It never
// hard-deletes: deletions from the source become soft deactivations.
type IncrementalSync struct {
	client    roster.Client
	baselines baseline.Store
	history   history.Recorder
}

var _ Runner = (*IncrementalSync)(nil)

// NewIncrementalSync creates an incremental sync engine
func NewIncrementalSync(client roster.Client, baselines baseline.Store, recorder history.Recorder) *IncrementalSync {
	return &IncrementalSync{client: client, baselines: baselines, history: recorder}
}

// Run replays events since the tenant's baseline. Without a baseline it falls
// back to fetching records modified since each entity type's last successful
// run. An error is returned only when the run could not start at all.
func (s *IncrementalSync) Run(ctx context.Context, job Job) (*Result, error) {
	since, err := s.baselines.Get(ctx, job.Tenant.ID)
	switch {
	case errors.Is(err, baseline.ErrNoBaseline):
		slog.Info("No event baseline, using timestamp fallback", "tenant", job.Tenant.ID)
		return s.runSinceTimestamps(ctx, job)
	case err != nil:
		return nil, fmt.Errorf("failed to read baseline for tenant %d: %w", job.Tenant.ID, err)
	}
	return s.replayEvents(ctx, job, since)
}

func (s *IncrementalSync) replayEvents(ctx context.Context, job Job, since string) (*Result, error) {
	t := job.Tenant
	result := newResult(status.SyncModeIncremental)

	events, err := s.client.FetchEvents(ctx, t.ExternalID, since)
	if err != nil {
		err = fmt.Errorf("fetch events: %w", err)
		for i := range result.Entities {
			result.Entities[i].fail(err)
		}
		return result, nil
	}

	var (
		lastProcessed string
		interrupted   bool
	)
	for i, ev := range events {
		if i > 0 && job.stopped() {
			slog.Info("Stop requested, pausing event replay", "tenant", t.ID, "event", lastProcessed)
			markPending(result, events[i:], ErrStopped)
			interrupted = true
			break
		}

		er := result.Entity(ev.EntityType)
		if er == nil {
			result.SkippedEvents++
			lastProcessed = ev.ID
			continue
		}
		if ev.Action == "" {
			er.SkippedEvents++
			lastProcessed = ev.ID
			continue
		}

		if err := s.applyEvent(ctx, job, er, ev); err != nil {
			slog.Warn("Event replay stopped",
				"tenant", t.ID, "event", ev.ID, "type", ev.Type, "error", err)
			er.fail(fmt.Errorf("event %s: %w", ev.ID, err))
			markPending(result, events[i+1:], fmt.Errorf("%w: replay stopped at event %s", ErrNotApplied, ev.ID))
			interrupted = true
			break
		}
		er.LastEventID = ev.ID
		lastProcessed = ev.ID
	}

	// Entity types without a failure completed everything they were given
	for i := range result.Entities {
		if !result.Entities[i].Status.Terminal() {
			result.Entities[i].Status = status.RunStatusSuccess
		}
	}

	if lastProcessed != "" && lastProcessed != since {
		if err := s.baselines.Set(ctx, t.ID, lastProcessed); err != nil {
			result.Err = err
		} else {
			result.Baseline = lastProcessed
		}
	}

	slog.Info("Event replay finished",
		"tenant", t.ID,
		"events", len(events),
		"baseline", lastProcessed,
		"interrupted", interrupted)
	return result, nil
}

func (s *IncrementalSync) applyEvent(ctx context.Context, job Job, er *EntityResult, ev roster.Event) error {
	if ev.Payload == nil || ev.Payload.SourceID == "" {
		return fmt.Errorf("%s event without payload", ev.Action)
	}

	switch ev.Action {
	case roster.ActionCreated, roster.ActionUpdated:
		counts, err := job.Upserter.Upsert(ctx, job.Store, er.EntityType, []roster.Entity{*ev.Payload}, true)
		er.Counts.Add(counts)
		if err != nil {
			return err
		}
		er.observe(*ev.Payload)
	case roster.ActionDeleted:
		deactivated, err := job.Upserter.Deactivate(ctx, job.Store, er.EntityType, ev.Payload.SourceID)
		if err != nil {
			return err
		}
		if deactivated {
			er.Deactivated++
		}
	}
	return nil
}

// markPending fails the entity types that still had events to apply.
// Events with an unknown action are not counted as pending.
func markPending(result *Result, pending []roster.Event, cause error) {
	for _, ev := range pending {
		if ev.Action == "" {
			continue
		}
		if er := result.Entity(ev.EntityType); er != nil && !er.Status.Terminal() {
			er.fail(cause)
		}
	}
}

func (s *IncrementalSync) runSinceTimestamps(ctx context.Context, job Job) (*Result, error) {
	t := job.Tenant
	result := newResult(status.SyncModeIncremental)

	for i := range result.Entities {
		if job.stopped() {
			result.stopRemaining()
			break
		}
		er := &result.Entities[i]

		last, err := s.history.LastSuccessful(ctx, t.ID, er.EntityType)
		if err != nil && !errors.Is(err, history.ErrNoHistory) {
			er.fail(fmt.Errorf("read history: %w", err))
			continue
		}
		if last != nil {
			er.LastSeenAt = last.LastSeenAt
		}
		since := er.LastSeenAt

		entities, err := s.client.FetchEntities(ctx, t.ExternalID, er.EntityType, since)
		if err != nil {
			er.fail(fmt.Errorf("fetch: %w", err))
			continue
		}
		for _, e := range entities {
			er.observe(e)
		}

		counts, err := job.Upserter.Upsert(ctx, job.Store, er.EntityType, entities, true)
		er.Counts = counts
		if err != nil {
			er.fail(fmt.Errorf("upsert: %w", err))
			continue
		}
		er.Status = status.RunStatusSuccess

		slog.Info("Timestamp sync of entity type finished",
			"tenant", t.ID,
			"entity_type", er.EntityType,
			"since", since,
			"inserted", counts.Inserted,
			"updated", counts.Updated)
	}
	return result, nil
}
