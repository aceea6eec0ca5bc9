package history

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
)

// MemoryRecorder keeps history in process memory
type MemoryRecorder struct {
	clock clock.PassiveClock

	mu      sync.Mutex
	records []Record
}

var _ Recorder = (*MemoryRecorder)(nil)

// NewMemoryRecorder creates an empty recorder. A nil clock uses the wall clock.
func NewMemoryRecorder(clk clock.PassiveClock) *MemoryRecorder {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryRecorder{clock: clk}
}

// Start implements Recorder
func (r *MemoryRecorder) Start(
	_ context.Context, runID uuid.UUID, tenantID int64, entityType roster.EntityType, mode status.SyncMode,
) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	r.records = append(r.records, Record{
		ID:         id,
		RunID:      runID,
		TenantID:   tenantID,
		EntityType: entityType,
		Mode:       mode,
		Status:     status.RunStatusInProgress,
		StartedAt:  r.clock.Now().UTC(),
	})
	return id, nil
}

// Finish implements Recorder
func (r *MemoryRecorder) Finish(_ context.Context, id uuid.UUID, result Result) error {
	if err := validateResult(result); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.records, func(rec Record) bool { return rec.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoHistory, id)
	}
	rec := &r.records[i]
	if rec.Status != status.RunStatusInProgress {
		return fmt.Errorf("%w: %s", ErrAlreadyFinalized, id)
	}

	rec.Status = result.Status
	rec.EndedAt = ptr.To(r.clock.Now().UTC())
	rec.RecordsExamined = result.Examined
	rec.RecordsChanged = result.Changed
	rec.RecordsFailed = result.Failed
	rec.Error = errorMessage(result.Err)
	rec.LastSeenAt = result.LastSeenAt
	rec.LastEventID = result.LastEventID
	return nil
}

// LastSuccessful implements Recorder
func (r *MemoryRecorder) LastSuccessful(_ context.Context, tenantID int64, entityType roster.EntityType) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last *Record
	for i := range r.records {
		rec := r.records[i]
		if rec.TenantID != tenantID || rec.EntityType != entityType || rec.Status != status.RunStatusSuccess {
			continue
		}
		if last == nil || !rec.StartedAt.Before(last.StartedAt) {
			last = &rec
		}
	}
	if last == nil {
		return nil, ErrNoHistory
	}
	return last, nil
}

// HasPriorSuccess implements Recorder
func (r *MemoryRecorder) HasPriorSuccess(_ context.Context, tenantID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.ContainsFunc(r.records, func(rec Record) bool {
		return rec.TenantID == tenantID && rec.Status == status.RunStatusSuccess
	}), nil
}

// List implements Recorder
func (r *MemoryRecorder) List(_ context.Context, tenantID int64, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Record
	for _, rec := range r.records {
		if rec.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.EntityType, b.EntityType)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Records returns a copy of every row in insertion order
func (r *MemoryRecorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records)
}
