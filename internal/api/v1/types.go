package v1

import (
	"time"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/engine"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
)

// SyncRequest is the body of POST /api/v1/sync
type SyncRequest struct {
	Scope       string `json:"scope"`
	Mode        string `json:"mode,omitempty"`
	Full        bool   `json:"full,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
}

// SyncResponse describes a finished run
type SyncResponse struct {
	RunID      string           `json:"run_id"`
	Scope      string           `json:"scope"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMS int64            `json:"duration_ms"`
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Partial    int              `json:"partial"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Cancelled  int              `json:"cancelled"`
	Tenants    []TenantResponse `json:"tenants"`
}

// TenantResponse describes one tenant of a run
type TenantResponse struct {
	TenantID   int64            `json:"tenant_id"`
	Name       string           `json:"name"`
	Outcome    string           `json:"outcome"`
	Mode       string           `json:"mode,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Changed    int              `json:"changed"`
	Baseline   string           `json:"baseline,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
	LockedBy   *LockResponse    `json:"locked_by,omitempty"`
	Entities   []EntityResponse `json:"entities,omitempty"`
}

// EntityResponse describes one entity type of a tenant run
type EntityResponse struct {
	EntityType  string `json:"entity_type"`
	Status      string `json:"status"`
	Examined    int    `json:"examined"`
	Inserted    int    `json:"inserted"`
	Updated     int    `json:"updated"`
	Deactivated int    `json:"deactivated"`
	HardDeleted int    `json:"hard_deleted"`
	Error       string `json:"error,omitempty"`
}

// LockResponse describes a held lock
type LockResponse struct {
	Scope      string    `json:"scope"`
	Holder     string    `json:"holder"`
	Initiator  string    `json:"initiator,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	AgeSeconds float64   `json:"age_seconds"`
}

// HistoryResponse is one sync_history row
type HistoryResponse struct {
	ID              string     `json:"id"`
	RunID           string     `json:"run_id"`
	EntityType      string     `json:"entity_type"`
	Mode            string     `json:"mode"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	RecordsExamined int        `json:"records_examined"`
	RecordsChanged  int        `json:"records_changed"`
	RecordsFailed   int        `json:"records_failed"`
	Error           string     `json:"error,omitempty"`
	LastEventID     string     `json:"last_event_id,omitempty"`
}

// NewSyncResponse converts a run summary
func NewSyncResponse(s *orchestrator.Summary) SyncResponse {
	resp := SyncResponse{
		RunID:      s.RunID.String(),
		Scope:      s.Scope,
		StartedAt:  s.StartedAt,
		DurationMS: s.Duration.Milliseconds(),
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Partial:    s.Partial,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		Cancelled:  s.Cancelled,
		Tenants:    make([]TenantResponse, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		resp.Tenants = append(resp.Tenants, newTenantResponse(r))
	}
	return resp
}

func newTenantResponse(r orchestrator.TenantResult) TenantResponse {
	tr := TenantResponse{
		TenantID:   r.TenantID,
		Name:       r.TenantName,
		Outcome:    string(r.Outcome),
		Mode:       string(r.Mode),
		Reason:     r.Reason,
		Changed:    r.Changed(),
		Baseline:   r.Baseline,
		DurationMS: r.Duration.Milliseconds(),
		Error:      errString(r.Err),
	}
	if r.Holder != nil {
		lr := NewLockResponse(r.Holder)
		tr.LockedBy = &lr
	}
	for _, e := range r.Entities {
		tr.Entities = append(tr.Entities, newEntityResponse(e))
	}
	return tr
}

func newEntityResponse(e engine.EntityResult) EntityResponse {
	return EntityResponse{
		EntityType:  string(e.EntityType),
		Status:      string(e.Status),
		Examined:    e.Counts.Examined,
		Inserted:    e.Counts.Inserted,
		Updated:     e.Counts.Updated,
		Deactivated: e.Deactivated,
		HardDeleted: e.HardDeleted,
		Error:       errString(e.Err),
	}
}

// NewLockResponse converts lock metadata
func NewLockResponse(info *lock.Info) LockResponse {
	return LockResponse{
		Scope:      info.Scope,
		Holder:     info.Holder,
		Initiator:  info.Initiator,
		AcquiredAt: info.AcquiredAt,
		ExpiresAt:  info.ExpiresAt,
		AgeSeconds: info.Age.Seconds(),
	}
}

// NewHistoryResponse converts history rows
func NewHistoryResponse(records []history.Record) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryResponse{
			ID:              rec.ID.String(),
			RunID:           rec.RunID.String(),
			EntityType:      string(rec.EntityType),
			Mode:            string(rec.Mode),
			Status:          string(rec.Status),
			StartedAt:       rec.StartedAt,
			EndedAt:         rec.EndedAt,
			RecordsExamined: rec.RecordsExamined,
			RecordsChanged:  rec.RecordsChanged,
			RecordsFailed:   rec.RecordsFailed,
			Error:           rec.Error,
			LastEventID:     rec.LastEventID,
		})
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
