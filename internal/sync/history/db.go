package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/db/sqlc"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
)

type dbRecorder struct {
	pool  *pgxpool.Pool
	clock clock.PassiveClock
}

// NewDBRecorder creates a recorder writing to the control database
func NewDBRecorder(pool *pgxpool.Pool) Recorder {
	return &dbRecorder{pool: pool, clock: clock.RealClock{}}
}

func (r *dbRecorder) Start(
	ctx context.Context, runID uuid.UUID, tenantID int64, entityType roster.EntityType, mode status.SyncMode,
) (uuid.UUID, error) {
	id := uuid.New()
	err := sqlc.New(r.pool).InsertSyncHistory(ctx, sqlc.InsertSyncHistoryParams{
		ID:         id,
		RunID:      runID,
		TenantID:   tenantID,
		EntityType: string(entityType),
		Mode:       sqlc.SyncMode(mode),
		StartedAt:  r.clock.Now().UTC(),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start history for tenant %d %s: %w", tenantID, entityType, err)
	}
	return id, nil
}

func (r *dbRecorder) Finish(ctx context.Context, id uuid.UUID, result Result) error {
	if err := validateResult(result); err != nil {
		return err
	}

	params := sqlc.FinishSyncHistoryParams{
		ID:              id,
		Status:          sqlc.SyncStatus(result.Status),
		EndedAt:         ptr.To(r.clock.Now().UTC()),
		RecordsExamined: int32(result.Examined), //nolint:gosec // counts are far below int32 max
		RecordsChanged:  int32(result.Changed),  //nolint:gosec
		RecordsFailed:   int32(result.Failed),   //nolint:gosec
		LastSeenAt:      result.LastSeenAt,
	}
	if msg := errorMessage(result.Err); msg != "" {
		params.ErrorMsg = &msg
	}
	if result.LastEventID != "" {
		params.LastEventID = &result.LastEventID
	}

	querier := sqlc.New(r.pool)
	n, err := querier.FinishSyncHistory(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to finish history %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := querier.GetSyncHistory(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNoHistory, id)
		}
		return fmt.Errorf("failed to read history %s: %w", id, err)
	}
	return fmt.Errorf("%w: %s", ErrAlreadyFinalized, id)
}

func (r *dbRecorder) LastSuccessful(ctx context.Context, tenantID int64, entityType roster.EntityType) (*Record, error) {
	row, err := sqlc.New(r.pool).GetLastSuccessfulSync(ctx, sqlc.GetLastSuccessfulSyncParams{
		TenantID:   tenantID,
		EntityType: string(entityType),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("failed to get last successful sync for tenant %d %s: %w", tenantID, entityType, err)
	}
	rec := fromRow(row)
	return &rec, nil
}

func (r *dbRecorder) HasPriorSuccess(ctx context.Context, tenantID int64) (bool, error) {
	n, err := sqlc.New(r.pool).CountSuccessfulSyncs(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to count successful syncs for tenant %d: %w", tenantID, err)
	}
	return n > 0, nil
}

func (r *dbRecorder) List(ctx context.Context, tenantID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := sqlc.New(r.pool).ListSyncHistory(ctx, sqlc.ListSyncHistoryParams{
		TenantID: tenantID,
		MaxRows:  int32(limit), //nolint:gosec // limit is caller bounded
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history for tenant %d: %w", tenantID, err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, fromRow(row))
	}
	return records, nil
}

func fromRow(row sqlc.SyncHistory) Record {
	return Record{
		ID:              row.ID,
		RunID:           row.RunID,
		TenantID:        row.TenantID,
		EntityType:      roster.EntityType(row.EntityType),
		Mode:            status.SyncMode(row.Mode),
		Status:          status.RunStatus(row.Status),
		StartedAt:       row.StartedAt,
		EndedAt:         row.EndedAt,
		RecordsExamined: int(row.RecordsExamined),
		RecordsChanged:  int(row.RecordsChanged),
		RecordsFailed:   int(row.RecordsFailed),
		Error:           ptr.Deref(row.ErrorMsg, ""),
		LastSeenAt:      row.LastSeenAt,
		LastEventID:     ptr.Deref(row.LastEventID, ""),
	}
}
