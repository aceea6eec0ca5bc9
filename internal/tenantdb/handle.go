package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
)

// Handle is an open connection to one tenant's roster database. All
// timestamps are written in UTC.
type Handle struct {
	db         *sqlx.DB
	driverName string
}

// NewHandle wraps an open database. driverName must be one of the registered
// sqlx driver names (pgx, mysql, sqlite3).
func NewHandle(db *sqlx.DB, driverName string) *Handle {
	return &Handle{db: db, driverName: driverName}
}

// DB returns the underlying database
func (h *Handle) DB() *sqlx.DB {
	return h.db
}

// Close closes the underlying database
func (h *Handle) Close() error {
	return h.db.Close()
}

// EnsureSchema creates the roster tables if they do not exist
func (h *Handle) EnsureSchema(ctx context.Context) error {
	stmts, err := createStatements(h.driverName)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create roster schema: %w", err)
		}
	}
	return nil
}

func schemaOf(entityType roster.EntityType) (roster.Schema, error) {
	schema, ok := roster.SchemaFor(entityType)
	if !ok {
		return roster.Schema{}, fmt.Errorf("unknown entity type %q", entityType)
	}
	return schema, nil
}

func selectColumns(schema roster.Schema) string {
	cols := make([]string, 0, len(schema.Fields)+5)
	cols = append(cols, "source_id")
	cols = append(cols, schema.Fields...)
	cols = append(cols, "source_updated_at", "active", "deactivated_at", "updated_at")
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(schema roster.Schema, row rowScanner) (*roster.Record, error) {
	values := make([]sql.NullString, len(schema.Fields))
	var (
		rec           roster.Record
		sourceUpdated sql.NullTime
		deactivatedAt sql.NullTime
	)

	dest := make([]any, 0, len(schema.Fields)+5)
	dest = append(dest, &rec.SourceID)
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &sourceUpdated, &rec.Active, &deactivatedAt, &rec.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.Fields = make(map[string]*string, len(schema.Fields))
	for i, field := range schema.Fields {
		if values[i].Valid {
			v := values[i].String
			rec.Fields[field] = &v
		} else {
			rec.Fields[field] = nil
		}
	}
	if sourceUpdated.Valid {
		t := sourceUpdated.Time.UTC()
		rec.LastModified = &t
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time.UTC()
		rec.DeactivatedAt = &t
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// Get returns the stored record, or nil if there is none
func (h *Handle) Get(ctx context.Context, entityType roster.EntityType, sourceID string) (*roster.Record, error) {
	schema, err := schemaOf(entityType)
	if err != nil {
		return nil, err
	}

	query := h.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE source_id = ?", selectColumns(schema), schema.Table))
	rec, err := scanRecord(schema, h.db.QueryRowxContext(ctx, query, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", entityType, sourceID, err)
	}
	return rec, nil
}

// List returns every stored record of entityType ordered by source id
func (h *Handle) List(ctx context.Context, entityType roster.EntityType) ([]roster.Record, error) {
	schema, err := schemaOf(entityType)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.QueryxContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY source_id", selectColumns(schema), schema.Table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", schema.Table, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []roster.Record
	for rows.Next() {
		rec, err := scanRecord(schema, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", schema.Table, err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func recordArgs(schema roster.Schema, rec roster.Record) map[string]any {
	args := make(map[string]any, len(schema.Fields)+6)
	args["source_id"] = rec.SourceID
	for _, field := range schema.Fields {
		if v := rec.Value(field); v != nil {
			args[field] = *v
		} else {
			args[field] = nil
		}
	}
	args["source_updated_at"] = utcOrNil(rec.LastModified)
	args["active"] = rec.Active
	args["deactivated_at"] = utcOrNil(rec.DeactivatedAt)
	args["updated_at"] = rec.UpdatedAt.UTC()
	return args
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Insert writes a new record; created_at is set to rec.UpdatedAt
func (h *Handle) Insert(ctx context.Context, entityType roster.EntityType, rec roster.Record) error {
	schema, err := schemaOf(entityType)
	if err != nil {
		return err
	}

	cols := append([]string{"source_id"}, schema.Fields...)
	cols = append(cols, "source_updated_at", "active", "deactivated_at", "created_at", "updated_at")
	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = ":" + c
	}
	args := recordArgs(schema, rec)
	args["created_at"] = args["updated_at"]

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Table, strings.Join(cols, ", "), strings.Join(params, ", "))
	if _, err := h.db.NamedExecContext(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", entityType, rec.SourceID, err)
	}
	return nil
}

// Update overwrites every column of an existing record
func (h *Handle) Update(ctx context.Context, entityType roster.EntityType, rec roster.Record) error {
	schema, err := schemaOf(entityType)
	if err != nil {
		return err
	}

	cols := append(append([]string{}, schema.Fields...), "source_updated_at", "active", "deactivated_at", "updated_at")
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = :" + c
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE source_id = :source_id", schema.Table, strings.Join(sets, ", "))
	res, err := h.db.NamedExecContext(ctx, query, recordArgs(schema, rec))
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", entityType, rec.SourceID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 && h.driverName != driverMySQL {
		// MySQL reports zero affected rows for no-op updates, so the check is skipped there.
		return fmt.Errorf("failed to update %s %s: record does not exist", entityType, rec.SourceID)
	}
	return nil
}

// SoftDeactivate marks every active record last written before the cutoff
// inactive and returns how many were marked
func (h *Handle) SoftDeactivate(ctx context.Context, entityType roster.EntityType, before, now time.Time) (int64, error) {
	schema, err := schemaOf(entityType)
	if err != nil {
		return 0, err
	}

	query := h.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET active = ?, deactivated_at = ?, updated_at = ? WHERE active = ? AND updated_at < ?",
		schema.Table))
	res, err := h.db.ExecContext(ctx, query, false, now.UTC(), now.UTC(), true, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate %s: %w", schema.Table, err)
	}
	return res.RowsAffected()
}

// Deactivate marks one active record inactive. It reports false when the
// record is missing or already inactive.
func (h *Handle) Deactivate(ctx context.Context, entityType roster.EntityType, sourceID string, now time.Time) (bool, error) {
	schema, err := schemaOf(entityType)
	if err != nil {
		return false, err
	}

	query := h.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET active = ?, deactivated_at = ?, updated_at = ? WHERE source_id = ? AND active = ?",
		schema.Table))
	res, err := h.db.ExecContext(ctx, query, false, now.UTC(), now.UTC(), sourceID, true)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate %s %s: %w", entityType, sourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HardDeleteInactive permanently removes every inactive record
func (h *Handle) HardDeleteInactive(ctx context.Context, entityType roster.EntityType) (int64, error) {
	schema, err := schemaOf(entityType)
	if err != nil {
		return 0, err
	}

	query := h.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE active = ?", schema.Table))
	res, err := h.db.ExecContext(ctx, query, false)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive %s: %w", schema.Table, err)
	}
	return res.RowsAffected()
}
