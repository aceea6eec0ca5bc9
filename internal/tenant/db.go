package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/db/sqlc"
)

type dbDirectory struct {
	pool *pgxpool.Pool
}

// NewDBDirectory creates a directory backed by the control database
func NewDBDirectory(pool *pgxpool.Pool) Directory {
	return &dbDirectory{pool: pool}
}

func (d *dbDirectory) Get(ctx context.Context, id int64) (*Tenant, error) {
	row, err := sqlc.New(d.pool).GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrTenantNotFound, id)
		}
		return nil, fmt.Errorf("failed to get tenant %d: %w", id, err)
	}
	t := fromRow(row)
	return &t, nil
}

func (d *dbDirectory) ListActive(ctx context.Context) ([]Tenant, error) {
	rows, err := sqlc.New(d.pool).ListActiveTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return fromRows(rows), nil
}

func (d *dbDirectory) ListActiveByDistrict(ctx context.Context, districtID string) ([]Tenant, error) {
	rows, err := sqlc.New(d.pool).ListActiveTenantsByDistrict(ctx, districtID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants of district %s: %w", districtID, err)
	}
	return fromRows(rows), nil
}

func (d *dbDirectory) DistrictExists(ctx context.Context, districtID string) (bool, error) {
	n, err := sqlc.New(d.pool).CountTenantsInDistrict(ctx, districtID)
	if err != nil {
		return false, fmt.Errorf("failed to count tenants of district %s: %w", districtID, err)
	}
	return n > 0, nil
}

func (d *dbDirectory) ClearFullSyncFlag(ctx context.Context, id int64) error {
	return d.setRequiresFullSync(ctx, id, false)
}

func (d *dbDirectory) RequestFullSync(ctx context.Context, id int64) error {
	return d.setRequiresFullSync(ctx, id, true)
}

func (d *dbDirectory) setRequiresFullSync(ctx context.Context, id int64, value bool) error {
	n, err := sqlc.New(d.pool).SetRequiresFullSync(ctx, sqlc.SetRequiresFullSyncParams{
		RequiresFullSync: value,
		ID:               id,
	})
	if err != nil {
		return fmt.Errorf("failed to update tenant %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrTenantNotFound, id)
	}
	return nil
}

func (d *dbDirectory) Save(ctx context.Context, t Tenant) error {
	err := sqlc.New(d.pool).UpsertTenant(ctx, sqlc.UpsertTenantParams{
		ID:               t.ID,
		ExternalID:       t.ExternalID,
		Name:             t.Name,
		DistrictID:       t.DistrictID,
		DatabaseName:     t.DatabaseName,
		Active:           t.Active,
		RequiresFullSync: t.RequiresFullSync,
	})
	if err != nil {
		return fmt.Errorf("failed to save tenant %d: %w", t.ID, err)
	}
	return nil
}

func fromRow(row sqlc.Tenant) Tenant {
	return Tenant{
		ID:               row.ID,
		ExternalID:       row.ExternalID,
		Name:             row.Name,
		DistrictID:       row.DistrictID,
		DatabaseName:     row.DatabaseName,
		Active:           row.Active,
		RequiresFullSync: row.RequiresFullSync,
	}
}

func fromRows(rows []sqlc.Tenant) []Tenant {
	tenants := make([]Tenant, 0, len(rows))
	for _, row := range rows {
		tenants = append(tenants, fromRow(row))
	}
	return tenants
}
