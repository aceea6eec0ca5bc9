// Package tenant contains the directory of tenants (one per school) whose
// roster databases are kept in sync.
package tenant

import (
	"context"
	"errors"
	"strconv"
)

// ErrTenantNotFound is returned when a tenant id is not in the directory.
var ErrTenantNotFound = errors.New("tenant not found")

// Tenant is one database-isolated school.
type Tenant struct {
	ID int64
	// ExternalID is the Clever school id
	ExternalID string
	Name       string
	// DistrictID is the Clever district id and groups tenants for district:<id> scopes
	DistrictID string
	// DatabaseName identifies the tenant's roster database to the tenantdb router
	DatabaseName string
	Active       bool
	// RequiresFullSync forces the next run to be a full reconciliation
	RequiresFullSync bool
}

// ScopeKey returns the scope token that addresses exactly this tenant. It is
// also the key of the tenant's sync lock.
func (t Tenant) ScopeKey() string {
	return "school:" + strconv.FormatInt(t.ID, 10)
}

// Directory provides access to tenant metadata.
type Directory interface {
	// Get returns the tenant with the given id, active or not.
	Get(ctx context.Context, id int64) (*Tenant, error)
	// ListActive returns every active tenant ordered by id.
	ListActive(ctx context.Context) ([]Tenant, error)
	// ListActiveByDistrict returns the active tenants of a district ordered by id.
	ListActiveByDistrict(ctx context.Context, districtID string) ([]Tenant, error)
	// DistrictExists reports whether any tenant, active or not, belongs to the district.
	DistrictExists(ctx context.Context, districtID string) (bool, error)
	// ClearFullSyncFlag resets RequiresFullSync after a successful full run.
	ClearFullSyncFlag(ctx context.Context, id int64) error
	// RequestFullSync sets RequiresFullSync so the next run is a full reconciliation.
	RequestFullSync(ctx context.Context, id int64) error
	// Save creates or updates a tenant. RequiresFullSync is only honoured on create.
	Save(ctx context.Context, t Tenant) error
}
