package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
)

// Resolver turns scope tokens into the tenants to process
type Resolver struct {
	directory tenant.Directory
}

// NewResolver creates a resolver over the tenant directory
func NewResolver(directory tenant.Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve parses token and returns the active tenants it addresses, ordered by id.
// A group or all scope with no active tenants resolves to an empty list, while a
// single tenant that is unknown or inactive fails with ErrScopeNotFound.
func (r *Resolver) Resolve(ctx context.Context, token string) (Scope, []tenant.Tenant, error) {
	s, err := Parse(token)
	if err != nil {
		return Scope{}, nil, err
	}
	tenants, err := r.ResolveScope(ctx, s)
	if err != nil {
		return Scope{}, nil, err
	}
	return s, tenants, nil
}

// ResolveScope returns the active tenants of an already parsed scope
func (r *Resolver) ResolveScope(ctx context.Context, s Scope) ([]tenant.Tenant, error) {
	switch s.Kind {
	case KindTenant:
		t, err := r.directory.Get(ctx, s.TenantID)
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, &Error{Code: CodeScopeNotFound, Token: s.Key(), Reason: "no such school"}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", s.Key(), err)
		}
		if !t.Active {
			return nil, &Error{Code: CodeScopeNotFound, Token: s.Key(), Reason: "school is inactive"}
		}
		return []tenant.Tenant{*t}, nil

	case KindGroup:
		exists, err := r.directory.DistrictExists(ctx, s.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", s.Key(), err)
		}
		if !exists {
			return nil, &Error{Code: CodeScopeNotFound, Token: s.Key(), Reason: "no such district"}
		}
		tenants, err := r.directory.ListActiveByDistrict(ctx, s.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", s.Key(), err)
		}
		return tenants, nil

	case KindAll:
		tenants, err := r.directory.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", s.Key(), err)
		}
		return tenants, nil

	default:
		return nil, invalid(s.Key(), "unknown scope kind")
	}
}
