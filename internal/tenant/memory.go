package tenant

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

type memoryDirectory struct {
	mu      sync.RWMutex
	tenants map[int64]Tenant
}

// NewMemoryDirectory creates an in-process directory seeded with tenants.
// It is used by tests and by single-process deployments without a control database.
func NewMemoryDirectory(tenants ...Tenant) Directory {
	d := &memoryDirectory{tenants: make(map[int64]Tenant, len(tenants))}
	for _, t := range tenants {
		d.tenants[t.ID] = t
	}
	return d
}

func (d *memoryDirectory) Get(_ context.Context, id int64) (*Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTenantNotFound, id)
	}
	return &t, nil
}

func (d *memoryDirectory) ListActive(_ context.Context) ([]Tenant, error) {
	return d.list(func(t Tenant) bool { return t.Active }), nil
}

func (d *memoryDirectory) ListActiveByDistrict(_ context.Context, districtID string) ([]Tenant, error) {
	return d.list(func(t Tenant) bool { return t.Active && t.DistrictID == districtID }), nil
}

func (d *memoryDirectory) DistrictExists(_ context.Context, districtID string) (bool, error) {
	return len(d.list(func(t Tenant) bool { return t.DistrictID == districtID })) > 0, nil
}

func (d *memoryDirectory) ClearFullSyncFlag(_ context.Context, id int64) error {
	return d.update(id, func(t *Tenant) { t.RequiresFullSync = false })
}

func (d *memoryDirectory) RequestFullSync(_ context.Context, id int64) error {
	return d.update(id, func(t *Tenant) { t.RequiresFullSync = true })
}

func (d *memoryDirectory) Save(_ context.Context, t Tenant) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.tenants[t.ID]; ok {
		t.RequiresFullSync = existing.RequiresFullSync
	}
	d.tenants[t.ID] = t
	return nil
}

func (d *memoryDirectory) list(keep func(Tenant) bool) []Tenant {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Tenant
	for _, t := range d.tenants {
		if keep(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b Tenant) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (d *memoryDirectory) update(id int64, fn func(*Tenant)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tenants[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTenantNotFound, id)
	}
	fn(&t)
	d.tenants[id] = t
	return nil
}
