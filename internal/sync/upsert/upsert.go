// Package upsert writes batches of roster records into a tenant database,
// skipping records whose comparable fields did not change.
package upsert

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	pkgsync "github.com/BillSOS/CleverSyncSOS-sub001/internal/sync"
)

// Store is the record store of one tenant database
type Store interface {
	// Get returns the stored record, or nil if there is none
	Get(ctx context.Context, entityType roster.EntityType, sourceID string) (*roster.Record, error)
	// Insert writes a new record
	Insert(ctx context.Context, entityType roster.EntityType, rec roster.Record) error
	// Update overwrites an existing record
	Update(ctx context.Context, entityType roster.EntityType, rec roster.Record) error
	// SoftDeactivate marks active records last written before the cutoff inactive
	SoftDeactivate(ctx context.Context, entityType roster.EntityType, before, now time.Time) (int64, error)
	// Deactivate marks one active record inactive
	Deactivate(ctx context.Context, entityType roster.EntityType, sourceID string, now time.Time) (bool, error)
	// HardDeleteInactive deletes every inactive record
	HardDeleteInactive(ctx context.Context, entityType roster.EntityType) (int64, error)
}

// Counts tallies one or more Upsert calls
type Counts struct {
	Examined  int
	Inserted  int
	Updated   int
	Unchanged int
}

// Changed is the number of records actually written
func (c Counts) Changed() int {
	return c.Inserted + c.Updated
}

// Add accumulates other into c
func (c *Counts) Add(other Counts) {
	c.Examined += other.Examined
	c.Inserted += other.Inserted
	c.Updated += other.Updated
	c.Unchanged += other.Unchanged
}

type identityKey struct {
	entityType roster.EntityType
	sourceID   string
}

// Engine applies roster records to one tenant's Store. It keeps an identity
// map of the records it has read or written; bulk state changes invalidate
// it so a cached inactive record never hides a reactivation. Use one Engine
// per tenant database.
type Engine struct {
	detector pkgsync.ChangeDetector
	clock    clock.PassiveClock

	mu       sync.Mutex
	identity map[identityKey]roster.Record
}

// NewEngine creates an engine. A nil clock uses the wall clock.
func NewEngine(clk clock.PassiveClock) *Engine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Engine{
		clock:    clk,
		identity: make(map[identityKey]roster.Record),
	}
}

// Upsert inserts absent records and updates changed ones. When markActive
// is set, inactive records are reactivated even if no field changed, and
// that counts as an update. Unchanged records are not written.
//
// On error the counts of the records applied so far are returned.
func (e *Engine) Upsert(
	ctx context.Context, store Store, entityType roster.EntityType, batch []roster.Entity, markActive bool,
) (Counts, error) {
	var counts Counts
	schema, ok := roster.SchemaFor(entityType)
	if !ok {
		return counts, fmt.Errorf("unknown entity type %q", entityType)
	}

	for _, incoming := range batch {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		if incoming.SourceID == "" {
			return counts, fmt.Errorf("%s record without source id", entityType)
		}
		counts.Examined++

		existing, err := e.lookup(ctx, store, entityType, incoming.SourceID)
		if err != nil {
			return counts, err
		}
		now := e.clock.Now().UTC()

		if existing == nil {
			rec := roster.Record{
				Entity:    copyEntity(schema, incoming),
				Active:    true,
				UpdatedAt: now,
			}
			if err := store.Insert(ctx, entityType, rec); err != nil {
				return counts, err
			}
			e.remember(entityType, rec)
			counts.Inserted++
			continue
		}

		changed := e.detector.IsChanged(schema, &existing.Entity, &incoming)
		reactivate := markActive && !existing.Active
		if !changed && !reactivate {
			counts.Unchanged++
			continue
		}

		rec := *existing
		if changed {
			rec.Entity = copyEntity(schema, incoming)
		}
		if markActive {
			rec.Active = true
			rec.DeactivatedAt = nil
		}
		rec.UpdatedAt = now
		if err := store.Update(ctx, entityType, rec); err != nil {
			return counts, err
		}
		e.remember(entityType, rec)
		counts.Updated++
	}
	return counts, nil
}

// SoftDeactivate marks every active record not written since before as
// inactive and clears the identity map for the entity type
func (e *Engine) SoftDeactivate(
	ctx context.Context, store Store, entityType roster.EntityType, before time.Time,
) (int, error) {
	defer e.forgetType(entityType)

	n, err := store.SoftDeactivate(ctx, entityType, before, e.clock.Now().UTC())
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Deactivate soft-deletes a single record. It reports false if the record
// was missing or already inactive.
func (e *Engine) Deactivate(ctx context.Context, store Store, entityType roster.EntityType, sourceID string) (bool, error) {
	defer e.forget(entityType, sourceID)

	return store.Deactivate(ctx, entityType, sourceID, e.clock.Now().UTC())
}

// HardDeleteInactive removes every record still inactive
func (e *Engine) HardDeleteInactive(ctx context.Context, store Store, entityType roster.EntityType) (int, error) {
	defer e.forgetType(entityType)

	n, err := store.HardDeleteInactive(ctx, entityType)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (e *Engine) lookup(
	ctx context.Context, store Store, entityType roster.EntityType, sourceID string,
) (*roster.Record, error) {
	key := identityKey{entityType: entityType, sourceID: sourceID}

	e.mu.Lock()
	rec, ok := e.identity[key]
	e.mu.Unlock()
	if ok {
		return &rec, nil
	}

	stored, err := store.Get(ctx, entityType, sourceID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		e.remember(entityType, *stored)
	}
	return stored, nil
}

func (e *Engine) remember(entityType roster.EntityType, rec roster.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.identity[identityKey{entityType: entityType, sourceID: rec.SourceID}] = rec
}

func (e *Engine) forget(entityType roster.EntityType, sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.identity, identityKey{entityType: entityType, sourceID: sourceID})
}

func (e *Engine) forgetType(entityType roster.EntityType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	maps.DeleteFunc(e.identity, func(k identityKey, _ roster.Record) bool {
		return k.entityType == entityType
	})
}

// copyEntity keeps only the schema's comparable fields so cached records
// never alias the caller's map
func copyEntity(schema roster.Schema, in roster.Entity) roster.Entity {
	out := roster.Entity{
		SourceID:     in.SourceID,
		Fields:       make(map[string]*string, len(schema.Fields)),
		LastModified: in.LastModified,
	}
	for _, field := range schema.Fields {
		if v := in.Value(field); v != nil {
			s := *v
			out.Fields[field] = &s
		} else {
			out.Fields[field] = nil
		}
	}
	return out
}
