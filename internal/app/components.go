package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/db"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/service"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/coordinator"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/telemetry"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Orchestrator runs syncs across tenants
	Orchestrator *orchestrator.Orchestrator

	// SyncCoordinator triggers scheduled syncs; only set for serve
	SyncCoordinator coordinator.Coordinator

	// SyncService backs the admin API
	SyncService service.SyncService

	Tenants tenant.Directory
	Locks   *lock.Manager
	History history.Recorder

	// Database is the control database connection (nil when every store was injected)
	Database *db.Connection

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry

	// closers release resources opened by the builder, in reverse order
	closers []func() error
}

func (c *AppComponents) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases tenant database handles, the lock backend client, the
// control database pool and telemetry providers.
func (c *AppComponents) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil

	if c.Database != nil {
		c.Database.Close()
		c.Database = nil
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
		}
		c.Telemetry = nil
	}
	return errors.Join(errs...)
}
