package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/BillSOS/CleverSyncSOS-sub001/sync"
)

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	runDuration    metric.Float64Histogram
	tenantDuration metric.Float64Histogram
	recordsChanged metric.Int64Counter
	lockContention metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"cleversync_run_duration_seconds",
		metric.WithDescription("Duration of orchestrated sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 30, 60, 300, 600, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, err
	}

	tenantDuration, err := meter.Float64Histogram(
		"cleversync_tenant_sync_duration_seconds",
		metric.WithDescription("Duration of a single tenant sync in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900, 1800),
	)
	if err != nil {
		return nil, err
	}

	recordsChanged, err := meter.Int64Counter(
		"cleversync_records_changed_total",
		metric.WithDescription("Roster records written to tenant databases"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	lockContention, err := meter.Int64Counter(
		"cleversync_lock_contention_total",
		metric.WithDescription("Tenant syncs skipped because another holder owned the lock"),
		metric.WithUnit("{skip}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runDuration:    runDuration,
		tenantDuration: tenantDuration,
		recordsChanged: recordsChanged,
		lockContention: lockContention,
	}, nil
}

// RecordRun records the duration of an orchestrated run
func (m *SyncMetrics) RecordRun(ctx context.Context, scopeKind string, duration time.Duration, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("scope", scopeKind),
		attribute.Bool("success", success),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTenantSync records the duration and outcome of one tenant sync
func (m *SyncMetrics) RecordTenantSync(
	ctx context.Context, tenantID int64, mode, outcome string, duration time.Duration,
) {
	if m == nil || m.tenantDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tenant", strconv.FormatInt(tenantID, 10)),
		attribute.String("mode", mode),
		attribute.String("status", outcome),
	}

	m.tenantDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRecordsChanged adds the number of rows written for an entity type
func (m *SyncMetrics) RecordRecordsChanged(ctx context.Context, entityType, mode string, count int64) {
	if m == nil || m.recordsChanged == nil || count <= 0 {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("entity_type", entityType),
		attribute.String("mode", mode),
	}

	m.recordsChanged.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordLockContention counts a tenant skipped because its lock was held
func (m *SyncMetrics) RecordLockContention(ctx context.Context, scope string) {
	if m == nil || m.lockContention == nil {
		return
	}

	m.lockContention.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}
