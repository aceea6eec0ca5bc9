// Package orchestrator resolves a sync scope into tenants and syncs them in
// parallel with a bounded worker pool. Each tenant runs under its own lock
// and deadline, so one failing or slow tenant never blocks the others.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/otel"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/scope"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
	pkgsync "github.com/BillSOS/CleverSyncSOS-sub001/internal/sync"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/baseline"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/engine"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/upsert"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/telemetry"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenantdb"
)

// finalizeTimeout bounds bookkeeping done after a tenant's deadline expired
const finalizeTimeout = 30 * time.Second

// DatabaseRouter opens tenant databases
type DatabaseRouter interface {
	Open(ctx context.Context, t tenant.Tenant) (*tenantdb.Handle, error)
}

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Tenants   tenant.Directory
	Locks     *lock.Manager
	History   history.Recorder
	Baselines baseline.Store
	Client    roster.Client
	Router    DatabaseRouter
}

// Orchestrator runs syncs across tenants
type Orchestrator struct {
	resolver  *scope.Resolver
	tenants   tenant.Directory
	locks     *lock.Manager
	history   history.Recorder
	baselines baseline.Store
	router    DatabaseRouter
	full      engine.Runner
	inc       engine.Runner

	concurrency   int
	tenantTimeout time.Duration
	lockTTL       time.Duration
	holder        string

	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
	clock   clock.Clock
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithConcurrency sets the default number of tenants synced in parallel
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithTenantTimeout sets the per tenant deadline
func WithTenantTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.tenantTimeout = d
		}
	}
}

// WithLockTTL sets how long a tenant lock lives without release
func WithLockTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithHolder sets the identity written into lock metadata
func WithHolder(holder string) Option {
	return func(o *Orchestrator) {
		if holder != "" {
			o.holder = holder
		}
	}
}

// WithMetrics enables sync metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer enables tracing of tenant runs
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// New creates an orchestrator
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:      scope.NewResolver(deps.Tenants),
		tenants:       deps.Tenants,
		locks:         deps.Locks,
		history:       deps.History,
		baselines:     deps.Baselines,
		router:        deps.Router,
		concurrency:   config.DefaultConcurrency,
		tenantTimeout: config.DefaultTenantTimeout,
		lockTTL:       config.DefaultLockTTL,
		holder:        "cleversync",
		clock:         clock.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.full = engine.NewFullSync(deps.Client, deps.Baselines, o.clock)
	o.inc = engine.NewIncrementalSync(deps.Client, deps.Baselines, deps.History)
	return o
}

// Run syncs every tenant addressed by req.Scope. Scope errors are returned
// before any work starts. Cancelling ctx stops tenants that have not started
// yet; tenants in flight finish their current entity type. When ctx is
// cancelled before any tenant started, the context error is returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Summary, error) {
	start := o.clock.Now()

	sc, tenants, err := o.resolver.Resolve(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	concurrency := o.concurrency
	if req.Concurrency > 0 {
		concurrency = req.Concurrency
	}
	if req.Mode == "" {
		req.Mode = ModeAuto
	}

	summary := &Summary{
		RunID:     uuid.New(),
		Scope:     sc.Key(),
		StartedAt: start,
		Results:   make([]TenantResult, len(tenants)),
	}

	slog.Info("Starting sync run",
		"run_id", summary.RunID,
		"scope", summary.Scope,
		"tenants", len(tenants),
		"mode", req.Mode,
		"concurrency", concurrency,
		"initiator", req.Initiator)

	var (
		observeMu sync.Mutex
		started   atomic.Int32
	)
	report := func(i int, r TenantResult) {
		summary.Results[i] = r
		if req.Observer == nil {
			return
		}
		observeMu.Lock()
		defer observeMu.Unlock()
		req.Observer(r)
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, t := range tenants {
		if ctx.Err() != nil {
			report(i, cancelled(t))
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				report(i, cancelled(t))
				return nil
			}
			started.Add(1)

			report(i, o.runTenant(ctx, summary.RunID, req, t))
			return nil
		})
	}
	_ = g.Wait()

	if started.Load() == 0 && len(tenants) > 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	summary.Duration = o.clock.Since(start)
	summary.tally()
	o.metrics.RecordRun(ctx, sc.Kind.String(), summary.Duration, summary.Failed+summary.Partial == 0)

	slog.Info("Sync run finished",
		"run_id", summary.RunID,
		"scope", summary.Scope,
		"duration", summary.Duration,
		"succeeded", summary.Succeeded,
		"partial", summary.Partial,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"cancelled", summary.Cancelled)
	return summary, nil
}

func cancelled(t tenant.Tenant) TenantResult {
	return TenantResult{
		TenantID:   t.ID,
		TenantName: t.Name,
		Outcome:    status.OutcomeCancelled,
		Err:        context.Canceled,
	}
}

// runTenant syncs one tenant. Work runs on a context detached from the
// caller so cancellation is only observed between entity types.
func (o *Orchestrator) runTenant(ctx context.Context, runID uuid.UUID, req Request, t tenant.Tenant) (res TenantResult) {
	res = TenantResult{TenantID: t.ID, TenantName: t.Name, StartedAt: o.clock.Now()}

	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.tenantTimeout)
	defer cancel()

	workCtx, span := otel.StartSpan(workCtx, o.tracer, "sync.tenant",
		trace.WithAttributes(
			otel.AttrTenantID.Int64(t.ID),
			otel.AttrRunID.String(runID.String()),
		))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			slog.Error("Tenant sync panicked", "tenant", t.ID, "panic", p, "stack", string(debug.Stack()))
			res.Outcome = status.OutcomeFailed
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Duration = o.clock.Since(res.StartedAt)
		otel.RecordError(span, res.Err)
		span.SetAttributes(attribute.String("sync.outcome", string(res.Outcome)))
		o.metrics.RecordTenantSync(context.WithoutCancel(ctx), t.ID, string(res.Mode), string(res.Outcome), res.Duration)
		slog.Info("Tenant sync finished",
			"tenant", t.ID,
			"outcome", res.Outcome,
			"mode", res.Mode,
			"changed", res.Changed(),
			"duration", res.Duration,
			"error", res.Err)
	}()

	lockKey := t.ScopeKey()
	acq, err := o.locks.TryAcquire(workCtx, lockKey, o.holder, req.Initiator, o.lockTTL)
	if err != nil {
		res.Outcome = status.OutcomeFailed
		res.Err = err
		return res
	}
	if !acq.Granted {
		o.metrics.RecordLockContention(workCtx, lockKey)
		res.Outcome = status.OutcomeSkipped
		res.Holder = acq.Current
		if acq.Current != nil {
			slog.Info("Tenant locked by another holder, skipping",
				"tenant", t.ID, "holder", acq.Current.Holder, "initiator", acq.Current.Initiator, "age", acq.Current.Age)
		}
		return res
	}
	slog.Debug("Tenant lock acquired", "scope", lockKey, "token", acq.Token, "ttl", o.lockTTL)
	defer o.release(ctx, lockKey, acq.Token)

	o.syncTenant(ctx, workCtx, runID, req, t, &res)
	return res
}

func (o *Orchestrator) release(ctx context.Context, key, token string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	released, err := o.locks.Release(relCtx, key, token)
	switch {
	case err != nil:
		slog.Error("Failed to release lock", "scope", key, "error", err)
	case !released:
		slog.Warn("Lock expired before release", "scope", key)
	}
}

func (o *Orchestrator) syncTenant(
	ctx, workCtx context.Context, runID uuid.UUID, req Request, t tenant.Tenant, res *TenantResult,
) {
	hasPrior, err := o.history.HasPriorSuccess(workCtx, t.ID)
	if err != nil {
		res.Outcome = status.OutcomeFailed
		res.Err = err
		return
	}
	mode, reason := pkgsync.DecideMode(pkgsync.ModeInput{
		RequiresFullSync:     t.RequiresFullSync,
		FullRequested:        req.Mode == ModeFull || req.ForceFull,
		IncrementalRequested: req.Mode == ModeIncremental,
		HasPriorSuccess:      hasPrior,
	})
	res.Mode, res.Reason = mode, reason
	slog.Info("Starting tenant sync", "tenant", t.ID, "mode", mode, "reason", reason)

	rows, err := o.openHistory(workCtx, runID, t.ID, mode)
	if err != nil {
		o.finalizeFailed(ctx, rows, err)
		res.Outcome = status.OutcomeFailed
		res.Err = err
		return
	}

	result, err := o.runEngine(ctx, workCtx, t, mode)
	if err != nil {
		if errors.Is(workCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timeout after %s: %w", o.tenantTimeout, err)
		}
		o.finalizeFailed(ctx, rows, err)
		res.Outcome = status.OutcomeFailed
		res.Err = err
		if mode == status.SyncModeFull {
			o.updateFullSyncFlag(ctx, t.ID, false)
		}
		return
	}

	res.Entities = result.Entities
	res.Baseline = result.Baseline
	res.Outcome = status.Aggregate(result.Statuses())
	res.Err = errors.Join(entityErrors(result)...)
	if result.Err != nil {
		res.Err = errors.Join(res.Err, result.Err)
		if res.Outcome == status.OutcomeSuccess {
			res.Outcome = status.OutcomePartial
		}
	}
	if errors.Is(workCtx.Err(), context.DeadlineExceeded) {
		res.Outcome = status.OutcomeFailed
		res.Err = errors.Join(fmt.Errorf("timeout after %s", o.tenantTimeout), res.Err)
		markTimedOut(result, o.tenantTimeout)
	}

	o.finalize(ctx, rows, result)

	if mode == status.SyncModeFull {
		o.updateFullSyncFlag(ctx, t.ID, result.Succeeded())
	}
}

// updateFullSyncFlag clears the tenant's full sync flag after a complete
// reconciliation and sets it after an incomplete one. An interrupted full
// sync can leave records deactivated that only another full sync reactivates.
func (o *Orchestrator) updateFullSyncFlag(ctx context.Context, tenantID int64, succeeded bool) {
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if succeeded {
		if err := o.tenants.ClearFullSyncFlag(finCtx, tenantID); err != nil {
			slog.Warn("Failed to clear full sync flag", "tenant", tenantID, "error", err)
		}
		return
	}
	if err := o.tenants.RequestFullSync(finCtx, tenantID); err != nil {
		slog.Error("Failed to flag tenant for full sync", "tenant", tenantID, "error", err)
		return
	}
	slog.Warn("Full sync incomplete, next run will be full", "tenant", tenantID)
}

// markTimedOut attaches the deadline to every entity type that did not
// succeed. Entity types that completed before the deadline keep SUCCESS.
func markTimedOut(result *engine.Result, timeout time.Duration) {
	for i := range result.Entities {
		er := &result.Entities[i]
		if er.Status == status.RunStatusSuccess {
			continue
		}
		if er.Err == nil {
			er.Err = fmt.Errorf("timeout after %s", timeout)
			continue
		}
		er.Err = fmt.Errorf("timeout after %s: %w", timeout, er.Err)
	}
}

func (o *Orchestrator) runEngine(
	ctx, workCtx context.Context, t tenant.Tenant, mode status.SyncMode,
) (*engine.Result, error) {
	handle, err := o.router.Open(workCtx, t)
	if err != nil {
		return nil, err
	}

	runner := o.inc
	if mode == status.SyncModeFull {
		runner = o.full
	}
	return runner.Run(workCtx, engine.Job{
		Tenant:   t,
		Store:    handle,
		Upserter: upsert.NewEngine(o.clock),
		Stop:     ctx.Done(),
	})
}

// openHistory opens one IN_PROGRESS row per entity type. On error the rows
// opened so far are returned so they can be finalized.
func (o *Orchestrator) openHistory(
	ctx context.Context, runID uuid.UUID, tenantID int64, mode status.SyncMode,
) (map[roster.EntityType]uuid.UUID, error) {
	rows := make(map[roster.EntityType]uuid.UUID)
	for _, et := range roster.EntityTypes() {
		id, err := o.history.Start(ctx, runID, tenantID, et, mode)
		if err != nil {
			return rows, err
		}
		rows[et] = id
	}
	return rows, nil
}

func (o *Orchestrator) finalize(ctx context.Context, rows map[roster.EntityType]uuid.UUID, result *engine.Result) {
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	for _, er := range result.Entities {
		id, ok := rows[er.EntityType]
		if !ok {
			continue
		}
		failed := 0
		if er.Err != nil && !errors.Is(er.Err, engine.ErrStopped) {
			failed = 1
		}
		err := o.history.Finish(finCtx, id, history.Result{
			Status:      er.Status,
			Examined:    er.Counts.Examined,
			Changed:     er.Changed(),
			Failed:      failed,
			Err:         er.Err,
			LastSeenAt:  er.LastSeenAt,
			LastEventID: er.LastEventID,
		})
		if err != nil {
			slog.Error("Failed to finalize sync history", "history_id", id, "error", err)
		}
		o.metrics.RecordRecordsChanged(finCtx, string(er.EntityType), string(result.Mode), int64(er.Changed()))
	}
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, rows map[roster.EntityType]uuid.UUID, cause error) {
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	for _, id := range rows {
		if err := o.history.Finish(finCtx, id, history.Result{Status: status.RunStatusFailed, Err: cause}); err != nil {
			slog.Error("Failed to finalize sync history", "history_id", id, "error", err)
		}
	}
}

func entityErrors(result *engine.Result) []error {
	var errs []error
	for _, er := range result.Entities {
		if er.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", er.EntityType, er.Err))
		}
	}
	return errs
}
