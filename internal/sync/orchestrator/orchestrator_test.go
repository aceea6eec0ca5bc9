package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/scope"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
	pkgsync "github.com/BillSOS/CleverSyncSOS-sub001/internal/sync"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/baseline"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenantdb"
)

// fakeClient serves the same small roster to every school. Schools listed
// in block wait for the context before returning, for every entity type or
// only blockType when set. Entity types in fail return their error.
type fakeClient struct {
	latest    string
	events    []roster.Event
	delay     time.Duration
	block     map[string]bool
	blockType roster.EntityType
	fail      map[roster.EntityType]error
	fetches   atomic.Int32
}

func (c *fakeClient) FetchEntities(
	ctx context.Context, schoolID string, entityType roster.EntityType, _ *time.Time,
) ([]roster.Entity, error) {
	c.fetches.Add(1)
	if c.block[schoolID] && (c.blockType == "" || c.blockType == entityType) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := c.fail[entityType]; err != nil {
		return nil, err
	}
	if entityType != roster.EntityStudent {
		return nil, nil
	}
	return []roster.Entity{{
		SourceID: "s-" + schoolID,
		Fields:   map[string]*string{"first_name": ptr.String("Grace"), "last_name": ptr.String("Hopper")},
	}}, nil
}

func (c *fakeClient) FetchEvents(context.Context, string, string) ([]roster.Event, error) {
	return c.events, nil
}

func (c *fakeClient) LatestEventID(ctx context.Context, _ string) (string, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.latest, nil
}

// fakeRouter hands out one sqlite database per tenant
type fakeRouter struct {
	handles map[int64]*tenantdb.Handle
	fail    map[int64]error
	panics  map[int64]bool
}

func (r *fakeRouter) Open(_ context.Context, t tenant.Tenant) (*tenantdb.Handle, error) {
	if r.panics[t.ID] {
		panic("router exploded")
	}
	if err := r.fail[t.ID]; err != nil {
		return nil, err
	}
	return r.handles[t.ID], nil
}

// countingStore tracks how many tenant locks are held at once
type countingStore struct {
	lock.Store
	mu      sync.Mutex
	current int
	max     int
}

func (s *countingStore) Acquire(
	ctx context.Context, scope, holder, initiator, token string, ttl time.Duration,
) (bool, error) {
	ok, err := s.Store.Acquire(ctx, scope, holder, initiator, token, ttl)
	if ok {
		s.mu.Lock()
		s.current++
		s.max = max(s.max, s.current)
		s.mu.Unlock()
	}
	return ok, err
}

func (s *countingStore) Release(ctx context.Context, scope, token string) (bool, error) {
	ok, err := s.Store.Release(ctx, scope, token)
	if ok {
		s.mu.Lock()
		s.current--
		s.mu.Unlock()
	}
	return ok, err
}

type fixture struct {
	orch      *Orchestrator
	client    *fakeClient
	router    *fakeRouter
	locks     *lock.Manager
	lockStore *countingStore
	history   *history.MemoryRecorder
	baselines *baseline.MemoryStore
	tenants   tenant.Directory
}

func schools(n int) []tenant.Tenant {
	out := make([]tenant.Tenant, n)
	for i := range out {
		id := int64(i + 1)
		out[i] = tenant.Tenant{
			ID:           id,
			ExternalID:   fmt.Sprintf("ext-%d", id),
			Name:         fmt.Sprintf("School %d", id),
			DistrictID:   "d1",
			DatabaseName: fmt.Sprintf("school_%d", id),
			Active:       true,
		}
	}
	return out
}

func newFixture(t *testing.T, tenants []tenant.Tenant, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		client:    &fakeClient{latest: "E10"},
		router:    &fakeRouter{handles: map[int64]*tenantdb.Handle{}, fail: map[int64]error{}, panics: map[int64]bool{}},
		lockStore: &countingStore{Store: lock.NewMemoryStore(clock.RealClock{})},
		history:   history.NewMemoryRecorder(clock.RealClock{}),
		baselines: baseline.NewMemoryStore(),
		tenants:   tenant.NewMemoryDirectory(tenants...),
	}
	for _, tn := range tenants {
		f.router.handles[tn.ID] = tenantdb.NewTestHandle(t)
	}
	f.locks = lock.NewManager(f.lockStore)
	f.orch = New(Deps{
		Tenants:   f.tenants,
		Locks:     f.locks,
		History:   f.history,
		Baselines: f.baselines,
		Client:    f.client,
		Router:    f.router,
	}, opts...)
	return f
}

// markSynced gives a tenant a successful history row and a baseline
func (f *fixture) markSynced(t *testing.T, tenantID int64) {
	t.Helper()
	ctx := context.Background()

	id, err := f.history.Start(ctx, uuid.New(), tenantID, roster.EntityStudent, status.SyncModeFull)
	require.NoError(t, err)
	require.NoError(t, f.history.Finish(ctx, id, history.Result{Status: status.RunStatusSuccess}))
	require.NoError(t, f.baselines.Set(ctx, tenantID, "E5"))
}

func byTenant(s *Summary) map[int64]TenantResult {
	out := make(map[int64]TenantResult, len(s.Results))
	for _, r := range s.Results {
		out[r.TenantID] = r
	}
	return out
}

func TestRun_AllTenantsSucceed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(3))

	summary, err := f.orch.Run(context.Background(), Request{Scope: "all", Initiator: "test"})
	require.NoError(t, err)

	assert.Equal(t, "all", summary.Scope)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	for i, r := range summary.Results {
		assert.Equal(t, int64(i+1), r.TenantID, "results keep tenant order")
		assert.Equal(t, status.OutcomeSuccess, r.Outcome)
		assert.Equal(t, status.SyncModeFull, r.Mode)
		assert.Equal(t, "E10", r.Baseline)
		assert.Equal(t, 1, r.Changed())
	}

	for _, rec := range f.history.Records() {
		assert.Equal(t, status.RunStatusSuccess, rec.Status)
		assert.Equal(t, summary.RunID, rec.RunID)
	}
	assert.Len(t, f.history.Records(), 3*len(roster.EntityTypes()))

	info, err := f.locks.GetInfo(context.Background(), "school:1")
	require.NoError(t, err)
	assert.Nil(t, info, "locks are released")
}

func TestRun_FailingTenantDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(3))
	f.router.fail[2] = errors.New("connection refused")

	summary, err := f.orch.Run(context.Background(), Request{Scope: "district:d1"})
	require.NoError(t, err)

	results := byTenant(summary)
	assert.Equal(t, status.OutcomeSuccess, results[1].Outcome)
	assert.Equal(t, status.OutcomeFailed, results[2].Outcome)
	assert.ErrorContains(t, results[2].Err, "connection refused")
	assert.Equal(t, status.OutcomeSuccess, results[3].Outcome)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	for _, rec := range f.history.Records() {
		if rec.TenantID == 2 {
			assert.Equal(t, status.RunStatusFailed, rec.Status)
			assert.Contains(t, rec.Error, "connection refused")
		}
	}
	_, err = f.baselines.Get(context.Background(), 2)
	assert.ErrorIs(t, err, baseline.ErrNoBaseline)

	failed, err := f.tenants.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, failed.RequiresFullSync, "a full sync that never ran is retried as full")
}

func TestRun_IncompleteFullSyncForcesNextRunFull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, schools(1))
	store := f.router.handles[1]

	_, err := f.orch.Run(ctx, Request{Scope: "school:1"})
	require.NoError(t, err)

	f.client.fail = map[roster.EntityType]error{roster.EntityStudent: errors.New("clever 503")}
	summary, err := f.orch.Run(ctx, Request{Scope: "school:1", ForceFull: true})
	require.NoError(t, err)
	assert.Equal(t, status.OutcomePartial, summary.Results[0].Outcome)

	flagged, err := f.tenants.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, flagged.RequiresFullSync)

	rec, err := store.Get(ctx, roster.EntityStudent, "s-ext-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Active, "left deactivated by the interrupted reconciliation")

	f.client.fail = nil
	summary, err = f.orch.Run(ctx, Request{Scope: "school:1"})
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, status.OutcomeSuccess, res.Outcome)
	assert.Equal(t, status.SyncModeFull, res.Mode)
	assert.Equal(t, pkgsync.ReasonRequiresFullSync, res.Reason)

	rec, err = store.Get(ctx, roster.EntityStudent, "s-ext-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Active)

	cleared, err := f.tenants.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, cleared.RequiresFullSync)
}

func TestRun_LockedTenantIsSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(2))
	acq, err := f.locks.TryAcquire(context.Background(), "school:2", "other-host", "cli", time.Hour)
	require.NoError(t, err)
	require.True(t, acq.Granted)

	summary, err := f.orch.Run(context.Background(), Request{Scope: "all"})
	require.NoError(t, err)

	results := byTenant(summary)
	assert.Equal(t, status.OutcomeSuccess, results[1].Outcome)

	skipped := results[2]
	assert.Equal(t, status.OutcomeSkipped, skipped.Outcome)
	require.NotNil(t, skipped.Holder)
	assert.Equal(t, "other-host", skipped.Holder.Holder)
	assert.Equal(t, "cli", skipped.Holder.Initiator)
	assert.Empty(t, skipped.Mode)
	assert.Equal(t, 1, summary.Skipped)

	info, err := f.locks.GetInfo(context.Background(), "school:2")
	require.NoError(t, err)
	require.NotNil(t, info, "foreign lock is left alone")
	assert.Equal(t, "other-host", info.Holder)
}

func TestRun_ScopeErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(1))

	_, err := f.orch.Run(context.Background(), Request{Scope: "school:99"})
	assert.ErrorIs(t, err, scope.ErrScopeNotFound)

	_, err = f.orch.Run(context.Background(), Request{Scope: "campus:1"})
	assert.ErrorIs(t, err, scope.ErrInvalidScope)

	assert.Zero(t, f.client.fetches.Load())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.orch.Run(ctx, Request{Scope: "all"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, summary)
	assert.Empty(t, f.history.Records())
}

func TestRun_CancelLeavesPendingTenantsCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(3))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	summary, err := f.orch.Run(ctx, Request{
		Scope:       "all",
		Concurrency: 1,
		Observer:    func(TenantResult) { cancel() },
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Cancelled)
	assert.Equal(t, status.OutcomeSuccess, summary.Results[0].Outcome)
	for _, r := range summary.Results[1:] {
		assert.Equal(t, status.OutcomeCancelled, r.Outcome)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(6), WithConcurrency(2))
	f.client.delay = 30 * time.Millisecond

	var observed []int64
	summary, err := f.orch.Run(context.Background(), Request{
		Scope:    "all",
		Observer: func(r TenantResult) { observed = append(observed, r.TenantID) },
	})
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Succeeded)
	assert.Len(t, observed, 6)
	assert.LessOrEqual(t, f.lockStore.max, 2)
	assert.Equal(t, 2, f.lockStore.max, "both workers ran at the same time")
}

func TestRun_RequestConcurrencyOverridesDefault(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(4), WithConcurrency(4))
	f.client.delay = 20 * time.Millisecond

	_, err := f.orch.Run(context.Background(), Request{Scope: "all", Concurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, f.lockStore.max)
}

func TestRun_ModeSelection(t *testing.T) {
	t.Parallel()

	tenants := schools(3)
	tenants[2].RequiresFullSync = true
	f := newFixture(t, tenants)
	f.markSynced(t, 2)
	f.markSynced(t, 3)

	summary, err := f.orch.Run(context.Background(), Request{Scope: "all", Mode: ModeIncremental})
	require.NoError(t, err)

	results := byTenant(summary)

	assert.Equal(t, status.SyncModeFull, results[1].Mode, "never synced")
	assert.Equal(t, status.SyncModeIncremental, results[2].Mode)
	assert.Equal(t, status.SyncModeFull, results[3].Mode, "flagged for full sync")
	for _, r := range results {
		assert.Equal(t, status.OutcomeSuccess, r.Outcome, "tenant %d", r.TenantID)
	}

	flagged, err := f.tenants.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, flagged.RequiresFullSync, "flag cleared after a successful full sync")

	id, err := f.baselines.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "E10", id)
}

func TestRun_ForceFull(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(1))
	f.markSynced(t, 1)

	summary, err := f.orch.Run(context.Background(), Request{Scope: "school:1", ForceFull: true})
	require.NoError(t, err)
	assert.Equal(t, status.SyncModeFull, summary.Results[0].Mode)
}

func TestRun_TenantTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(2), WithTenantTimeout(100*time.Millisecond))
	f.client.block = map[string]bool{"ext-1": true}

	summary, err := f.orch.Run(context.Background(), Request{Scope: "all"})
	require.NoError(t, err)

	results := byTenant(summary)
	assert.Equal(t, status.OutcomeFailed, results[1].Outcome)
	assert.ErrorContains(t, results[1].Err, "timeout after")
	assert.Equal(t, status.OutcomeSuccess, results[2].Outcome)

	info, err := f.locks.GetInfo(context.Background(), "school:1")
	require.NoError(t, err)
	assert.Nil(t, info, "lock released after timeout")
}

func TestRun_TenantTimeoutMarksUnfinishedTypes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(1), WithTenantTimeout(100*time.Millisecond))
	f.client.block = map[string]bool{"ext-1": true}
	f.client.blockType = roster.EntityStudent

	summary, err := f.orch.Run(context.Background(), Request{Scope: "school:1"})
	require.NoError(t, err)
	assert.Equal(t, status.OutcomeFailed, summary.Results[0].Outcome)

	rows := make(map[roster.EntityType]history.Record)
	for _, rec := range f.history.Records() {
		rows[rec.EntityType] = rec
	}
	require.Len(t, rows, len(roster.EntityTypes()))

	assert.Equal(t, status.RunStatusSuccess, rows[roster.EntityTeacher].Status, "finished before the deadline")
	assert.Empty(t, rows[roster.EntityTeacher].Error)
	for _, et := range []roster.EntityType{roster.EntityStudent, roster.EntitySection, roster.EntityAdmin} {
		assert.NotEqual(t, status.RunStatusSuccess, rows[et].Status, et)
		assert.Contains(t, rows[et].Error, "timeout after", et)
	}

	flagged, err := f.tenants.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, flagged.RequiresFullSync)
}

func TestRun_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, schools(2))
	f.router.panics[1] = true

	summary, err := f.orch.Run(context.Background(), Request{Scope: "all"})
	require.NoError(t, err)

	results := byTenant(summary)
	assert.Equal(t, status.OutcomeFailed, results[1].Outcome)
	assert.ErrorContains(t, results[1].Err, "router exploded")
	assert.Equal(t, status.OutcomeSuccess, results[2].Outcome)

	info, err := f.locks.GetInfo(context.Background(), "school:1")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "full": ModeFull, "incremental": ModeIncremental} {
		got, ok := ParseMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseMode("delta")
	assert.False(t, ok)
}
