package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
)

const (
	// scheduledScope is the scope synced on every tick
	scheduledScope = "all"

	// initiator is recorded in lock metadata for scheduled runs
	initiator = "scheduler"
)

// Runner runs orchestrated syncs
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Summary, error)
}

// Coordinator manages background sync scheduling
type Coordinator interface {
	// Start runs a sync immediately and then on every interval.
	// Blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop stops scheduling and waits for the in-flight run to return
	Stop() error
}

type defaultCoordinator struct {
	runner   Runner
	interval time.Duration
	jitter   time.Duration
	clock    clock.Clock

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}

	running atomic.Bool
	wg      sync.WaitGroup
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithJitter sets the maximum random offset applied to each interval. It is
// capped below the interval so the next run is never scheduled in the past.
func WithJitter(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.jitter = d
	}
}

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) Option {
	return func(c *defaultCoordinator) {
		c.clock = clk
	}
}

// New creates a coordinator that syncs all tenants every interval
func New(runner Runner, interval time.Duration, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		runner:   runner,
		interval: interval,
		jitter:   interval / 10,
		clock:    clock.RealClock{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jitter >= c.interval {
		c.jitter = c.interval / 2
	}
	if c.jitter < 0 {
		c.jitter = 0
	}
	return c
}

// nextInterval returns the interval with a random offset in [-jitter, +jitter]
func (c *defaultCoordinator) nextInterval() time.Duration {
	if c.jitter == 0 {
		return c.interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(int64(2*c.jitter)+1)) - c.jitter
	return c.interval + offset
}

// Start implements Coordinator
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.wg.Wait()
		close(c.done)
		slog.Info("Sync coordinator stopped")
	}()

	slog.Info("Starting sync coordinator", "interval", c.interval, "jitter", c.jitter)

	c.trigger(coordCtx)

	timer := c.clock.NewTimer(c.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C():
			c.trigger(coordCtx)
			timer.Reset(c.nextInterval())
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop implements Coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	slog.Info("Stopping sync coordinator")
	cancel()
	<-c.done
	return nil
}

// trigger starts a run in the background unless one is still going
func (c *defaultCoordinator) trigger(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		slog.Warn("Previous scheduled sync still running, skipping this tick")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)
		c.runOnce(ctx)
	}()
}

func (c *defaultCoordinator) runOnce(ctx context.Context) {
	start := c.clock.Now()
	slog.Info("Starting scheduled sync", "scope", scheduledScope)

	summary, err := c.runner.Run(ctx, orchestrator.Request{
		Scope:     scheduledScope,
		Mode:      orchestrator.ModeAuto,
		Initiator: initiator,
	})
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("Scheduled sync cancelled before any tenant started")
		return
	case err != nil:
		slog.Error("Scheduled sync failed", "error", err)
		return
	}

	slog.Info("Scheduled sync finished",
		"run_id", summary.RunID,
		"duration", c.clock.Since(start),
		"tenants", summary.Total,
		"succeeded", summary.Succeeded,
		"partial", summary.Partial,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"cancelled", summary.Cancelled)
}
