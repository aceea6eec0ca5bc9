package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/api"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/db"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/httpclient"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/secrets"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/service"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/baseline"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/coordinator"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/telemetry"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenantdb"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects everything needed to build the application.
// Every store and client can be injected, which tests use to avoid a
// control database or a live roster API.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	tenants   tenant.Directory
	lockStore lock.Store
	history   history.Recorder
	baselines baseline.Store
	client    roster.Client
	router    orchestrator.DatabaseRouter
	telemetry *telemetry.Telemetry
	clock     clock.Clock

	// HTTP server options
	address           string
	middlewares       []func(http.Handler) http.Handler
	readHeaderTimeout time.Duration
	readTimeout       time.Duration
	idleTimeout       time.Duration
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		readHeaderTimeout: defaultReadHeaderTimeout,
		readTimeout:       defaultReadTimeout,
		idleTimeout:       defaultIdleTimeout,
		clock:             clock.RealClock{},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.GetAddress()
	}

	return cfg, nil
}

// WithConfig sets the application configuration
func WithConfig(cfg *config.Config) SyncAppOptions {
	return func(b *syncAppConfig) error {
		b.config = cfg
		return nil
	}
}

// WithAddress overrides the admin API listen address from the configuration
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		host, port, ok := strings.Cut(addr, ":")
		if !ok {
			return fmt.Errorf("address must be in the form [host]:port, got %q", addr)
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithTenantDirectory replaces the control database tenant directory
func WithTenantDirectory(d tenant.Directory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tenants = d
		return nil
	}
}

// WithLockStore replaces the configured lock backend
func WithLockStore(s lock.Store) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.lockStore = s
		return nil
	}
}

// WithHistoryRecorder replaces the control database history recorder
func WithHistoryRecorder(r history.Recorder) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.history = r
		return nil
	}
}

// WithBaselineStore replaces the control database baseline store
func WithBaselineStore(s baseline.Store) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.baselines = s
		return nil
	}
}

// WithRosterClient replaces the Clever API client
func WithRosterClient(c roster.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.client = c
		return nil
	}
}

// WithDatabaseRouter replaces the tenant database router
func WithDatabaseRouter(r orchestrator.DatabaseRouter) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.router = r
		return nil
	}
}

// WithTelemetry uses already initialized telemetry instead of building it
// from the configuration. The caller keeps ownership of its shutdown.
func WithTelemetry(t *telemetry.Telemetry) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithClock replaces the wall clock used by the orchestrator and scheduler
func WithClock(c clock.Clock) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.clock = c
		return nil
	}
}

// NewSyncApp builds the long running application: admin API, scheduler and
// every sync component behind them.
func NewSyncApp(ctx context.Context, opts ...SyncAppOptions) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	components.SyncCoordinator = coordinator.New(
		components.Orchestrator,
		cfg.config.Sync.GetInterval(),
		coordinator.WithClock(cfg.clock),
	)

	server, err := buildHTTPServer(cfg, components)
	if err != nil {
		_ = components.Close(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(context.Background())
	return &SyncApp{
		config:     cfg.config,
		components: components,
		httpServer: server,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// BuildComponents builds the sync components without the admin API or the
// scheduler, for one-shot commands. The caller must Close the result.
func BuildComponents(ctx context.Context, opts ...SyncAppOptions) (*AppComponents, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildSyncComponents(ctx, cfg)
}

// buildSyncComponents builds the stores, clients and orchestrator
func buildSyncComponents(ctx context.Context, b *syncAppConfig) (_ *AppComponents, err error) {
	slog.Info("Initializing sync components")

	c := &AppComponents{}
	defer func() {
		if err != nil {
			_ = c.Close(ctx)
		}
	}()

	if b.telemetry == nil {
		c.Telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(b.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		b.telemetry = c.Telemetry
	}

	baselines, err := b.buildStores(ctx, c)
	if err != nil {
		return nil, err
	}

	router := b.router
	if router == nil {
		provider, err := secrets.NewProvider(ctx, &b.config.Secrets)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets provider: %w", err)
		}
		r := tenantdb.NewRouter(b.config.TenantDatabase, provider)
		c.onClose(r.Close)
		router = r
	}

	client := b.client
	if client == nil {
		client, err = buildRosterClient(&b.config.Clever)
		if err != nil {
			return nil, err
		}
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithConcurrency(b.config.Sync.GetConcurrency()),
		orchestrator.WithTenantTimeout(b.config.Sync.GetTenantTimeout()),
		orchestrator.WithLockTTL(b.config.Sync.GetLockTTL()),
		orchestrator.WithHolder(b.config.Sync.GetHolder()),
		orchestrator.WithTracer(b.telemetry.Tracer(telemetry.SyncTracerName)),
		orchestrator.WithClock(b.clock),
	}
	syncMetrics, err := telemetry.NewSyncMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	if syncMetrics != nil {
		orchOpts = append(orchOpts, orchestrator.WithMetrics(syncMetrics))
	}

	c.Orchestrator = orchestrator.New(orchestrator.Deps{
		Tenants:   c.Tenants,
		Locks:     c.Locks,
		History:   c.History,
		Baselines: baselines,
		Client:    client,
		Router:    router,
	}, orchOpts...)

	var pinger service.Pinger
	if c.Database != nil {
		pinger = c.Database
	}
	c.SyncService = service.New(pinger, c.Orchestrator, c.Locks, c.History)

	slog.Info("Sync components initialized successfully",
		"lock_backend", b.config.Lock.GetBackend(),
		"tenant_driver", b.config.TenantDatabase.Driver)
	return c, nil
}

// BuildStores builds only the control plane stores (tenants, history and
// locks), for operator commands that do not sync. The caller must Close the
// result.
func BuildStores(ctx context.Context, opts ...SyncAppOptions) (*AppComponents, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	c := &AppComponents{}
	if _, err := cfg.buildStores(ctx, c); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// buildStores connects the control database when needed and fills in the
// tenant directory, history recorder and lock manager of c
func (b *syncAppConfig) buildStores(ctx context.Context, c *AppComponents) (baseline.Store, error) {
	if b.needsDatabase() {
		conn, err := db.NewConnection(ctx, b.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to control database: %w", err)
		}
		c.Database = conn
	}

	c.Tenants = b.tenants
	if c.Tenants == nil {
		c.Tenants = tenant.NewDBDirectory(c.Database.Pool)
	}
	c.History = b.history
	if c.History == nil {
		c.History = history.NewDBRecorder(c.Database.Pool)
	}
	baselines := b.baselines
	if baselines == nil {
		baselines = baseline.NewDBStore(c.Database.Pool)
	}

	lockStore, err := b.buildLockStore(ctx, c)
	if err != nil {
		return nil, err
	}
	c.Locks = lock.NewManager(lockStore)
	return baselines, nil
}

// needsDatabase reports whether any store still has to be backed by the
// control database
func (b *syncAppConfig) needsDatabase() bool {
	if b.tenants == nil || b.history == nil || b.baselines == nil {
		return true
	}
	return b.lockStore == nil && b.config.Lock.GetBackend() == config.LockBackendDatabase
}

func (b *syncAppConfig) buildLockStore(ctx context.Context, c *AppComponents) (lock.Store, error) {
	if b.lockStore != nil {
		return b.lockStore, nil
	}

	switch backend := b.config.Lock.GetBackend(); backend {
	case config.LockBackendDatabase:
		return lock.NewPostgresStore(c.Database.Pool), nil
	case config.LockBackendMemory:
		slog.Warn("Using in-memory sync locks; runs are only exclusive within this process")
		return lock.NewMemoryStore(b.clock), nil
	case config.LockBackendRedis:
		rc := b.config.Lock.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Address,
			Password: rc.GetPassword(),
			DB:       rc.DB,
		})
		c.onClose(client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", rc.Address, err)
		}
		slog.Info("Redis lock backend connected", "address", rc.Address)
		return lock.NewRedisStore(client, rc.GetKeyPrefix()), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend %q", backend)
	}
}

func buildRosterClient(cfg *config.CleverConfig) (roster.Client, error) {
	token, err := cfg.GetToken()
	if err != nil {
		return nil, err
	}
	httpClient := httpclient.NewDefaultClient(cfg.GetTimeout(),
		httpclient.WithBearerToken(token),
		httpclient.WithMaxTries(cfg.GetMaxRetries()),
	)
	client, err := roster.NewCleverClient(httpClient, cfg.GetEndpoint(), cfg.GetPageSize())
	if err != nil {
		return nil, fmt.Errorf("failed to create Clever client: %w", err)
	}
	return client, nil
}

// buildHTTPServer builds the admin API server with router and middleware.
// There is no write timeout: POST /api/v1/sync responds when the run ends.
func buildHTTPServer(b *syncAppConfig, c *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
			api.LoggingMiddleware,
		}
	}

	httpMetrics, err := telemetry.NewHTTPMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	if httpMetrics != nil {
		// First in the chain so rejected requests are counted too
		b.middlewares = append([]func(http.Handler) http.Handler{httpMetrics.Middleware}, b.middlewares...)
	}

	serverOpts := []api.ServerOption{api.WithMiddlewares(b.middlewares...)}
	if path, handler := b.telemetry.MetricsHandler(); handler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(path, handler))
		slog.Info("Prometheus metrics endpoint enabled", "path", path)
	}

	server := &http.Server{
		Addr:              b.address,
		Handler:           api.NewServer(c.SyncService, serverOpts...),
		ReadHeaderTimeout: b.readHeaderTimeout,
		ReadTimeout:       b.readTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
