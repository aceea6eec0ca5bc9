// Package config provides configuration loading and management for the roster sync service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/telemetry"
)

const (
	// DriverPostgres selects the pgx stdlib driver for tenant databases
	DriverPostgres = "postgres"

	// DriverMySQL selects the go-sql-driver/mysql driver for tenant databases
	DriverMySQL = "mysql"

	// DriverSQLite selects the go-sqlite3 driver, one file per tenant
	DriverSQLite = "sqlite"
)

const (
	// LockBackendDatabase stores sync locks in the control database
	LockBackendDatabase = "database"

	// LockBackendRedis stores sync locks in Redis
	LockBackendRedis = "redis"

	// LockBackendMemory keeps sync locks in process memory (single instance only)
	LockBackendMemory = "memory"
)

const (
	// SecretsProviderEnv reads tenant database passwords from the environment
	SecretsProviderEnv = "env"

	// SecretsProviderFile reads tenant database passwords from a directory of files
	SecretsProviderFile = "file"

	// SecretsProviderAWS reads tenant database passwords from AWS Secrets Manager
	SecretsProviderAWS = "aws"
)

const (
	// DefaultConcurrency is the number of tenants synced in parallel
	DefaultConcurrency = 5

	// DefaultTenantTimeout bounds a single tenant's sync
	DefaultTenantTimeout = 30 * time.Minute

	// DefaultLockTTL is how long a tenant lock survives without release
	DefaultLockTTL = 45 * time.Minute

	// DefaultSyncInterval is the scheduled sync period used by serve
	DefaultSyncInterval = time.Hour

	// DefaultCleverEndpoint is the base URL of the Clever data API
	DefaultCleverEndpoint = "https://api.clever.com"

	// DefaultCleverTimeout is the per-request timeout for Clever API calls
	DefaultCleverTimeout = 30 * time.Second

	// DefaultCleverMaxRetries is the number of attempts for a retryable Clever request
	DefaultCleverMaxRetries = 5

	// DefaultCleverPageSize is the page size requested from Clever list endpoints
	DefaultCleverPageSize = 1000

	// DefaultServerAddress is where serve exposes the admin API
	DefaultServerAddress = ":8080"

	// DefaultRedisKeyPrefix namespaces lock keys in Redis
	DefaultRedisKeyPrefix = "cleversync:lock:"

	// DefaultSecretsCacheTTL is how long a resolved tenant password is cached
	DefaultSecretsCacheTTL = 10 * time.Minute

	// DatabasePasswordEnv holds the control database password when no file is configured
	DatabasePasswordEnv = "CLEVERSYNC_DATABASE_PASSWORD"

	// TenantPasswordEnv holds the shared tenant database password for the env provider
	TenantPasswordEnv = "CLEVERSYNC_TENANT_DB_PASSWORD"

	// CleverTokenEnv holds the Clever district bearer token when no file is configured
	CleverTokenEnv = "CLEVERSYNC_CLEVER_TOKEN"

	// RedisPasswordEnv holds the Redis password for the redis lock backend
	RedisPasswordEnv = "CLEVERSYNC_REDIS_PASSWORD"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Database is the control database holding tenants, locks, history and baselines
	Database *DatabaseConfig `yaml:"database"`

	// TenantDatabase describes how per-tenant roster databases are reached
	TenantDatabase TenantDatabaseConfig `yaml:"tenantDatabase"`

	// Clever configures the roster source API client
	Clever CleverConfig `yaml:"clever"`

	// Sync holds orchestration settings
	Sync SyncConfig `yaml:"sync,omitempty"`

	// Lock selects the sync lock backend
	Lock LockConfig `yaml:"lock,omitempty"`

	// Secrets selects where tenant database passwords are resolved from
	Secrets SecretsConfig `yaml:"secrets,omitempty"`

	// Server configures the admin API started by serve
	Server ServerConfig `yaml:"server,omitempty"`

	// Telemetry configures OpenTelemetry tracing and metrics
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines the admin API listener
type ServerConfig struct {
	// Address is the listen address, defaults to :8080
	Address string `yaml:"address,omitempty"`
}

// GetAddress returns the listen address, using the default if not specified
func (s *ServerConfig) GetAddress() string {
	if s.Address == "" {
		return DefaultServerAddress
	}
	return s.Address
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// TenantDatabaseConfig defines how tenant databases are opened. The database
// name comes from each tenant's directory entry.
type TenantDatabaseConfig struct {
	// Driver is one of postgres, mysql or sqlite
	Driver string `yaml:"driver"`

	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	User    string `yaml:"user,omitempty"`
	SSLMode string `yaml:"sslMode,omitempty"`

	// SQLiteDir is the directory holding <databaseName>.db files for the sqlite driver
	SQLiteDir string `yaml:"sqliteDir,omitempty"`

	MaxOpenConns int `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns int `yaml:"maxIdleConns,omitempty"`
}

// CleverConfig defines the Clever API client settings
type CleverConfig struct {
	// Endpoint is the API base URL, defaults to https://api.clever.com
	Endpoint string `yaml:"endpoint,omitempty"`

	// TokenFile is the path to a file containing the district bearer token
	TokenFile string `yaml:"tokenFile,omitempty"`

	// Timeout is the per-request timeout (e.g., "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxRetries bounds attempts on 429 and 5xx responses
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// PageSize is the limit requested per page
	PageSize int `yaml:"pageSize,omitempty"`
}

// SyncConfig defines orchestration settings
type SyncConfig struct {
	// Concurrency is the number of tenants synced in parallel
	Concurrency int `yaml:"concurrency,omitempty"`

	// TenantTimeout bounds a single tenant's sync (e.g., "30m")
	TenantTimeout string `yaml:"tenantTimeout,omitempty"`

	// LockTTL is how long a tenant lock is held before it may be taken over
	LockTTL string `yaml:"lockTTL,omitempty"`

	// Holder identifies this process in lock metadata, defaults to <hostname>:<pid>
	Holder string `yaml:"holder,omitempty"`

	// Interval is the scheduled sync period used by serve (e.g., "1h")
	Interval string `yaml:"interval,omitempty"`
}

// LockConfig selects the lock backend
type LockConfig struct {
	// Backend is one of database, redis or memory. Defaults to database.
	Backend string `yaml:"backend,omitempty"`

	// Redis is required when Backend is redis
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Address   string `yaml:"address"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// SecretsConfig selects the tenant password provider
type SecretsConfig struct {
	// Provider is one of env, file or aws. Defaults to env.
	Provider string `yaml:"provider,omitempty"`

	// Dir holds one password file per tenant database for the file provider
	Dir string `yaml:"dir,omitempty"`

	// AWS configures the Secrets Manager provider
	AWS *AWSSecretsConfig `yaml:"aws,omitempty"`
}

// AWSSecretsConfig defines AWS Secrets Manager lookup settings
type AWSSecretsConfig struct {
	// Region overrides the region from the default AWS config chain
	Region string `yaml:"region,omitempty"`

	// SecretPrefix is prepended to the tenant database name to form the secret id
	SecretPrefix string `yaml:"secretPrefix,omitempty"`

	// CacheTTL is how long a fetched secret is reused (e.g., "10m")
	CacheTTL string `yaml:"cacheTTL,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from CLEVERSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		return readSecretFile(d.PasswordFile)
	}

	if envPassword := os.Getenv(DatabasePasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", DatabasePasswordEnv,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetToken returns the Clever bearer token from TokenFile or CLEVERSYNC_CLEVER_TOKEN.
func (c *CleverConfig) GetToken() (string, error) {
	if c.TokenFile != "" {
		return readSecretFile(c.TokenFile)
	}
	if token := os.Getenv(CleverTokenEnv); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no Clever token configured: set clever.tokenFile or %s environment variable", CleverTokenEnv)
}

// GetEndpoint returns the API base URL, using the default if not specified
func (c *CleverConfig) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultCleverEndpoint
	}
	return strings.TrimRight(c.Endpoint, "/")
}

// GetTimeout returns the per-request timeout
func (c *CleverConfig) GetTimeout() time.Duration {
	return durationOrDefault(c.Timeout, DefaultCleverTimeout)
}

// GetMaxRetries returns the retry budget for a request
func (c *CleverConfig) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return DefaultCleverMaxRetries
	}
	return c.MaxRetries
}

// GetPageSize returns the page size for list endpoints
func (c *CleverConfig) GetPageSize() int {
	if c.PageSize <= 0 {
		return DefaultCleverPageSize
	}
	return c.PageSize
}

// GetConcurrency returns the tenant worker count
func (s *SyncConfig) GetConcurrency() int {
	if s.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return s.Concurrency
}

// GetTenantTimeout returns the per-tenant deadline
func (s *SyncConfig) GetTenantTimeout() time.Duration {
	return durationOrDefault(s.TenantTimeout, DefaultTenantTimeout)
}

// GetLockTTL returns the tenant lock TTL
func (s *SyncConfig) GetLockTTL() time.Duration {
	return durationOrDefault(s.LockTTL, DefaultLockTTL)
}

// GetInterval returns the scheduled sync period
func (s *SyncConfig) GetInterval() time.Duration {
	return durationOrDefault(s.Interval, DefaultSyncInterval)
}

// GetHolder returns the lock holder identity for this process
func (s *SyncConfig) GetHolder() string {
	if s.Holder != "" {
		return s.Holder
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// GetBackend returns the lock backend, defaulting to the control database
func (l *LockConfig) GetBackend() string {
	if l.Backend == "" {
		return LockBackendDatabase
	}
	return l.Backend
}

// GetKeyPrefix returns the Redis key prefix for locks
func (r *RedisConfig) GetKeyPrefix() string {
	if r.KeyPrefix == "" {
		return DefaultRedisKeyPrefix
	}
	return r.KeyPrefix
}

// GetPassword returns the Redis password from CLEVERSYNC_REDIS_PASSWORD, if any
func (*RedisConfig) GetPassword() string {
	return os.Getenv(RedisPasswordEnv)
}

// GetProvider returns the secrets provider, defaulting to env
func (s *SecretsConfig) GetProvider() string {
	if s.Provider == "" {
		return SecretsProviderEnv
	}
	return s.Provider
}

// GetCacheTTL returns how long a fetched AWS secret is cached
func (a *AWSSecretsConfig) GetCacheTTL() time.Duration {
	if a == nil {
		return DefaultSecretsCacheTTL
	}
	return durationOrDefault(a.CacheTTL, DefaultSecretsCacheTTL)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err)
	}
	if err := validateTenantDatabase(&c.TenantDatabase); err != nil {
		errs = append(errs, err)
	}
	if err := validateClever(&c.Clever); err != nil {
		errs = append(errs, err)
	}
	if err := validateSync(&c.Sync); err != nil {
		errs = append(errs, err)
	}
	if err := validateLock(&c.Lock); err != nil {
		errs = append(errs, err)
	}
	if err := validateSecrets(&c.Secrets); err != nil {
		errs = append(errs, err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func validateDatabase(db *DatabaseConfig) error {
	if db == nil {
		return fmt.Errorf("database: configuration is required")
	}
	if db.Host == "" {
		return fmt.Errorf("database: host is required")
	}
	if db.Port <= 0 {
		return fmt.Errorf("database: port is required")
	}
	if db.User == "" {
		return fmt.Errorf("database: user is required")
	}
	if db.Database == "" {
		return fmt.Errorf("database: database is required")
	}
	if db.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(db.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database: connMaxLifetime must be a valid duration: %w", err)
		}
	}
	return nil
}

func validateTenantDatabase(td *TenantDatabaseConfig) error {
	switch td.Driver {
	case DriverPostgres, DriverMySQL:
		if td.Host == "" {
			return fmt.Errorf("tenantDatabase: host is required for driver %s", td.Driver)
		}
		if td.User == "" {
			return fmt.Errorf("tenantDatabase: user is required for driver %s", td.Driver)
		}
	case DriverSQLite:
		if td.SQLiteDir == "" {
			return fmt.Errorf("tenantDatabase: sqliteDir is required for driver %s", DriverSQLite)
		}
	case "":
		return fmt.Errorf("tenantDatabase: driver is required")
	default:
		return fmt.Errorf("tenantDatabase: unsupported driver %q (expected %s, %s or %s)",
			td.Driver, DriverPostgres, DriverMySQL, DriverSQLite)
	}
	return nil
}

func validateClever(c *CleverConfig) error {
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("clever: endpoint must be an absolute URL, got %q", c.Endpoint)
		}
	}
	if err := validateDuration("clever: timeout", c.Timeout); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("clever: maxRetries cannot be negative")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("clever: pageSize cannot be negative")
	}
	return nil
}

func validateSync(s *SyncConfig) error {
	if s.Concurrency < 0 {
		return fmt.Errorf("sync: concurrency cannot be negative")
	}
	for name, value := range map[string]string{
		"sync: tenantTimeout": s.TenantTimeout,
		"sync: lockTTL":       s.LockTTL,
		"sync: interval":      s.Interval,
	} {
		if err := validateDuration(name, value); err != nil {
			return err
		}
	}
	if s.GetLockTTL() < s.GetTenantTimeout() {
		return fmt.Errorf("sync: lockTTL (%s) must not be shorter than tenantTimeout (%s)",
			s.GetLockTTL(), s.GetTenantTimeout())
	}
	return nil
}

func validateLock(l *LockConfig) error {
	switch l.GetBackend() {
	case LockBackendDatabase, LockBackendMemory:
		return nil
	case LockBackendRedis:
		if l.Redis == nil || l.Redis.Address == "" {
			return fmt.Errorf("lock: redis.address is required for backend %s", LockBackendRedis)
		}
		return nil
	default:
		return fmt.Errorf("lock: unsupported backend %q", l.Backend)
	}
}

func validateSecrets(s *SecretsConfig) error {
	switch s.GetProvider() {
	case SecretsProviderEnv:
		return nil
	case SecretsProviderFile:
		if s.Dir == "" {
			return fmt.Errorf("secrets: dir is required for provider %s", SecretsProviderFile)
		}
		return nil
	case SecretsProviderAWS:
		if s.AWS != nil {
			return validateDuration("secrets: aws.cacheTTL", s.AWS.CacheTTL)
		}
		return nil
	default:
		return fmt.Errorf("secrets: unsupported provider %q", s.Provider)
	}
}

func validateDuration(name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30m', '1h'): %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return nil
}

// durationOrDefault parses value, falling back to def when empty or invalid.
// Values are validated at load time so the fallback only applies to unset fields.
func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
