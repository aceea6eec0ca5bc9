package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"k8s.io/utils/clock"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
)

// AWS error codes mapped to package errors
const (
	resourceNotFoundException = "ResourceNotFoundException"
	accessDeniedException     = "AccessDeniedException"
)

// ManagerAPI is the subset of the Secrets Manager client used here
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

type cacheEntry struct {
	value      string
	expiration time.Time
}

// AWSProvider reads tenant passwords from AWS Secrets Manager. The secret id
// is the configured prefix followed by the database name; the value is
// either the bare password or an RDS-style JSON document with a "password" key.
type AWSProvider struct {
	api    ManagerAPI
	prefix string
	ttl    time.Duration
	clock  clock.PassiveClock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewAWSProvider loads the default AWS configuration chain and creates a provider
func NewAWSProvider(ctx context.Context, cfg *config.AWSSecretsConfig) (*AWSProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	prefix := ""
	if cfg != nil {
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		prefix = cfg.SecretPrefix
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSProviderWithAPI(secretsmanager.NewFromConfig(awsCfg), prefix, cfg.GetCacheTTL(), clock.RealClock{}), nil
}

// NewAWSProviderWithAPI creates a provider over an existing API client
func NewAWSProviderWithAPI(api ManagerAPI, prefix string, ttl time.Duration, clk clock.PassiveClock) *AWSProvider {
	return &AWSProvider{
		api:     api,
		prefix:  prefix,
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

// Password returns the cached password or fetches it from Secrets Manager
func (p *AWSProvider) Password(ctx context.Context, databaseName string) (string, error) {
	secretID := p.prefix + databaseName

	if v, ok := p.cached(secretID); ok {
		return v, nil
	}

	out, err := p.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", mapAWSError(err, secretID)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}
	password := parseSecret(raw)
	if password == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretEmpty, secretID)
	}

	slog.Debug("Fetched tenant database secret", "secret_id", secretID)
	p.store(secretID, password)
	return password, nil
}

func (p *AWSProvider) cached(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		return "", false
	}
	if !p.clock.Now().Before(entry.expiration) {
		delete(p.entries, key)
		return "", false
	}
	return entry.value, true
}

func (p *AWSProvider) store(key, value string) {
	if p.ttl <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[key] = cacheEntry{value: value, expiration: p.clock.Now().Add(p.ttl)}
}

func parseSecret(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var doc struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return trimmed
	}
	return strings.TrimSpace(doc.Password)
}

func mapAWSError(err error, secretID string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case resourceNotFoundException:
			return fmt.Errorf("%w: %s", ErrSecretNotFound, secretID)
		case accessDeniedException:
			return fmt.Errorf("%w: %s", ErrAccessDenied, secretID)
		}
		return fmt.Errorf("GetSecretValue failed for %s: %s: %s", secretID, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("GetSecretValue failed for %s: %w", secretID, err)
}
