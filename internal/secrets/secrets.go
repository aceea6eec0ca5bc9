// Package secrets resolves tenant database passwords.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
)

var (
	// ErrSecretNotFound is returned when no password exists for a database
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEmpty is returned when the password exists but is empty
	ErrSecretEmpty = errors.New("secret value is empty")

	// ErrAccessDenied is returned when the credentials may not read the secret
	ErrAccessDenied = errors.New("access denied to secret")
)

// Provider resolves the password of a tenant database. Implementations must
// be safe for concurrent use and never log secret values.
type Provider interface {
	Password(ctx context.Context, databaseName string) (string, error)
}

// NewProvider creates the provider selected in cfg
func NewProvider(ctx context.Context, cfg *config.SecretsConfig) (Provider, error) {
	switch cfg.GetProvider() {
	case config.SecretsProviderEnv:
		return NewEnvProvider(), nil
	case config.SecretsProviderFile:
		return NewFileProvider(cfg.Dir), nil
	case config.SecretsProviderAWS:
		return NewAWSProvider(ctx, cfg.AWS)
	default:
		return nil, fmt.Errorf("unsupported secrets provider %q", cfg.Provider)
	}
}

type envProvider struct{}

// NewEnvProvider returns a provider reading CLEVERSYNC_TENANT_DB_PASSWORD_<DATABASE>,
// falling back to the shared CLEVERSYNC_TENANT_DB_PASSWORD
func NewEnvProvider() Provider {
	return envProvider{}
}

func (envProvider) Password(_ context.Context, databaseName string) (string, error) {
	if v := os.Getenv(envKey(databaseName)); v != "" {
		return v, nil
	}
	if v := os.Getenv(config.TenantPasswordEnv); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: neither %s nor %s is set", ErrSecretNotFound, envKey(databaseName), config.TenantPasswordEnv)
}

func envKey(databaseName string) string {
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, databaseName)
	return config.TenantPasswordEnv + "_" + key
}

type fileProvider struct {
	dir string
}

// NewFileProvider returns a provider reading <dir>/<databaseName>, e.g. a
// mounted Kubernetes secret
func NewFileProvider(dir string) Provider {
	return &fileProvider{dir: dir}
}

func (p *fileProvider) Password(_ context.Context, databaseName string) (string, error) {
	name := filepath.Base(databaseName)
	if name != databaseName || name == "." || name == ".." {
		return "", fmt.Errorf("invalid database name %q", databaseName)
	}

	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password file for %s: %w", name, err)
	}

	password := strings.TrimSpace(string(data))
	if password == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretEmpty, name)
	}
	return password, nil
}
