package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
)

type fakeManagerAPI struct {
	secrets map[string]string
	err     error
	calls   atomic.Int32
}

func (f *fakeManagerAPI) GetSecretValue(
	_ context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestAWSProvider_Password(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr error
	}{
		{name: "plain value", secret: "  s3cret\n", want: "s3cret"},
		{name: "rds json document", secret: `{"username":"roster","password":"pw"}`, want: "pw"},
		{name: "json without password", secret: `{"username":"roster"}`, wantErr: ErrSecretEmpty},
		{name: "empty", secret: "   ", wantErr: ErrSecretEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeManagerAPI{secrets: map[string]string{"tenants/east": tt.secret}}
			p := NewAWSProviderWithAPI(api, "tenants/", time.Minute, testingclock.NewFakePassiveClock(time.Now()))

			got, err := p.Password(context.Background(), "east")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAWSProvider_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := testingclock.NewFakePassiveClock(time.Now())

	p := NewAWSProviderWithAPI(&fakeManagerAPI{}, "", time.Minute, clk)
	_, err := p.Password(ctx, "missing")
	require.ErrorIs(t, err, ErrSecretNotFound)

	denied := &fakeManagerAPI{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}}
	_, err = NewAWSProviderWithAPI(denied, "", time.Minute, clk).Password(ctx, "x")
	require.ErrorIs(t, err, ErrAccessDenied)

	throttled := &fakeManagerAPI{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}}
	_, err = NewAWSProviderWithAPI(throttled, "", time.Minute, clk).Password(ctx, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ThrottlingException")

	broken := &fakeManagerAPI{err: errors.New("dial tcp: timeout")}
	_, err = NewAWSProviderWithAPI(broken, "", time.Minute, clk).Password(ctx, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestAWSProvider_Cache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := testingclock.NewFakePassiveClock(time.Now())
	api := &fakeManagerAPI{secrets: map[string]string{"east": "pw"}}
	p := NewAWSProviderWithAPI(api, "", 10*time.Minute, clk)

	for range 3 {
		got, err := p.Password(ctx, "east")
		require.NoError(t, err)
		assert.Equal(t, "pw", got)
	}
	assert.Equal(t, int32(1), api.calls.Load())

	clk.SetTime(clk.Now().Add(10 * time.Minute))
	_, err := p.Password(ctx, "east")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.calls.Load())
}

func TestFileProvider(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "east"), []byte("pw\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank"), []byte("\n"), 0600))
	p := NewFileProvider(dir)
	ctx := context.Background()

	got, err := p.Password(ctx, "east")
	require.NoError(t, err)
	assert.Equal(t, "pw", got)

	_, err = p.Password(ctx, "west")
	require.ErrorIs(t, err, ErrSecretNotFound)

	_, err = p.Password(ctx, "blank")
	require.ErrorIs(t, err, ErrSecretEmpty)

	_, err = p.Password(ctx, "../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid database name")
}

//nolint:paralleltest // uses t.Setenv
func TestEnvProvider(t *testing.T) {
	p := NewEnvProvider()
	ctx := context.Background()

	t.Setenv(config.TenantPasswordEnv, "")
	_, err := p.Password(ctx, "east")
	require.ErrorIs(t, err, ErrSecretNotFound)

	t.Setenv(config.TenantPasswordEnv, "shared")
	got, err := p.Password(ctx, "east")
	require.NoError(t, err)
	assert.Equal(t, "shared", got)

	t.Setenv(config.TenantPasswordEnv+"_EAST_HIGH", "specific")
	got, err = p.Password(ctx, "east-high")
	require.NoError(t, err)
	assert.Equal(t, "specific", got)
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(context.Background(), &config.SecretsConfig{})
	require.NoError(t, err)
	assert.IsType(t, envProvider{}, p)

	p, err = NewProvider(context.Background(), &config.SecretsConfig{Provider: config.SecretsProviderFile, Dir: "/run/secrets"})
	require.NoError(t, err)
	assert.IsType(t, &fileProvider{}, p)

	_, err = NewProvider(context.Background(), &config.SecretsConfig{Provider: "vault"})
	require.Error(t, err)
}
