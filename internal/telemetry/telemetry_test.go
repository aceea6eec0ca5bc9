package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	for name, cfg := range map[string]*Config{
		"nil config":      nil,
		"disabled config": {Enabled: false, Tracing: &TracingConfig{Enabled: true}},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(context.Background(), WithTelemetryConfig(cfg))
			require.NoError(t, err)

			assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
			assert.IsType(t, noop.MeterProvider{}, tel.MeterProvider())
			assert.NotNil(t, tel.Tracer("test"))

			path, handler := tel.MetricsHandler()
			assert.Empty(t, path)
			assert.Nil(t, handler)

			assert.NoError(t, tel.Shutdown(context.Background()))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: 4},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

func TestNew_PrometheusMetrics(t *testing.T) {
	ctx := context.Background()

	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{
			Enabled:    true,
			Prometheus: &PrometheusConfig{Enabled: true, Path: "/internal/metrics"},
		},
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	require.IsType(t, &sdkmetric.MeterProvider{}, tel.MeterProvider())

	metrics, err := NewSyncMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordLockContention(ctx, "school:9")

	path, handler := tel.MetricsHandler()
	require.NotNil(t, handler)
	assert.Equal(t, "/internal/metrics", path)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cleversync_lock_contention_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewMeterProvider_PrometheusRequiresRegistry(t *testing.T) {
	t.Parallel()

	_, err := NewMeterProvider(context.Background(), &Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Prometheus: &PrometheusConfig{Enabled: true}},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a registry")
}

func TestNewProviders_Disabled(t *testing.T) {
	t.Parallel()

	tests := map[string]*Config{
		"nil config":    nil,
		"telemetry off": {Enabled: false, Tracing: &TracingConfig{Enabled: true}, Metrics: &MetricsConfig{Enabled: true}},
		"signals off":   {Enabled: true, Tracing: &TracingConfig{Enabled: false}, Metrics: &MetricsConfig{Enabled: false}},
		"signals unset": {Enabled: true},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tp, err := NewTracerProvider(context.Background(), cfg)
			require.NoError(t, err)
			assert.IsType(t, tracenoop.TracerProvider{}, tp)

			mp, err := NewMeterProvider(context.Background(), cfg, nil)
			require.NoError(t, err)
			assert.IsType(t, noop.MeterProvider{}, mp)
		})
	}
}
