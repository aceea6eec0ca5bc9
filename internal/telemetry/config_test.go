package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())
	assert.False(t, cfg.GetInsecure())

	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
	assert.Equal(t, 0.5, (&TracingConfig{Sampling: 0.5}).GetSampling())

	var prom *PrometheusConfig
	assert.Equal(t, DefaultPrometheusPath, prom.GetPath())
	assert.Equal(t, "/stats", (&PrometheusConfig{Path: "/stats"}).GetPath())
}

func TestMetricsConfig_PrometheusEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *MetricsConfig
		want bool
	}{
		{name: "nil", cfg: nil, want: false},
		{name: "metrics disabled", cfg: &MetricsConfig{Prometheus: &PrometheusConfig{Enabled: true}}, want: false},
		{name: "no prometheus block", cfg: &MetricsConfig{Enabled: true}, want: false},
		{name: "prometheus disabled", cfg: &MetricsConfig{Enabled: true, Prometheus: &PrometheusConfig{}}, want: false},
		{name: "enabled", cfg: &MetricsConfig{Enabled: true, Prometheus: &PrometheusConfig{Enabled: true}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.PrometheusEnabled())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil config", cfg: nil},
		{name: "disabled config ignores bad values", cfg: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 3}}},
		{
			name: "valid",
			cfg: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 1},
				Metrics: &MetricsConfig{Enabled: true, Prometheus: &PrometheusConfig{Enabled: true}},
			},
		},
		{
			name:    "sampling above one",
			cfg:     &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:    "negative sampling",
			cfg:     &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			wantErr: "sampling must be between",
		},
		{
			name: "relative prometheus path",
			cfg: &Config{
				Enabled: true,
				Metrics: &MetricsConfig{Enabled: true, Prometheus: &PrometheusConfig{Enabled: true, Path: "metrics"}},
			},
			wantErr: "metrics: prometheus path must start with '/'",
		},
		{
			name: "both sections invalid",
			cfg: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 2},
				Metrics: &MetricsConfig{Enabled: true, Prometheus: &PrometheusConfig{Enabled: true, Path: "x"}},
			},
			wantErr: "prometheus path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
