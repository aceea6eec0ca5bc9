package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultMetricsInterval is how often sync metrics are pushed over OTLP
const DefaultMetricsInterval = 60 * time.Second

// NewMeterProvider creates the MeterProvider behind the sync and HTTP
// instruments and installs it globally. When Prometheus is enabled the
// exporter registers with reg, which must then be non-nil; otherwise metrics
// are pushed over OTLP. A no-op provider is returned when telemetry or
// metrics are disabled.
func NewMeterProvider(ctx context.Context, cfg *Config, reg *prometheus.Registry) (metric.MeterProvider, error) {
	if cfg == nil || !cfg.Enabled || cfg.Metrics == nil || !cfg.Metrics.Enabled {
		slog.Debug("Metrics disabled, using no-op meter provider")
		return noop.NewMeterProvider(), nil
	}

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reader, err := metricReader(ctx, cfg, reg)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

func metricReader(ctx context.Context, cfg *Config, reg *prometheus.Registry) (sdkmetric.Reader, error) {
	if cfg.Metrics.PrometheusEnabled() {
		if reg == nil {
			return nil, fmt.Errorf("prometheus exporter requires a registry")
		}
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		slog.Info("Metrics initialized", "exporter", "prometheus", "path", cfg.Metrics.Prometheus.GetPath())
		return exporter, nil
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.GetEndpoint())}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	slog.Info("Metrics initialized", "exporter", "otlp", "endpoint", cfg.GetEndpoint())
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(DefaultMetricsInterval)), nil
}
