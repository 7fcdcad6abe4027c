package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// MeterName is the instrumentation scope of the sync metrics.
const MeterName = TracerName

// ErrMeterNil is returned when metrics are built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Metric attribute keys. They are kept short since they become label names.
const (
	AttrMetricSiteID  = attribute.Key("site_id")
	AttrMetricOutcome = attribute.Key("outcome")
	AttrMetricKind    = attribute.Key("kind")
	AttrMetricResult  = attribute.Key("result")
	AttrMetricStatus  = attribute.Key("overall_status")
)

// Item outcome label values.
const (
	OutcomeSyncedInstock    = "synced_instock"
	OutcomeSyncedOutofstock = "synced_outofstock"
	OutcomeFailed           = "failed"
	OutcomeSkipped          = "skipped"
)

// StepDurationBuckets are histogram boundaries for one sync step (seconds).
// Fetch and site steps page through upstream APIs and may take minutes.
var StepDurationBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// MeterProvider owns the SDK meter provider installed as the global one.
// When disabled it holds nothing and meters come from the global no-op provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	config   MetricsConfig
	logger   *zap.Logger
}

// NewMeterProvider exports metrics over OTLP gRPC when cfg.Enabled.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MeterProvider{config: cfg, logger: logger}
	if !cfg.Enabled {
		logger.Debug("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	if err := mp.install(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))); err != nil {
		return nil, err
	}
	logger.Info("Meter provider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
		zap.String("service_name", cfg.ServiceName),
	)
	return mp, nil
}

// NewMeterProviderWithReader installs a provider over reader. Tests use it
// with a manual reader.
func NewMeterProviderWithReader(cfg MetricsConfig, reader sdkmetric.Reader, logger *zap.Logger) (*MeterProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MeterProvider{config: cfg, logger: logger}
	if err := mp.install(reader); err != nil {
		return nil, err
	}
	return mp, nil
}

func (mp *MeterProvider) install(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.ServiceName),
			semconv.ServiceVersion(mp.config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.provider)
	return nil
}

// Meter returns a named meter, falling back to the global provider when disabled.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether metrics are exported.
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// ForceFlush exports pending metrics.
func (mp *MeterProvider) ForceFlush(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	return mp.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.logger.Info("Meter provider shutdown complete")
	return nil
}

// SiteCounts are the per-item totals of one site step.
type SiteCounts struct {
	SyncedToInstock    int
	SyncedToOutofstock int
	Failed             int
	Skipped            int
}

// SyncMetrics records stock sync throughput. A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	items        metric.Int64Counter
	batches      metric.Int64Counter
	stepDuration metric.Float64Histogram
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &SyncMetrics{}

	var err error
	m.items, err = meter.Int64Counter(
		"stocksync_items_total",
		metric.WithDescription("ERP SKUs processed per site by outcome"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter stocksync_items_total: %w", err)
	}

	m.batches, err = meter.Int64Counter(
		"stocksync_batches_total",
		metric.WithDescription("Finished sync batches by overall status"),
		metric.WithUnit("{batches}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter stocksync_batches_total: %w", err)
	}

	m.stepDuration, err = meter.Float64Histogram(
		"stocksync_step_duration_seconds",
		metric.WithDescription("Duration of one sync step"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(StepDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram stocksync_step_duration_seconds: %w", err)
	}
	return m, nil
}

// RecordSite adds the item totals of one finished site step.
func (m *SyncMetrics) RecordSite(ctx context.Context, siteID string, counts SiteCounts) {
	if m == nil {
		return
	}
	site := AttrMetricSiteID.String(siteID)
	for _, c := range []struct {
		outcome string
		n       int
	}{
		{OutcomeSyncedInstock, counts.SyncedToInstock},
		{OutcomeSyncedOutofstock, counts.SyncedToOutofstock},
		{OutcomeFailed, counts.Failed},
		{OutcomeSkipped, counts.Skipped},
	} {
		if c.n > 0 {
			m.items.Add(ctx, int64(c.n), metric.WithAttributes(site, AttrMetricOutcome.String(c.outcome)))
		}
	}
}

// RecordStep records how long a step of kind took and whether it errored.
func (m *SyncMetrics) RecordStep(ctx context.Context, kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		AttrMetricKind.String(kind),
		AttrMetricResult.String(result),
	))
}

// RecordBatch counts a finished batch.
func (m *SyncMetrics) RecordBatch(ctx context.Context, overallStatus string) {
	if m == nil {
		return
	}
	m.batches.Add(ctx, 1, metric.WithAttributes(AttrMetricStatus.String(overallStatus)))
}
