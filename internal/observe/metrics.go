// Package observe provides application-wide observability primitives for
// Redline: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Redline metrics.
const meterName = "github.com/redlinehq/redline"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ExtractDuration tracks correction-engine extraction latency (diff or
	// markup parse, including reconciliation).
	ExtractDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// --- Counters ---

	// CorrectionsExtracted counts extracted corrections. Use with attribute:
	//   attribute.String("type", ...)
	CorrectionsExtracted metric.Int64Counter

	// ParseFallbacks counts markup parses that did not succeed on the first
	// strategy. Use with attribute:
	//   attribute.String("strategy", ...) — the strategy that finally won,
	//   or "none" when the input passed through unparsed.
	ParseFallbacks metric.Int64Counter

	// ReconcileMisses counts corrections whose original text could not be
	// located in the canonical text during reconciliation.
	ReconcileMisses metric.Int64Counter

	// AlignDrops counts corrections discarded during render alignment.
	AlignDrops metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// LiveConnections tracks the number of open live-correction websocket
	// connections.
	LiveConnections metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The low end
// covers the pure in-process engine stages, the high end LLM round trips.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ExtractDuration, err = m.Float64Histogram("redline.extract.duration",
		metric.WithDescription("Latency of correction extraction (diff or markup parse)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("redline.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CorrectionsExtracted, err = m.Int64Counter("redline.corrections.extracted",
		metric.WithDescription("Total corrections extracted by error type."),
	); err != nil {
		return nil, err
	}
	if met.ParseFallbacks, err = m.Int64Counter("redline.parse.fallbacks",
		metric.WithDescription("Markup parses that fell past the first strategy, by winning strategy."),
	); err != nil {
		return nil, err
	}
	if met.ReconcileMisses, err = m.Int64Counter("redline.reconcile.misses",
		metric.WithDescription("Corrections whose original text was not found during reconciliation."),
	); err != nil {
		return nil, err
	}
	if met.AlignDrops, err = m.Int64Counter("redline.align.drops",
		metric.WithDescription("Corrections discarded during render alignment."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("redline.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("redline.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.LiveConnections, err = m.Int64UpDownCounter("redline.live.connections",
		metric.WithDescription("Number of open live-correction websocket connections."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("redline.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCorrections records n extracted corrections for the given error type.
func (m *Metrics) RecordCorrections(ctx context.Context, errorType string, n int64) {
	if n == 0 {
		return
	}
	m.CorrectionsExtracted.Add(ctx, n,
		metric.WithAttributes(attribute.String("type", errorType)),
	)
}

// RecordParseFallback records a markup parse that needed the named fallback
// strategy (or "none").
func (m *Metrics) RecordParseFallback(ctx context.Context, strategy string) {
	m.ParseFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("strategy", strategy)),
	)
}

// RecordReconcileMisses records n corrections that missed during reconciliation.
func (m *Metrics) RecordReconcileMisses(ctx context.Context, n int64) {
	if n > 0 {
		m.ReconcileMisses.Add(ctx, n)
	}
}

// RecordAlignDrops records n corrections dropped during alignment.
func (m *Metrics) RecordAlignDrops(ctx context.Context, n int64) {
	if n > 0 {
		m.AlignDrops.Add(ctx, n)
	}
}
