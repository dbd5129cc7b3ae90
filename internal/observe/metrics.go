// Package observe provides application-wide observability primitives for
// butler: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware for the operational endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all butler metrics.
const meterName = "github.com/MrWong99/butler"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// GenerateDuration tracks chat provider generation latency.
	GenerateDuration metric.Float64Histogram

	// ToolExecutionDuration tracks tool handler execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts chat provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderRetries counts HTTP retry attempts against vendor endpoints.
	// Use with attribute: attribute.String("vendor", ...)
	ProviderRetries metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// AgentReplies counts completed agent replies. Use with attribute:
	//   attribute.String("outcome", "text"|"fallback"|"error")
	AgentReplies metric.Int64Counter

	// MessagesHandled counts Discord messages the bot acted on. Use with
	// attribute: attribute.String("kind", "mention"|"reply"|"command")
	MessagesHandled metric.Int64Counter

	// RemindersSent counts delivered event reminders.
	RemindersSent metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live conversation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time on the
	// operational endpoint. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// chat-completion and tool latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.GenerateDuration, err = m.Float64Histogram("butler.generate.duration",
		metric.WithDescription("Latency of chat provider generation calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("butler.tool_execution.duration",
		metric.WithDescription("Latency of tool handler execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("butler.provider.requests",
		metric.WithDescription("Total chat provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRetries, err = m.Int64Counter("butler.provider.retries",
		metric.WithDescription("Total retried chat provider requests by vendor."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("butler.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.AgentReplies, err = m.Int64Counter("butler.agent.replies",
		metric.WithDescription("Total agent replies by outcome."),
	); err != nil {
		return nil, err
	}
	if met.MessagesHandled, err = m.Int64Counter("butler.messages.handled",
		metric.WithDescription("Total Discord messages acted on, by kind."),
	); err != nil {
		return nil, err
	}
	if met.RemindersSent, err = m.Int64Counter("butler.reminders.sent",
		metric.WithDescription("Total event reminders delivered."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("butler.active_sessions",
		metric.WithDescription("Number of live conversation sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("butler.http.request.duration",
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

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderRetry records one retried vendor request.
func (m *Metrics) RecordProviderRetry(ctx context.Context, vendor string) {
	m.ProviderRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("vendor", vendor)),
	)
}

// RecordToolCall records a tool call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordAgentReply records an agent reply counter increment by outcome.
func (m *Metrics) RecordAgentReply(ctx context.Context, outcome string) {
	m.AgentReplies.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordMessageHandled records a handled Discord message by kind.
func (m *Metrics) RecordMessageHandled(ctx context.Context, kind string) {
	m.MessagesHandled.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordReminderSent records one delivered event reminder.
func (m *Metrics) RecordReminderSent(ctx context.Context) {
	m.RemindersSent.Add(ctx, 1)
}

// AddActiveSessions moves the live-session gauge by delta.
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	m.ActiveSessions.Add(ctx, delta)
}
