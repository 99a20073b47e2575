// Package observe wires OpenTelemetry metrics and tracing for the MCP
// server and its Jenkins client. Metrics are scraped through /metrics via
// the Prometheus exporter bridge set up by InitProvider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/rflorenc/jenkins-mcp-server"

// Metrics holds every instrument the server records.
type Metrics struct {
	// ToolCalls counts tool invocations by tool and status ("ok" or "error").
	ToolCalls metric.Int64Counter

	// ToolDuration tracks tool latency, Jenkins round-trips included.
	ToolDuration metric.Float64Histogram

	// JenkinsRequests counts requests to Jenkins by method and status code.
	JenkinsRequests metric.Int64Counter

	// ActiveSessions tracks live MCP sessions by transport.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP handler latency by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolCalls, err = m.Int64Counter("jenkins_mcp.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("jenkins_mcp.tool.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JenkinsRequests, err = m.Int64Counter("jenkins_mcp.jenkins.requests",
		metric.WithDescription("Total Jenkins REST requests by method and status code."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("jenkins_mcp.active_sessions",
		metric.WithDescription("Number of live MCP sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("jenkins_mcp.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Call it after InitProvider.
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

// RecordToolCall records one finished tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
	m.ToolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordJenkinsRequest records one Jenkins REST call. Status 0 means the
// request never got an HTTP answer.
func (m *Metrics) RecordJenkinsRequest(ctx context.Context, method string, status int) {
	m.JenkinsRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status", status),
	))
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened(ctx context.Context, transport string) {
	m.ActiveSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed(ctx context.Context, transport string) {
	m.ActiveSessions.Add(ctx, -1, metric.WithAttributes(attribute.String("transport", transport)))
}
