package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the data point whose attribute key equals value.
func sumFor(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", m.Name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.Emit() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", m.Name, key, value)
	return 0
}

func TestRecordToolCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "get_build", 120*time.Millisecond, nil)
	m.RecordToolCall(ctx, "get_build", 80*time.Millisecond, nil)
	m.RecordToolCall(ctx, "get_build", time.Second, errors.New("HTTP 404"))

	rm := collect(t, reader)
	calls := findMetric(rm, "jenkins_mcp.tool.calls")
	if calls == nil {
		t.Fatal("tool calls metric not found")
	}
	if got := sumFor(t, calls, "status", "ok"); got != 2 {
		t.Errorf("ok calls = %d, want 2", got)
	}
	if got := sumFor(t, calls, "status", "error"); got != 1 {
		t.Errorf("error calls = %d, want 1", got)
	}

	dur := findMetric(rm, "jenkins_mcp.tool.duration")
	if dur == nil {
		t.Fatal("tool duration metric not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("tool duration is not a populated histogram")
	}
	if got := hist.DataPoints[0].Count; got != 3 {
		t.Errorf("sample count = %d, want 3", got)
	}
}

func TestRecordJenkinsRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordJenkinsRequest(ctx, "GET", 200)
	m.RecordJenkinsRequest(ctx, "POST", 201)
	m.RecordJenkinsRequest(ctx, "POST", 201)

	met := findMetric(collect(t, reader), "jenkins_mcp.jenkins.requests")
	if met == nil {
		t.Fatal("metric not found")
	}
	if got := sumFor(t, met, "method", "POST"); got != 2 {
		t.Errorf("POST requests = %d, want 2", got)
	}
}

func TestActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionOpened(ctx, "sse")
	m.SessionOpened(ctx, "sse")
	m.SessionClosed(ctx, "sse")

	met := findMetric(collect(t, reader), "jenkins_mcp.active_sessions")
	if met == nil {
		t.Fatal("metric not found")
	}
	if got := sumFor(t, met, "transport", "sse"); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
}
