package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

var _ proctor.MetricsRecorder = (*Metrics)(nil)

// newTestMetrics returns a Metrics instance backed by a ManualReader
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

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s: unexpected data %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if attr.Key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
			total += dp.Value
		}
	}
	return total
}

func TestFrames(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFrame(ctx, 20*time.Millisecond)
	m.RecordFrame(ctx, 40*time.Millisecond)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "proctor.frames", attribute.KeyValue{}); got != 2 {
		t.Errorf("frames: got %d, want 2", got)
	}

	hist, ok := findMetric(rm, "proctor.frame.duration").Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("histogram: %+v", hist)
	}
	if dp := hist.DataPoints[0]; dp.Count != 2 || dp.Sum < 0.059 || dp.Sum > 0.061 {
		t.Errorf("histogram count=%d sum=%f", dp.Count, dp.Sum)
	}
}

func TestViolationsAndAlerts(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordViolation(ctx, "gaze")
	m.RecordViolation(ctx, "gaze")
	m.RecordViolation(ctx, "object")
	m.RecordAlert(ctx, "audio")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "proctor.violations", attribute.String("kind", "gaze")); got != 2 {
		t.Errorf("gaze violations: got %d", got)
	}
	if got := sumFor(t, rm, "proctor.violations", attribute.String("kind", "object")); got != 1 {
		t.Errorf("object violations: got %d", got)
	}
	if got := sumFor(t, rm, "proctor.alerts", attribute.String("source", "audio")); got != 1 {
		t.Errorf("audio alerts: got %d", got)
	}
}

func TestAmplitudeAndSessions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAmplitude(ctx, 1200)
	m.RecordAmplitude(ctx, 3100)
	m.SessionStarted(ctx)
	m.SessionStarted(ctx)
	m.SessionEnded(ctx)

	rm := collect(t, reader)
	gauge, ok := findMetric(rm, "proctor.audio.amplitude").Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 3100 {
		t.Errorf("amplitude gauge: %+v", gauge)
	}
	if got := sumFor(t, rm, "proctor.active_sessions", attribute.KeyValue{}); got != 1 {
		t.Errorf("active sessions: got %d, want 1", got)
	}
}

func TestProviderHandler(t *testing.T) {
	p, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.MeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	m.RecordViolation(context.Background(), "no_face")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"proctor_violations", `service_name="go-proctor"`, `service_version="test"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %s:\n%s", want, body)
		}
	}
}
