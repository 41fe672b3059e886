// Package observe provides the OpenTelemetry metrics for proctoring
// sessions and the Prometheus bridge that exposes them on /metrics.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider] to
// avoid cross-test pollution.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all proctor metrics.
const meterName = "github.com/teslashibe/go-proctor"

// frameBuckets are frame processing latencies in seconds
var frameBuckets = []float64{
	0.005, 0.01, 0.025, 0.033, 0.05, 0.1, 0.25, 0.5, 1,
}

// Metrics holds the session instruments. It implements
// proctor.MetricsRecorder.
type Metrics struct {
	// FrameDuration tracks the time to process one frame, perception included.
	FrameDuration metric.Float64Histogram

	// Frames counts processed frames.
	Frames metric.Int64Counter

	// Violations counts new violations. Attribute: kind.
	Violations metric.Int64Counter

	// Alerts counts alert tones requested. Attribute: source (frame, audio).
	Alerts metric.Int64Counter

	// AudioAmplitude is the last sampled peak amplitude.
	AudioAmplitude metric.Int64Gauge

	// ActiveSessions tracks running sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// NewMetrics creates all instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FrameDuration, err = m.Float64Histogram("proctor.frame.duration",
		metric.WithDescription("Latency of processing one camera frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("proctor.frames",
		metric.WithDescription("Total frames processed."),
	); err != nil {
		return nil, err
	}
	if met.Violations, err = m.Int64Counter("proctor.violations",
		metric.WithDescription("Total new violations by kind."),
	); err != nil {
		return nil, err
	}
	if met.Alerts, err = m.Int64Counter("proctor.alerts",
		metric.WithDescription("Total alert tones by source."),
	); err != nil {
		return nil, err
	}
	if met.AudioAmplitude, err = m.Int64Gauge("proctor.audio.amplitude",
		metric.WithDescription("Last sampled peak audio amplitude."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("proctor.active_sessions",
		metric.WithDescription("Number of running proctoring sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordFrame records one processed frame
func (m *Metrics) RecordFrame(ctx context.Context, latency time.Duration) {
	m.Frames.Add(ctx, 1)
	m.FrameDuration.Record(ctx, latency.Seconds())
}

// RecordViolation counts a new violation of kind
func (m *Metrics) RecordViolation(ctx context.Context, kind string) {
	m.Violations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordAlert counts an alert from source
func (m *Metrics) RecordAlert(ctx context.Context, source string) {
	m.Alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordAmplitude sets the amplitude gauge
func (m *Metrics) RecordAmplitude(ctx context.Context, amplitude int) {
	m.AudioAmplitude.Record(ctx, int64(amplitude))
}

// SessionStarted increments the active session count
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded decrements the active session count
func (m *Metrics) SessionEnded(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}
