package proctor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// AudioSample is one amplitude reading
type AudioSample struct {
	Timestamp time.Time `json:"timestamp"`
	Amplitude int       `json:"amplitude"` // Non-negative peak magnitude
}

// SampleSource yields amplitude samples, blocking per sample.
// Close must unblock a pending NextSample.
type SampleSource interface {
	NextSample(ctx context.Context) (AudioSample, error)
	Close() error
}

// AudioMonitor compares each sample against the threshold and fires an alert
// for every crossing. No debouncing is applied.
//
// The last amplitude is advisory display data shared with the frame cycle
// without ordering guarantees: the audio goroutine writes, readers see some
// recent value.
type AudioMonitor struct {
	threshold int
	alerts    *AlertDispatcher
	observers []Observer
	metrics   MetricsRecorder
	logger    *slog.Logger

	lastAmplitude atomic.Int64
	lastExceeded  atomic.Bool
	alertCount    atomic.Int64
}

// NewAudioMonitor creates a monitor. alerts, metrics and observers may be nil.
func NewAudioMonitor(threshold int, alerts *AlertDispatcher, metrics MetricsRecorder, logger *slog.Logger, observers ...Observer) *AudioMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioMonitor{
		threshold: threshold,
		alerts:    alerts,
		observers: observers,
		metrics:   metrics,
		logger:    logger,
	}
}

// OnSample evaluates one sample and returns whether it triggered an alert.
// Only amplitudes strictly above the threshold trigger.
func (m *AudioMonitor) OnSample(s AudioSample) bool {
	m.lastAmplitude.Store(int64(s.Amplitude))
	if m.metrics != nil {
		m.metrics.RecordAmplitude(context.Background(), s.Amplitude)
	}

	exceeded := s.Amplitude > m.threshold
	m.lastExceeded.Store(exceeded)
	if !exceeded {
		return false
	}

	m.alertCount.Add(1)
	m.logger.Info("suspicious audio detected", "amplitude", s.Amplitude, "threshold", m.threshold)
	if m.alerts != nil {
		m.alerts.Fire("audio")
	}
	for _, o := range m.observers {
		o.AudioAlert(s)
	}
	return true
}

// Run reads samples until ctx is done or the source fails.
// A failing source disables the monitor; it never fails the session.
func (m *AudioMonitor) Run(ctx context.Context, src SampleSource) error {
	m.logger.Info("audio monitoring started", "threshold", m.threshold)
	defer m.logger.Info("audio monitoring stopped")

	for {
		s, err := src.NextSample(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				m.logger.Warn("audio source unavailable, disabling audio monitor", "error", err)
			}
			return nil
		}
		m.OnSample(s)
	}
}

// LastAmplitude returns the most recent amplitude
func (m *AudioMonitor) LastAmplitude() int {
	return int(m.lastAmplitude.Load())
}

// LastExceeded reports whether the most recent sample crossed the threshold
func (m *AudioMonitor) LastExceeded() bool {
	return m.lastExceeded.Load()
}

// Alerts returns how many samples have triggered
func (m *AudioMonitor) Alerts() int {
	return int(m.alertCount.Load())
}
