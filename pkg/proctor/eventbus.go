package proctor

import (
	"context"
	"log/slog"
	"time"
)

// ViolationEvent is one newly triggered violation
type ViolationEvent struct {
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"` // Frame number
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Total     int       `json:"total"` // Session counter after this frame
	At        time.Time `json:"at"`
}

// Edge is the result of committing one frame's violations
type Edge struct {
	New   ViolationSet
	Alert bool
}

// Diff returns the violations in cur that were not in prev
func Diff(prev, cur ViolationSet) Edge {
	newly := cur.Difference(prev)
	return Edge{New: newly, Alert: !newly.Empty()}
}

// EventBus edge-triggers frame violations: only messages absent from the
// previous frame count, alert, and reach observers. The previous set is
// passed in by the caller rather than held here.
type EventBus struct {
	sessionID string
	alerts    *AlertDispatcher
	observers []Observer
	metrics   MetricsRecorder
}

// NewEventBus creates a bus. alerts, observers and metrics may be nil.
func NewEventBus(sessionID string, alerts *AlertDispatcher, metrics MetricsRecorder, observers ...Observer) *EventBus {
	return &EventBus{
		sessionID: sessionID,
		alerts:    alerts,
		observers: observers,
		metrics:   metrics,
	}
}

// Commit compares cur against prev and fans out anything new.
// seq and total describe the frame for emitted events; total is the counter
// value before this frame.
func (b *EventBus) Commit(prev, cur ViolationSet, seq int64, total int, now time.Time) Edge {
	edge := Diff(prev, cur)
	if !edge.Alert {
		return edge
	}

	if b.alerts != nil {
		b.alerts.Fire("frame")
	}

	total += edge.New.Len()
	for _, msg := range edge.New.Messages() {
		ev := ViolationEvent{
			SessionID: b.sessionID,
			Seq:       seq,
			Message:   msg,
			Kind:      ViolationKind(msg),
			Total:     total,
			At:        now,
		}
		if b.metrics != nil {
			b.metrics.RecordViolation(context.Background(), ev.Kind)
		}
		for _, o := range b.observers {
			o.ViolationRaised(ev)
		}
	}
	return edge
}

// AlertSink actuates an alert, e.g. by sounding a tone.
// Failures must not affect the caller.
type AlertSink interface {
	Trigger(ctx context.Context, frequencyHz int, d time.Duration) error
}

// AlertDispatcher decouples alert producers from the sink. Fire never
// blocks; when the queue is full the alert is dropped.
type AlertDispatcher struct {
	sink    AlertSink
	tone    Tone
	queue   chan string
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewAlertDispatcher creates a dispatcher. A nil sink makes Fire a no-op
// apart from metrics.
func NewAlertDispatcher(sink AlertSink, tone Tone, metrics MetricsRecorder, logger *slog.Logger) *AlertDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertDispatcher{
		sink:    sink,
		tone:    tone,
		queue:   make(chan string, 16),
		logger:  logger,
		metrics: metrics,
	}
}

// Fire queues one alert from source ("frame" or "audio")
func (d *AlertDispatcher) Fire(source string) {
	if d.metrics != nil {
		d.metrics.RecordAlert(context.Background(), source)
	}
	if d.sink == nil {
		return
	}
	select {
	case d.queue <- source:
	default:
		d.logger.Debug("alert queue full, dropping alert", "source", source)
	}
}

// Run drains the queue until ctx is done
func (d *AlertDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case source := <-d.queue:
			if err := d.sink.Trigger(ctx, d.tone.FrequencyHz, d.tone.Duration); err != nil && ctx.Err() == nil {
				d.logger.Warn("alert sink failed", "source", source, "error", err)
			}
		}
	}
}
