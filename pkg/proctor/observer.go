package proctor

import (
	"context"
	"time"
)

// Observer receives session activity for live display or fan-out.
// Calls come from the frame loop and the audio goroutine and must not block.
type Observer interface {
	FrameProcessed(frame Frame, rec Record, stats Stats)
	ViolationRaised(ev ViolationEvent)
	AudioAlert(sample AudioSample)
}

// MetricsRecorder records session metrics
type MetricsRecorder interface {
	RecordFrame(ctx context.Context, latency time.Duration)
	RecordViolation(ctx context.Context, kind string)
	RecordAlert(ctx context.Context, source string)
	RecordAmplitude(ctx context.Context, amplitude int)
	SessionStarted(ctx context.Context)
	SessionEnded(ctx context.Context)
}
