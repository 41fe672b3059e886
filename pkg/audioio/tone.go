package audioio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// toneLevel is the alert volume, 0.0 to 1.0
const toneLevel = 0.6

// ToneAlert sounds a sine beep on a Sink. It implements proctor.AlertSink.
// Trigger blocks for the length of the beep.
type ToneAlert struct {
	sink Sink

	mu      sync.Mutex
	started bool
}

// NewToneAlert creates an alert that plays on sink.
func NewToneAlert(sink Sink) *ToneAlert {
	return &ToneAlert{sink: sink}
}

// Trigger plays a tone of the given frequency and duration.
func (t *ToneAlert) Trigger(ctx context.Context, frequencyHz int, d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		if err := t.sink.Start(ctx); err != nil {
			return fmt.Errorf("start alert sink: %w", err)
		}
		t.started = true
	}

	cfg := t.sink.Config()
	chunk := Chunk{
		Samples:    Sine(frequencyHz, d, cfg.SampleRate, cfg.Channels, toneLevel),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}
	if err := t.sink.Write(ctx, chunk); err != nil {
		return fmt.Errorf("play alert tone: %w", err)
	}
	return t.sink.Flush(ctx)
}

// Close releases the sink.
func (t *ToneAlert) Close() error {
	return t.sink.Close()
}

// Sine renders an interleaved PCM16 sine wave. The first and last 5ms are
// ramped to avoid clicks.
func Sine(frequencyHz int, d time.Duration, sampleRate, channels int, level float64) []int16 {
	frames := int(d.Seconds() * float64(sampleRate))
	if frames <= 0 || channels <= 0 {
		return nil
	}
	ramp := sampleRate / 200
	samples := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		gain := level
		if ramp > 0 {
			if i < ramp {
				gain *= float64(i) / float64(ramp)
			} else if frames-1-i < ramp {
				gain *= float64(frames-1-i) / float64(ramp)
			}
		}
		v := int16(gain * 32767 * math.Sin(2*math.Pi*float64(frequencyHz)*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	return samples
}
