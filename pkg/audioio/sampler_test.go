package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestAmplitudeSampler_Peaks(t *testing.T) {
	src := NewMockSource(testConfig(), nil,
		WithoutPacing(),
		WithScript(
			Chunk{Samples: []int16{100, -2500, 30}},
			Chunk{Samples: []int16{-32768}},
		),
	)
	s := NewAmplitudeSampler(src)
	defer s.Close()

	ctx := context.Background()
	for _, want := range []int{2500, 32768} {
		sample, err := s.NextSample(ctx)
		if err != nil {
			t.Fatalf("NextSample: %v", err)
		}
		if sample.Amplitude != want {
			t.Errorf("amplitude: got %d, want %d", sample.Amplitude, want)
		}
	}
	if _, err := s.NextSample(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestAmplitudeSampler_StartError(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	src.Close() // Start now fails
	s := NewAmplitudeSampler(src)

	if _, err := s.NextSample(context.Background()); err == nil {
		t.Error("expected start error")
	}
}

func TestToneAlert_Trigger(t *testing.T) {
	cfg := testConfig()
	sink := NewMockSink(cfg, nil)
	alert := NewToneAlert(sink)
	defer alert.Close()

	if err := alert.Trigger(context.Background(), 2500, 100*time.Millisecond); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if err := alert.Trigger(context.Background(), 1000, 50*time.Millisecond); err != nil {
		t.Fatalf("second Trigger: %v", err)
	}

	written := sink.Written()
	if len(written) != 2 {
		t.Fatalf("chunks written: got %d, want 2", len(written))
	}
	if len(written[0].Samples) != 800 || len(written[1].Samples) != 400 {
		t.Errorf("sample counts: %d, %d", len(written[0].Samples), len(written[1].Samples))
	}
}

func TestToneAlert_ClosedSink(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	sink.Close()
	if err := NewToneAlert(sink).Trigger(context.Background(), 2500, time.Second); err == nil {
		t.Error("expected error from closed sink")
	}
}

func TestSine(t *testing.T) {
	s := Sine(1000, time.Second, 8000, 2, 0.5)
	if len(s) != 16000 {
		t.Fatalf("length: got %d, want 16000", len(s))
	}
	if s[0] != 0 || s[len(s)-1] != 0 {
		t.Error("expected ramped ends")
	}
	peak := (&Chunk{Samples: s}).Peak()
	if peak < 15000 || peak > 16384 {
		t.Errorf("peak: got %d, want about half scale", peak)
	}
	if Sine(1000, 0, 8000, 1, 1) != nil {
		t.Error("zero duration renders nothing")
	}
}
