package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MockSource generates synthetic audio: silence, a sine wave, periodic loud
// bursts, or a fixed script of chunks. Reads are paced in real time unless
// pacing is disabled.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	done    chan struct{}
	read    int64 // Chunks returned

	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	phase     float64

	burstEvery  int64   // Chunks between bursts, 0 = none
	burstLength int64   // Chunks per burst
	burstLevel  float64 // 0.0 to 1.0

	script []Chunk
	paced  bool
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave generates a continuous tone.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithBursts adds a loud burst of the given length every interval.
func WithBursts(every, length time.Duration, level float64) MockSourceOption {
	return func(m *MockSource) {
		chunk := m.cfg.ChunkDuration()
		if chunk <= 0 {
			return
		}
		m.burstEvery = int64(every / chunk)
		m.burstLength = max(int64(length/chunk), 1)
		m.burstLevel = level
	}
}

// WithScript returns the given chunks in order, then io.EOF.
func WithScript(chunks ...Chunk) MockSourceOption {
	return func(m *MockSource) {
		m.script = chunks
	}
}

// WithoutPacing returns chunks as fast as they are read.
func WithoutPacing() MockSourceOption {
	return func(m *MockSource) {
		m.paced = false
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		done:      make(chan struct{}),
		amplitude: 0.5,
		paced:     true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.running = true
	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
		"scripted", len(m.script) > 0,
	)
	return nil
}

// Read waits one chunk duration and returns the next chunk.
func (m *MockSource) Read(ctx context.Context) (Chunk, error) {
	if m.paced {
		t := time.NewTimer(m.cfg.ChunkDuration())
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		case <-m.done:
			return Chunk{}, io.EOF
		case <-t.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return Chunk{}, io.EOF
	}
	if m.script != nil {
		if len(m.script) == 0 {
			return Chunk{}, io.EOF
		}
		c := m.script[0]
		m.script = m.script[1:]
		m.read++
		return c, nil
	}

	c := m.generate()
	m.read++
	return c, nil
}

func (m *MockSource) generate() Chunk {
	frames := m.cfg.Frames
	samples := make([]int16, frames*m.cfg.Channels)

	level := m.amplitude
	freq := m.frequency
	if m.burstEvery > 0 && m.read%m.burstEvery < m.burstLength && m.read >= m.burstEvery {
		level = m.burstLevel
		if freq == 0 {
			freq = 440
		}
	}

	if freq > 0 {
		for i := 0; i < frames; i++ {
			v := int16(level * 32767 * math.Sin(2*math.Pi*freq*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return Chunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close stops the source and unblocks readers.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.running = false
	close(m.done)
	m.logger.Info("mock audio source stopped", "chunks", m.read)
	return nil
}

var _ Source = (*MockSource)(nil)

// MockSink records written audio instead of playing it.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	chunks  []Chunk
	flushes int
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Write records a chunk.
func (m *MockSink) Write(ctx context.Context, chunk Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return io.ErrClosedPipe
	}
	m.chunks = append(m.chunks, chunk)
	return nil
}

// Flush returns immediately.
func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return ctx.Err()
}

// Written returns the recorded chunks.
func (m *MockSink) Written() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Chunk(nil), m.chunks...)
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

var _ Sink = (*MockSink)(nil)
