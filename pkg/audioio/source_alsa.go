//go:build linux

package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ALSASource captures raw PCM from an `arecord` subprocess.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	pipe   *io.PipeReader
	stderr *bytes.Buffer
	closed bool

	chunksRead atomic.Int64
}

func newALSASource(cfg Config, logger *slog.Logger) (Source, error) {
	if _, err := exec.LookPath("arecord"); err != nil {
		return nil, fmt.Errorf("microphone capture: %w: %v", ErrUnavailable, err)
	}
	return &ALSASource{cfg: cfg, logger: logger}, nil
}

func pcmArgs(cfg Config) []string {
	return []string{
		"-q",
		"-D", cfg.device(),
		"-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
		"-t", "raw",
	}
}

// Start launches arecord.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.cmd != nil {
		return nil
	}

	pr, pw := io.Pipe()
	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, "arecord", pcmArgs(s.cfg)...)
	cmd.Stdout = pw
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start arecord: %w", err)
	}

	// Reader sees EOF or the exit error once arecord is gone
	go func() {
		err := cmd.Wait()
		if err != nil && stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		pw.CloseWithError(err)
	}()

	s.cmd, s.pipe, s.stderr = cmd, pr, stderr
	s.logger.Info("alsa capture started",
		"device", s.cfg.device(),
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
	)
	return nil
}

// Read returns the next full chunk.
func (s *ALSASource) Read(ctx context.Context) (Chunk, error) {
	s.mu.Lock()
	pipe, closed := s.pipe, s.closed
	s.mu.Unlock()

	if closed {
		return Chunk{}, io.EOF
	}
	if pipe == nil {
		return Chunk{}, errors.New("alsa source not started")
	}
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}

	buf := make([]byte, s.cfg.BufferBytes())
	if _, err := io.ReadFull(pipe, buf); err != nil {
		s.mu.Lock()
		closed = s.closed
		s.mu.Unlock()
		if closed || errors.Is(err, io.EOF) {
			return Chunk{}, io.EOF
		}
		return Chunk{}, fmt.Errorf("arecord: %w", err)
	}

	var c Chunk
	c.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)
	s.chunksRead.Add(1)
	return c, nil
}

// Config returns the audio configuration.
func (s *ALSASource) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASource) Name() string {
	return "alsa"
}

// Close kills arecord and unblocks readers.
func (s *ALSASource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd == nil {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.pipe.Close()
	s.logger.Info("alsa capture stopped", "chunks", s.chunksRead.Load())
	return nil
}

// ALSASink plays raw PCM through an `aplay` subprocess.
type ALSASink struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	closed    bool
	playUntil time.Time // Estimated end of queued audio
}

func newALSASink(cfg Config, logger *slog.Logger) (Sink, error) {
	if _, err := exec.LookPath("aplay"); err != nil {
		return nil, fmt.Errorf("alert playback: %w: %v", ErrUnavailable, err)
	}
	return &ALSASink{cfg: cfg, logger: logger}, nil
}

// Start launches aplay.
func (s *ALSASink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.cmd != nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, "aplay", pcmArgs(s.cfg)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("aplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start aplay: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("aplay exited", "error", err)
		}
	}()

	s.cmd, s.stdin = cmd, stdin
	s.logger.Info("alsa playback started", "device", s.cfg.device())
	return nil
}

// Write sends samples to aplay.
func (s *ALSASink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.stdin == nil {
		return errors.New("alsa sink not started")
	}
	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("aplay: %w", err)
	}

	now := time.Now()
	if s.playUntil.Before(now) {
		s.playUntil = now
	}
	frames := len(chunk.Samples) / max(chunk.Channels, 1)
	s.playUntil = s.playUntil.Add(time.Duration(frames) * time.Second / time.Duration(s.cfg.SampleRate))
	return nil
}

// Flush waits for the estimated end of queued audio.
func (s *ALSASink) Flush(ctx context.Context) error {
	s.mu.Lock()
	wait := time.Until(s.playUntil)
	s.mu.Unlock()
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config returns the audio configuration.
func (s *ALSASink) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASink) Name() string {
	return "alsa"
}

// Close ends playback.
func (s *ALSASink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.stdin == nil {
		return nil
	}
	err := s.stdin.Close()
	s.logger.Info("alsa playback stopped")
	return err
}
