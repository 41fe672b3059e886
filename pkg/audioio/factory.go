package audioio

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// ErrUnavailable means the selected backend cannot run on this host
var ErrUnavailable = errors.New("audio backend unavailable")

// NewSource creates an audio source for cfg.
// If cfg.Backend is BackendAuto, the platform backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg.Backend)
	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"frames", cfg.Frames,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendALSA:
		return newALSASource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates an audio sink for cfg.
// If cfg.Backend is BackendAuto, the platform backend is selected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg.Backend)
	logger.Info("creating audio sink", "backend", backend, "sample_rate", cfg.SampleRate)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendALSA:
		return newALSASink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func resolveBackend(b Backend) Backend {
	if b == BackendAuto || b == "" {
		return detectBestBackend()
	}
	return b
}

// detectBestBackend returns the best available backend for the current platform.
func detectBestBackend() Backend {
	if runtime.GOOS == "linux" {
		return BackendALSA
	}
	return BackendMock
}

// AvailableBackends returns the backends available on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if runtime.GOOS == "linux" {
		backends = append(backends, BackendALSA)
	}
	return backends
}
