//go:build !linux

package audioio

import (
	"fmt"
	"log/slog"
)

// Capture and alert playback need the ALSA tools; elsewhere use the mock backend.

func newALSASource(Config, *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("microphone capture: %w", ErrUnavailable)
}

func newALSASink(Config, *slog.Logger) (Sink, error) {
	return nil, fmt.Errorf("alert playback: %w", ErrUnavailable)
}
