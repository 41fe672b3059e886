package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker.
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// Write queues a chunk for playback. It may block while the device
	// buffer is full.
	Write(ctx context.Context, chunk Chunk) error

	// Flush waits until queued audio has played.
	Flush(ctx context.Context) error

	// Config returns the audio configuration.
	Config() Config

	// Name returns the backend name ("alsa", "mock").
	Name() string

	// Close releases the device. It is safe to call more than once.
	io.Closer
}
