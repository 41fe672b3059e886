package audioio

import (
	"context"
	"encoding/binary"
	"io"
)

// Chunk is a block of interleaved PCM16 samples.
type Chunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the samples as little-endian PCM16.
func (c *Chunk) Bytes() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// FromBytes populates the chunk from little-endian PCM16.
// A trailing odd byte is ignored.
func (c *Chunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = make([]int16, len(data)/2)
	for i := range c.Samples {
		c.Samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
}

// Peak returns the largest absolute sample value. -32768 peaks at 32768.
func (c *Chunk) Peak() int {
	peak := 0
	for _, s := range c.Samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Source captures audio from a microphone.
type Source interface {
	// Start begins capture. Starting a running source is a no-op.
	Start(ctx context.Context) error

	// Read returns the next chunk, blocking until one is available.
	// Returns io.EOF once the source is stopped.
	Read(ctx context.Context) (Chunk, error)

	// Config returns the audio configuration.
	Config() Config

	// Name returns the backend name ("alsa", "mock").
	Name() string

	// Close stops capture and unblocks a pending Read.
	// It is safe to call more than once.
	io.Closer
}
