// Package audioio provides microphone capture and speaker playback for the
// proctoring session.
//
// Backends:
//   - ALSA (Linux) - arecord / aplay subprocesses, raw S16_LE PCM
//   - Mock - synthetic audio for CI and demos
//
// The backend is selected from configuration or detected from the platform.
package audioio

import (
	"errors"
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects ALSA on Linux and the mock elsewhere.
	BackendAuto Backend = "auto"
	// BackendALSA uses the ALSA command line tools.
	BackendALSA Backend = "alsa"
	// BackendMock generates synthetic audio.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate in Hz. Default: 44100
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels. Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// Frames per read, per channel. Default: 1024
	Frames int `yaml:"frames" json:"frames"`

	// Device is the ALSA PCM name, e.g. "default" or "plughw:1,0".
	// Ignored by the mock.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns 44.1kHz mono in 1024 frame chunks.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendAuto,
		SampleRate: 44100,
		Channels:   1,
		Frames:     1024,
		Device:     "",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendAuto, BackendALSA, BackendMock, "":
	default:
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.Backend))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.Channels <= 0 {
		errs = append(errs, fmt.Errorf("channels must be positive, got %d", c.Channels))
	}
	if c.Frames <= 0 {
		errs = append(errs, fmt.Errorf("frames must be positive, got %d", c.Frames))
	}
	return errors.Join(errs...)
}

// BufferSize returns the number of int16 samples per read, all channels.
func (c *Config) BufferSize() int {
	return c.Frames * c.Channels
}

// BufferBytes returns the size of one read in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * 2
}

// ChunkDuration returns the audio time covered by one read.
func (c *Config) ChunkDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames) * time.Second / time.Duration(c.SampleRate)
}

func (c *Config) device() string {
	if c.Device == "" {
		return "default"
	}
	return c.Device
}
