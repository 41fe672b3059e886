// Package proctor fuses per-frame perception and an audio amplitude stream
// into debounced, edge-triggered violation events and keeps the session
// audit log.
//
// The frame cycle is strictly sequential: Aggregator turns a Snapshot into a
// ViolationSet using the per-region DwellTracker and the head pose
// PersistenceFilter, then EventBus keeps only violations that were not
// present in the previous frame. AudioMonitor runs on its own goroutine and
// shares only the last amplitude and the alert channel with the frame cycle.
package proctor

import (
	"errors"
	"fmt"
	"time"
)

// Tone describes the alert sound
type Tone struct {
	FrequencyHz int           `json:"frequency_hz"`
	Duration    time.Duration `json:"duration"`
}

// Config holds all tunable parameters for one session.
// It is read-only once the session starts.
type Config struct {
	// Audio
	AudioThreshold int // Peak amplitude that must be exceeded to alert

	// Alerts
	Tone Tone

	// Gaze
	GazeDwellThreshold time.Duration // Continuous dwell before a region violation
	Regions            []Region

	// Head pose
	HeadPosePersistence int     // Consecutive frames turned away before violating
	YawThreshold        float64 // Degrees
	PitchThreshold      float64 // Degrees

	// Objects
	SuspiciousObjects []string

	// Session
	MaxDuration time.Duration // 0 = until stopped
	SaveLog     bool          // Flush records to the log sink on stop
}

// DefaultConfig returns the empirically tuned defaults
func DefaultConfig() Config {
	return Config{
		AudioThreshold: 2500,

		Tone: Tone{FrequencyHz: 2500, Duration: time.Second},

		GazeDwellThreshold: 20 * time.Second,
		Regions:            DefaultRegions(0.25),

		HeadPosePersistence: 15, // ~0.5s at 30 FPS
		YawThreshold:        30,
		PitchThreshold:      25,

		SuspiciousObjects: []string{"cell phone", "person", "book", "laptop"},

		SaveLog: true,
	}
}

// Validate returns every problem found, joined
func (c Config) Validate() error {
	var errs []error
	if c.AudioThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio threshold must be non-negative, got %d", c.AudioThreshold))
	}
	if c.Tone.FrequencyHz <= 0 {
		errs = append(errs, fmt.Errorf("alert frequency must be positive, got %d", c.Tone.FrequencyHz))
	}
	if c.Tone.Duration <= 0 {
		errs = append(errs, fmt.Errorf("alert duration must be positive, got %v", c.Tone.Duration))
	}
	if c.GazeDwellThreshold <= 0 {
		errs = append(errs, fmt.Errorf("gaze dwell threshold must be positive, got %v", c.GazeDwellThreshold))
	}
	if c.HeadPosePersistence < 1 {
		errs = append(errs, fmt.Errorf("head pose persistence must be at least 1, got %d", c.HeadPosePersistence))
	}
	if c.YawThreshold <= 0 || c.PitchThreshold <= 0 {
		errs = append(errs, fmt.Errorf("yaw/pitch thresholds must be positive, got %.1f/%.1f", c.YawThreshold, c.PitchThreshold))
	}
	if c.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("max duration must be non-negative, got %v", c.MaxDuration))
	}
	seen := make(map[string]bool, len(c.Regions))
	for _, r := range c.Regions {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Errorf("region %q is defined twice", r.Name))
		}
		seen[r.Name] = true
	}
	return errors.Join(errs...)
}

func (c Config) suspiciousSet() map[string]bool {
	set := make(map[string]bool, len(c.SuspiciousObjects))
	for _, label := range c.SuspiciousObjects {
		set[label] = true
	}
	return set
}
