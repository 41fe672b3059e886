package proctor

import (
	"fmt"
	"image"
	"time"
)

// Gaze status texts
const (
	GazeStatusNotDetected = "Gaze point not detected"
	GazeStatusNormal      = "Normal (not monitored regions)"
)

// Region is a monitored screen area expressed as fractions of the frame
type Region struct {
	Name   string  `json:"name" yaml:"name"`   // Stable key, e.g. "bottom_left"
	Label  string  `json:"label" yaml:"label"` // Display text, e.g. "Bottom-Left"
	X      float64 `json:"x" yaml:"x"`         // Left edge (0-1)
	Y      float64 `json:"y" yaml:"y"`         // Top edge (0-1)
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// DefaultRegions returns the bottom-left and bottom-right corners, each
// covering the given fraction of the frame width and height.
func DefaultRegions(fraction float64) []Region {
	return []Region{
		{Name: "bottom_left", Label: "Bottom-Left", X: 0, Y: 1 - fraction, Width: fraction, Height: fraction},
		{Name: "bottom_right", Label: "Bottom-Right", X: 1 - fraction, Y: 1 - fraction, Width: fraction, Height: fraction},
	}
}

// Bounds returns the region in pixels for a frame of the given size.
// Max is inclusive.
func (r Region) Bounds(width, height int) image.Rectangle {
	w, h := float64(width), float64(height)
	return image.Rect(int(r.X*w), int(r.Y*h), int((r.X+r.Width)*w), int((r.Y+r.Height)*h))
}

// Contains reports whether p lies inside the region, edges included
func (r Region) Contains(p Point, width, height int) bool {
	b := r.Bounds(width, height)
	return p.X >= float64(b.Min.X) && p.X <= float64(b.Max.X) &&
		p.Y >= float64(b.Min.Y) && p.Y <= float64(b.Max.Y)
}

// Validate checks the fractions
func (r Region) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("region name is required")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %q: width and height must be positive", r.Name)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > 1 || r.Y+r.Height > 1 {
		return fmt.Errorf("region %q: must lie within the frame (0-1)", r.Name)
	}
	return nil
}

// RegionTimer is the dwell state machine for one region.
//
//	idle --gaze enters--> dwelling --elapsed >= threshold--> flagged
//	any  --gaze leaves / other region / no gaze--> idle
type RegionTimer struct {
	Region  Region
	Start   time.Time // Zero when idle
	Flagged bool      // One-shot latch, cleared only by reset
}

// Active reports whether the timer is dwelling
func (t *RegionTimer) Active() bool {
	return !t.Start.IsZero()
}

// Elapsed returns the dwell time so far
func (t *RegionTimer) Elapsed(now time.Time) time.Duration {
	if t.Start.IsZero() {
		return 0
	}
	return now.Sub(t.Start)
}

func (t *RegionTimer) reset() {
	t.Start = time.Time{}
	t.Flagged = false
}

// observe advances a dwelling timer and reports whether the threshold was
// crossed for the first time.
func (t *RegionTimer) observe(now time.Time, threshold time.Duration) bool {
	if t.Start.IsZero() {
		t.Start = now
	}
	if t.Flagged || now.Sub(t.Start) < threshold {
		return false
	}
	t.Flagged = true
	return true
}

// RegionState is the per-region part of a GazeStatus
type RegionState struct {
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed"`
	Flagged bool          `json:"flagged"`
}

// GazeStatus is the display result of one dwell evaluation.
// It is not part of violation identity.
type GazeStatus struct {
	Status  string        `json:"status"`
	Active  string        `json:"active,omitempty"` // Region name being dwelt in
	Gaze    *Point        `json:"gaze,omitempty"`
	Regions []RegionState `json:"regions"`
}

// DwellTracker raises a one-shot violation when gaze stays in a region for
// the threshold. At most one region timer is active at any time.
type DwellTracker struct {
	timers    []RegionTimer
	threshold time.Duration
}

// NewDwellTracker creates a tracker over regions
func NewDwellTracker(regions []Region, threshold time.Duration) *DwellTracker {
	timers := make([]RegionTimer, len(regions))
	for i, r := range regions {
		timers[i] = RegionTimer{Region: r}
	}
	return &DwellTracker{timers: timers, threshold: threshold}
}

// Timers returns a copy of the region timers
func (d *DwellTracker) Timers() []RegionTimer {
	out := make([]RegionTimer, len(d.timers))
	copy(out, d.timers)
	return out
}

// Reset clears every timer and flag
func (d *DwellTracker) Reset() {
	for i := range d.timers {
		d.timers[i].reset()
	}
}

// Evaluate updates the timers for a gaze point (nil when unavailable) and
// returns the status and any new violations.
func (d *DwellTracker) Evaluate(gaze *Point, width, height int, now time.Time) (GazeStatus, []string) {
	if gaze == nil {
		d.Reset()
		return d.status(GazeStatusNotDetected, "", nil, now), nil
	}

	active := -1
	for i := range d.timers {
		if d.timers[i].Region.Contains(*gaze, width, height) {
			active = i
			break
		}
	}

	// Entering one region clears every other
	for i := range d.timers {
		if i != active {
			d.timers[i].reset()
		}
	}

	if active < 0 {
		return d.status(GazeStatusNormal, "", gaze, now), nil
	}

	t := &d.timers[active]
	var violations []string
	if t.observe(now, d.threshold) {
		violations = append(violations, GazeMessage(t.Region.Label))
	}
	return d.status("Looking "+t.Region.Label, t.Region.Name, gaze, now), violations
}

func (d *DwellTracker) status(text, active string, gaze *Point, now time.Time) GazeStatus {
	st := GazeStatus{
		Status:  text,
		Active:  active,
		Regions: make([]RegionState, len(d.timers)),
	}
	if gaze != nil {
		g := *gaze
		st.Gaze = &g
	}
	for i := range d.timers {
		st.Regions[i] = RegionState{
			Name:    d.timers[i].Region.Name,
			Elapsed: d.timers[i].Elapsed(now),
			Flagged: d.timers[i].Flagged,
		}
	}
	return st
}
