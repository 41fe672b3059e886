package perception

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// MockCamera yields a flat synthetic frame at a fixed interval.
// It is used for demos and for running without a camera.
type MockCamera struct {
	width    int
	height   int
	interval time.Duration
	limit    int64 // 0 = unlimited

	mu   sync.Mutex
	jpeg []byte
	seq  int64
}

// NewMockCamera creates a mock camera. limit 0 never ends the stream.
func NewMockCamera(width, height int, interval time.Duration, limit int64) *MockCamera {
	return &MockCamera{width: width, height: height, interval: interval, limit: limit}
}

// Open encodes the synthetic frame
func (m *MockCamera) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(60, 60, 60, 0), m.height, m.width, gocv.MatTypeCV8UC3)
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return fmt.Errorf("encode mock frame: %w", err)
	}
	defer buf.Close()
	m.jpeg = append([]byte(nil), buf.GetBytes()...)
	m.seq = 0
	return nil
}

// Next waits one interval and returns the next frame
func (m *MockCamera) Next(ctx context.Context) (proctor.Frame, error) {
	if m.interval > 0 {
		t := time.NewTimer(m.interval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return proctor.Frame{}, ctx.Err()
		case <-t.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && m.seq >= m.limit {
		return proctor.Frame{}, io.EOF
	}
	m.seq++
	return proctor.Frame{
		Seq:      m.seq,
		JPEG:     m.jpeg,
		Width:    m.width,
		Height:   m.height,
		Captured: time.Now(),
	}, nil
}

// Close is a no-op
func (m *MockCamera) Close() error {
	return nil
}

// Scenario is one phase of scripted perception
type Scenario struct {
	Frames  int              // Length of the phase
	Faces   int              // Face count reported
	Pose    proctor.HeadPose // Pose for a single face
	Gaze    *proctor.Point   // Gaze as fractions of the frame, nil = not found
	Objects []string         // Object labels reported
}

// DefaultScenarios walks through each violation kind
func DefaultScenarios() []Scenario {
	center := &proctor.Point{X: 0.5, Y: 0.5}
	bottomLeft := &proctor.Point{X: 0.1, Y: 0.9}
	return []Scenario{
		{Frames: 60, Faces: 1, Gaze: center},
		{Frames: 30, Faces: 1, Pose: proctor.HeadPose{Yaw: 45}, Gaze: center},
		{Frames: 30, Faces: 0},
		{Frames: 30, Faces: 2},
		{Frames: 30, Faces: 1, Gaze: center, Objects: []string{"cell phone"}},
		{Frames: 250, Faces: 1, Gaze: bottomLeft},
	}
}

// ScriptedPerception replays scenarios by frame number, looping at the
// end. It implements proctor.FaceProvider and proctor.ObjectProvider.
type ScriptedPerception struct {
	scenarios []Scenario
	total     int
}

// NewScriptedPerception creates a provider over scenarios
func NewScriptedPerception(scenarios []Scenario) *ScriptedPerception {
	total := 0
	for _, s := range scenarios {
		total += s.Frames
	}
	return &ScriptedPerception{scenarios: scenarios, total: total}
}

func (p *ScriptedPerception) at(frame proctor.Frame) Scenario {
	if p.total == 0 {
		return Scenario{}
	}
	pos := int((frame.Seq - 1) % int64(p.total))
	if pos < 0 {
		pos = 0
	}
	for _, s := range p.scenarios {
		if pos < s.Frames {
			return s
		}
		pos -= s.Frames
	}
	return p.scenarios[len(p.scenarios)-1]
}

// DetectFaces reports the scenario face count
func (p *ScriptedPerception) DetectFaces(frame proctor.Frame) ([]proctor.Face, error) {
	s := p.at(frame)
	faces := make([]proctor.Face, s.Faces)
	for i := range faces {
		faces[i] = proctor.Face{Confidence: 1, Landmarks: proctor.Landmarks{{}}}
	}
	return faces, nil
}

// Landmarks returns a placeholder point set
func (p *ScriptedPerception) Landmarks(frame proctor.Frame, face proctor.Face) (proctor.Landmarks, error) {
	return face.Landmarks, nil
}

// Pose returns the scenario pose
func (p *ScriptedPerception) Pose(frame proctor.Frame, lm proctor.Landmarks) (proctor.HeadPose, error) {
	return p.at(frame).Pose, nil
}

// Gaze returns the scenario gaze scaled to the frame
func (p *ScriptedPerception) Gaze(frame proctor.Frame, lm proctor.Landmarks) (proctor.Point, bool) {
	g := p.at(frame).Gaze
	if g == nil {
		return proctor.Point{}, false
	}
	return proctor.Point{X: g.X * float64(frame.Width), Y: g.Y * float64(frame.Height)}, true
}

// DetectObjects returns the scenario objects
func (p *ScriptedPerception) DetectObjects(frame proctor.Frame) ([]proctor.DetectedObject, error) {
	labels := p.at(frame).Objects
	out := make([]proctor.DetectedObject, len(labels))
	for i, l := range labels {
		out[i] = proctor.DetectedObject{Label: l, Confidence: 1}
	}
	return out, nil
}
