package proctor

import (
	"context"
	"time"
)

// Point is a position in frame pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HeadPose holds head orientation angles in degrees
type HeadPose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// DetectedObject is one labelled object detection
type DetectedObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Frame is one captured camera image.
// The core never decodes it; providers do.
type Frame struct {
	Seq      int64     // Monotonic frame number within the session
	JPEG     []byte    // Encoded image
	Width    int       // Pixels
	Height   int       // Pixels
	Captured time.Time // Capture time
}

// Face is an opaque face detection handed back to the provider that made it
type Face struct {
	X, Y, W, H float64 // Bounding box in pixels
	Confidence float64
	Landmarks  Landmarks // May be pre-populated by the detector
}

// Landmarks is the set of facial key points for one face
type Landmarks []Point

// Snapshot is the set of perceptual measurements computed from one frame.
type Snapshot struct {
	Timestamp   time.Time        `json:"timestamp"`
	FrameWidth  int              `json:"frame_width"`
	FrameHeight int              `json:"frame_height"`
	FaceCount   int              `json:"face_count"`
	Pose        *HeadPose        `json:"pose,omitempty"` // Only when FaceCount == 1 and solvable
	Gaze        *Point           `json:"gaze,omitempty"` // Only when FaceCount == 1 and pupils found
	Objects     []DetectedObject `json:"objects,omitempty"`
}

// Normalize enforces that pose and gaze are only present for a single face.
func (s *Snapshot) Normalize() {
	if s.FaceCount != 1 {
		s.Pose = nil
		s.Gaze = nil
	}
	if s.FaceCount < 0 {
		s.FaceCount = 0
	}
}

// FrameSource yields camera frames.
// Next returning an error ends the session's frame loop.
type FrameSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// FaceProvider detects faces and derives pose and gaze from landmarks
type FaceProvider interface {
	DetectFaces(frame Frame) ([]Face, error)
	Landmarks(frame Frame, face Face) (Landmarks, error)
	Pose(frame Frame, lm Landmarks) (HeadPose, error)
	Gaze(frame Frame, lm Landmarks) (Point, bool)
}

// ObjectProvider detects labelled objects in a frame
type ObjectProvider interface {
	DetectObjects(frame Frame) ([]DetectedObject, error)
}

// BuildSnapshot queries the providers for one frame.
//
// Provider failures never fail the frame: a face detection error counts as
// no face, an object detection error as no objects, a landmark or pose error
// as pose unavailable. objects may be nil.
func BuildSnapshot(frame Frame, faces FaceProvider, objects ObjectProvider, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:   now,
		FrameWidth:  frame.Width,
		FrameHeight: frame.Height,
	}

	if objects != nil {
		if objs, err := objects.DetectObjects(frame); err == nil {
			snap.Objects = objs
		}
	}

	if faces == nil {
		return snap
	}
	detected, err := faces.DetectFaces(frame)
	if err != nil {
		return snap
	}
	snap.FaceCount = len(detected)
	if snap.FaceCount != 1 {
		return snap
	}

	lm, err := faces.Landmarks(frame, detected[0])
	if err != nil || len(lm) == 0 {
		return snap
	}
	if pose, err := faces.Pose(frame, lm); err == nil {
		snap.Pose = &pose
	}
	if gaze, ok := faces.Gaze(frame, lm); ok {
		snap.Gaze = &gaze
	}
	return snap
}
