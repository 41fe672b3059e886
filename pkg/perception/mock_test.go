package perception

import (
	"testing"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

func TestScriptedPerception_Phases(t *testing.T) {
	p := NewScriptedPerception([]Scenario{
		{Frames: 2, Faces: 1, Gaze: &proctor.Point{X: 0.5, Y: 0.5}},
		{Frames: 1, Faces: 0, Objects: []string{"book"}},
	})
	frame := func(seq int64) proctor.Frame {
		return proctor.Frame{Seq: seq, Width: 640, Height: 480}
	}

	tests := []struct {
		seq     int64
		faces   int
		objects int
	}{
		{1, 1, 0},
		{2, 1, 0},
		{3, 0, 1},
		{4, 1, 0}, // loops
	}

	for _, tc := range tests {
		faces, _ := p.DetectFaces(frame(tc.seq))
		objs, _ := p.DetectObjects(frame(tc.seq))
		if len(faces) != tc.faces || len(objs) != tc.objects {
			t.Errorf("seq %d: %d faces, %d objects; want %d, %d", tc.seq, len(faces), len(objs), tc.faces, tc.objects)
		}
	}

	g, ok := p.Gaze(frame(1), nil)
	if !ok || g.X != 320 || g.Y != 240 {
		t.Errorf("gaze: got %v, %v", g, ok)
	}
	if _, ok := p.Gaze(frame(3), nil); ok {
		t.Error("no gaze in a phase without one")
	}
}

func TestScriptedPerception_DrivesSnapshot(t *testing.T) {
	p := NewScriptedPerception([]Scenario{{Frames: 1, Faces: 1, Pose: proctor.HeadPose{Yaw: 40}}})
	snap := proctor.BuildSnapshot(proctor.Frame{Seq: 1, Width: 640, Height: 480}, p, p, proctor.Frame{}.Captured)
	if snap.FaceCount != 1 || snap.Pose == nil || snap.Pose.Yaw != 40 {
		t.Errorf("snapshot: %+v", snap)
	}
}
