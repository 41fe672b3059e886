package proctor

import (
	"errors"
	"testing"
	"time"
)

func TestBuildSnapshot_ProviderFailures(t *testing.T) {
	frame := Frame{Width: testWidth, Height: testHeight}
	now := time.Unix(10, 0)
	pose := HeadPose{Yaw: 5}
	gaze := Point{X: 10, Y: 20}

	tests := []struct {
		name      string
		faces     *fakeFaces
		objects   ObjectProvider
		wantFaces int
		wantPose  bool
		wantGaze  bool
		wantObjs  int
	}{
		{"all good", &fakeFaces{count: 1, pose: &pose, gaze: &gaze}, &fakeObjects{labels: []string{"book"}}, 1, true, true, 1},
		{"detect error is no face", &fakeFaces{count: 1, detectErr: errors.New("boom")}, nil, 0, false, false, 0},
		{"object error is no objects", &fakeFaces{count: 1, pose: &pose}, &fakeObjects{err: errors.New("boom")}, 1, true, false, 0},
		{"pose error is unavailable", &fakeFaces{count: 1, gaze: &gaze}, nil, 1, false, true, 0},
		{"two faces skip pose and gaze", &fakeFaces{count: 2, pose: &pose, gaze: &gaze}, nil, 2, false, false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := BuildSnapshot(frame, tc.faces, tc.objects, now)
			if snap.FaceCount != tc.wantFaces {
				t.Errorf("faces: got %d, want %d", snap.FaceCount, tc.wantFaces)
			}
			if (snap.Pose != nil) != tc.wantPose {
				t.Errorf("pose present: got %v, want %v", snap.Pose != nil, tc.wantPose)
			}
			if (snap.Gaze != nil) != tc.wantGaze {
				t.Errorf("gaze present: got %v, want %v", snap.Gaze != nil, tc.wantGaze)
			}
			if len(snap.Objects) != tc.wantObjs {
				t.Errorf("objects: got %d, want %d", len(snap.Objects), tc.wantObjs)
			}
			if !snap.Timestamp.Equal(now) || snap.FrameWidth != testWidth {
				t.Errorf("frame metadata not carried: %+v", snap)
			}
		})
	}
}

func TestSnapshot_Normalize(t *testing.T) {
	s := Snapshot{FaceCount: 2, Pose: &HeadPose{}, Gaze: &Point{}}
	s.Normalize()
	if s.Pose != nil || s.Gaze != nil {
		t.Error("pose and gaze must be dropped for multiple faces")
	}
	s = Snapshot{FaceCount: -1}
	s.Normalize()
	if s.FaceCount != 0 {
		t.Errorf("negative face count not clamped: %d", s.FaceCount)
	}
}
