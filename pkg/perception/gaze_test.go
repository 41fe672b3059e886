package perception

import (
	"image"
	"testing"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

func TestEyeBox(t *testing.T) {
	tests := []struct {
		name   string
		center proctor.Point
		dist   float64
		want   image.Rectangle
	}{
		{"inside", proctor.Point{X: 100, Y: 100}, 100, image.Rect(70, 82, 130, 118)},
		{"clipped at origin", proctor.Point{X: 10, Y: 10}, 100, image.Rect(0, 0, 40, 28)},
		{"clipped to nothing", proctor.Point{X: -50, Y: 10}, 100, image.Rectangle{}},
		{"too small", proctor.Point{X: 100, Y: 100}, 10, image.Rectangle{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := eyeBox(tc.center, tc.dist, 640, 480); got != tc.want {
				t.Errorf("eyeBox: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	if _, ok := centroid(nil); ok {
		t.Error("empty contour has no centroid")
	}
	c, ok := centroid([]image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	if !ok || c.X != 5 || c.Y != 5 {
		t.Errorf("centroid: got %v, %v", c, ok)
	}
}

func TestAverageGaze(t *testing.T) {
	if _, ok := averageGaze(nil); ok {
		t.Error("no pupils means no gaze")
	}
	g, ok := averageGaze([]proctor.Point{{X: 10, Y: 20}, {X: 15, Y: 25}})
	if !ok || g.X != 12 || g.Y != 22 {
		t.Errorf("averageGaze: got %v, want (12, 22)", g)
	}
	g, _ = averageGaze([]proctor.Point{{X: 7.9, Y: 3.2}})
	if g.X != 7 || g.Y != 3 {
		t.Errorf("single pupil: got %v, want truncated (7, 3)", g)
	}
}
