package perception

import (
	"errors"
	"math"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// YuNet landmark order
const (
	lmRightEye = iota
	lmLeftEye
	lmNose
	lmRightMouth
	lmLeftMouth
	numLandmarks
)

// Geometry of a frontal face, in units of eye distance
const (
	noseYawSpan      = 0.6  // Nose offset along the eye line at 90 degrees yaw
	nosePitchNeutral = 0.55 // Nose position between eye line (0) and mouth line (1)
	nosePitchSpan    = 0.45
	minEyeDistance   = 4.0 // Pixels
)

// ErrDegeneratePose is returned when the landmarks cannot support a pose
var ErrDegeneratePose = errors.New("perception: degenerate landmark geometry")

// EstimatePose approximates head orientation from the five YuNet landmarks.
//
// Yaw follows the nose offset along the eye line, pitch the nose position
// between the eye line and the mouth line, roll the eye line angle. Positive
// yaw is toward image right, positive pitch is head down.
func EstimatePose(lm proctor.Landmarks) (proctor.HeadPose, error) {
	if len(lm) < numLandmarks {
		return proctor.HeadPose{}, ErrDegeneratePose
	}
	re, le, nose := lm[lmRightEye], lm[lmLeftEye], lm[lmNose]
	mouth := midpoint(lm[lmRightMouth], lm[lmLeftMouth])
	eyes := midpoint(re, le)

	ex, ey := le.X-re.X, le.Y-re.Y
	eyeDist := math.Hypot(ex, ey)
	if eyeDist < minEyeDistance {
		return proctor.HeadPose{}, ErrDegeneratePose
	}

	// Unit vectors along the eye line and perpendicular to it (image down)
	ux, uy := ex/eyeDist, ey/eyeDist
	vx, vy := -uy, ux

	nx, ny := nose.X-eyes.X, nose.Y-eyes.Y
	mx, my := mouth.X-eyes.X, mouth.Y-eyes.Y

	eyeToMouth := mx*vx + my*vy
	if eyeToMouth < minEyeDistance/2 {
		return proctor.HeadPose{}, ErrDegeneratePose
	}

	along := (nx*ux + ny*uy) / eyeDist
	down := (nx*vx + ny*vy) / eyeToMouth

	return proctor.HeadPose{
		Yaw:   degrees(math.Asin(clamp(along/noseYawSpan, -1, 1))),
		Pitch: degrees(math.Asin(clamp((down-nosePitchNeutral)/nosePitchSpan, -1, 1))),
		Roll:  degrees(math.Atan2(ey, ex)),
	}, nil
}

func midpoint(a, b proctor.Point) proctor.Point {
	return proctor.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
