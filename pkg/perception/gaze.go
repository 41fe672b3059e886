package perception

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// Eye box size in units of eye distance
const (
	eyeBoxHalfWidth  = 0.3
	eyeBoxHalfHeight = 0.18
	minEyeBoxSide    = 6    // Pixels
	minPupilArea     = 10.0 // Contour area below which no pupil is reported
)

// eyeBox returns the crop around an eye center, clipped to the frame.
// The result is empty when the clipped box is too small to search.
func eyeBox(center proctor.Point, eyeDist float64, width, height int) image.Rectangle {
	hw := eyeDist * eyeBoxHalfWidth
	hh := eyeDist * eyeBoxHalfHeight
	r := image.Rect(
		int(math.Round(center.X-hw)), int(math.Round(center.Y-hh)),
		int(math.Round(center.X+hw)), int(math.Round(center.Y+hh)),
	).Intersect(image.Rect(0, 0, width, height))
	if r.Dx() < minEyeBoxSide || r.Dy() < minEyeBoxSide {
		return image.Rectangle{}
	}
	return r
}

// centroid returns the mean of pts
func centroid(pts []image.Point) (proctor.Point, bool) {
	if len(pts) == 0 {
		return proctor.Point{}, false
	}
	var sx, sy float64
	for _, p := range pts {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	n := float64(len(pts))
	return proctor.Point{X: sx / n, Y: sy / n}, true
}

// averageGaze combines per-eye pupil positions into one gaze point,
// truncated to whole pixels.
func averageGaze(pupils []proctor.Point) (proctor.Point, bool) {
	if len(pupils) == 0 {
		return proctor.Point{}, false
	}
	var sx, sy float64
	for _, p := range pupils {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pupils))
	return proctor.Point{X: math.Floor(sx / n), Y: math.Floor(sy / n)}, true
}

// gazePoint locates both pupils in img and averages them
func gazePoint(img gocv.Mat, lm proctor.Landmarks) (proctor.Point, bool) {
	if len(lm) < numLandmarks {
		return proctor.Point{}, false
	}
	re, le := lm[lmRightEye], lm[lmLeftEye]
	eyeDist := math.Hypot(le.X-re.X, le.Y-re.Y)
	if eyeDist < minEyeDistance {
		return proctor.Point{}, false
	}

	var pupils []proctor.Point
	for _, eye := range []proctor.Point{re, le} {
		box := eyeBox(eye, eyeDist, img.Cols(), img.Rows())
		if box.Empty() {
			continue
		}
		if p, ok := pupilCenter(img, box); ok {
			pupils = append(pupils, p)
		}
	}
	return averageGaze(pupils)
}

// pupilCenter finds the darkest blob in box and returns its center in
// frame coordinates.
func pupilCenter(img gocv.Mat, box image.Rectangle) (proctor.Point, bool) {
	eye := img.Region(box)
	defer eye.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(eye, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Erode(mask, &mask, kernel)
	gocv.Dilate(mask, &mask, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	best, bestArea := -1, 0.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 || bestArea < minPupilArea {
		return proctor.Point{}, false
	}

	c, ok := centroid(contours.At(best).ToPoints())
	if !ok {
		return proctor.Point{}, false
	}
	return proctor.Point{X: float64(box.Min.X) + c.X, Y: float64(box.Min.Y) + c.Y}, true
}
