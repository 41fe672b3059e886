package perception

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// ErrNoLandmarks is returned for a face the detector gave no landmarks for
var ErrNoLandmarks = errors.New("perception: face has no landmarks")

// FaceDetector uses OpenCV's FaceDetectorYN (YuNet) for faces and its five
// landmarks, and derives head pose and gaze from them.
// It implements proctor.FaceProvider.
type FaceDetector struct {
	detector gocv.FaceDetectorYN
	config   FaceConfig
	logger   *slog.Logger
	mu       sync.Mutex // Protects inference and the decode cache

	// Last decoded frame, reused by Gaze for the same frame
	cacheSeq int64
	cache    gocv.Mat
}

// NewFaceDetector loads the YuNet model
func NewFaceDetector(cfg FaceConfig, logger *slog.Logger) (*FaceDetector, error) {
	if err := checkModel(cfg.ModelPath); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Input size is updated per image
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &FaceDetector{
		detector: detector,
		config:   cfg,
		logger:   logger,
		cache:    gocv.NewMat(),
	}, nil
}

// DetectFaces finds faces in the frame, with landmarks filled in
func (d *FaceDetector) DetectFaces(frame proctor.Frame) ([]proctor.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := d.decode(frame)
	if err != nil {
		return nil, err
	}

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	d.detector.Detect(img, &out)

	// YuNet rows have 15 columns:
	// 0-3 box (x, y, w, h), 4-13 five landmarks (x, y), 14 score
	faces := make([]proctor.Face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		f := proctor.Face{
			X:          float64(out.GetFloatAt(r, 0)),
			Y:          float64(out.GetFloatAt(r, 1)),
			W:          float64(out.GetFloatAt(r, 2)),
			H:          float64(out.GetFloatAt(r, 3)),
			Confidence: float64(out.GetFloatAt(r, 14)),
			Landmarks:  make(proctor.Landmarks, numLandmarks),
		}
		for i := 0; i < numLandmarks; i++ {
			f.Landmarks[i] = proctor.Point{
				X: float64(out.GetFloatAt(r, 4+2*i)),
				Y: float64(out.GetFloatAt(r, 5+2*i)),
			}
		}
		faces = append(faces, f)
	}

	if len(faces) > 0 {
		d.logger.Debug("yunet faces", "seq", frame.Seq, "count", len(faces))
	}
	return faces, nil
}

// Landmarks returns the points YuNet produced with the face
func (d *FaceDetector) Landmarks(frame proctor.Frame, face proctor.Face) (proctor.Landmarks, error) {
	if len(face.Landmarks) < numLandmarks {
		return nil, ErrNoLandmarks
	}
	return face.Landmarks, nil
}

// Pose estimates head orientation from landmarks
func (d *FaceDetector) Pose(frame proctor.Frame, lm proctor.Landmarks) (proctor.HeadPose, error) {
	return EstimatePose(lm)
}

// Gaze locates the pupils and returns their average position in frame pixels
func (d *FaceDetector) Gaze(frame proctor.Frame, lm proctor.Landmarks) (proctor.Point, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := d.decode(frame)
	if err != nil {
		return proctor.Point{}, false
	}
	return gazePoint(img, lm)
}

// decode returns the frame as a BGR Mat owned by the cache.
// Frames with Seq 0 are never served from the cache.
func (d *FaceDetector) decode(frame proctor.Frame) (gocv.Mat, error) {
	if frame.Seq != 0 && frame.Seq == d.cacheSeq && !d.cache.Empty() {
		return d.cache, nil
	}

	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("decode image: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("empty image")
	}

	d.cache.Close()
	d.cache = img
	d.cacheSeq = frame.Seq
	return d.cache, nil
}

// Close releases the detector resources
func (d *FaceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Close()
	d.detector.Close()
	return nil
}
