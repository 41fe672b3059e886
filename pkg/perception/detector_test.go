package perception

import (
	"testing"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

func TestNewFaceDetector_InvalidPath(t *testing.T) {
	cfg := DefaultFaceConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"
	if _, err := NewFaceDetector(cfg, nil); err == nil {
		t.Error("Expected error for invalid model path")
	}
}

func TestNewObjectDetector_InvalidPath(t *testing.T) {
	cfg := DefaultObjectConfig()
	cfg.ModelPath = "/nonexistent/path/yolo.onnx"
	if _, err := NewObjectDetector(cfg, nil); err == nil {
		t.Error("Expected error for invalid model path")
	}
}

func TestFaceDetector_Landmarks(t *testing.T) {
	d := &FaceDetector{}
	if _, err := d.Landmarks(proctor.Frame{}, proctor.Face{}); err == nil {
		t.Error("expected error for face without landmarks")
	}
	lm, err := d.Landmarks(proctor.Frame{}, proctor.Face{Landmarks: frontal()})
	if err != nil || len(lm) != numLandmarks {
		t.Errorf("Landmarks: %v, %d points", err, len(lm))
	}
}

func TestObjectDetector_Parse(t *testing.T) {
	d := &ObjectDetector{config: ObjectConfig{
		ConfidenceThresh: 0.5,
		NMSThresh:        0.4,
		InputWidth:       640,
		InputHeight:      640,
	}}

	// Three candidates, 4 box values + 80 class scores each, column-major
	const n = 3
	attrs := 4 + len(COCOClasses)
	data := make([]float32, attrs*n)
	set := func(i int, cx, cy, w, h float32, class int, score float32) {
		data[0*n+i], data[1*n+i], data[2*n+i], data[3*n+i] = cx, cy, w, h
		data[(4+class)*n+i] = score
	}
	set(0, 100, 100, 50, 50, 67, 0.9)  // cell phone
	set(1, 400, 400, 80, 120, 73, 0.8) // book
	set(2, 300, 300, 40, 40, 56, 0.3)  // chair, below threshold

	dets := d.parse(data, []int{1, attrs, n}, 640, 640)
	if len(dets) != 2 {
		t.Fatalf("detections: got %d, want 2", len(dets))
	}

	labels := map[string]bool{}
	for _, det := range dets {
		labels[det.Label] = true
	}
	if !labels["cell phone"] || !labels["book"] {
		t.Errorf("labels: %v", labels)
	}
}

func TestObjectDetector_ParseMalformed(t *testing.T) {
	d := &ObjectDetector{config: DefaultObjectConfig()}
	if dets := d.parse(nil, []int{1, 84}, 640, 480); dets != nil {
		t.Error("expected nil for short dims")
	}
	if dets := d.parse(make([]float32, 10), []int{1, 84, 100}, 640, 480); dets != nil {
		t.Error("expected nil for short data")
	}
}

func TestClassName(t *testing.T) {
	if ClassName(67) != "cell phone" || ClassName(0) != "person" {
		t.Error("unexpected COCO mapping")
	}
	if ClassName(-1) != "unknown" || ClassName(80) != "unknown" {
		t.Error("out of range ids must map to unknown")
	}
}

func TestCameraConfig_Validate(t *testing.T) {
	if err := DefaultCameraConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	cfg := DefaultCameraConfig()
	cfg.Device = ""
	cfg.Quality = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}
