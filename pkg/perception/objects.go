package perception

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// ObjectDetection is one detected object with class info
type ObjectDetection struct {
	Box        image.Rectangle // Pixels
	ClassID    int             // COCO class ID
	Label      string          // COCO class name
	Confidence float64
}

// ObjectDetector uses YOLOv8 for general object detection.
// It implements proctor.ObjectProvider.
type ObjectDetector struct {
	net       gocv.Net
	config    ObjectConfig
	logger    *slog.Logger
	mu        sync.Mutex
	inputSize image.Point
}

// NewObjectDetector loads the YOLO ONNX model
func NewObjectDetector(cfg ObjectConfig, logger *slog.Logger) (*ObjectDetector, error) {
	if err := checkModel(cfg.ModelPath); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ObjectDetector{
		net:       net,
		config:    cfg,
		logger:    logger,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// DetectObjects returns the labelled objects in the frame, in detection order
func (d *ObjectDetector) DetectObjects(frame proctor.Frame) ([]proctor.DetectedObject, error) {
	dets, err := d.Detect(frame.JPEG)
	if err != nil {
		return nil, err
	}
	out := make([]proctor.DetectedObject, len(dets))
	for i, det := range dets {
		out[i] = proctor.DetectedObject{Label: det.Label, Confidence: det.Confidence}
	}
	return out, nil
}

// Detect finds objects in the JPEG image
func (d *ObjectDetector) Detect(jpeg []byte) ([]ObjectDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read yolo output: %w", err)
	}

	// YOLOv8 output is [1, 84, N]: 4 box values then 80 class scores per column
	dets := d.parse(data, output.Size(), float32(img.Cols()), float32(img.Rows()))
	if len(dets) > 0 {
		d.logger.Debug("yolo objects", "count", len(dets))
	}
	return dets, nil
}

// parse decodes a YOLOv8 output tensor and applies NMS
func (d *ObjectDetector) parse(data []float32, dims []int, imgW, imgH float32) []ObjectDetection {
	if len(dims) < 3 {
		return nil
	}
	attrs, n := dims[1], dims[2]
	if attrs < 5 || len(data) < attrs*n {
		return nil
	}

	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)
	sx := imgW / float32(d.config.InputWidth)
	sy := imgH / float32(d.config.InputHeight)

	for i := 0; i < n; i++ {
		best, bestID := float32(0), 0
		for c := 4; c < attrs; c++ {
			if score := data[c*n+i]; score > best {
				best, bestID = score, c-4
			}
		}
		if best < d.config.ConfidenceThresh {
			continue
		}

		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		confidences = append(confidences, best)
		classIDs = append(classIDs, bestID)
	}
	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.config.ConfidenceThresh, d.config.NMSThresh)
	dets := make([]ObjectDetection, 0, len(indices))
	for _, idx := range indices {
		dets = append(dets, ObjectDetection{
			Box:        boxes[idx],
			ClassID:    classIDs[idx],
			Label:      ClassName(classIDs[idx]),
			Confidence: float64(confidences[idx]),
		})
	}
	return dets
}

// Close releases the detector resources
func (d *ObjectDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.net.Close()
	return nil
}

// ClassName returns the COCO label for id, or "unknown"
func ClassName(id int) string {
	if id < 0 || id >= len(COCOClasses) {
		return "unknown"
	}
	return COCOClasses[id]
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
