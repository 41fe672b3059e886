// Package perception turns camera frames into the measurements the proctor
// core consumes: face count, landmarks, head pose, gaze point and labelled
// objects. Detection runs on OpenCV through gocv.
package perception

import (
	"errors"
	"fmt"
	"os"
)

// FaceConfig holds YuNet detector configuration
type FaceConfig struct {
	ModelPath        string  `yaml:"model_path"`   // Path to ONNX model
	ConfidenceThresh float64 `yaml:"confidence"`   // Minimum confidence (default 0.5)
	InputWidth       int     `yaml:"input_width"`  // Initial model input width
	InputHeight      int     `yaml:"input_height"` // Initial model input height
}

// DefaultFaceConfig returns production defaults for YuNet
func DefaultFaceConfig() FaceConfig {
	return FaceConfig{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// ObjectConfig holds YOLO detector configuration
type ObjectConfig struct {
	ModelPath        string  `yaml:"model_path"`
	ConfidenceThresh float32 `yaml:"confidence"`
	NMSThresh        float32 `yaml:"nms"`
	InputWidth       int     `yaml:"input_width"`
	InputHeight      int     `yaml:"input_height"`
}

// DefaultObjectConfig returns production defaults for YOLOv8n
func DefaultObjectConfig() ObjectConfig {
	return ObjectConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.4,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// CameraConfig selects and sizes the capture device
type CameraConfig struct {
	Device    string `yaml:"device"`    // Device index ("0") or file/stream URL
	Width     int    `yaml:"width"`     // Requested frame width, 0 = device default
	Height    int    `yaml:"height"`    // Requested frame height, 0 = device default
	Framerate int    `yaml:"framerate"` // Requested FPS, 0 = device default
	Quality   int    `yaml:"quality"`   // JPEG quality 1-100
}

// DefaultCameraConfig returns the first webcam at 640x480
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   85,
	}
}

// Validate checks the camera parameters
func (c CameraConfig) Validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("camera device is required"))
	}
	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, fmt.Errorf("camera size must be non-negative, got %dx%d", c.Width, c.Height))
	}
	if c.Framerate < 0 {
		errs = append(errs, fmt.Errorf("camera framerate must be non-negative, got %d", c.Framerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("jpeg quality must be 1-100, got %d", c.Quality))
	}
	return errors.Join(errs...)
}

func checkModel(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", path)
	}
	return nil
}
