package perception

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// ErrCameraClosed is returned by Next after Close or before Open
var ErrCameraClosed = errors.New("perception: camera not open")

// Camera captures frames from a webcam, video file or stream and encodes
// them as JPEG. It implements proctor.FrameSource.
// Next and Close must not be called concurrently.
type Camera struct {
	cfg    CameraConfig
	logger *slog.Logger

	mu  sync.Mutex
	cap *gocv.VideoCapture
	img gocv.Mat
	seq int64
}

// NewCamera creates an unopened camera
func NewCamera(cfg CameraConfig, logger *slog.Logger) (*Camera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Camera{cfg: cfg, logger: logger}, nil
}

// Open starts capture
func (c *Camera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cap != nil {
		return nil
	}

	var device interface{} = c.cfg.Device
	if idx, err := strconv.Atoi(c.cfg.Device); err == nil {
		device = idx
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("open camera %q: %w", c.cfg.Device, err)
	}
	if c.cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	}
	if c.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	}
	if c.cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(c.cfg.Framerate))
	}

	c.cap = vc
	c.img = gocv.NewMat()
	c.seq = 0
	c.logger.Info("camera opened",
		"device", c.cfg.Device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
	)
	return nil
}

// Next reads and encodes one frame. It returns io.EOF when the device or
// file has no more frames.
func (c *Camera) Next(ctx context.Context) (proctor.Frame, error) {
	if err := ctx.Err(); err != nil {
		return proctor.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return proctor.Frame{}, ErrCameraClosed
	}

	if ok := c.cap.Read(&c.img); !ok || c.img.Empty() {
		return proctor.Frame{}, io.EOF
	}
	captured := time.Now()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.img, []int{gocv.IMWriteJpegQuality, c.cfg.Quality})
	if err != nil {
		return proctor.Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// The buffer is released on return
	src := buf.GetBytes()
	jpeg := make([]byte, len(src))
	copy(jpeg, src)

	c.seq++
	return proctor.Frame{
		Seq:      c.seq,
		JPEG:     jpeg,
		Width:    c.img.Cols(),
		Height:   c.img.Rows(),
		Captured: captured,
	}, nil
}

// Close stops capture. It is safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.img.Close()
	c.cap = nil
	c.logger.Info("camera closed", "frames", c.seq)
	return err
}
