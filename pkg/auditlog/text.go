// Package auditlog persists proctoring session records: a human readable
// activity log, SQLite and PostgreSQL stores, and a Redis feed of violation
// events.
package auditlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

const (
	textTitle     = "AI-Based Online Exam Proctoring - Activity Log"
	textTimestamp = "15:04:05.000000"
)

// TextSink writes the activity log as plain text. The file is created on
// the first record, so an empty session leaves no file behind.
type TextSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// NewTextSink creates a sink writing to path
func NewTextSink(path string) *TextSink {
	return &TextSink{path: path}
}

// Path returns the log file path
func (s *TextSink) Path() string {
	return s.path
}

func (s *TextSink) open() error {
	if s.w != nil {
		return nil
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	fmt.Fprintf(s.w, "%s\n%s\n\n", textTitle, strings.Repeat("=", 50))
	return nil
}

// Append writes one record
func (s *TextSink) Append(ctx context.Context, rec proctor.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("activity log finalized")
	}
	if err := s.open(); err != nil {
		return err
	}

	r := rec.Result
	fmt.Fprintf(s.w, "Timestamp: %s\n", rec.Timestamp.Format(textTimestamp))
	fmt.Fprintf(s.w, "Faces: %d (%s)\n", r.FaceCount, r.FaceRemark)
	if r.HeadPose != nil {
		fmt.Fprintf(s.w, "Head Pose: %s (yaw %.1f, pitch %.1f, roll %.1f)\n",
			r.HeadPoseStatus, r.HeadPose.Yaw, r.HeadPose.Pitch, r.HeadPose.Roll)
	} else {
		fmt.Fprintf(s.w, "Head Pose: %s\n", r.HeadPoseStatus)
	}
	if r.Gaze != nil {
		fmt.Fprintf(s.w, "Gaze: %s\n", r.Gaze.Status)
	}
	if len(r.Objects) > 0 {
		labels := make([]string, len(r.Objects))
		for i, o := range r.Objects {
			labels[i] = fmt.Sprintf("%s (%.2f)", o.Label, o.Confidence)
		}
		fmt.Fprintf(s.w, "Objects: %s\n", strings.Join(labels, ", "))
	}
	fmt.Fprintf(s.w, "Audio Amplitude: %d\n", rec.AudioAmplitude)
	if !r.Violations.Empty() {
		fmt.Fprintf(s.w, "VIOLATIONS: %s\n", strings.Join(r.Violations.Messages(), "; "))
	}
	fmt.Fprintf(s.w, "%s\n", strings.Repeat("-", 30))
	return nil
}

// Finalize writes the summary and closes the file
func (s *TextSink) Finalize(ctx context.Context, sum proctor.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.open(); err != nil {
		return err
	}

	fmt.Fprintf(s.w, "\nSUMMARY:\nTotal Violation Incidents: %d\n", sum.TotalViolations)
	fmt.Fprintf(s.w, "Frames Processed: %d\n", sum.Frames)
	fmt.Fprintf(s.w, "Audio Alerts: %d\n", sum.AudioAlerts)
	fmt.Fprintf(s.w, "Duration: %s\n", sum.EndedAt.Sub(sum.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(s.w, "Ended: %s\n", sum.Reason)

	return errors.Join(s.w.Flush(), s.file.Close())
}
