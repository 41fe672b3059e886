package auditlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

var testStart = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func testRecord(seq int64, violations ...string) proctor.Record {
	set := proctor.NewViolationSet(violations...)
	return proctor.Record{
		SessionID: "s-1",
		Seq:       seq,
		Timestamp: testStart.Add(time.Duration(seq) * 100 * time.Millisecond),
		Result: proctor.FrameResult{
			FaceCount:      1,
			FaceRemark:     "Single face",
			HeadPoseStatus: "Forward",
			HeadPose:       &proctor.HeadPose{Yaw: 1.5, Pitch: -2, Roll: 0},
			Violations:     set,
		},
		NewViolations:   set.Messages(),
		TotalViolations: set.Len(),
		AudioAmplitude:  120,
	}
}

func testSummary(total int) proctor.Summary {
	return proctor.Summary{
		SessionID:       "s-1",
		StartedAt:       testStart,
		EndedAt:         testStart.Add(3 * time.Second),
		Frames:          2,
		TotalViolations: total,
		Reason:          "stopped",
	}
}

func TestTextSink_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.txt")
	sink := NewTextSink(path)
	ctx := context.Background()

	if err := sink.Append(ctx, testRecord(0)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(ctx, testRecord(1, proctor.MsgMultipleFaces)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Finalize(ctx, testSummary(1)); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	header := "AI-Based Online Exam Proctoring - Activity Log\n" + strings.Repeat("=", 50) + "\n\n"
	if !strings.HasPrefix(got, header) {
		t.Errorf("missing header:\n%s", got)
	}

	wants := []string{
		"Timestamp: 09:30:00.000000\n",
		"Timestamp: 09:30:00.100000\n",
		"VIOLATIONS: Multiple faces detected\n",
		strings.Repeat("-", 30) + "\n",
		"\nSUMMARY:\nTotal Violation Incidents: 1\n",
	}
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q", w)
		}
	}
	if n := strings.Count(got, "VIOLATIONS:"); n != 1 {
		t.Errorf("VIOLATIONS lines: got %d, want 1", n)
	}
	if strings.Index(got, "SUMMARY:") < strings.LastIndex(got, "Timestamp:") {
		t.Error("summary must come after every record")
	}
}

func TestTextSink_FinalizeOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.txt")
	sink := NewTextSink(path)
	ctx := context.Background()

	if err := sink.Finalize(ctx, testSummary(0)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Finalize(ctx, testSummary(5)); err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if err := sink.Append(ctx, testRecord(3)); err == nil {
		t.Error("expected append after finalize to fail")
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "SUMMARY:"); n != 1 {
		t.Errorf("summary written %d times", n)
	}
}

func TestTextSink_CreateError(t *testing.T) {
	sink := NewTextSink(filepath.Join(t.TempDir(), "missing", "activity.txt"))
	if err := sink.Append(context.Background(), testRecord(0)); err == nil {
		t.Error("expected error for missing directory")
	}
}
