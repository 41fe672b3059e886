package auditlog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies the embedded schema for dialect to db
func Migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("auditlog migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("auditlog migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("auditlog migrate: %w", err)
	}
	return nil
}

// recordRow is a Record flattened to table columns
type recordRow struct {
	SessionID       string
	Seq             int64
	RecordedAt      time.Time
	FaceCount       int
	HeadPoseStatus  string
	Yaw             *float64
	Pitch           *float64
	Roll            *float64
	GazeStatus      *string
	AudioAmplitude  int
	Violations      string // JSON array
	NewViolations   string // JSON array
	TotalViolations int
}

func flatten(rec proctor.Record) (recordRow, error) {
	violations, err := json.Marshal(rec.Result.Violations)
	if err != nil {
		return recordRow{}, err
	}
	newly := rec.NewViolations
	if newly == nil {
		newly = []string{}
	}
	newJSON, err := json.Marshal(newly)
	if err != nil {
		return recordRow{}, err
	}

	row := recordRow{
		SessionID:       rec.SessionID,
		Seq:             rec.Seq,
		RecordedAt:      rec.Timestamp.UTC(),
		FaceCount:       rec.Result.FaceCount,
		HeadPoseStatus:  rec.Result.HeadPoseStatus,
		AudioAmplitude:  rec.AudioAmplitude,
		Violations:      string(violations),
		NewViolations:   string(newJSON),
		TotalViolations: rec.TotalViolations,
	}
	if p := rec.Result.HeadPose; p != nil {
		row.Yaw, row.Pitch, row.Roll = &p.Yaw, &p.Pitch, &p.Roll
	}
	if g := rec.Result.Gaze; g != nil {
		row.GazeStatus = &g.Status
	}
	return row, nil
}

func (r recordRow) values() []any {
	return []any{
		r.SessionID, r.Seq, r.RecordedAt, r.FaceCount, r.HeadPoseStatus,
		r.Yaw, r.Pitch, r.Roll, r.GazeStatus, r.AudioAmplitude,
		r.Violations, r.NewViolations, r.TotalViolations,
	}
}

var recordColumns = []string{
	"session_id", "seq", "recorded_at", "face_count", "head_pose_status",
	"yaw", "pitch", "roll", "gaze_status", "audio_amplitude",
	"violations", "new_violations", "total_violations",
}

// SessionRow is a stored session summary
type SessionRow struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Frames          int64     `json:"frames"`
	TotalViolations int       `json:"total_violations"`
	AudioAlerts     int       `json:"audio_alerts"`
	Reason          string    `json:"reason"`
	ViolationFrames int       `json:"violation_frames"` // Records that raised a new violation
}
