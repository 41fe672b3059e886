package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// SQLiteStore persists sessions to a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	buf    buffer
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := path + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := Migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("audit database ready", "driver", "sqlite3", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Append buffers rec until Finalize
func (s *SQLiteStore) Append(ctx context.Context, rec proctor.Record) error {
	return s.buf.append(rec)
}

// Finalize writes the session and its records in one transaction
func (s *SQLiteStore) Finalize(ctx context.Context, sum proctor.Summary) error {
	rows, ok := s.buf.take()
	if !ok {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO proctor_sessions (id, started_at, ended_at, frames, total_violations, audio_alerts, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID, sum.StartedAt.UTC(), sum.EndedAt.UTC(), sum.Frames,
		sum.TotalViolations, sum.AudioAlerts, sum.Reason)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(recordColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO proctor_records (%s) VALUES (%s)",
		strings.Join(recordColumns, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.values()...); err != nil {
			return fmt.Errorf("insert record %d: %w", row.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("session stored", "session", sum.SessionID, "records", len(rows))
	return nil
}

// Sessions returns up to limit stored sessions, newest first
func (s *SQLiteStore) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.ended_at, s.frames, s.total_violations, s.audio_alerts, s.reason,
			(SELECT COUNT(*) FROM proctor_records r
			 WHERE r.session_id = s.id AND r.new_violations != '[]')
		FROM proctor_sessions s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.Frames, &r.TotalViolations, &r.AudioAlerts, &r.Reason, &r.ViolationFrames); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
