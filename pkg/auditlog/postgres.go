package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// PostgresStore persists sessions to PostgreSQL. Records are bulk loaded
// with COPY at Finalize.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	buf    buffer
}

// OpenPostgres connects to dsn and applies the schema
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = Migrate(ctx, db, goose.DialectPostgres, "postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("audit database ready", "driver", "postgres", "host", cfg.ConnConfig.Host)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Append buffers rec until Finalize
func (s *PostgresStore) Append(ctx context.Context, rec proctor.Record) error {
	return s.buf.append(rec)
}

// Finalize writes the session row and copies its records in one transaction
func (s *PostgresStore) Finalize(ctx context.Context, sum proctor.Summary) error {
	rows, ok := s.buf.take()
	if !ok {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO proctor_sessions (id, started_at, ended_at, frames, total_violations, audio_alerts, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sum.SessionID, sum.StartedAt, sum.EndedAt, sum.Frames,
			sum.TotalViolations, sum.AudioAlerts, sum.Reason)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			v := rows[i].values()
			// jsonb columns take raw JSON
			v[10] = json.RawMessage(rows[i].Violations)
			v[11] = json.RawMessage(rows[i].NewViolations)
			return v, nil
		})
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"proctor_records"}, recordColumns, src); err != nil {
			return fmt.Errorf("copy records: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("session stored", "session", sum.SessionID, "records", len(rows))
	return nil
}

// Sessions returns up to limit stored sessions, newest first
func (s *PostgresStore) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.started_at, s.ended_at, s.frames, s.total_violations, s.audio_alerts, s.reason,
			(SELECT COUNT(*) FROM proctor_records r
			 WHERE r.session_id = s.id AND jsonb_array_length(r.new_violations) > 0)
		FROM proctor_sessions s ORDER BY s.started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionRow, error) {
		var r SessionRow
		err := row.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.Frames, &r.TotalViolations, &r.AudioAlerts, &r.Reason, &r.ViolationFrames)
		return r, err
	})
}

// Close closes the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
