// Package postgres stores QC flag changes in a Postgres audit table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

// Table is the audit table flag changes are copied into.
var Table = pgx.Identifier{"public", "qc_flags"}

var columns = []string{
	"run_id", "partition", "table_name", "report_id", "column_name",
	"stage", "check_name", "from_value", "to_code", "recorded_at",
}

// Schema creates the audit table when it does not exist.
const Schema = `CREATE TABLE IF NOT EXISTS public.qc_flags (
	run_id      TEXT NOT NULL,
	partition   TEXT NOT NULL,
	table_name  TEXT NOT NULL,
	report_id   TEXT NOT NULL,
	column_name TEXT NOT NULL,
	stage       TEXT NOT NULL,
	check_name  TEXT NOT NULL,
	from_value  TEXT NOT NULL,
	to_code     INTEGER NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`

// Copier is the bulk copy part of a pgx connection or pool.
type Copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error)
}

// Sink copies flag changes into Postgres.
// It implements pipeline.FlagSink.
type Sink struct {
	db       Copier
	attempts uint
	now      func() time.Time
	logger   *slog.Logger
}

// Connect opens a pool on url and makes sure the audit table exists.
func Connect(ctx context.Context, url string, retries uint, logger *slog.Logger) (*Sink, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create %s: %w", Table.Sanitize(), err)
	}
	return NewSink(pool, retries, time.Now, logger), pool, nil
}

// NewSink wraps db. now stamps recorded_at.
func NewSink(db Copier, retries uint, now func() time.Time, logger *slog.Logger) *Sink {
	return &Sink{db: db, attempts: retries + 1, now: now, logger: logger}
}

// WriteChanges copies changes in one COPY statement.
func (s *Sink) WriteChanges(ctx context.Context, changes []domain.FlagChange) error {
	if len(changes) == 0 {
		return nil
	}
	recorded := s.now().UTC()
	var count int64
	err := retry.Do(
		func() (err error) {
			count, err = s.db.CopyFrom(ctx, Table, columns, pgx.CopyFromSlice(len(changes), func(i int) ([]any, error) {
				c := changes[i]
				return []any{c.RunID, c.Partition, c.Table, c.ReportID, c.Column, c.Stage, c.Check, c.From, c.To, recorded}, nil
			}))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("copy flag changes: %w", err)
	}
	if int(count) != len(changes) {
		s.logger.Warn("flag changes partially copied", "copied", count, "changes", len(changes))
	} else {
		s.logger.Debug("flag changes copied", "copied", count)
	}
	return nil
}
