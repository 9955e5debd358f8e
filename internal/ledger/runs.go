package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const runColumns = `id, script_name, process_duration, process_count, insert_count,
	update_count, delete_count, process_timestamp, status, failed_reason`

// RecordRun appends one audit row for a stage execution. Rows are append-only
// and written regardless of whether the run succeeded.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	timestamp := run.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	return s.execWithoutResultRetry(ctx, `
INSERT INTO script_process_record
	(script_name, process_duration, process_count, insert_count, update_count, delete_count, process_timestamp, status, failed_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ScriptName, run.Duration.Seconds(),
		run.ProcessCount, run.InsertCount, run.UpdateCount, run.DeleteCount,
		timestamp.UTC().Format(time.RFC3339Nano), string(run.Status), nullableString(run.FailedReason))
}

// RecentRuns returns the latest audit rows, newest first, optionally filtered
// to a single stage name.
func (s *Store) RecentRuns(ctx context.Context, scriptName string, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM script_process_record", runColumns)
	args := make([]any, 0, 2)
	if scriptName != "" {
		query += " WHERE script_name = ?"
		args = append(args, scriptName)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run       Run
		duration  sql.NullFloat64
		processed sql.NullInt64
		inserted  sql.NullInt64
		updated   sql.NullInt64
		deleted   sql.NullInt64
		timestamp sql.NullString
		status    string
		reason    sql.NullString
	)
	if err := scanner.Scan(
		&run.ID, &run.ScriptName, &duration,
		&processed, &inserted, &updated, &deleted,
		&timestamp, &status, &reason,
	); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Duration = time.Duration(duration.Float64 * float64(time.Second))
	run.ProcessCount = int(processed.Int64)
	run.InsertCount = int(inserted.Int64)
	run.UpdateCount = int(updated.Int64)
	run.DeleteCount = int(deleted.Int64)
	if timestamp.Valid {
		if t, err := parseTimeString(timestamp.String); err == nil {
			run.Timestamp = t
		}
	}
	run.Status = RunStatus(status)
	run.FailedReason = reason.String
	return &run, nil
}
