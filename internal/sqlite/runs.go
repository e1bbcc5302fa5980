package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// timeFormat is RFC 3339 with fixed-width nanoseconds, so stored times
// sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun stores the summary of r in migration_runs.
func (b *Backend) RecordRun(ctx context.Context, r types.Report) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	run := types.RunOf(r)
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO migration_runs (
    run_id, entity, table_name, from_version, to_version, steps,
    rows_read, rows_written, row_failures, field_fallbacks, started_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Entity, run.Table, run.From, run.To, string(steps),
		run.RowsRead, run.RowsWritten, run.RowFailures, run.FieldFallbacks,
		run.StartedAt.UTC().Format(timeFormat), run.FinishedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Runs returns the recorded runs of entity, newest first.
func (b *Backend) Runs(ctx context.Context, entity string) ([]types.Run, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT run_id, entity, table_name, from_version, to_version, steps,
    rows_read, rows_written, row_failures, field_fallbacks, started_at, finished_at
FROM migration_runs WHERE entity = ? ORDER BY started_at DESC, rowid DESC`, entity)
	if err != nil {
		return nil, fmt.Errorf("runs of %s: %w", entity, err)
	}
	defer rows.Close()

	var out []types.Run
	for rows.Next() {
		var (
			run               types.Run
			steps             string
			started, finished string
		)
		if err := rows.Scan(&run.RunID, &run.Entity, &run.Table, &run.From, &run.To, &steps,
			&run.RowsRead, &run.RowsWritten, &run.RowFailures, &run.FieldFallbacks,
			&started, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(steps), &run.Steps); err != nil {
			return nil, fmt.Errorf("run %s steps: %w", run.RunID, err)
		}
		if run.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", run.RunID, err)
		}
		if run.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", run.RunID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
