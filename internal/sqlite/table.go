package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// querier is the part of *sql.DB and *sql.Tx that reads use.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Read returns every row of table decoded against shape, in insertion
// order. Columns the shape declares but the table lacks, and stored values
// that do not fit their field, come back absent from the Record.
// Returns ErrTableNotFound if the table does not exist.
func (b *Backend) Read(ctx context.Context, table string, shape types.Shape) ([]types.Record, error) {
	if err := checkNames(table, shape); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	return readTable(ctx, db, table, shape)
}

func readTable(ctx context.Context, q querier, table string, shape types.Shape) ([]types.Record, error) {
	present, err := tableColumns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("read %s: %w", table, types.ErrTableNotFound)
	}

	var fields []types.Field
	cols := []string{"rowid"}
	for _, f := range shape.Fields {
		if present[f.Name] {
			fields = append(fields, f)
			cols = append(cols, f.Name)
		}
	}

	rows, err := q.QueryContext(ctx, selectSQL(table, cols))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		rec := make(types.Record, len(fields))
		for i, f := range fields {
			v, err := types.FromAny(f.Kind, f.Elem, raw[i+1])
			if err != nil {
				continue
			}
			rec[f.Name] = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

// tableColumns returns the column names of table; empty if it does not exist.
func tableColumns(ctx context.Context, q querier, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Replace builds shape's table in a shadow table inside one transaction,
// inserting each row under its own savepoint, then drops table and renames
// the shadow into place. Rows that violate a constraint are rolled back
// individually and reported. When Config.Backup is set, the current
// contents are first written to DataDir/backups/<table>-<unixnano>.jsonl.
func (b *Backend) Replace(ctx context.Context, table string, shape types.Shape, rows []types.Record) ([]types.RowFailure, error) {
	if err := checkNames(table, shape); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	if b.config.Backup {
		if err := b.backup(ctx, db, table); err != nil {
			return nil, fmt.Errorf("backup %s: %w", table, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	shadow := table + shadowSuffix
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(shadow)); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(shadow, shape)); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(shadow, shape))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var failures []types.RowFailure
	for i, row := range rows {
		args, err := encodeRow(shape, row)
		if err != nil {
			failures = append(failures, types.RowFailure{Row: i, Err: err})
			continue
		}
		if _, err := tx.ExecContext(ctx, "SAVEPOINT strata_row"); err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			failures = append(failures, types.RowFailure{Row: i, Err: err})
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO strata_row"); err != nil {
				return nil, err
			}
		}
		if _, err := tx.ExecContext(ctx, "RELEASE strata_row"); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(shadow), quote(table))); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", table, err)
	}
	return failures, nil
}

// encodeRow returns the insert arguments of row in shape's field order.
// Absent fields take their declared default, or NULL.
func encodeRow(shape types.Shape, row types.Record) ([]any, error) {
	args := make([]any, len(shape.Fields))
	for i, f := range shape.Fields {
		v, ok := row[f.Name]
		if !ok || !v.IsValid() {
			if !f.Default.IsValid() {
				continue
			}
			v = f.Default
		}
		if !f.Accepts(v) {
			return nil, fmt.Errorf("field %s: %#v into %s: %w", f.Name, v, f.Kind, types.ErrTypeMismatch)
		}
		arg, err := sqlValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		args[i] = arg
	}
	return args, nil
}

// sqlValue converts v to its column representation.
func sqlValue(v types.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch v.Kind() {
	case types.KindInt, types.KindLong:
		return v.Long(), nil
	case types.KindBool:
		if v.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case types.KindFloat:
		return float64(v.Float()), nil
	case types.KindDouble:
		return v.Double(), nil
	case types.KindString:
		return v.Str(), nil
	case types.KindList:
		data, err := json.Marshal(v.Any())
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("%s: %w", v.Kind(), types.ErrUnknownKind)
	}
}

// backup writes the raw rows of table, if it exists, to a JSONL file
// under DataDir/backups.
func (b *Backend) backup(ctx context.Context, q querier, table string) error {
	present, err := tableColumns(ctx, q, table)
	if err != nil || len(present) == 0 {
		return err
	}

	rows, err := q.QueryContext(ctx, "SELECT * FROM "+quote(table)+" ORDER BY rowid")
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	var records []json.RawMessage
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		obj := make(map[string]any, len(cols))
		for i, c := range cols {
			if bs, ok := raw[i].([]byte); ok {
				raw[i] = string(bs)
			}
			obj[c] = raw[i]
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	dir := filepath.Join(b.config.DataDir, backupsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%d.jsonl", table, time.Now().UnixNano())
	return writeJSONL(filepath.Join(dir, name), records)
}

// Backups returns the backup files written for table, oldest first.
func (b *Backend) Backups(table string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, err := b.conn(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(b.config.DataDir, backupsDir, table+"-*.jsonl"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		// table "a" must not pick up backups of "a-b".
		rest := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), table+"-"), ".jsonl")
		if strings.Trim(rest, "0123456789") == "" {
			out = append(out, m)
		}
	}
	return out, nil
}
