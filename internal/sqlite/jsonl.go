package sqlite

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// readJSONL reads a JSONL file and returns each non-empty, parseable line.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, _, err := scanJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// scanJSONL splits r into JSON lines. Blank lines are skipped; malformed
// lines are skipped and counted.
func scanJSONL(r io.Reader) ([]json.RawMessage, int, error) {
	var (
		records   []json.RawMessage
		malformed int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			malformed++
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	return records, malformed, scanner.Err()
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Dump writes every row of table, decoded against shape, to w as one JSON
// object per line.
func (b *Backend) Dump(ctx context.Context, table string, shape types.Shape, w io.Writer) (int, error) {
	rows, err := b.Read(ctx, table, shape)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, row := range rows {
		if err := enc.Encode(row.Encode(shape)); err != nil {
			return 0, fmt.Errorf("dump %s: %w", table, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("dump %s: %w", table, err)
	}
	return len(rows), nil
}

// Load replaces table with the JSONL rows read from r, decoded against
// shape. Lines that do not decode are reported as row failures alongside
// the rows the writer rejects; Row is the index among non-blank lines.
func (b *Backend) Load(ctx context.Context, table string, shape types.Shape, r io.Reader) ([]types.RowFailure, error) {
	lines, malformed, err := scanJSONL(r)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	if malformed > 0 {
		return nil, fmt.Errorf("load %s: %d malformed lines: %w", table, malformed, types.ErrTypeMismatch)
	}

	var (
		failures []types.RowFailure
		rows     []types.Record
		index    []int
	)
	for i, line := range lines {
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			failures = append(failures, types.RowFailure{Row: i, Err: err})
			continue
		}
		rec, err := types.DecodeRecord(shape, raw)
		if err != nil {
			failures = append(failures, types.RowFailure{Row: i, Err: err})
			continue
		}
		rows = append(rows, rec)
		index = append(index, i)
	}

	rejected, err := b.Replace(ctx, table, shape, rows)
	if err != nil {
		return nil, err
	}
	for _, f := range rejected {
		failures = append(failures, types.RowFailure{Row: index[f.Row], Err: f.Err})
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Row < failures[j].Row })
	return failures, nil
}
