// Package memory provides an in-memory implementation of types.Store for
// tests and embedding.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Store keeps tables, entity versions and migration runs in maps guarded by
// a sync.RWMutex. Replace enforces the same constraints as the SQLite
// backend: kinds, non-null fields and unique fields.
type Store struct {
	mu       sync.RWMutex
	attached bool
	tables   map[string]table       // table name -> contents
	versions map[string]int         // entity -> version
	runs     map[string][]types.Run // entity -> runs, oldest first
}

type table struct {
	shape types.Shape
	rows  []types.Record
}

// New creates an empty, attached store.
func New() *Store {
	return &Store{
		attached: true,
		tables:   make(map[string]table),
		versions: make(map[string]int),
		runs:     make(map[string][]types.Run),
	}
}

// Attach re-enables a detached store. Contents survive Detach.
func (s *Store) Attach(config types.Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return types.ErrAlreadyAttached
	}
	s.attached = true
	return nil
}

// Detach makes every later call fail with ErrBackendDetached. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
	return nil
}

// Read returns copies of the rows of name, restricted to the fields shape
// declares and the table has.
func (s *Store) Read(ctx context.Context, name string, shape types.Shape) ([]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrBackendDetached
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, types.ErrTableNotFound)
	}

	out := make([]types.Record, 0, len(t.rows))
	for _, row := range t.rows {
		rec := make(types.Record, len(shape.Fields))
		for _, f := range shape.Fields {
			if _, ok := t.shape.Field(f.Name); !ok {
				continue
			}
			if v, ok := row[f.Name]; ok {
				rec[f.Name] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Replace swaps the contents of name for the rows that satisfy shape.
// Rows that do not are reported and skipped.
func (s *Store) Replace(ctx context.Context, name string, shape types.Shape, rows []types.Record) ([]types.RowFailure, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if !types.ValidIdentifier(name) {
		return nil, fmt.Errorf("table %q: %w", name, types.ErrInvalidShape)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil, types.ErrBackendDetached
	}

	next := table{shape: shape, rows: make([]types.Record, 0, len(rows))}
	seen := make(map[string]map[string]bool)
	var failures []types.RowFailure
	for i, row := range rows {
		rec, err := admit(shape, row, seen)
		if err != nil {
			failures = append(failures, types.RowFailure{Row: i, Err: err})
			continue
		}
		next.rows = append(next.rows, rec)
	}
	s.tables[name] = next
	return failures, nil
}

// admit checks row against shape and the unique values seen so far, and
// returns the row as stored.
func admit(shape types.Shape, row types.Record, seen map[string]map[string]bool) (types.Record, error) {
	rec := make(types.Record, len(shape.Fields))
	for _, f := range shape.Fields {
		v, ok := row[f.Name]
		if !ok || !v.IsValid() {
			v = f.DefaultValue()
			if !f.Default.IsValid() && !f.Nullable {
				return nil, fmt.Errorf("field %s: missing value for non-nullable field", f.Name)
			}
		}
		if !f.Accepts(v) {
			return nil, fmt.Errorf("field %s: %#v into %s: %w", f.Name, v, f.Kind, types.ErrTypeMismatch)
		}
		rec[f.Name] = v
	}

	for _, f := range shape.Fields {
		v := rec[f.Name]
		if !f.Unique || v.IsNull() {
			continue
		}
		key := v.GoString()
		if seen[f.Name][key] {
			return nil, fmt.Errorf("field %s: duplicate value %s", f.Name, key)
		}
	}
	for _, f := range shape.Fields {
		v := rec[f.Name]
		if !f.Unique || v.IsNull() {
			continue
		}
		if seen[f.Name] == nil {
			seen[f.Name] = make(map[string]bool)
		}
		seen[f.Name][v.GoString()] = true
	}
	return rec, nil
}

// Get returns the stored version of entity, or 0.
func (s *Store) Get(ctx context.Context, entity string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return 0, types.ErrBackendDetached
	}
	return s.versions[entity], nil
}

// Set stores version for entity.
func (s *Store) Set(ctx context.Context, entity string, version int) error {
	if version < 0 {
		return fmt.Errorf("entity %s version %d: %w", entity, version, types.ErrInvalidVersion)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrBackendDetached
	}
	s.versions[entity] = version
	return nil
}

// RecordRun appends r to the history of its entity.
func (s *Store) RecordRun(ctx context.Context, r types.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrBackendDetached
	}
	s.runs[r.Entity] = append(s.runs[r.Entity], types.RunOf(r))
	return nil
}

// Runs returns the recorded runs of entity, newest first.
func (s *Store) Runs(ctx context.Context, entity string) ([]types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrBackendDetached
	}
	runs := s.runs[entity]
	out := make([]types.Run, len(runs))
	for i, r := range runs {
		out[len(runs)-1-i] = r
	}
	return out, nil
}

// Shape returns the shape table name was last written with.
func (s *Store) Shape(name string) (types.Shape, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	return t.shape, ok
}
