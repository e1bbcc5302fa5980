package types

import (
	"fmt"
	"sort"
)

// Schema bundles the static, author-declared migration definitions of one
// entity: its shape at every version migrations read or produce, the rename
// ledger, and the sparse milestone hooks.
type Schema struct {
	Entity  string        // registry key
	Tables  []string      // tables storing this entity
	Current int           // version the code expects
	Shapes  map[int]Shape // version -> shape
	Renames RenameLedger  // current field name -> history
	Hooks   map[int]*Hook // version -> milestone hook
}

// Shape returns the shape registered for version.
// Returns an error wrapping ErrShapeMissing if there is none.
func (s *Schema) Shape(version int) (Shape, error) {
	sh, ok := s.Shapes[version]
	if !ok {
		return Shape{}, fmt.Errorf("entity %s version %d: %w", s.Entity, version, ErrShapeMissing)
	}
	if sh.Version == 0 {
		sh.Version = version
	}
	if sh.Name == "" {
		sh.Name = s.Entity
	}
	return sh, nil
}

// Hook returns the hook registered for version, or nil.
func (s *Schema) Hook(version int) *Hook {
	if s.Hooks == nil {
		return nil
	}
	return s.Hooks[version]
}

// Versions returns the versions that have a registered shape, ascending.
func (s *Schema) Versions() []int {
	out := make([]int, 0, len(s.Shapes))
	for v := range s.Shapes {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Validate checks the whole bundle: every shape, the ledger, the current
// version, and that every hook version has a shape. Rename versions need
// no shape of their own.
func (s *Schema) Validate() error {
	if s.Entity == "" {
		return fmt.Errorf("schema without entity name: %w", ErrInvalidShape)
	}
	if s.Current < 0 {
		return fmt.Errorf("entity %s current %d: %w", s.Entity, s.Current, ErrInvalidVersion)
	}
	if _, err := s.Shape(s.Current); err != nil {
		return err
	}
	for v, sh := range s.Shapes {
		if v < 0 {
			return fmt.Errorf("entity %s shape version %d: %w", s.Entity, v, ErrInvalidVersion)
		}
		if sh.Version != 0 && sh.Version != v {
			return fmt.Errorf("entity %s: shape registered at %d declares version %d: %w",
				s.Entity, v, sh.Version, ErrInvalidShape)
		}
		if err := sh.Validate(); err != nil {
			return err
		}
	}
	if err := s.Renames.Validate(); err != nil {
		return fmt.Errorf("entity %s: %w", s.Entity, err)
	}
	for v := range s.Hooks {
		if _, err := s.Shape(v); err != nil {
			return fmt.Errorf("hook: %w", err)
		}
	}
	for _, t := range s.Tables {
		if !ValidIdentifier(t) {
			return fmt.Errorf("entity %s table %q: %w", s.Entity, t, ErrInvalidShape)
		}
	}
	return nil
}
