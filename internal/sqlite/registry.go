package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Get returns the stored version of entity, or 0 if unset.
func (b *Backend) Get(ctx context.Context, entity string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRowContext(ctx, "SELECT version FROM entity_versions WHERE name = ?", entity).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get version of %s: %w", entity, err)
	}
	return version, nil
}

// Set stores version for entity.
func (b *Backend) Set(ctx context.Context, entity string, version int) error {
	return b.SetWithNotes(ctx, entity, version, "")
}

// SetWithNotes stores version for entity along with a free-form note.
func (b *Backend) SetWithNotes(ctx context.Context, entity string, version int, notes string) error {
	if version < 0 {
		return fmt.Errorf("entity %s version %d: %w", entity, version, types.ErrInvalidVersion)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO entity_versions (name, version, notes, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET version = excluded.version, notes = excluded.notes, updated_at = excluded.updated_at`,
		entity, version, notes, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("set version of %s: %w", entity, err)
	}
	return nil
}
