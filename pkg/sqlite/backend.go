// Package sqlite exposes the SQLite store to programs embedding the
// migration engine, keeping the implementation internal.
package sqlite

import (
	"context"
	"io"

	"github.com/mesh-intelligence/strata/internal/sqlite"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Store is a SQLite-backed types.Store that also keeps the migration
// history and can export and import tables as JSONL.
type Store interface {
	types.Store
	types.RunRecorder
	types.RunLister

	// SetWithNotes stores version for entity along with a free-form note.
	SetWithNotes(ctx context.Context, entity string, version int, notes string) error

	// Dump writes every row of table to w, one JSON object per line.
	Dump(ctx context.Context, table string, shape types.Shape, w io.Writer) (int, error)

	// Load replaces table with the JSONL rows read from r.
	Load(ctx context.Context, table string, shape types.Shape, r io.Reader) ([]types.RowFailure, error)

	// Backups lists the backup files written for table, oldest first.
	Backups(table string) ([]string, error)
}

// NewBackend creates a new SQLite store.
// The store is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".strata-db",
//	})
//	defer store.Detach()
//	m := migrate.New(migrate.Config{Reader: store, Writer: store, Registry: store})
func NewBackend() Store {
	return sqlite.NewBackend()
}
