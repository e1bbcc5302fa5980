package types

import "context"

// Reader reads every row of a table decoded against a shape.
type Reader interface {
	// Read returns all rows of table. Columns the shape declares but the
	// table lacks come back absent from the Record.
	// Returns ErrTableNotFound if the table does not exist.
	Read(ctx context.Context, table string, shape Shape) ([]Record, error)
}

// Writer replaces a table wholesale.
type Writer interface {
	// Replace drops table, recreates it to match shape and inserts rows.
	// Rows that fail to insert are reported, not fatal. The replacement is
	// atomic for readers of table: they see either the old or the new
	// table, never an empty one in between. A non-nil error means the old
	// table is intact.
	Replace(ctx context.Context, table string, shape Shape, rows []Record) ([]RowFailure, error)
}

// VersionRegistry stores the schema version each entity is at.
type VersionRegistry interface {
	// Get returns the stored version of entity, or 0 if unset.
	Get(ctx context.Context, entity string) (int, error)

	// Set stores version for entity.
	Set(ctx context.Context, entity string, version int) error
}

// RunRecorder is implemented by stores that keep a migration history.
type RunRecorder interface {
	RecordRun(ctx context.Context, r Report) error
}

// RunLister lists the migration history of an entity, newest first.
type RunLister interface {
	Runs(ctx context.Context, entity string) ([]Run, error)
}

// Store is a backend offering all three collaborators, with an explicit
// lifecycle: Attach before use, Detach when done.
type Store interface {
	Reader
	Writer
	VersionRegistry

	// Attach connects the store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	// After Detach, operations return ErrBackendDetached.
	Detach() error
}
