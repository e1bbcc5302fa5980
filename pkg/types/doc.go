// Package types defines the data model of the strata migration engine:
// kinds and tagged values, versioned shapes, the rename ledger, milestone
// hooks and their transform strategies, the per-entity Schema bundle, the
// storage collaborator interfaces, and the standard errors.
//
// The engine itself lives in pkg/migrate. Storage implementations live in
// internal/sqlite and internal/memory.
package types
