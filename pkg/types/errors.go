package types

import "errors"

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// Store lifecycle errors.
var (
	ErrBackendDetached = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
)

// Schema definition errors.
var (
	ErrShapeMissing   = errors.New("no shape registered for version")
	ErrInvalidShape   = errors.New("invalid shape")
	ErrInvalidLedger  = errors.New("invalid rename ledger")
	ErrInvalidVersion = errors.New("invalid version")
	ErrUnknownKind    = errors.New("unknown kind")
)

// Value errors.
var (
	ErrTypeMismatch = errors.New("type mismatch")
)
