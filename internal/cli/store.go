package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mesh-intelligence/strata/internal/logging"
	"github.com/mesh-intelligence/strata/internal/memory"
	"github.com/mesh-intelligence/strata/internal/schemafile"
	"github.com/mesh-intelligence/strata/pkg/sqlite"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// store is what the commands need from a backend.
type store interface {
	types.Store
	types.RunRecorder
	types.RunLister
}

// tableIO is implemented by backends that can export and import tables
// as JSONL.
type tableIO interface {
	Dump(ctx context.Context, table string, shape types.Shape, w io.Writer) (int, error)
	Load(ctx context.Context, table string, shape types.Shape, r io.Reader) ([]types.RowFailure, error)
}

// noteSetter is implemented by registries that keep a note per version.
type noteSetter interface {
	SetWithNotes(ctx context.Context, entity string, version int, notes string) error
}

// openStore attaches the backend named by cfg.
func openStore(cfg types.Config) (store, error) {
	var st store
	switch cfg.Backend {
	case types.BackendSQLite:
		st = sqlite.NewBackend()
	case types.BackendMemory:
		// memory.New returns an attached store; Attach below re-validates.
		m := memory.New()
		if err := m.Detach(); err != nil {
			return nil, sysError(err)
		}
		st = m
	default:
		return nil, userError(fmt.Errorf("backend %q: %w", cfg.Backend, types.ErrBackendUnknown))
	}
	if err := st.Attach(cfg); err != nil {
		return nil, sysError(fmt.Errorf("initialize storage: %w", err))
	}
	return st, nil
}

// session bundles what most commands load before doing their work.
type session struct {
	settings settings
	schema   *types.Schema
	store    store
	logger   *logging.Logger
}

// open loads settings and the schema file, then attaches the store. The
// caller must call close.
func (a *app) open(schemaPath string, w io.Writer) (*session, error) {
	s, err := a.resolve()
	if err != nil {
		return nil, err
	}
	schema, err := schemafile.Load(schemaPath)
	if err != nil {
		return nil, userError(err)
	}
	logger, err := logging.New(w, s.logLevel, s.logFormat)
	if err != nil {
		return nil, userError(err)
	}
	st, err := openStore(s.storage)
	if err != nil {
		return nil, err
	}
	return &session{settings: s, schema: schema, store: st, logger: logger}, nil
}

func (s *session) close() {
	_ = s.store.Detach()
}

// classify maps engine and storage errors to exit codes.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrShapeMissing),
		errors.Is(err, types.ErrInvalidVersion),
		errors.Is(err, types.ErrInvalidShape),
		errors.Is(err, types.ErrTableNotFound),
		errors.Is(err, types.ErrTypeMismatch):
		return userError(err)
	default:
		return sysError(err)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("encode output: %w", err))
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
