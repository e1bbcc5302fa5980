package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/internal/memory"
	"github.com/mesh-intelligence/strata/pkg/types"
)

var noMetrics = func() *bool { b := false; return &b }()

// taskSchema declares tasks at versions 2, 10 and 12. Version 3 renamed
// day to weekday; version 10 turned score into an int and added done.
func taskSchema() *types.Schema {
	return &types.Schema{
		Entity:  "tasks",
		Tables:  []string{"tasks"},
		Current: 12,
		Shapes: map[int]types.Shape{
			2: {Fields: []types.Field{
				{Name: "id", Kind: types.KindLong, Unique: true},
				{Name: "day", Kind: types.KindInt},
				{Name: "score", Kind: types.KindDouble, Nullable: true},
			}},
			10: {Fields: []types.Field{
				{Name: "id", Kind: types.KindLong, Unique: true},
				{Name: "weekday", Kind: types.KindInt},
				{Name: "score", Kind: types.KindInt, Default: types.Int(-1)},
				{Name: "done", Kind: types.KindBool},
			}},
			12: {Fields: []types.Field{
				{Name: "id", Kind: types.KindLong, Unique: true},
				{Name: "weekday", Kind: types.KindInt},
				{Name: "score", Kind: types.KindLong},
				{Name: "done", Kind: types.KindBool},
			}},
		},
		Renames: types.RenameLedger{"weekday": {{From: "day", To: "weekday", Version: 3}}},
		Hooks: map[int]*types.Hook{
			10: {Fields: map[string]types.Transform{
				"done": types.Func(func(types.Value, bool) (types.Value, bool) { return types.Bool(false), true }),
			}},
		},
	}
}

// seed fills the tasks table with n rows at version 2. Row 3 has a null
// score.
func seed(t *testing.T, store *memory.Store, schema *types.Schema, n int) {
	t.Helper()
	sh, err := schema.Shape(2)
	require.NoError(t, err)
	rows := make([]types.Record, n)
	for i := range rows {
		rows[i] = types.Record{
			"id":    types.Long(int64(i + 1)),
			"day":   types.Int(int32(i%7 + 1)),
			"score": types.Double(float64(i) + 0.5),
		}
	}
	if n > 3 {
		rows[3]["score"] = types.Null(types.KindDouble)
	}
	failures, err := store.Replace(context.Background(), "tasks", sh, rows)
	require.NoError(t, err)
	require.Empty(t, failures)
}

func newMigrator(store *memory.Store, cfg Config) *Migrator {
	cfg.Reader, cfg.Writer, cfg.Registry = store, store, store
	cfg.MetricsEnabled = noMetrics
	return New(cfg)
}

func TestMigrate_NoOp(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := newMigrator(store, Config{})

	report, err := m.Migrate(ctx, taskSchema(), "tasks", 12, 12)
	require.NoError(t, err, "no table exists, so any read would fail")
	assert.True(t, report.NoOp())

	report, err = m.Migrate(ctx, taskSchema(), "tasks", 12, 2)
	require.NoError(t, err)
	assert.True(t, report.NoOp())

	v, err := store.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestMigrate_BatchWithOneBadField(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 10)

	var filled []types.Record
	m := newMigrator(store, Config{
		Workers:  3,
		OnFilled: func(table string, rows []types.Record) { filled = rows },
	})

	report, err := m.Migrate(ctx, schema, "tasks", 2, 12)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 12}, report.Plan.Steps)
	assert.Equal(t, 10, report.RowsRead)
	assert.Equal(t, 10, report.RowsWritten)
	assert.Empty(t, report.RowFailures)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, filled, 10)

	require.Len(t, report.Fallbacks, 1)
	fb := report.Fallbacks[0]
	assert.Equal(t, 3, fb.Row)
	assert.Equal(t, 10, fb.Version)
	assert.Equal(t, "score", fb.Field)
	assert.Equal(t, types.ReasonNull, fb.Reason)

	final, err := schema.Shape(12)
	require.NoError(t, err)
	rows, err := store.Read(ctx, "tasks", final)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for i, row := range rows {
		assert.Equal(t, int64(i+1), row["id"].Long(), "order is kept")
		assert.Equal(t, int32(i%7+1), row["weekday"].Int(), "day is read through the rename")
		assert.False(t, row["done"].Bool())
		if i == 3 {
			assert.Equal(t, int64(-1), row["score"].Long())
		} else {
			assert.Equal(t, int64(i), row["score"].Long())
		}
	}

	v, err := store.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	runs, err := store.Runs(ctx, "tasks")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 5)
	m := newMigrator(store, Config{})

	_, err := m.Migrate(ctx, schema, "tasks", 2, 12)
	require.NoError(t, err)
	final, _ := schema.Shape(12)
	before, err := store.Read(ctx, "tasks", final)
	require.NoError(t, err)

	report, err := m.Migrate(ctx, schema, "tasks", 12, 12)
	require.NoError(t, err)
	assert.True(t, report.NoOp())
	after, err := store.Read(ctx, "tasks", final)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMigrate_ShapeMissing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 4)
	delete(schema.Shapes, 10)
	m := newMigrator(store, Config{})

	_, err := m.Migrate(ctx, schema, "tasks", 2, 12)
	assert.ErrorIs(t, err, types.ErrShapeMissing)

	old, _ := schema.Shape(2)
	rows, err := store.Read(ctx, "tasks", old)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, int32(1), rows[0]["day"].Int(), "table untouched")

	v, err := store.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

type failingWriter struct{ err error }

func (w failingWriter) Replace(context.Context, string, types.Shape, []types.Record) ([]types.RowFailure, error) {
	return nil, w.err
}

func TestMigrate_StorageFailureKeepsRegistry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 3)
	boom := errors.New("disk full")

	m := New(Config{
		Reader:         store,
		Writer:         failingWriter{err: boom},
		Registry:       store,
		MetricsEnabled: noMetrics,
	})

	_, err := m.Migrate(ctx, schema, "tasks", 2, 12)
	assert.ErrorIs(t, err, boom)

	v, err := store.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestMigrate_ReadMissingTable(t *testing.T) {
	m := newMigrator(memory.New(), Config{})
	_, err := m.Migrate(context.Background(), taskSchema(), "tasks", 2, 12)
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestMigrate_RowFailuresAreDropped(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 6)
	// Every id collapses onto 1 at version 12, so only the first row fits.
	schema.Hooks[12] = &types.Hook{Fields: map[string]types.Transform{
		"id": types.Func(func(types.Value, bool) (types.Value, bool) { return types.Long(1), true }),
	}}

	var filled []types.Record
	m := newMigrator(store, Config{OnFilled: func(_ string, rows []types.Record) { filled = rows }})

	report, err := m.Migrate(ctx, schema, "tasks", 2, 12)
	require.NoError(t, err)
	assert.Equal(t, 6, report.RowsRead)
	assert.Equal(t, 1, report.RowsWritten)
	require.Len(t, report.RowFailures, 5)
	assert.Equal(t, 1, report.RowFailures[0].Row)
	assert.Len(t, filled, 1)
}

func TestMigrateEntity(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	schema.Tables = []string{"tasks", "archive"}
	seed(t, store, schema, 3)
	old, _ := schema.Shape(2)
	_, err := store.Replace(ctx, "archive", old, []types.Record{
		{"id": types.Long(100), "day": types.Int(6), "score": types.Double(1)},
	})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "tasks", 2))

	var seen []string
	m := newMigrator(store, Config{AfterTable: func(table string, r types.Report) {
		seen = append(seen, fmt.Sprintf("%s:%d", table, r.RowsWritten))
	}})

	reports, err := m.MigrateEntity(ctx, schema)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, []string{"tasks:3", "archive:1"}, seen)

	v, err := store.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	reports, err = m.MigrateEntity(ctx, schema)
	require.NoError(t, err)
	for _, r := range reports {
		assert.True(t, r.NoOp())
	}
}

func TestMigrateEntityTo_ChecksShapesFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 2)
	require.NoError(t, store.Set(ctx, "tasks", 2))
	m := newMigrator(store, Config{})

	_, err := m.MigrateEntityTo(ctx, schema, 20)
	assert.ErrorIs(t, err, types.ErrShapeMissing)

	v, err := store.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMigrator_RebuildAndReset(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 4)
	m := newMigrator(store, Config{})

	wider, _ := schema.Shape(2)
	wider.Fields = append(append([]types.Field{}, wider.Fields...),
		types.Field{Name: "note", Kind: types.KindString, Nullable: true})

	failures, err := m.Rebuild(ctx, "tasks", wider)
	require.NoError(t, err)
	assert.Empty(t, failures)
	rows, err := store.Read(ctx, "tasks", wider)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.True(t, rows[0]["note"].IsNull())

	require.NoError(t, m.Reset(ctx, "tasks", wider))
	rows, err = store.Read(ctx, "tasks", wider)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...any) { l.log(msg) }
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...any)  { l.log(msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...any) { l.log(msg) }

func TestMigrate_Logs(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 5)
	logger := &recordingLogger{}
	m := newMigrator(store, Config{Logger: logger})

	_, err := m.Migrate(ctx, schema, "tasks", 2, 12)
	require.NoError(t, err)
	assert.Contains(t, logger.msgs, "migrating table")
	assert.Contains(t, logger.msgs, "field fallback")
	assert.Contains(t, logger.msgs, "table migrated")
}

func TestMigrate_ConcurrentTables(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := taskSchema()
	old, _ := schema.Shape(2)
	tables := []string{"t1", "t2", "t3", "t4"}
	for _, name := range tables {
		_, err := store.Replace(ctx, name, old, []types.Record{
			{"id": types.Long(1), "day": types.Int(2), "score": types.Double(3)},
		})
		require.NoError(t, err)
	}
	m := newMigrator(store, Config{})

	var wg sync.WaitGroup
	errs := make([]error, len(tables))
	for i, name := range tables {
		i, name := i, name
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.Migrate(ctx, schema, name, 2, 12)
		}()
	}
	wg.Wait()

	final, _ := schema.Shape(12)
	for i, name := range tables {
		require.NoError(t, errs[i])
		rows, err := store.Read(ctx, name, final)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int32(2), rows[0]["weekday"].Int())
	}
}

func TestMigrateEntity_ConcurrentSameEntity(t *testing.T) {
	ctx := context.Background()
	final, _ := taskSchema().Shape(12)

	for n := 0; n < 20; n++ {
		store := memory.New()
		schema := taskSchema()
		seed(t, store, schema, 7)
		require.NoError(t, store.Set(ctx, "tasks", 2))
		m := newMigrator(store, Config{})

		var wg sync.WaitGroup
		reports := make([][]types.Report, 2)
		errs := make([]error, 2)
		for i := range reports {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				reports[i], errs[i] = m.MigrateEntity(ctx, schema)
			}()
		}
		wg.Wait()

		migrated := 0
		for i := range reports {
			require.NoError(t, errs[i])
			require.Len(t, reports[i], 1)
			if !reports[i][0].NoOp() {
				migrated++
			}
		}
		assert.Equal(t, 1, migrated, "the second call must see the advanced version")

		rows, err := store.Read(ctx, "tasks", final)
		require.NoError(t, err)
		require.Len(t, rows, 7)
		for i, row := range rows {
			assert.Equal(t, int32(i%7+1), row["weekday"].Int(), "row %d", i)
		}
	}
}

func TestMigrate_CancelledBeforeWrite(t *testing.T) {
	store := memory.New()
	schema := taskSchema()
	seed(t, store, schema, 4)
	require.NoError(t, store.Set(context.Background(), "tasks", 2))
	m := newMigrator(store, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Migrate(ctx, schema, "tasks", 2, 12)
	assert.ErrorIs(t, err, context.Canceled)

	old, _ := schema.Shape(2)
	rows, err := store.Read(context.Background(), "tasks", old)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, int32(1), rows[0]["day"].Int())

	v, err := store.Get(context.Background(), "tasks")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
