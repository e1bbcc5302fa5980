package migrate

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/strata/internal/metrics"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Config holds the collaborators and options of a Migrator.
type Config struct {
	// Reader loads the rows of a table (required).
	Reader types.Reader

	// Writer replaces a table atomically (required).
	Writer types.Writer

	// Registry stores each entity's schema version (required).
	Registry types.VersionRegistry

	// Recorder keeps the migration history (optional). If nil and Writer
	// implements types.RunRecorder, Writer is used.
	Recorder types.RunRecorder

	// Logger is for observability (optional).
	Logger types.Logger

	// Workers bounds the number of rows converted concurrently
	// (default: runtime.GOMAXPROCS(0)).
	Workers int

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	// Set to false explicitly to disable metrics.
	MetricsEnabled *bool

	// OnFilled is called with the rows written to a table after a
	// successful replacement (optional).
	OnFilled func(table string, rows []types.Record)

	// AfterTable is called by MigrateEntity after each table (optional).
	AfterTable func(table string, r types.Report)
}

// Migrator migrates stored records of an entity from one schema version to
// another. Migrations of the same table are serialized; different tables
// migrate concurrently. MigrateEntity calls for the same entity run one at
// a time, from reading the registry to advancing it.
type Migrator struct {
	config  Config
	metrics bool

	mu       sync.Mutex
	tables   map[string]*sync.Mutex
	entities map[string]*sync.Mutex
}

// step is one resolved milestone of a plan.
type step struct {
	version  int
	shape    types.Shape
	snapshot map[string]string
	hook     *types.Hook
}

// New creates a Migrator with the given configuration.
// Applies default values for zero fields.
func New(cfg Config) *Migrator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Recorder == nil {
		if r, ok := cfg.Writer.(types.RunRecorder); ok {
			cfg.Recorder = r
		}
	}
	metricsEnabled := true
	if cfg.MetricsEnabled != nil {
		metricsEnabled = *cfg.MetricsEnabled
	}
	return &Migrator{
		config:   cfg,
		metrics:  metricsEnabled,
		tables:   make(map[string]*sync.Mutex),
		entities: make(map[string]*sync.Mutex),
	}
}

// Migrate converts every row of table from oldVersion to newVersion of
// schema, replaces the table with the result and then stores newVersion in
// the registry.
//
// When oldVersion >= newVersion nothing is read or written and the returned
// Report is a no-op. A missing shape for oldVersion or any plan step fails
// with ErrShapeMissing before the table is touched. The registry advances
// only after the table has been replaced. If ctx is cancelled while rows
// are converted, Migrate returns before anything is written.
func (m *Migrator) Migrate(ctx context.Context, schema *types.Schema, table string, oldVersion, newVersion int) (types.Report, error) {
	unlock := m.lock(m.tables, table)
	report, err := m.migrateTable(ctx, schema, table, oldVersion, newVersion)
	unlock()
	if err != nil || report.NoOp() {
		return report, err
	}
	if err := m.config.Registry.Set(ctx, schema.Entity, newVersion); err != nil {
		return report, fmt.Errorf("set version of %s to %d: %w", schema.Entity, newVersion, err)
	}
	return report, nil
}

// MigrateEntity migrates tables (default: schema.Tables, or a table named
// after the entity) from the version stored in the registry to
// schema.Current, then advances the registry once.
func (m *Migrator) MigrateEntity(ctx context.Context, schema *types.Schema, tables ...string) ([]types.Report, error) {
	return m.MigrateEntityTo(ctx, schema, schema.Current, tables...)
}

// MigrateEntityTo is MigrateEntity with an explicit target version.
//
// The plan and all of its shapes are checked before any table is touched.
// If a table fails, the tables already migrated stay migrated, the registry
// keeps the old version and the reports so far are returned with the error.
// The entity stays locked until the registry has been advanced, so a
// concurrent call sees the new version and does nothing.
func (m *Migrator) MigrateEntityTo(ctx context.Context, schema *types.Schema, version int, tables ...string) ([]types.Report, error) {
	if len(tables) == 0 {
		tables = schema.Tables
	}
	if len(tables) == 0 {
		tables = []string{schema.Entity}
	}

	unlockEntity := m.lock(m.entities, schema.Entity)
	defer unlockEntity()

	stored, err := m.config.Registry.Get(ctx, schema.Entity)
	if err != nil {
		return nil, fmt.Errorf("get version of %s: %w", schema.Entity, err)
	}
	plan, err := NewPlan(stored, version)
	if err != nil {
		return nil, err
	}
	if !plan.Empty() {
		if _, _, err := resolveSteps(schema, plan); err != nil {
			return nil, err
		}
	}

	m.logInfo(ctx, "migrating entity", "entity", schema.Entity, "plan", plan.String(), "tables", len(tables))

	reports := make([]types.Report, 0, len(tables))
	for _, table := range tables {
		unlock := m.lock(m.tables, table)
		report, err := m.migrateTable(ctx, schema, table, stored, version)
		unlock()
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
		if m.config.AfterTable != nil {
			m.config.AfterTable(table, report)
		}
	}

	if plan.Empty() {
		return reports, nil
	}
	if err := m.config.Registry.Set(ctx, schema.Entity, version); err != nil {
		return reports, fmt.Errorf("set version of %s to %d: %w", schema.Entity, version, err)
	}
	return reports, nil
}

// Rebuild drops and recreates table under shape, keeping its rows
// unconverted. Rows that no longer fit are dropped and reported.
func (m *Migrator) Rebuild(ctx context.Context, table string, shape types.Shape) ([]types.RowFailure, error) {
	unlock := m.lock(m.tables, table)
	defer unlock()

	rows, err := m.config.Reader.Read(ctx, table, shape)
	if err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", table, err)
	}
	failures, err := m.config.Writer.Replace(ctx, table, shape, rows)
	if err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", table, err)
	}
	m.logInfo(ctx, "table rebuilt", "table", table, "rows", len(rows)-len(failures), "dropped", len(failures))
	return failures, nil
}

// Reset drops and recreates table under shape with no rows.
func (m *Migrator) Reset(ctx context.Context, table string, shape types.Shape) error {
	unlock := m.lock(m.tables, table)
	defer unlock()

	if _, err := m.config.Writer.Replace(ctx, table, shape, nil); err != nil {
		return fmt.Errorf("reset %s: %w", table, err)
	}
	m.logInfo(ctx, "table reset", "table", table)
	return nil
}

// migrateTable runs the plan on one table. The caller holds the table lock
// and owns the registry update.
func (m *Migrator) migrateTable(ctx context.Context, schema *types.Schema, table string, oldVersion, newVersion int) (types.Report, error) {
	start := time.Now()
	report := types.Report{
		RunID:     newRunID(),
		Entity:    schema.Entity,
		Table:     table,
		StartedAt: start,
	}
	var collector *metrics.Collector
	if m.metrics {
		collector = metrics.NewCollector(schema.Entity)
	}

	fail := func(err error) (types.Report, error) {
		report.Duration = time.Since(start)
		if collector != nil {
			collector.IncMigrations(table, metrics.OutcomeError)
		}
		m.logError(ctx, "migration failed", "run_id", report.RunID, "entity", schema.Entity, "table", table, "error", err)
		return report, err
	}

	plan, err := NewPlan(oldVersion, newVersion)
	if err != nil {
		return fail(err)
	}
	report.Plan = plan
	if plan.Empty() {
		if collector != nil {
			collector.IncMigrations(table, metrics.OutcomeNoOp)
		}
		m.logDebug(ctx, "nothing to migrate", "entity", schema.Entity, "table", table, "from", oldVersion, "to", newVersion)
		return report, nil
	}

	oldShape, steps, err := resolveSteps(schema, plan)
	if err != nil {
		return fail(err)
	}

	m.logInfo(ctx, "migrating table", "run_id", report.RunID, "entity", schema.Entity, "table", table, "plan", plan.String())

	rows, err := m.config.Reader.Read(ctx, table, oldShape)
	if err != nil {
		return fail(fmt.Errorf("read %s at version %d: %w", table, oldVersion, err))
	}
	report.RowsRead = len(rows)

	converted, fallbacks, err := m.convertAll(ctx, rows, oldShape, steps)
	if err != nil {
		return fail(fmt.Errorf("convert %s: %w", table, err))
	}
	report.Fallbacks = fallbacks

	final := steps[len(steps)-1].shape
	failures, err := m.config.Writer.Replace(ctx, table, final, converted)
	if err != nil {
		return fail(fmt.Errorf("replace %s at version %d: %w", table, newVersion, err))
	}
	report.RowFailures = failures
	report.RowsWritten = len(converted) - len(failures)
	report.Duration = time.Since(start)

	for _, fb := range fallbacks {
		m.logDebug(ctx, "field fallback", "table", table, "row", fb.Row, "version", fb.Version,
			"field", fb.Field, "source", fb.Source, "reason", fb.Reason)
	}
	for _, f := range failures {
		m.logError(ctx, "row dropped", "table", table, "row", f.Row, "error", f.Err)
	}

	if collector != nil {
		collector.IncMigrations(table, metrics.OutcomeOK)
		collector.AddRowsMigrated(table, report.RowsWritten)
		collector.AddRowFailures(table, len(failures))
		for _, fb := range fallbacks {
			collector.IncFieldFallback(table, fb.Field)
		}
		collector.ObserveSteps(len(plan.Steps))
		collector.ObserveMigrationDuration(table, report.Duration.Seconds())
	}

	if m.config.OnFilled != nil {
		m.config.OnFilled(table, written(converted, failures))
	}
	if m.config.Recorder != nil {
		if err := m.config.Recorder.RecordRun(ctx, report); err != nil {
			m.logError(ctx, "record run", "run_id", report.RunID, "error", err)
		}
	}

	m.logInfo(ctx, "table migrated", "run_id", report.RunID, "entity", schema.Entity, "table", table,
		"rows", report.RowsWritten, "fallbacks", len(fallbacks), "dropped", len(failures),
		"duration", report.Duration)
	return report, nil
}

// convertAll runs every row through the steps on the worker pool. The
// output keeps the input order.
func (m *Migrator) convertAll(ctx context.Context, rows []types.Record, oldShape types.Shape, steps []step) ([]types.Record, []types.FieldFallback, error) {
	out := make([]types.Record, len(rows))
	perRow := make([][]types.FieldFallback, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.Workers)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, prev := row, oldShape
			var fbs []types.FieldFallback
			for _, s := range steps {
				next, f := Convert(rec, prev, s.shape, s.snapshot, s.hook)
				for j := range f {
					f[j].Row = i
				}
				fbs = append(fbs, f...)
				rec, prev = next, s.shape
			}
			out[i] = rec
			perRow[i] = fbs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var fallbacks []types.FieldFallback
	for _, f := range perRow {
		fallbacks = append(fallbacks, f...)
	}
	return out, fallbacks, nil
}

// resolveSteps looks up the shape of plan.From and of every step, and the
// rename snapshot between consecutive versions.
func resolveSteps(schema *types.Schema, plan types.Plan) (types.Shape, []step, error) {
	oldShape, err := schema.Shape(plan.From)
	if err != nil {
		return types.Shape{}, nil, err
	}
	steps := make([]step, 0, len(plan.Steps))
	prev := plan.From
	for _, v := range plan.Steps {
		sh, err := schema.Shape(v)
		if err != nil {
			return types.Shape{}, nil, err
		}
		steps = append(steps, step{
			version:  v,
			shape:    sh,
			snapshot: Snapshot(prev, v, schema.Renames),
			hook:     schema.Hook(v),
		})
		prev = v
	}
	return oldShape, steps, nil
}

// written returns rows without the ones that failed to insert.
func written(rows []types.Record, failures []types.RowFailure) []types.Record {
	if len(failures) == 0 {
		return rows
	}
	failed := make(map[int]bool, len(failures))
	for _, f := range failures {
		failed[f.Row] = true
	}
	out := make([]types.Record, 0, len(rows)-len(failures))
	for i, r := range rows {
		if !failed[i] {
			out = append(out, r)
		}
	}
	return out
}

// lock acquires the mutex of key in locks and returns its release
// function. The entity lock is always taken before table locks.
func (m *Migrator) lock(locks map[string]*sync.Mutex, key string) func() {
	m.mu.Lock()
	l, ok := locks[key]
	if !ok {
		l = &sync.Mutex{}
		locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (m *Migrator) logDebug(ctx context.Context, msg string, keyvals ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(ctx, msg, keyvals...)
	}
}

func (m *Migrator) logInfo(ctx context.Context, msg string, keyvals ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, msg, keyvals...)
	}
}

func (m *Migrator) logError(ctx context.Context, msg string, keyvals ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Error(ctx, msg, keyvals...)
	}
}
