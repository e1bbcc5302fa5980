package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for MigrationsTotal.
const (
	OutcomeOK    = "ok"
	OutcomeNoOp  = "noop"
	OutcomeError = "error"
)

// Collector wraps the migration metrics with the entity label pre-filled.
type Collector struct {
	entity string
}

// NewCollector creates a Collector for entity.
func NewCollector(entity string) *Collector {
	return &Collector{entity: entity}
}

// Entity returns the entity label.
func (c *Collector) Entity() string { return c.entity }

// IncMigrations increments the migrations counter for outcome.
func (c *Collector) IncMigrations(table, outcome string) {
	MigrationsTotal.WithLabelValues(c.entity, table, outcome).Inc()
}

// AddRowsMigrated adds n written rows.
func (c *Collector) AddRowsMigrated(table string, n int) {
	RowsMigratedTotal.WithLabelValues(c.entity, table).Add(float64(n))
}

// IncFieldFallback increments the fallback counter for field.
func (c *Collector) IncFieldFallback(table, field string) {
	FieldFallbacksTotal.WithLabelValues(c.entity, table, field).Inc()
}

// AddRowFailures adds n dropped rows.
func (c *Collector) AddRowFailures(table string, n int) {
	RowFailuresTotal.WithLabelValues(c.entity, table).Add(float64(n))
}

// ObserveMigrationDuration records a table migration duration.
func (c *Collector) ObserveMigrationDuration(table string, seconds float64) {
	MigrationDuration.WithLabelValues(c.entity, table).Observe(seconds)
}

// ObserveSteps records the step count of an executed plan.
func (c *Collector) ObserveSteps(steps int) {
	MigrationSteps.WithLabelValues(c.entity).Observe(float64(steps))
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
