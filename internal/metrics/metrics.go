// Package metrics exposes Prometheus instruments for schema migrations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MigrationsTotal counts table migrations by outcome (ok, noop, error).
var MigrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "strata_migrations_total",
		Help: "Total table migrations by outcome",
	},
	[]string{"entity", "table", "outcome"},
)

// RowsMigratedTotal counts rows written by migrations.
var RowsMigratedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "strata_rows_migrated_total",
		Help: "Total rows written by migrations",
	},
	[]string{"entity", "table"},
)

// FieldFallbacksTotal counts fields that fell back to a default.
var FieldFallbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "strata_field_fallbacks_total",
		Help: "Total fields set to a fallback value during conversion",
	},
	[]string{"entity", "table", "field"},
)

// RowFailuresTotal counts rows the writer could not insert.
var RowFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "strata_row_failures_total",
		Help: "Total rows dropped because they could not be inserted",
	},
	[]string{"entity", "table"},
)

// MigrationDuration tracks wall time of a table migration.
var MigrationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "strata_migration_duration_seconds",
		Help:    "Time spent migrating one table",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"entity", "table"},
)

// MigrationSteps tracks how many steps migration plans take.
var MigrationSteps = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "strata_migration_steps",
		Help:    "Number of milestone steps in executed plans",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	},
	[]string{"entity"},
)
