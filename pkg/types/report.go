package types

import (
	"fmt"
	"strings"
	"time"
)

// Plan is the ordered list of milestone versions a record passes through
// on its way From one version To another. Steps is empty for a no-op.
type Plan struct {
	From  int   `json:"from"`
	To    int   `json:"to"`
	Steps []int `json:"steps"`
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }

// String renders the plan as "from -> s1 -> s2 ... -> to".
func (p Plan) String() string {
	parts := []string{fmt.Sprint(p.From)}
	for _, s := range p.Steps {
		parts = append(parts, fmt.Sprint(s))
	}
	return strings.Join(parts, " -> ")
}

// FieldFallback records one field that could not be converted and was set
// to its default (or to a fallback strategy's value).
type FieldFallback struct {
	Row     int    // index of the row in the batch; -1 outside a batch
	Version int    // step at which the fallback happened
	Field   string // target field
	Source  string // source field name that was looked up
	Reason  string
}

// Fallback reasons.
const (
	ReasonMissing     = "missing source field"
	ReasonUncoercible = "unsupported coercion"
	ReasonNull        = "null into non-nullable field"
	ReasonRejected    = "transform returned no value"
)

// RowFailure reports one row the storage writer could not insert.
type RowFailure struct {
	Row int // index into the batch handed to Writer.Replace
	Err error
}

func (f RowFailure) Error() string {
	return fmt.Sprintf("row %d: %v", f.Row, f.Err)
}

func (f RowFailure) Unwrap() error { return f.Err }

// Report summarizes one table migration.
type Report struct {
	RunID       string
	Entity      string
	Table       string
	Plan        Plan
	RowsRead    int
	RowsWritten int
	Fallbacks   []FieldFallback
	RowFailures []RowFailure
	StartedAt   time.Time
	Duration    time.Duration
}

// NoOp reports whether the migration had nothing to do.
func (r Report) NoOp() bool { return r.Plan.Empty() }

// Run is the persisted summary of a Report, as kept in migration history.
type Run struct {
	RunID          string    `json:"run_id"`
	Entity         string    `json:"entity"`
	Table          string    `json:"table"`
	From           int       `json:"from"`
	To             int       `json:"to"`
	Steps          []int     `json:"steps"`
	RowsRead       int       `json:"rows_read"`
	RowsWritten    int       `json:"rows_written"`
	RowFailures    int       `json:"row_failures"`
	FieldFallbacks int       `json:"field_fallbacks"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// RunOf summarizes r.
func RunOf(r Report) Run {
	return Run{
		RunID:          r.RunID,
		Entity:         r.Entity,
		Table:          r.Table,
		From:           r.Plan.From,
		To:             r.Plan.To,
		Steps:          append([]int(nil), r.Plan.Steps...),
		RowsRead:       r.RowsRead,
		RowsWritten:    r.RowsWritten,
		RowFailures:    len(r.RowFailures),
		FieldFallbacks: len(r.Fallbacks),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.StartedAt.Add(r.Duration),
	}
}
