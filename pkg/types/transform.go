package types

import "fmt"

// Strategy names how a Transform derives a target field.
type Strategy int

// Transform strategies.
const (
	// StrategyCopy copies the source value only when its kind matches the
	// target exactly; anything else falls back to the default.
	StrategyCopy Strategy = iota + 1
	// StrategyRename reads an explicitly named source field, then converts
	// it like an unmodified field.
	StrategyRename
	// StrategyCoerce copies or coerces the source value. This is what an
	// unmodified field does; naming it makes a plan explicit.
	StrategyCoerce
	// StrategyFallback converts like StrategyCoerce but uses a fixed value
	// instead of the field default when conversion fails or the source is
	// absent.
	StrategyFallback
	// StrategyFunc hands the raw source value to a custom function.
	StrategyFunc
)

// TransformFunc computes a target value from the raw source value. ok is
// false when the source field is absent. Returning ok=false makes the
// converter use the target default.
type TransformFunc func(src Value, present bool) (v Value, ok bool)

// Transform is one per-field override of a milestone Hook. Build it with
// Copy, RenameFrom, Coerce, Fallback or Func.
type Transform struct {
	strategy Strategy
	from     string
	value    Value
	fn       TransformFunc
}

// Copy returns the exact-kind copy strategy.
func Copy() Transform { return Transform{strategy: StrategyCopy} }

// RenameFrom returns a strategy reading the source field named from.
func RenameFrom(from string) Transform { return Transform{strategy: StrategyRename, from: from} }

// Coerce returns the copy-or-coerce strategy.
func Coerce() Transform { return Transform{strategy: StrategyCoerce} }

// Fallback returns a strategy that uses v whenever conversion fails.
func Fallback(v Value) Transform { return Transform{strategy: StrategyFallback, value: v} }

// Func returns a custom function strategy.
func Func(fn TransformFunc) Transform { return Transform{strategy: StrategyFunc, fn: fn} }

// Strategy returns the transform's strategy.
func (t Transform) Strategy() Strategy { return t.strategy }

// From returns the source field of a rename strategy.
func (t Transform) From() string { return t.from }

// Value returns the fixed value of a fallback strategy.
func (t Transform) Value() Value { return t.value }

// Fn returns the function of a custom strategy.
func (t Transform) Fn() TransformFunc { return t.fn }

// String names the strategy and its argument.
func (t Transform) String() string {
	switch t.strategy {
	case StrategyCopy:
		return "copy"
	case StrategyRename:
		return fmt.Sprintf("rename(from=%s)", t.from)
	case StrategyCoerce:
		return "coerce"
	case StrategyFallback:
		return fmt.Sprintf("fallback(%#v)", t.value)
	case StrategyFunc:
		return "func"
	default:
		return "none"
	}
}

// Hook holds the optional milestone logic for one version: per-field
// transforms, and a PostConvert function that sees the source record and
// the field-by-field result and returns the record to keep.
type Hook struct {
	Fields      map[string]Transform
	PostConvert func(old, converted Record) Record
}

// Transform returns the override for field, if any. Safe on a nil Hook.
func (h *Hook) Transform(field string) (Transform, bool) {
	if h == nil || h.Fields == nil {
		return Transform{}, false
	}
	t, ok := h.Fields[field]
	return t, ok
}
