package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a tagged variant holding one primitive of a supported Kind, a
// homogeneous list of scalars, or a typed null. The zero Value has
// KindInvalid and stands for "no value".
type Value struct {
	kind  Kind
	elem  Kind // element kind for lists
	null  bool
	num   int64   // int, long and bool payload
	flt   float64 // float and double payload
	str   string
	items []Value
}

// Int returns a 32-bit integer value.
func Int(v int32) Value { return Value{kind: KindInt, num: int64(v)} }

// Long returns a 64-bit integer value.
func Long(v int64) Value { return Value{kind: KindLong, num: v} }

// Float returns a 32-bit float value.
func Float(v float32) Value { return Value{kind: KindFloat, flt: float64(v)} }

// Double returns a 64-bit float value.
func Double(v float64) Value { return Value{kind: KindDouble, flt: v} }

// Bool returns a boolean value.
func Bool(v bool) Value {
	var n int64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// String returns a string value.
func String(v string) Value { return Value{kind: KindString, str: v} }

// List returns a list value with the given element kind. Items whose kind
// differs from elem are dropped, so a List is always homogeneous.
func List(elem Kind, items ...Value) Value {
	out := make([]Value, 0, len(items))
	for _, it := range items {
		if it.kind == elem && !it.null {
			out = append(out, it)
		}
	}
	return Value{kind: KindList, elem: elem, items: out}
}

// Null returns the null value of kind k.
func Null(k Kind) Value { return Value{kind: k, null: true} }

// NullList returns a null list with the given element kind.
func NullList(elem Kind) Value { return Value{kind: KindList, elem: elem, null: true} }

// Zero returns the zero value of kind k: 0, 0.0, false, "" or an empty list.
func Zero(k, elem Kind) Value {
	switch k {
	case KindInt:
		return Int(0)
	case KindLong:
		return Long(0)
	case KindFloat:
		return Float(0)
	case KindDouble:
		return Double(0)
	case KindBool:
		return Bool(false)
	case KindString:
		return String("")
	case KindList:
		return List(elem)
	default:
		return Value{}
	}
}

// Kind returns the value's kind; KindInvalid for the zero Value.
func (v Value) Kind() Kind { return v.kind }

// Elem returns the element kind of a list value.
func (v Value) Elem() Kind { return v.elem }

// IsNull reports whether v is a typed null.
func (v Value) IsNull() bool { return v.null }

// IsValid reports whether v holds a kind at all.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Int returns the payload of an int value.
func (v Value) Int() int32 { return int32(v.num) }

// Long returns the payload of a long value.
func (v Value) Long() int64 { return v.num }

// Float returns the payload of a float value.
func (v Value) Float() float32 { return float32(v.flt) }

// Double returns the payload of a double value.
func (v Value) Double() float64 { return v.flt }

// Bool returns the payload of a bool value.
func (v Value) Bool() bool { return v.num != 0 }

// Str returns the payload of a string value.
func (v Value) Str() string { return v.str }

// Items returns a copy of the items of a list value.
func (v Value) Items() []Value {
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

// Len returns the number of items of a list value.
func (v Value) Len() int { return len(v.items) }

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.null != o.null {
		return false
	}
	if v.null {
		return v.kind != KindList || v.elem == o.elem
	}
	switch v.kind {
	case KindInt, KindLong, KindBool:
		return v.num == o.num
	case KindFloat, KindDouble:
		return v.flt == o.flt || (math.IsNaN(v.flt) && math.IsNaN(o.flt))
	case KindString:
		return v.str == o.str
	case KindList:
		if v.elem != o.elem || len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Any returns v as a plain Go value: int32, int64, float32, float64, bool,
// string, []any, or nil for nulls and the zero Value.
func (v Value) Any() any {
	if v.null {
		return nil
	}
	switch v.kind {
	case KindInt:
		return v.Int()
	case KindLong:
		return v.num
	case KindFloat:
		return v.Float()
	case KindDouble:
		return v.flt
	case KindBool:
		return v.Bool()
	case KindString:
		return v.str
	case KindList:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Any()
		}
		return out
	default:
		return nil
	}
}

// GoString renders v for debugging and test failure output.
func (v Value) GoString() string {
	if !v.IsValid() {
		return "<none>"
	}
	if v.null {
		return v.kind.String() + "(null)"
	}
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindList:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = it.GoString()
		}
		return "list<" + v.elem.String() + ">[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%s(%v)", v.kind, v.Any())
	}
}

// FromAny decodes a plain Go value, as produced by encoding/json, yaml.v3
// or database/sql scanning, into a Value of kind k. For lists elem names
// the element kind, and a string or []byte raw value is parsed as a JSON
// array. nil decodes to the typed null.
// Returns ErrTypeMismatch if raw cannot represent kind k.
func FromAny(k, elem Kind, raw any) (Value, error) {
	if raw == nil {
		if k == KindList {
			return NullList(elem), nil
		}
		return Null(k), nil
	}
	switch k {
	case KindInt:
		n, ok := toInt64(raw)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return Value{}, mismatch(k, raw)
		}
		return Int(int32(n)), nil
	case KindLong:
		n, ok := toInt64(raw)
		if !ok {
			return Value{}, mismatch(k, raw)
		}
		return Long(n), nil
	case KindFloat:
		f, ok := toFloat64(raw)
		if !ok {
			return Value{}, mismatch(k, raw)
		}
		return Float(float32(f)), nil
	case KindDouble:
		f, ok := toFloat64(raw)
		if !ok {
			return Value{}, mismatch(k, raw)
		}
		return Double(f), nil
	case KindBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
		// SQLite stores booleans as 0/1 integers, and backups carry them as
		// JSON numbers.
		n, ok := toInt64(raw)
		if !ok || (n != 0 && n != 1) {
			return Value{}, mismatch(k, raw)
		}
		return Bool(n == 1), nil
	case KindString:
		switch s := raw.(type) {
		case string:
			return String(s), nil
		case []byte:
			return String(string(s)), nil
		}
		return Value{}, mismatch(k, raw)
	case KindList:
		return listFromAny(elem, raw)
	default:
		return Value{}, fmt.Errorf("%s: %w", k, ErrUnknownKind)
	}
}

func listFromAny(elem Kind, raw any) (Value, error) {
	var items []any
	switch r := raw.(type) {
	case []any:
		items = r
	case string:
		if err := json.Unmarshal([]byte(r), &items); err != nil {
			return Value{}, fmt.Errorf("decoding list: %w", err)
		}
	case []byte:
		if err := json.Unmarshal(r, &items); err != nil {
			return Value{}, fmt.Errorf("decoding list: %w", err)
		}
	default:
		return Value{}, mismatch(KindList, raw)
	}
	out := make([]Value, 0, len(items))
	for _, it := range items {
		v, err := FromAny(elem, KindInvalid, it)
		if err != nil {
			return Value{}, err
		}
		if v.IsNull() {
			return Value{}, fmt.Errorf("null list item: %w", ErrTypeMismatch)
		}
		out = append(out, v)
	}
	return Value{kind: KindList, elem: elem, items: out}, nil
}

func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func mismatch(k Kind, raw any) error {
	return fmt.Errorf("%T is not %s: %w", raw, k, ErrTypeMismatch)
}
