package types

import (
	"fmt"
	"regexp"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a table or column
// name without quoting tricks.
func ValidIdentifier(name string) bool {
	return identifierRegex.MatchString(name)
}

// Field describes one named, typed field of a Shape.
type Field struct {
	Name     string
	Kind     Kind
	Elem     Kind  // element kind, lists only
	Nullable bool  // field may hold a typed null
	Unique   bool  // storage enforces uniqueness across rows
	Default  Value // declared default; the zero Value means none declared
}

// DefaultValue returns the value a converter uses when nothing else
// resolves: the declared Default, else null for nullable fields, else the
// zero value of the kind.
func (f Field) DefaultValue() Value {
	if f.Default.IsValid() {
		return f.Default
	}
	if f.Nullable {
		if f.Kind == KindList {
			return NullList(f.Elem)
		}
		return Null(f.Kind)
	}
	return Zero(f.Kind, f.Elem)
}

// Accepts reports whether v may be stored in f as is.
func (f Field) Accepts(v Value) bool {
	if v.Kind() != f.Kind {
		return false
	}
	if v.IsNull() {
		return f.Nullable
	}
	return f.Kind != KindList || v.Elem() == f.Elem
}

// Validate checks that the field is well formed.
func (f Field) Validate() error {
	if !ValidIdentifier(f.Name) {
		return fmt.Errorf("field %q: invalid name: %w", f.Name, ErrInvalidShape)
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("field %q: %w", f.Name, ErrUnknownKind)
	}
	if f.Kind == KindList && !f.Elem.Scalar() {
		return fmt.Errorf("field %q: list needs a scalar element kind: %w", f.Name, ErrInvalidShape)
	}
	if f.Default.IsValid() && !f.Accepts(f.Default) {
		return fmt.Errorf("field %q: default %#v does not match %s: %w", f.Name, f.Default, f.Kind, ErrInvalidShape)
	}
	return nil
}

// Shape is a named record shape bound to one schema version. Field order is
// significant: storage creates columns in this order.
type Shape struct {
	Name    string
	Version int
	Fields  []Field
}

// Field returns the field called name.
func (s Shape) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in declaration order.
func (s Shape) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks every field and rejects duplicate names.
// Returns an error wrapping ErrInvalidShape or ErrUnknownKind.
func (s Shape) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("shape %s v%d has no fields: %w", s.Name, s.Version, ErrInvalidShape)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("shape %s v%d: %w", s.Name, s.Version, err)
		}
		if seen[f.Name] {
			return fmt.Errorf("shape %s v%d: duplicate field %q: %w", s.Name, s.Version, f.Name, ErrInvalidShape)
		}
		seen[f.Name] = true
	}
	return nil
}

// Record is one row, keyed by field name. A missing key means the field is
// absent, which is different from a typed null.
type Record map[string]Value

// Clone returns a shallow copy of r. Values are immutable, so this is a
// full copy for all practical purposes.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Encode returns r as a map of plain Go values restricted to the fields of
// shape, suitable for JSON encoding.
func (r Record) Encode(shape Shape) map[string]any {
	out := make(map[string]any, len(shape.Fields))
	for _, f := range shape.Fields {
		if v, ok := r[f.Name]; ok {
			out[f.Name] = v.Any()
		}
	}
	return out
}

// DecodeRecord builds a Record from plain Go values against shape. Keys not
// declared by shape are ignored and missing keys stay absent.
// Returns an error wrapping ErrTypeMismatch if a value does not fit its field.
func DecodeRecord(shape Shape, raw map[string]any) (Record, error) {
	rec := make(Record, len(shape.Fields))
	for _, f := range shape.Fields {
		x, ok := raw[f.Name]
		if !ok {
			continue
		}
		v, err := FromAny(f.Kind, f.Elem, x)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		rec[f.Name] = v
	}
	return rec, nil
}
