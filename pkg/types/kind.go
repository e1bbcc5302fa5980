package types

import "fmt"

// Kind is the primitive kind of a field or value. The set is closed; every
// switch over Kind in this module is exhaustive.
type Kind int

// Supported kinds. KindInvalid is the zero value and marks "no kind".
const (
	KindInvalid Kind = iota
	KindInt          // 32-bit signed integer
	KindLong         // 64-bit signed integer
	KindFloat        // 32-bit float
	KindDouble       // 64-bit float
	KindBool
	KindString
	KindList // homogeneous list of a scalar element kind
)

var kindNames = map[Kind]string{
	KindInt:    "int",
	KindLong:   "long",
	KindFloat:  "float",
	KindDouble: "double",
	KindBool:   "bool",
	KindString: "string",
	KindList:   "list",
}

// String returns the lowercase kind name used in schema files.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Scalar reports whether k is a supported non-list kind.
func (k Kind) Scalar() bool {
	return k.Valid() && k != KindList
}

// Numeric reports whether k is one of the four numeric kinds.
func (k Kind) Numeric() bool {
	switch k {
	case KindInt, KindLong, KindFloat, KindDouble:
		return true
	default:
		return false
	}
}

// ParseKind returns the Kind named by s.
// Returns ErrUnknownKind if s is not a kind name.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%q: %w", s, ErrUnknownKind)
}
