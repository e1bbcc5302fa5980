package migrate

import (
	"math"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Coerce converts v to the target kind. It never panics; ok is false when
// the conversion is not supported.
//
// Supported: any numeric kind to any other, bool to numeric (true is 1),
// numeric to bool (non-zero is true), and identity. Strings and lists only
// convert to themselves. A typed null converts to the null of the target
// kind wherever a non-null value would.
//
// Float to integer truncates toward zero and saturates at the target's
// bounds; NaN becomes 0. Long to int keeps the low 32 bits.
func Coerce(v types.Value, target types.Kind) (types.Value, bool) {
	if !v.IsValid() || !target.Valid() {
		return types.Value{}, false
	}
	if v.Kind() == target {
		if target == types.KindList {
			return types.Value{}, false
		}
		return v, true
	}
	if v.IsNull() {
		if !coercible(v.Kind()) || !coercible(target) {
			return types.Value{}, false
		}
		return types.Null(target), true
	}

	var (
		isFloat bool
		i       int64
		f       float64
	)
	switch v.Kind() {
	case types.KindInt, types.KindLong:
		i = v.Long()
	case types.KindBool:
		if v.Bool() {
			i = 1
		}
	case types.KindFloat:
		isFloat, f = true, float64(v.Float())
	case types.KindDouble:
		isFloat, f = true, v.Double()
	case types.KindString, types.KindList, types.KindInvalid:
		return types.Value{}, false
	}

	switch target {
	case types.KindInt:
		if isFloat {
			return types.Int(int32(saturate(f, math.MinInt32, math.MaxInt32))), true
		}
		return types.Int(int32(i)), true
	case types.KindLong:
		if isFloat {
			return types.Long(saturate(f, math.MinInt64, math.MaxInt64)), true
		}
		return types.Long(i), true
	case types.KindFloat:
		if isFloat {
			return types.Float(float32(f)), true
		}
		return types.Float(float32(i)), true
	case types.KindDouble:
		if isFloat {
			return types.Double(f), true
		}
		return types.Double(float64(i)), true
	case types.KindBool:
		if isFloat {
			return types.Bool(f != 0), true
		}
		return types.Bool(i != 0), true
	case types.KindString, types.KindList, types.KindInvalid:
		return types.Value{}, false
	}
	return types.Value{}, false
}

// saturate truncates f toward zero and clamps it to [lo, hi].
func saturate(f float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= float64(hi):
		return hi
	case f <= float64(lo):
		return lo
	default:
		return int64(f)
	}
}

// coercible reports whether k takes part in numeric and bool coercion.
func coercible(k types.Kind) bool {
	return k.Numeric() || k == types.KindBool
}
