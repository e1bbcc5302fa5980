package migrate

import (
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Convert builds a record of newShape from a record of oldShape, for one
// migration step.
//
// Each target field is looked up under its name in snapshot (the rename
// map from Snapshot) or under its own name. A hook transform for the field
// decides if present. Otherwise lists with the same element kind and
// values of the same kind are copied, and other values go through Coerce.
// Whatever cannot be resolved gets the target field's default and is
// reported as a FieldFallback; one bad field never loses the record.
//
// When the hook has a PostConvert function it receives the source record and
// the converted one, and its non-nil result replaces the converted record.
func Convert(old types.Record, oldShape, newShape types.Shape, snapshot map[string]string, hook *types.Hook) (types.Record, []types.FieldFallback) {
	out := make(types.Record, len(newShape.Fields))
	var fallbacks []types.FieldFallback

	for _, target := range newShape.Fields {
		source := target.Name
		if s, ok := snapshot[target.Name]; ok {
			source = s
		}

		var (
			v      types.Value
			reason string
		)
		if t, ok := hook.Transform(target.Name); ok {
			if t.Strategy() == types.StrategyRename {
				source = t.From()
			}
			v, reason = applyTransform(t, old, oldShape, source, target)
		} else {
			src, present := lookup(old, oldShape, source)
			v, reason = convertValue(src, present, target)
		}

		if reason != "" {
			fallbacks = append(fallbacks, types.FieldFallback{
				Row:     -1,
				Version: newShape.Version,
				Field:   target.Name,
				Source:  source,
				Reason:  reason,
			})
		}
		if !v.IsValid() {
			v = target.DefaultValue()
		}
		out[target.Name] = v
	}

	if hook != nil && hook.PostConvert != nil {
		if r := hook.PostConvert(old, out); r != nil {
			out = r
		}
	}
	return out, fallbacks
}

// lookup returns the value of field name in rec, provided shape declares it.
func lookup(rec types.Record, shape types.Shape, name string) (types.Value, bool) {
	if _, ok := shape.Field(name); !ok {
		return types.Value{}, false
	}
	v, ok := rec[name]
	if !ok || !v.IsValid() {
		return types.Value{}, false
	}
	return v, true
}

// convertValue copies or coerces src into target. A non-empty reason means
// the returned value is invalid and the caller must fall back.
func convertValue(src types.Value, present bool, target types.Field) (types.Value, string) {
	if !present {
		return types.Value{}, types.ReasonMissing
	}
	if src.IsNull() {
		if !target.Nullable {
			return types.Value{}, types.ReasonNull
		}
		if target.Kind == types.KindList {
			if src.Kind() != types.KindList {
				return types.Value{}, types.ReasonUncoercible
			}
			return types.NullList(target.Elem), ""
		}
		if _, ok := Coerce(src, target.Kind); !ok {
			return types.Value{}, types.ReasonUncoercible
		}
		return types.Null(target.Kind), ""
	}

	if src.Kind() == types.KindList || target.Kind == types.KindList {
		if src.Kind() == target.Kind && src.Elem() == target.Elem {
			return src, ""
		}
		return types.Value{}, types.ReasonUncoercible
	}
	if src.Kind() == target.Kind {
		return src, ""
	}
	v, ok := Coerce(src, target.Kind)
	if !ok {
		return types.Value{}, types.ReasonUncoercible
	}
	return v, ""
}

// applyTransform runs one hook strategy for target.
func applyTransform(t types.Transform, old types.Record, oldShape types.Shape, source string, target types.Field) (types.Value, string) {
	src, present := lookup(old, oldShape, source)

	switch t.Strategy() {
	case types.StrategyCopy:
		if !present {
			return types.Value{}, types.ReasonMissing
		}
		if !target.Accepts(src) {
			if src.IsNull() {
				return types.Value{}, types.ReasonNull
			}
			return types.Value{}, types.ReasonUncoercible
		}
		return src, ""

	case types.StrategyRename, types.StrategyCoerce:
		return convertValue(src, present, target)

	case types.StrategyFallback:
		v, reason := convertValue(src, present, target)
		if reason == "" {
			return v, ""
		}
		if fb := t.Value(); target.Accepts(fb) {
			return fb, reason
		}
		return types.Value{}, reason

	case types.StrategyFunc:
		fn := t.Fn()
		if fn == nil {
			return convertValue(src, present, target)
		}
		v, ok := fn(src, present)
		if !ok || !v.IsValid() {
			return types.Value{}, types.ReasonRejected
		}
		if target.Accepts(v) {
			return v, ""
		}
		return convertValue(v, true, target)
	}
	return convertValue(src, present, target)
}
