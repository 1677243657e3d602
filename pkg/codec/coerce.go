package codec

import (
	"time"
)

// Coerce converts a loosely typed value (as produced by JSON or YAML decoding,
// or by a caller using plain Go ints) into the canonical Go type for kind:
//
//	KindString     string
//	KindNumber     float64
//	KindBoolean    bool
//	KindDate       time.Time
//	KindStringList []string
//	KindObject     any (unchanged)
//
// Strings are accepted for every scalar kind and decoded with the built-in
// rule. ok is false when v cannot be converted.
func Coerce(v any, kind Kind) (any, bool) {
	if v == nil {
		return nil, false
	}

	switch kind {
	case KindString:
		s, ok := v.(string)
		return s, ok

	case KindNumber:
		if f, ok := toFloat(v); ok {
			return f, true
		}

	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, true
		}

	case KindDate:
		if t, ok := toTime(v); ok {
			return t.UTC(), true
		}

	case KindStringList:
		return toStrings(v)

	case KindObject:
		return v, true
	}

	if s, ok := v.(string); ok {
		decoded, err := Decode(s, kind, nil)
		if err == nil && decoded != nil {
			return decoded, true
		}
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

func toStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
