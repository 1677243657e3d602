package snapshot

import (
	"reflect"
	"time"

	"github.com/vango-dev/querysync/pkg/codec"
)

// Values maps declared keys to typed values. A missing key is absent.
//
// Values read from the address use the canonical types listed on
// codec.Coerce. A snapshot is never mutated after it is published; use Clone
// to derive a new one.
type Values map[string]any

// Get returns the value for key and whether it is present.
func (v Values) Get(key string) (any, bool) {
	val, ok := v[key]
	if ok && val == nil {
		return nil, false
	}
	return val, ok
}

// String returns the string value for key.
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// Number returns the number value for key.
func (v Values) Number(key string) (float64, bool) {
	f, ok := v[key].(float64)
	return f, ok
}

// Bool returns the boolean value for key.
func (v Values) Bool(key string) (bool, bool) {
	b, ok := v[key].(bool)
	return b, ok
}

// Time returns the date value for key.
func (v Values) Time(key string) (time.Time, bool) {
	t, ok := v[key].(time.Time)
	return t, ok
}

// Strings returns the string-list value for key.
func (v Values) Strings(key string) ([]string, bool) {
	s, ok := v[key].([]string)
	return s, ok
}

// Object returns the opaque value for key.
func (v Values) Object(key string) (any, bool) {
	return v.Get(key)
}

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Normalize converts loosely typed changes, such as a decoded JSON object,
// to the canonical type of each declared key. Undeclared keys, nil values
// and values that cannot be converted are passed through unchanged so that
// the engine reports them.
func Normalize(s *Schema, changes map[string]any) Values {
	out := make(Values, len(changes))
	for key, v := range changes {
		kind, ok := s.Kind(key)
		if !ok || v == nil {
			out[key] = v
			continue
		}
		if coerced, ok := codec.Coerce(v, kind); ok {
			out[key] = coerced
			continue
		}
		out[key] = v
	}
	return out
}

// Equal compares two snapshots key by key over the schema's keys.
// Presence must match; present values compare by kind: dates by instant,
// lists element-wise, objects structurally, other kinds with ==.
func Equal(s *Schema, a, b Values) bool {
	for _, f := range s.fields {
		av, aok := a.Get(f.Key)
		bv, bok := b.Get(f.Key)
		if aok != bok {
			return false
		}
		if !aok {
			continue
		}
		if !valueEqual(f.Kind, av, bv) {
			return false
		}
	}
	return true
}

func valueEqual(kind codec.Kind, a, b any) bool {
	switch kind {
	case codec.KindObject:
		return reflect.DeepEqual(a, b)
	case codec.KindDate:
		at, aok := a.(time.Time)
		bt, bok := b.(time.Time)
		if aok && bok {
			return at.Equal(bt)
		}
	case codec.KindStringList:
		al, aok := a.([]string)
		bl, bok := b.([]string)
		if aok && bok {
			if len(al) != len(bl) {
				return false
			}
			for i := range al {
				if al[i] != bl[i] {
					return false
				}
			}
			return true
		}
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}
