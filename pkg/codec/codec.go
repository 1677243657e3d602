// Package codec maps declared logical types to their query-string encoding.
//
// Each Kind has a fixed decode/encode rule. Scalar failures are returned as
// errors wrapping ErrParse or ErrSerialize so the caller can report them;
// KindObject failures are silent and simply produce an absent value.
//
// A Custom codec replaces the built-in rule for one key. It works on single
// values only: KindStringList keeps its repeated-key handling regardless.
package codec

import (
	stderrors "errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/query"
)

var (
	// ErrParse is wrapped by every reported decode failure.
	ErrParse = stderrors.New("querysync: parse failure")

	// ErrSerialize is wrapped by every reported encode failure.
	ErrSerialize = stderrors.New("querysync: serialize failure")
)

// TimeLayout is the encoding used for KindDate (millisecond precision, UTC).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// decodeLayouts are tried in order when parsing KindDate.
var decodeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Custom overrides the built-in rule for a key. Either side may be nil, in
// which case the built-in rule is used for that direction.
type Custom struct {
	Serialize func(value any) (string, error)
	Parse     func(raw string) (any, error)
}

// Decode converts one raw value to its logical type. A nil value with a nil
// error means absent without anything to report.
func Decode(raw string, kind Kind, custom *Custom) (any, error) {
	if custom != nil && custom.Parse != nil {
		v, err := callParse(custom.Parse, raw)
		if err != nil {
			if kind == KindObject {
				return nil, nil
			}
			return nil, parseError(raw, kind, err)
		}
		return v, nil
	}

	switch kind {
	case KindString:
		return raw, nil

	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, parseError(raw, kind, err)
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, parseError(raw, kind, stderrors.New("not a finite number"))
		}
		return f, nil

	case KindBoolean:
		switch raw {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, parseError(raw, kind, stderrors.New(`expected "true", "1", "false" or "0"`))

	case KindDate:
		for _, layout := range decodeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, parseError(raw, kind, stderrors.New("not a valid point in time"))

	case KindStringList:
		// A single occurrence decodes to a one-element list.
		return []string{raw}, nil

	case KindObject:
		unescaped, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal([]byte(unescaped), &v); err != nil {
			return nil, nil
		}
		return v, nil
	}

	return nil, parseError(raw, kind, fmt.Errorf("unsupported kind %d", kind))
}

// Encode converts a logical value to its raw string. ok is false when the
// value cannot be represented; err is non-nil when that should be reported.
// A nil value is absent and never an error.
func Encode(value any, kind Kind, custom *Custom) (raw string, ok bool, err error) {
	if value == nil {
		return "", false, nil
	}

	if custom != nil && custom.Serialize != nil {
		s, err := callSerialize(custom.Serialize, value)
		if err != nil {
			if kind == KindObject {
				return "", false, nil
			}
			return "", false, serializeError(value, kind, err)
		}
		return s, true, nil
	}

	switch kind {
	case KindString:
		s, isString := value.(string)
		if !isString {
			return "", false, serializeError(value, kind, stderrors.New("value is not a string"))
		}
		return s, true, nil

	case KindNumber:
		f, isNumber := toFloat(value)
		if !isNumber {
			return "", false, serializeError(value, kind, stderrors.New("value is not a number"))
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return "", false, serializeError(value, kind, stderrors.New("value is not finite"))
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true, nil

	case KindBoolean:
		b, isBool := value.(bool)
		if !isBool {
			return "", false, serializeError(value, kind, stderrors.New("value is not a boolean"))
		}
		return strconv.FormatBool(b), true, nil

	case KindDate:
		t, isTime := toTime(value)
		if !isTime {
			return "", false, serializeError(value, kind, stderrors.New("value is not a time.Time"))
		}
		return t.UTC().Format(TimeLayout), true, nil

	case KindStringList:
		return "", false, serializeError(value, kind, stderrors.New("string lists encode as repeated keys"))

	case KindObject:
		data, err := json.Marshal(value)
		if err != nil {
			return "", false, nil
		}
		return url.QueryEscape(string(data)), true, nil
	}

	return "", false, serializeError(value, kind, fmt.Errorf("unsupported kind %d", kind))
}

// DecodeParam reads key from p. For KindStringList every occurrence is read in
// order; a list is absent only when the key does not occur. raw is the first
// raw occurrence, for error reporting.
func DecodeParam(p *query.Params, key string, kind Kind, custom *Custom) (value any, raw string, err error) {
	if kind == KindStringList {
		all := p.GetAll(key)
		if len(all) == 0 {
			return nil, "", nil
		}
		return all, all[0], nil
	}

	raw, present := p.Get(key)
	if !present {
		return nil, "", nil
	}
	v, err := Decode(raw, kind, custom)
	return v, raw, err
}

// EncodeParam writes value for key into p following the rule for kind.
// Values that cannot be encoded remove the key; the returned error says
// whether that should be reported.
func EncodeParam(p *query.Params, key string, kind Kind, value any, custom *Custom) error {
	if kind == KindStringList {
		p.Delete(key)
		list, _ := toStrings(value)
		for _, item := range list {
			p.Append(key, item)
		}
		return nil
	}

	raw, ok, err := Encode(value, kind, custom)
	if !ok {
		p.Delete(key)
		return err
	}
	p.Set(key, raw)
	return nil
}

// callParse runs a custom parser, turning a panic into an error.
func callParse(parse func(string) (any, error), raw string) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, fmt.Errorf("custom parser panicked: %v", p)
		}
	}()
	return parse(raw)
}

// callSerialize runs a custom serializer, turning a panic into an error.
func callSerialize(serialize func(any) (string, error), value any) (s string, err error) {
	defer func() {
		if p := recover(); p != nil {
			s, err = "", fmt.Errorf("custom serializer panicked: %v", p)
		}
	}()
	return serialize(value)
}

func parseError(raw string, kind Kind, cause error) error {
	return errors.New("Q001").
		WithDetail(fmt.Sprintf("%q is not a valid %s: %v", raw, kind, cause)).
		Wrap(stderrors.Join(ErrParse, cause))
}

func serializeError(value any, kind Kind, cause error) error {
	return errors.New("Q002").
		WithDetail(fmt.Sprintf("%T cannot be encoded as %s: %v", value, kind, cause)).
		Wrap(stderrors.Join(ErrSerialize, cause))
}
