// Package snapshot reads a typed value mapping out of a query string.
//
// A Reader walks the schema in declaration order. For each key it decodes the
// raw value, falls back to the configured default when the result is absent,
// and runs the key's validator once on the result. A rejected value is
// replaced by the default, which is not validated again.
package snapshot

import (
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/codec"
	"github.com/vango-dev/querysync/pkg/query"
)

// ErrValidation is wrapped by every validation failure report.
var ErrValidation = stderrors.New("querysync: validation failed")

// Validator reports whether a decoded value is acceptable.
type Validator func(value any) bool

// ErrorHandler observes parse, serialize and validation failures.
// raw is the offending raw string, or the formatted value for serialize failures.
type ErrorHandler func(err error, key, raw string)

// Options configures a Reader. Every key must be declared in the schema.
type Options struct {
	Defaults   Values
	Validators map[string]Validator
	Codecs     map[string]*codec.Custom
	OnError    ErrorHandler
	Logger     *slog.Logger
}

// Reader produces snapshots for one schema.
type Reader struct {
	schema     *Schema
	defaults   Values
	validators map[string]Validator
	codecs     map[string]*codec.Custom
	onError    ErrorHandler
	logger     *slog.Logger
}

// NewReader validates opts against schema and returns a Reader.
// Defaults are coerced to the canonical type of their key.
func NewReader(schema *Schema, opts Options) (*Reader, error) {
	r := &Reader{
		schema:     schema,
		defaults:   make(Values, len(opts.Defaults)),
		validators: make(map[string]Validator, len(opts.Validators)),
		codecs:     make(map[string]*codec.Custom, len(opts.Codecs)),
		onError:    opts.OnError,
		logger:     opts.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "snapshot")
	}

	for key, v := range opts.Defaults {
		kind, ok := schema.Kind(key)
		if !ok {
			return nil, schema.CheckKey(key)
		}
		if v == nil {
			continue
		}
		coerced, ok := codec.Coerce(v, kind)
		if !ok {
			return nil, errors.New("Q022").
				WithKey(key).
				WithDetail(fmt.Sprintf("default %v (%T) is not a valid %s", v, v, kind))
		}
		r.defaults[key] = coerced
	}
	for key, fn := range opts.Validators {
		if err := schema.CheckKey(key); err != nil {
			return nil, err
		}
		if fn != nil {
			r.validators[key] = fn
		}
	}
	for key, c := range opts.Codecs {
		if err := schema.CheckKey(key); err != nil {
			return nil, err
		}
		if c != nil {
			r.codecs[key] = c
		}
	}

	return r, nil
}

// Schema returns the schema the reader was built for.
func (r *Reader) Schema() *Schema {
	return r.schema
}

// Default returns the configured default for key.
func (r *Reader) Default(key string) (any, bool) {
	return r.defaults.Get(key)
}

// Codec returns the custom codec for key, or nil.
func (r *Reader) Codec(key string) *codec.Custom {
	return r.codecs[key]
}

// Read parses rawQuery (with or without "?") into a snapshot.
func (r *Reader) Read(rawQuery string) Values {
	return r.ReadParams(query.Parse(rawQuery))
}

// ReadParams reads a snapshot from already parsed params.
func (r *Reader) ReadParams(p *query.Params) Values {
	out := make(Values, r.schema.Len())

	for _, f := range r.schema.fields {
		value, raw, err := codec.DecodeParam(p, f.Key, f.Kind, r.codecs[f.Key])
		if err != nil {
			r.Report(err, f.Key, raw)
			value = nil
		}

		if value == nil {
			value, _ = r.defaults.Get(f.Key)
		}

		if value != nil {
			if validate, ok := r.validators[f.Key]; ok && !r.safeValidate(validate, value) {
				r.Report(validationError(f.Key), f.Key, raw)
				value, _ = r.defaults.Get(f.Key)
			}
		}

		if value == nil && f.Kind == codec.KindStringList {
			value = []string{}
		}
		if value != nil {
			out[f.Key] = value
		}
	}

	return out
}

// Report delivers err to the error handler. A panicking handler is logged
// and otherwise ignored.
func (r *Reader) Report(err error, key, raw string) {
	if se, ok := err.(*errors.SyncError); ok && se.Key == "" {
		se.WithKey(key)
	}
	r.logger.Debug("query value rejected", "key", key, "raw", raw, "error", err)
	if r.onError == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("error handler panicked", "key", key, "panic", p)
		}
	}()
	r.onError(err, key, raw)
}

func (r *Reader) safeValidate(validate Validator, value any) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("validator panicked", "panic", p)
			ok = false
		}
	}()
	return validate(value)
}

func validationError(key string) error {
	return errors.New("Q003").
		WithMessage("Validation failed for " + key).
		WithKey(key).
		Wrap(ErrValidation)
}
