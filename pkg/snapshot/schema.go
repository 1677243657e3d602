package snapshot

import (
	stderrors "errors"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/codec"
)

var (
	// ErrUnknownKey is wrapped when an option or patch names an undeclared key.
	ErrUnknownKey = stderrors.New("querysync: unknown key")

	// ErrDuplicateKey is wrapped when a schema declares a key twice.
	ErrDuplicateKey = stderrors.New("querysync: duplicate key")
)

// Field declares one synchronized key.
type Field struct {
	Key  string
	Kind codec.Kind
}

// String, Number, Bool, Date, Strings and Object build fields.
func String(key string) Field  { return Field{Key: key, Kind: codec.KindString} }
func Number(key string) Field  { return Field{Key: key, Kind: codec.KindNumber} }
func Bool(key string) Field    { return Field{Key: key, Kind: codec.KindBoolean} }
func Date(key string) Field    { return Field{Key: key, Kind: codec.KindDate} }
func Strings(key string) Field { return Field{Key: key, Kind: codec.KindStringList} }
func Object(key string) Field  { return Field{Key: key, Kind: codec.KindObject} }

// Schema is an immutable, ordered type declaration map.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema. Declaration order is the order keys are read in.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Key == "" {
			return nil, errors.New("Q022").WithDetail("field key must not be empty")
		}
		if !f.Kind.Valid() {
			return nil, errors.New("Q012").WithKey(f.Key)
		}
		if _, dup := s.index[f.Key]; dup {
			return nil, errors.New("Q011").WithKey(f.Key).Wrap(ErrDuplicateKey)
		}
		s.index[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error. Intended for package-level declarations.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Keys returns the declared keys in order.
func (s *Schema) Keys() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Key
	}
	return out
}

// Len returns the number of declared keys.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Kind returns the declared tag for key.
func (s *Schema) Kind(key string) (codec.Kind, bool) {
	i, ok := s.index[key]
	if !ok {
		return codec.KindInvalid, false
	}
	return s.fields[i].Kind, true
}

// Has reports whether key is declared.
func (s *Schema) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// CheckKey returns an error wrapping ErrUnknownKey if key is not declared.
func (s *Schema) CheckKey(key string) error {
	if s.Has(key) {
		return nil
	}
	return errors.New("Q010").
		WithKey(key).
		WithSuggestion("Declare the key in the schema before configuring or patching it").
		Wrap(ErrUnknownKey)
}
