package codec

import (
	"strings"

	"github.com/vango-dev/querysync/internal/errors"
)

// Kind is the declared logical type of a query key.
type Kind int

const (
	// KindInvalid is the zero Kind and never valid in a schema.
	KindInvalid Kind = iota

	// KindString is carried verbatim.
	KindString

	// KindNumber is a finite float64.
	KindNumber

	// KindBoolean accepts "true"/"1" and "false"/"0".
	KindBoolean

	// KindDate is a time.Time encoded as an ISO-8601 UTC timestamp.
	KindDate

	// KindStringList is a []string carried as repeated keys: ?t=a&t=b
	KindStringList

	// KindObject is an opaque JSON value, URL-escaped into a single key.
	KindObject
)

var kindNames = map[Kind]string{
	KindString:     "string",
	KindNumber:     "number",
	KindBoolean:    "boolean",
	KindDate:       "date",
	KindStringList: "string-list",
	KindObject:     "object",
}

var kindAliases = map[string]Kind{
	"string":        KindString,
	"number":        KindNumber,
	"boolean":       KindBoolean,
	"bool":          KindBoolean,
	"date":          KindDate,
	"string-list":   KindStringList,
	"strings":       KindStringList,
	"string[]":      KindStringList,
	"object":        KindObject,
	"opaque-object": KindObject,
	"json":          KindObject,
}

// String returns the canonical tag name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Valid reports whether k is one of the declared tags.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind resolves a tag name (case-insensitive, with aliases).
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return KindInvalid, errors.New("Q012").
		WithDetail("unknown type tag " + `"` + s + `"`).
		WithSuggestion("Use one of: string, number, boolean, date, string-list, object")
}
