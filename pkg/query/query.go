// Package query implements an ordered query-string parameter list.
//
// Unlike url.Values, Params keeps the order in which pairs appear in the
// address. Key order matters when a caller does not canonicalize: setting an
// existing key rewrites it in place, a new key goes to the end, and repeated
// keys keep their relative order.
//
//	p := query.Parse("?b=2&a=1&a=3")
//	p.GetAll("a")   // ["1", "3"]
//	p.Set("b", "x") // b=x&a=1&a=3
//	p.Sort()        // a=1&a=3&b=x
package query

import (
	"net/url"
	"sort"
	"strings"
)

// Pair is one key=value occurrence.
type Pair struct {
	Key   string
	Value string
}

// Params is an ordered list of query pairs. The zero value is empty and ready to use.
type Params struct {
	pairs []Pair
}

// Parse reads a raw query string (with or without the leading "?").
// Empty segments are skipped. A segment without "=" is a key with an empty value.
// Malformed percent escapes are kept literally.
func Parse(raw string) *Params {
	raw = strings.TrimPrefix(raw, "?")
	p := &Params{}
	if raw == "" {
		return p
	}
	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}
		k, v, _ := strings.Cut(segment, "=")
		p.pairs = append(p.pairs, Pair{Key: unescape(k), Value: unescape(v)})
	}
	return p
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return out
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	c := &Params{pairs: make([]Pair, len(p.pairs))}
	copy(c.pairs, p.pairs)
	return c
}

// Len returns the number of pairs.
func (p *Params) Len() int {
	return len(p.pairs)
}

// Pairs returns a copy of the pairs in order.
func (p *Params) Pairs() []Pair {
	out := make([]Pair, len(p.pairs))
	copy(out, p.pairs)
	return out
}

// Has reports whether key occurs at least once.
func (p *Params) Has(key string) bool {
	for _, pair := range p.pairs {
		if pair.Key == key {
			return true
		}
	}
	return false
}

// Get returns the first value for key.
func (p *Params) Get(key string) (string, bool) {
	for _, pair := range p.pairs {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// GetAll returns every value for key in order, or nil if key is absent.
func (p *Params) GetAll(key string) []string {
	var out []string
	for _, pair := range p.pairs {
		if pair.Key == key {
			out = append(out, pair.Value)
		}
	}
	return out
}

// Set replaces the first occurrence of key with value and removes the rest.
// If key is absent the pair is appended.
func (p *Params) Set(key, value string) {
	found := false
	kept := p.pairs[:0]
	for _, pair := range p.pairs {
		if pair.Key != key {
			kept = append(kept, pair)
			continue
		}
		if !found {
			found = true
			kept = append(kept, Pair{Key: key, Value: value})
		}
	}
	p.pairs = kept
	if !found {
		p.pairs = append(p.pairs, Pair{Key: key, Value: value})
	}
}

// Append adds a pair at the end without touching existing occurrences.
func (p *Params) Append(key, value string) {
	p.pairs = append(p.pairs, Pair{Key: key, Value: value})
}

// Delete removes every occurrence of key.
func (p *Params) Delete(key string) {
	kept := p.pairs[:0]
	for _, pair := range p.pairs {
		if pair.Key != key {
			kept = append(kept, pair)
		}
	}
	p.pairs = kept
}

// Sort orders pairs by key. The sort is stable, so repeated keys keep
// their relative order.
func (p *Params) Sort() {
	sort.SliceStable(p.pairs, func(i, j int) bool {
		return p.pairs[i].Key < p.pairs[j].Key
	})
}

// Encode serializes the pairs in order as application/x-www-form-urlencoded,
// without a leading "?".
func (p *Params) Encode() string {
	if len(p.pairs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, pair := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.Value))
	}
	return b.String()
}

// String is Encode.
func (p *Params) String() string {
	return p.Encode()
}

// Canonical parses raw and re-encodes it, sorted when sortKeys is set.
// Two query strings with the same Canonical form describe the same state.
func Canonical(raw string, sortKeys bool) string {
	p := Parse(raw)
	if sortKeys {
		p.Sort()
	}
	return p.Encode()
}
