package history

import (
	"strings"

	"github.com/vango-dev/querysync/internal/errors"
)

// Location is an address split into its parts. Parts are kept verbatim.
type Location struct {
	// Origin is "scheme://host" for absolute addresses, empty otherwise.
	Origin string

	// Path always starts with "/".
	Path string

	// RawQuery is the query string without "?".
	RawQuery string

	// Fragment is the hash without "#".
	Fragment string
}

// ParseLocation splits an address. Relative addresses resolve against "/".
func ParseLocation(raw string) (Location, error) {
	return Location{Path: "/"}.Resolve(raw)
}

// MustLocation is ParseLocation that panics on error.
func MustLocation(raw string) Location {
	l, err := ParseLocation(raw)
	if err != nil {
		panic(err)
	}
	return l
}

// Resolve returns the location ref points to when followed from l:
// "#x" changes only the fragment, "?q" keeps the path, "/p" keeps the
// origin, "p" is relative to the current directory, and "scheme://" is
// absolute.
func (l Location) Resolve(ref string) (Location, error) {
	if strings.ContainsAny(ref, "\x00\\") {
		return Location{}, errors.New("Q040").WithDetail("address contains a NUL byte or backslash")
	}

	if ref == "" {
		return l, nil
	}

	if strings.HasPrefix(ref, "#") {
		l.Fragment = ref[1:]
		return l, nil
	}

	rest, fragment, _ := strings.Cut(ref, "#")
	path, rawQuery, _ := strings.Cut(rest, "?")
	out := Location{Origin: l.Origin, RawQuery: rawQuery, Fragment: fragment}

	switch {
	case strings.HasPrefix(ref, "?"):
		out.Path = l.Path

	case hasScheme(path):
		scheme, after, _ := strings.Cut(path, "://")
		host, p, found := strings.Cut(after, "/")
		out.Origin = scheme + "://" + host
		out.Path = "/" + p
		if !found {
			out.Path = "/"
		}

	case strings.HasPrefix(path, "//"):
		host, p, _ := strings.Cut(path[2:], "/")
		scheme := "https"
		if l.Origin != "" {
			scheme, _, _ = strings.Cut(l.Origin, "://")
		}
		out.Origin = scheme + "://" + host
		out.Path = "/" + p

	case strings.HasPrefix(path, "/"):
		out.Path = path

	default:
		dir := l.Path[:strings.LastIndex(l.Path, "/")+1]
		if dir == "" {
			dir = "/"
		}
		out.Path = dir + path
	}

	if out.Path == "" {
		out.Path = "/"
	}
	return out, nil
}

// hasScheme reports whether path starts with an RFC 3986 scheme followed
// by "://". A "://" later in the path does not count.
func hasScheme(path string) bool {
	i := strings.Index(path, "://")
	if i <= 0 {
		return false
	}
	for j, c := range path[:i] {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// Relative returns path?query#fragment, the form the engine commits.
func (l Location) Relative() string {
	var b strings.Builder
	b.WriteString(l.Path)
	if l.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(l.RawQuery)
	}
	if l.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(l.Fragment)
	}
	return b.String()
}

// String returns the full address including the origin.
func (l Location) String() string {
	return l.Origin + l.Relative()
}

// WithQuery returns l with its query replaced; path and fragment are unchanged.
func (l Location) WithQuery(rawQuery string) Location {
	l.RawQuery = rawQuery
	return l
}
