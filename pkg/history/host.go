package history

import (
	"strings"

	"github.com/vango-dev/querysync/internal/errors"
)

// Mode determines how a commit is written to the host.
type Mode int

const (
	// ModePush adds a new history entry (default behavior).
	ModePush Mode = iota

	// ModeReplace replaces the current history entry (no back button spam).
	ModeReplace
)

// String returns "push" or "replace".
func (m Mode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "push"
}

// ParseMode resolves "push" or "replace" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "push":
		return ModePush, nil
	case "replace":
		return ModeReplace, nil
	}
	return ModePush, errors.New("Q013").
		WithDetail(`"` + s + `" is not a history mode`).
		WithSuggestion(`Use "push" or "replace"`)
}

// Primitive is an address-mutating entry point. It receives an opaque state
// token, a title placeholder, and the new address.
type Primitive func(state any, title, url string)

// Host is a navigation host.
type Host interface {
	// Primitives returns the currently installed push and replace entry points.
	Primitives() (push, replace Primitive)

	// SetPrimitives installs push and replace entry points.
	SetPrimitives(push, replace Primitive)

	// Location returns the current address.
	Location() Location

	// OnPopState registers fn to run after browser-driven navigation.
	// The returned func unregisters it.
	OnPopState(fn func()) (remove func())
}

// Commit writes url through the host's currently installed primitive for mode.
func Commit(h Host, mode Mode, url string) {
	push, replace := h.Primitives()
	if mode == ModeReplace {
		replace(nil, "", url)
		return
	}
	push(nil, "", url)
}
