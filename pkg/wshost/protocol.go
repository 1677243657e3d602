// Package wshost drives a sync engine from a remote browser over a WebSocket.
//
// The browser owns the real address bar and history stack; the server keeps a
// mirror of the current address in a Host and runs the engine against it. The
// wire protocol is JSON text frames:
//
//	client → server
//	  {"type":"hello","url":"/items?page=2"}          first frame, opens the session
//	  {"type":"popstate","url":"/items?page=1"}       back/forward happened
//	  {"type":"patch","changes":{"page":3},"mode":"replace"}
//
//	server → client
//	  {"type":"push","url":"/items?page=3"}           call history.pushState
//	  {"type":"replace","url":"/items?page=3"}        call history.replaceState
//	  {"type":"snapshot","values":{"page":3}}         new derived state
//	  {"type":"error","code":"Q010","message":"..."}
//
// Each session's read loop is the engine's only goroutine, so patches and
// navigation events are applied strictly in arrival order.
package wshost

import (
	"github.com/goccy/go-json"

	"github.com/vango-dev/querysync/internal/errors"
)

// Message types.
const (
	TypeHello    = "hello"
	TypePopState = "popstate"
	TypePatch    = "patch"
	TypePush     = "push"
	TypeReplace  = "replace"
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Message is one protocol frame. Only the fields of its Type are set.
type Message struct {
	Type string `json:"type"`

	// URL is set on hello, popstate, push and replace.
	URL string `json:"url,omitempty"`

	// Changes and Mode are set on patch. Mode is "push", "replace" or empty
	// for the configured default.
	Changes map[string]any `json:"changes,omitempty"`
	Mode    string         `json:"mode,omitempty"`

	// Values is set on snapshot. An all-absent snapshot is sent as {}.
	Values map[string]any `json:"values"`

	// Code and Message are set on error.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// DecodeMessage parses a frame and checks that its type is known and that
// the fields its type requires are present.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New("Q030").WithDetail(err.Error())
	}
	switch m.Type {
	case TypeHello, TypePopState, TypePush, TypeReplace:
		if m.URL == "" {
			return nil, errors.New("Q030").WithDetail(m.Type + " requires a url")
		}
	case TypePatch:
		if m.Changes == nil {
			return nil, errors.New("Q030").WithDetail("patch requires changes")
		}
	case TypeSnapshot, TypeError:
	default:
		return nil, errors.New("Q030").WithDetail(`unknown message type "` + m.Type + `"`)
	}
	return &m, nil
}

// Encode serializes m.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// errorMessage builds an error frame from err.
func errorMessage(err error) *Message {
	code := errors.CodeOf(err)
	msg := err.Error()
	if se, ok := err.(*errors.SyncError); ok {
		msg = se.Message
		if se.Detail != "" {
			msg += ": " + se.Detail
		}
	}
	return &Message{Type: TypeError, Code: code, Message: msg}
}
