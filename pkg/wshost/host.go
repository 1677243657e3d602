package wshost

import (
	"sync"

	"github.com/vango-dev/querysync/pkg/history"
)

// Host mirrors a remote browser's address. Its native primitives update the
// mirror and forward the new address to the browser; popstate events arrive
// through PopState.
type Host struct {
	mu       sync.Mutex
	location history.Location
	send     func(*Message)

	push    history.Primitive
	replace history.Primitive

	listeners []popListener
	nextID    int
}

type popListener struct {
	id int
	fn func()
}

// NewHost creates a host at initial. send receives every push and replace
// frame for the browser.
func NewHost(initial string, send func(*Message)) (*Host, error) {
	loc, err := history.ParseLocation(initial)
	if err != nil {
		return nil, err
	}
	h := &Host{location: loc, send: send}
	h.push = h.nativePush
	h.replace = h.nativeReplace
	return h, nil
}

// Primitives implements history.Host.
func (h *Host) Primitives() (push, replace history.Primitive) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.push, h.replace
}

// SetPrimitives implements history.Host. Nil restores the native primitive.
func (h *Host) SetPrimitives(push, replace history.Primitive) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if push == nil {
		push = h.nativePush
	}
	if replace == nil {
		replace = h.nativeReplace
	}
	h.push, h.replace = push, replace
}

// Location implements history.Host.
func (h *Host) Location() history.Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.location
}

// OnPopState implements history.Host.
func (h *Host) OnPopState(fn func()) (remove func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, popListener{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, l := range h.listeners {
				if l.id == id {
					h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// PopState records that the browser navigated to url through its own
// history and notifies listeners.
func (h *Host) PopState(url string) error {
	h.mu.Lock()
	loc, err := h.location.Resolve(url)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.location = loc
	listeners := make([]popListener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, l := range listeners {
		l.fn()
	}
	return nil
}

func (h *Host) nativePush(_ any, _ string, url string) {
	h.commit(TypePush, url)
}

func (h *Host) nativeReplace(_ any, _ string, url string) {
	h.commit(TypeReplace, url)
}

func (h *Host) commit(msgType, url string) {
	h.mu.Lock()
	loc, err := h.location.Resolve(url)
	if err != nil {
		h.mu.Unlock()
		return
	}
	h.location = loc
	h.mu.Unlock()

	if h.send != nil {
		h.send(&Message{Type: msgType, URL: loc.Relative()})
	}
}
