package history

import (
	"sync"
)

// Entry is one slot of a Memory host's history stack.
type Entry struct {
	State    any
	Title    string
	Location Location
}

// Memory is an in-process Host with a back/forward stack. It is safe for
// concurrent use; popstate listeners run on the goroutine that navigated,
// after the host's lock is released.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	index   int

	push    Primitive
	replace Primitive

	listeners []popListener
	nextID    int
}

type popListener struct {
	id int
	fn func()
}

// NewMemory creates a host whose single entry is initial.
func NewMemory(initial string) (*Memory, error) {
	loc, err := ParseLocation(initial)
	if err != nil {
		return nil, err
	}
	m := &Memory{entries: []Entry{{Location: loc}}}
	m.push = m.nativePush
	m.replace = m.nativeReplace
	return m, nil
}

// Primitives implements Host.
func (m *Memory) Primitives() (push, replace Primitive) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.push, m.replace
}

// SetPrimitives implements Host. Nil primitives restore the native ones.
func (m *Memory) SetPrimitives(push, replace Primitive) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if push == nil {
		push = m.nativePush
	}
	if replace == nil {
		replace = m.nativeReplace
	}
	m.push, m.replace = push, replace
}

// Native returns the host's own primitives, ignoring anything installed.
func (m *Memory) Native() (push, replace Primitive) {
	return m.nativePush, m.nativeReplace
}

// PushState calls the installed push primitive, like history.pushState.
func (m *Memory) PushState(state any, title, url string) {
	push, _ := m.Primitives()
	push(state, title, url)
}

// ReplaceState calls the installed replace primitive, like history.replaceState.
func (m *Memory) ReplaceState(state any, title, url string) {
	_, replace := m.Primitives()
	replace(state, title, url)
}

// nativePush drops forward entries and appends a new one. Unresolvable
// addresses are ignored.
func (m *Memory) nativePush(state any, title, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, err := m.entries[m.index].Location.Resolve(url)
	if err != nil {
		return
	}
	m.entries = append(m.entries[:m.index+1], Entry{State: state, Title: title, Location: loc})
	m.index++
}

func (m *Memory) nativeReplace(state any, title, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, err := m.entries[m.index].Location.Resolve(url)
	if err != nil {
		return
	}
	m.entries[m.index] = Entry{State: state, Title: title, Location: loc}
}

// Location implements Host.
func (m *Memory) Location() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index].Location
}

// State returns the state token of the current entry.
func (m *Memory) State() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index].State
}

// Len returns the number of entries in the stack.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Index returns the position of the current entry.
func (m *Memory) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Entries returns a copy of the stack.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// OnPopState implements Host.
func (m *Memory) OnPopState(fn func()) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, popListener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Back moves one entry back. It reports false at the start of the stack.
func (m *Memory) Back() bool {
	return m.Go(-1)
}

// Forward moves one entry forward. It reports false at the end of the stack.
func (m *Memory) Forward() bool {
	return m.Go(1)
}

// Go moves delta entries and fires popstate. Out-of-range moves do nothing.
func (m *Memory) Go(delta int) bool {
	m.mu.Lock()
	target := m.index + delta
	if delta == 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = target
	listeners := make([]popListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.fn()
	}
	return true
}
