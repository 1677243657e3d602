// Package navbridge turns every address change on a history.Host into one
// notification stream.
//
// A Bridge wraps the host's push and replace primitives so that each call
// runs the original primitive and then notifies every subscriber. It also
// forwards the host's popstate signal to the same subscribers. Notifications
// carry no payload; subscribers re-read the host's Location.
//
// Interception is reference counted. The first Acquire saves the host's
// primitives and installs the wrappers; the last Release puts the saved
// primitives back exactly. Independent engines share one Bridge per host
// through For:
//
//	b := navbridge.For(host)
//	b.Acquire()
//	defer b.Release()
//	unsubscribe := b.Subscribe(func() { ... })
//	defer unsubscribe()
package navbridge

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/querysync/pkg/history"
)

// DefaultMaxPasses bounds how many times a broadcast is replayed when
// subscribers commit new addresses from inside a notification.
const DefaultMaxPasses = 16

// Source says which entry point produced a notification.
type Source int

const (
	SourcePush Source = iota
	SourceReplace
	SourcePopState
)

// String returns "push", "replace" or "popstate".
func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourceReplace:
		return "replace"
	case SourcePopState:
		return "popstate"
	}
	return "unknown"
}

// Observer receives bridge lifecycle events. Implementations must not block.
type Observer interface {
	// BridgeNotified is called once per intercepted commit or popstate.
	BridgeNotified(source Source)

	// BridgeIntercepting is called when interception is installed (true)
	// or removed (false).
	BridgeIntercepting(active bool)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		b.observer = o
	}
}

// WithMaxPasses sets the re-entrant replay limit. Values below 1 disable replay.
func WithMaxPasses(n int) Option {
	return func(b *Bridge) {
		b.maxPasses = n
	}
}

// Bridge intercepts one host.
type Bridge struct {
	mu   sync.Mutex
	host history.Host

	count       int
	origPush    history.Primitive
	origReplace history.Primitive
	removePop   func()

	subs   []subscriber
	nextID int

	broadcasting bool
	pending      bool
	maxPasses    int

	logger   *slog.Logger
	observer Observer
}

type subscriber struct {
	id int
	fn func()
}

// New creates a bridge for host. Most callers want For, which shares one
// bridge per host; two bridges acquired on the same host would stack their
// wrappers.
func New(host history.Host, opts ...Option) *Bridge {
	b := &Bridge{
		host:      host,
		maxPasses: DefaultMaxPasses,
		logger:    slog.Default().With("component", "navbridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Host returns the intercepted host.
func (b *Bridge) Host() history.Host {
	return b.host
}

// Configure applies options to an existing bridge, such as one from For.
func (b *Bridge) Configure(opts ...Option) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, opt := range opts {
		opt(b)
	}
}

// Acquire increments the reference count, installing interception on 0→1.
func (b *Bridge) Acquire() {
	b.mu.Lock()
	b.count++
	if b.count != 1 {
		b.mu.Unlock()
		return
	}

	b.origPush, b.origReplace = b.host.Primitives()
	b.host.SetPrimitives(b.wrap(b.origPush, SourcePush), b.wrap(b.origReplace, SourceReplace))
	b.removePop = b.host.OnPopState(func() { b.broadcast(SourcePopState) })
	observer := b.observer
	b.mu.Unlock()

	b.logger.Debug("navigation interception installed")
	if observer != nil {
		observer.BridgeIntercepting(true)
	}
}

// Release decrements the reference count, restoring the saved primitives on
// 1→0. Releasing an idle bridge does nothing.
func (b *Bridge) Release() {
	b.mu.Lock()
	if b.count == 0 {
		b.mu.Unlock()
		b.logger.Warn("release without matching acquire")
		return
	}
	b.count--
	if b.count != 0 {
		b.mu.Unlock()
		return
	}

	b.host.SetPrimitives(b.origPush, b.origReplace)
	b.origPush, b.origReplace = nil, nil
	if b.removePop != nil {
		b.removePop()
		b.removePop = nil
	}
	observer := b.observer
	b.mu.Unlock()

	b.logger.Debug("navigation interception removed")
	if observer != nil {
		observer.BridgeIntercepting(false)
	}
}

// Count returns the current reference count.
func (b *Bridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Active reports whether interception is installed.
func (b *Bridge) Active() bool {
	return b.Count() > 0
}

// Subscribe registers fn for notifications, delivered in registration order.
// The returned func unregisters it and may be called more than once.
func (b *Bridge) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Bridge) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Notify broadcasts as if source had fired. Hosts without a native popstate
// signal can call it directly.
func (b *Bridge) Notify(source Source) {
	b.broadcast(source)
}

func (b *Bridge) wrap(orig history.Primitive, source Source) history.Primitive {
	return func(state any, title, url string) {
		orig(state, title, url)
		b.broadcast(source)
	}
}

// broadcast delivers one notification to every subscriber synchronously.
// A broadcast requested while one is running is coalesced into a single
// replay after the current pass, up to maxPasses replays.
func (b *Bridge) broadcast(source Source) {
	b.mu.Lock()
	observer := b.observer
	if b.broadcasting {
		b.pending = true
		b.mu.Unlock()
		if observer != nil {
			observer.BridgeNotified(source)
		}
		return
	}
	b.broadcasting = true
	b.mu.Unlock()

	if observer != nil {
		observer.BridgeNotified(source)
	}

	for pass := 0; ; pass++ {
		b.mu.Lock()
		subs := make([]subscriber, len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		for _, s := range subs {
			s.fn()
		}

		b.mu.Lock()
		if !b.pending {
			b.broadcasting = false
			b.mu.Unlock()
			return
		}
		b.pending = false
		if pass+1 >= b.maxPasses {
			b.broadcasting = false
			b.mu.Unlock()
			b.logger.Warn("re-entrant navigation loop truncated", "passes", pass+1, "source", source.String())
			return
		}
		b.mu.Unlock()
	}
}
