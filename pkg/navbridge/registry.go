package navbridge

import (
	"sync"

	"github.com/vango-dev/querysync/pkg/history"
)

var (
	registryMu sync.Mutex
	registry   = make(map[history.Host]*Bridge)
)

// For returns the process-wide bridge for host, creating it on first use.
// host must be comparable (every Host in this module is a pointer).
// Options apply only when the bridge is created.
func For(host history.Host, opts ...Option) *Bridge {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b, ok := registry[host]; ok {
		return b
	}
	b := New(host, opts...)
	registry[host] = b
	return b
}

// Forget drops host's bridge from the registry if it is idle. Hosts with a
// bounded lifetime, such as a WebSocket session, call it on teardown.
func Forget(host history.Host) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	b, ok := registry[host]
	if !ok {
		return false
	}
	if b.Active() {
		return false
	}
	delete(registry, host)
	return true
}
