// Package script wraps the embedded tengo runtime: the strong-reference
// registry that keeps proxies alive, the finalized-proxy queue that feeds the
// directory sweep, and the behavior scripts entities dispatch handlers on.
package script

import (
	"sync"

	"go.uber.org/zap"

	"github.com/driftwood-engine/driftwood/bridge"
)

// Runtime is the process-wide scripting state. Create one at startup and
// Close it once at shutdown. All methods except Finalized must be called
// from the simulation thread.
type Runtime struct {
	log      *zap.Logger
	nextKey  int64
	registry map[int64]bridge.Proxy

	mu        sync.Mutex
	finalized []bridge.Object
}

// NewRuntime creates a runtime. A nil logger falls back to a nop logger.
func NewRuntime(log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		log:      log,
		registry: map[int64]bridge.Proxy{},
	}
}

// Pin stores a strong reference to a proxy and returns its registry key.
func (r *Runtime) Pin(p bridge.Proxy) int64 {
	r.nextKey++
	r.registry[r.nextKey] = p
	return r.nextKey
}

// Unpin drops the strong reference under key. The collector may reclaim the
// proxy afterwards.
func (r *Runtime) Unpin(key int64) {
	delete(r.registry, key)
}

// Finalized queues an object whose proxy the collector reclaimed. Safe to
// call from the collector's goroutine; this is the runtime's only
// cross-goroutine entry point.
func (r *Runtime) Finalized(obj bridge.Object) {
	r.mu.Lock()
	r.finalized = append(r.finalized, obj)
	r.mu.Unlock()
}

// DrainFinalized returns and clears the queue of collector-reclaimed
// objects. The directory sweep reaps each one on the simulation thread.
func (r *Runtime) DrainFinalized() []bridge.Object {
	r.mu.Lock()
	out := r.finalized
	r.finalized = nil
	r.mu.Unlock()
	return out
}

// Pinned returns the number of live registry entries.
func (r *Runtime) Pinned() int {
	if r == nil {
		return 0
	}
	return len(r.registry)
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *zap.Logger {
	if r == nil || r.log == nil {
		return zap.NewNop()
	}
	return r.log
}

// Close tears the registry down. Objects still pinned are logged and
// released; their payloads are reaped through the normal rule.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if n := len(r.registry); n > 0 {
		r.log.Debug("script: registry not empty at shutdown", zap.Int("pinned", n))
	}
	r.registry = map[int64]bridge.Proxy{}
	r.mu.Lock()
	leftover := r.finalized
	r.finalized = nil
	r.mu.Unlock()
	for _, obj := range leftover {
		bridge.Reap(obj)
	}
}
