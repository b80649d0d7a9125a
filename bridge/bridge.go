// Package bridge keeps native objects and their script-side proxies alive for
// exactly as long as either side needs them. A bridged object starts
// native-owned with no proxy; acquiring a reference pins a proxy in the
// scripting runtime's registry, and the last release after native ownership
// has been surrendered is what frees the payload, whether that release comes
// from native code or from the collector reclaiming the proxy.
package bridge

// Proxy is an opaque script-runtime value standing in for a native object.
type Proxy any

// Registry is the scripting runtime's strong-reference table. Pin prevents
// the collector from reclaiming a proxy; Finalized is invoked from the
// collector's goroutine when an unpinned proxy is reclaimed and must only
// queue the object for a later Reap on the simulation thread.
type Registry interface {
	Pin(p Proxy) int64
	Unpin(key int64)
	Finalized(obj Object)
}

// Object is a native value that can be handed to the scripting runtime.
type Object interface {
	// Lifetime returns the object's bridge state. Never nil.
	Lifetime() *Lifetime
	// BridgeProxy returns the object's proxy, creating or reviving it as
	// needed. Implementations register the registry's Finalized callback on
	// newly created proxies.
	BridgeProxy(r Registry) Proxy
	// FreePayload releases the native payload. The bridge calls it exactly
	// once per object.
	FreePayload()
}

// Lifetime is the per-object bridge state. Embed it in bridged types and
// return a pointer from Lifetime().
type Lifetime struct {
	refs        int
	key         int64
	surrendered bool
	freed       bool
}

// Refs returns the current reference count.
func (l *Lifetime) Refs() int {
	if l == nil {
		return 0
	}
	return l.refs
}

// Freed reports whether the payload has been released.
func (l *Lifetime) Freed() bool {
	return l != nil && l.freed
}

// Pinned reports whether a proxy is currently pinned in the registry.
func (l *Lifetime) Pinned() bool {
	return l != nil && l.key != 0
}

// Acquire takes a reference on obj. The first reference creates the proxy
// and pins it so the collector cannot reclaim it. A nil object or an acquire
// on an already-freed object is a broken native invariant and aborts.
func Acquire(r Registry, obj Object) {
	if obj == nil {
		panic("bridge: acquire on nil object")
	}
	l := obj.Lifetime()
	if l.freed {
		panic("bridge: acquire on freed object")
	}
	l.refs++
	if l.refs == 1 {
		l.key = r.Pin(obj.BridgeProxy(r))
	}
}

// Release drops one reference. At zero the proxy is unpinned and the
// collector may reclaim it independently. Underflow aborts.
func Release(r Registry, obj Object) {
	if obj == nil {
		panic("bridge: release on nil object")
	}
	l := obj.Lifetime()
	if l.refs <= 0 {
		panic("bridge: release underflow")
	}
	l.refs--
	if l.refs == 0 && l.key != 0 {
		r.Unpin(l.key)
		l.key = 0
	}
}

// Surrender marks the object as no longer native-owned without touching the
// reference count. Used for objects constructed on behalf of script code:
// if the script drops the proxy without the object ever being acquired, the
// finalizer frees the payload.
func Surrender(obj Object) {
	if obj == nil {
		panic("bridge: surrender on nil object")
	}
	obj.Lifetime().surrendered = true
}

// Destroy gives up native ownership. With no outstanding references the
// payload is freed immediately. Otherwise it behaves as a single Release and
// the free is deferred to the finalizer once the collector reclaims the
// proxy, so script code holding the handle never observes freed memory.
func Destroy(r Registry, obj Object) {
	if obj == nil {
		panic("bridge: destroy on nil object")
	}
	l := obj.Lifetime()
	if l.freed {
		panic("bridge: double destroy")
	}
	l.surrendered = true
	if l.refs == 0 {
		free(obj)
		return
	}
	Release(r, obj)
}

// Reap applies the who-frees rule for a proxy the collector has reclaimed.
// It runs on the simulation thread, fed by the registry's finalized queue.
// If a native re-acquire raced in and re-pinned a proxy, or native code still
// owns the payload, it is a no-op.
func Reap(obj Object) {
	if obj == nil {
		return
	}
	l := obj.Lifetime()
	if l.freed || !l.surrendered || l.key != 0 {
		return
	}
	free(obj)
}

func free(obj Object) {
	obj.Lifetime().freed = true
	obj.FreePayload()
}
