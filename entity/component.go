// Package entity implements the entity-component runtime: entities own an
// ordered list of components, a tag set and a subscription list, and both
// entities and components are bridged to the scripting runtime through the
// lifetime protocol in package bridge.
package entity

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"weak"

	"github.com/driftwood-engine/driftwood/bridge"
)

// Kind identifies a component type.
type Kind string

// Payload carries a component's kind-specific data and behavior. The
// container never inspects payloads; it only dispatches through this
// interface, so new kinds attach without touching container code.
type Payload interface {
	Kind() Kind
	// Copy returns a deep copy of the payload for a fresh, unreferenced
	// component.
	Copy() Payload
	// Update advances the payload one tick. Passive data kinds no-op.
	Update(c *Component, dt float64)
	// Destroy releases kind-specific resources. Called exactly once, when
	// the bridge frees the component.
	Destroy()
}

// ScriptProperties is implemented by payloads that expose fields to scripts
// through the component proxy.
type ScriptProperties interface {
	GetProperty(name string) (any, bool)
	SetProperty(name string, value any) bool
}

var kindFactories = map[Kind]func() Payload{}

// RegisterKind installs a factory for a component kind. Registering an
// already-known kind replaces the factory.
func RegisterKind(k Kind, factory func() Payload) {
	if k == "" || factory == nil {
		return
	}
	kindFactories[k] = factory
}

var lastComponentID uint64

func nextComponentID() uint64 {
	return atomic.AddUint64(&lastComponentID, 1)
}

// Component is an attachable unit owned by at most one entity at a time.
type Component struct {
	id      uint64
	active  bool
	owner   *Entity
	payload Payload

	life     bridge.Lifetime
	proxyRef weak.Pointer[componentProxy]
}

// NewComponent creates an unattached, unreferenced component of the given
// registered kind.
func NewComponent(k Kind) (*Component, error) {
	factory, ok := kindFactories[k]
	if !ok {
		return nil, fmt.Errorf("entity: unknown component kind %q", k)
	}
	return &Component{
		id:      nextComponentID(),
		active:  true,
		payload: factory(),
	}, nil
}

func (c *Component) ID() uint64 {
	if c == nil {
		return 0
	}
	return c.id
}

func (c *Component) Kind() Kind {
	if c == nil || c.payload == nil {
		return ""
	}
	return c.payload.Kind()
}

func (c *Component) Active() bool {
	return c != nil && c.active
}

func (c *Component) SetActive(active bool) {
	if c == nil {
		return
	}
	if c.owner != nil && c.owner.destroyed {
		return
	}
	c.active = active
}

// Owner returns the entity this component is attached to, for lookup only.
func (c *Component) Owner() *Entity {
	if c == nil {
		return nil
	}
	return c.owner
}

func (c *Component) Payload() Payload {
	if c == nil {
		return nil
	}
	return c.payload
}

// Copy deep-copies the component. The copy has a fresh id, no owner, and a
// zero ref count.
func (c *Component) Copy() *Component {
	if c == nil || c.payload == nil {
		return nil
	}
	return &Component{
		id:      nextComponentID(),
		active:  c.active,
		payload: c.payload.Copy(),
	}
}

// Update advances the payload if the component is active.
func (c *Component) Update(dt float64) {
	if c == nil || !c.active || c.payload == nil {
		return
	}
	c.payload.Update(c, dt)
}

// Lifetime implements bridge.Object.
func (c *Component) Lifetime() *bridge.Lifetime { return &c.life }

// BridgeProxy implements bridge.Object, reviving a still-live proxy so a
// script that held on across a release sees the same object.
func (c *Component) BridgeProxy(r bridge.Registry) bridge.Proxy {
	if p := c.proxyRef.Value(); p != nil {
		return p
	}
	p := &componentProxy{c: c}
	c.proxyRef = weak.Make(p)
	runtime.SetFinalizer(p, func(*componentProxy) { r.Finalized(c) })
	return p
}

// FreePayload implements bridge.Object: kind-specific cleanup, then the
// component is inert.
func (c *Component) FreePayload() {
	if c.payload != nil {
		c.payload.Destroy()
	}
	c.owner = nil
}
