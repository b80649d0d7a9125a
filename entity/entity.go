package entity

import (
	"fmt"
	"runtime"
	"weak"

	"github.com/d5/tengo/v2"

	"github.com/driftwood-engine/driftwood/bridge"
	"github.com/driftwood-engine/driftwood/common"
	"github.com/driftwood-engine/driftwood/script"
)

// Draw order packs a user priority into the high half of a 32-bit key. The
// low bits stay zero, reserved for a future secondary key, so the packed
// value sorts stably as a plain integer.
const (
	drawOrderShift = 16

	// MaxDrawPriority is the largest accepted draw priority.
	MaxDrawPriority = 1<<drawOrderShift - 1
)

// Entity is a game object: flags, spatial state, an ordered component list,
// tags, and pub/sub subscriptions. Entities are created through a Directory
// and bridged to the scripting runtime for their whole life.
type Entity struct {
	id  uint64
	dir *Directory
	rt  *script.Runtime

	active     bool
	visible    bool
	persistent bool
	destroyed  bool

	pos       common.Vec2
	bounds    common.Rect
	drawOrder uint32

	components []*Component
	tags       []string
	subs       []Subscription

	behavior     *script.Behavior
	behaviorPath string

	life     bridge.Lifetime
	proxyRef weak.Pointer[entityProxy]
}

// ID returns the entity's immutable id.
func (e *Entity) ID() uint64 {
	if e == nil {
		return 0
	}
	return e.id
}

func (e *Entity) Active() bool     { return e != nil && e.active }
func (e *Entity) Visible() bool    { return e != nil && e.visible }
func (e *Entity) Persistent() bool { return e != nil && e.persistent }
func (e *Entity) Destroyed() bool  { return e != nil && e.destroyed }

func (e *Entity) SetActive(v bool) {
	if e == nil || e.destroyed {
		return
	}
	e.active = v
}

func (e *Entity) SetVisible(v bool) {
	if e == nil || e.destroyed {
		return
	}
	e.visible = v
}

func (e *Entity) SetPersistent(v bool) {
	if e == nil || e.destroyed {
		return
	}
	e.persistent = v
}

func (e *Entity) Position() common.Vec2 {
	if e == nil {
		return common.Vec2{}
	}
	return e.pos
}

func (e *Entity) SetPosition(p common.Vec2) {
	if e == nil || e.destroyed {
		return
	}
	e.pos = p
}

// Bounds returns the local collision bounds.
func (e *Entity) Bounds() common.Rect {
	if e == nil {
		return common.Rect{}
	}
	return e.bounds
}

func (e *Entity) SetBounds(r common.Rect) {
	if e == nil || e.destroyed {
		return
	}
	e.bounds = r
}

// WorldBounds returns the local bounds translated to world space.
func (e *Entity) WorldBounds() common.Rect {
	if e == nil {
		return common.Rect{}
	}
	return e.bounds.Translate(e.pos)
}

// DrawOrder returns the packed sort key.
func (e *Entity) DrawOrder() uint32 {
	if e == nil {
		return 0
	}
	return e.drawOrder
}

// DrawPriority returns the user-settable priority part of the key.
func (e *Entity) DrawPriority() int {
	if e == nil {
		return 0
	}
	return int(e.drawOrder >> drawOrderShift)
}

// SetDrawPriority sets the priority part of the draw-order key. Out-of-range
// values are rejected, never clamped.
func (e *Entity) SetDrawPriority(p int) error {
	if p < 0 || p > MaxDrawPriority {
		return fmt.Errorf("entity: draw priority %d out of range [0, %d]", p, MaxDrawPriority)
	}
	if e == nil || e.destroyed {
		return nil
	}
	e.drawOrder = uint32(p) << drawOrderShift
	return nil
}

// Add appends a component, taking a reference on it. Ownership transfers to
// the entity. Fails on a destroyed entity or a component that is already
// attached somewhere; reparenting is an explicit remove then add.
func (e *Entity) Add(c *Component) bool {
	if e == nil || e.destroyed || c == nil {
		return false
	}
	if c.owner != nil {
		return false
	}
	c.owner = e
	e.components = append(e.components, c)
	bridge.Acquire(e.rt, c)
	return true
}

// Insert places a component at index idx, shifting the rest right. idx must
// be within [0, count].
func (e *Entity) Insert(c *Component, idx int) bool {
	if e == nil || e.destroyed || c == nil {
		return false
	}
	if c.owner != nil {
		return false
	}
	if idx < 0 || idx > len(e.components) {
		return false
	}
	c.owner = e
	e.components = append(e.components, nil)
	copy(e.components[idx+1:], e.components[idx:])
	e.components[idx] = c
	bridge.Acquire(e.rt, c)
	return true
}

// Remove detaches a component by identity, compacting the list left and
// clearing the vacated slot. Ownership returns to the caller, which must
// re-attach or destroy it.
func (e *Entity) Remove(c *Component) bool {
	if e == nil || e.destroyed || c == nil {
		return false
	}
	for i, have := range e.components {
		if have != c {
			continue
		}
		e.detachAt(i)
		return true
	}
	return false
}

// Pop removes and returns the last component, or nil when empty.
func (e *Entity) Pop() *Component {
	if e == nil || e.destroyed || len(e.components) == 0 {
		return nil
	}
	return e.detachAt(len(e.components) - 1)
}

// Shift removes and returns the first component, or nil when empty.
func (e *Entity) Shift() *Component {
	if e == nil || e.destroyed || len(e.components) == 0 {
		return nil
	}
	return e.detachAt(0)
}

func (e *Entity) detachAt(i int) *Component {
	c := e.components[i]
	copy(e.components[i:], e.components[i+1:])
	e.components[len(e.components)-1] = nil
	e.components = e.components[:len(e.components)-1]
	c.owner = nil
	bridge.Release(e.rt, c)
	return c
}

// Find returns the 1-based indices of all components of the given kind.
func (e *Entity) Find(kind Kind) []int {
	if e == nil {
		return nil
	}
	var out []int
	for i, c := range e.components {
		if c != nil && c.Kind() == kind {
			out = append(out, i+1)
		}
	}
	return out
}

// Get returns the component with the given id, or nil.
func (e *Entity) Get(id uint64) *Component {
	if e == nil {
		return nil
	}
	for _, c := range e.components {
		if c != nil && c.id == id {
			return c
		}
	}
	return nil
}

// At returns the component at the 0-based index, or nil.
func (e *Entity) At(i int) *Component {
	if e == nil || i < 0 || i >= len(e.components) {
		return nil
	}
	return e.components[i]
}

// Count returns the number of attached components.
func (e *Entity) Count() int {
	if e == nil {
		return 0
	}
	return len(e.components)
}

// AddTag adds a tag. Duplicates (case-sensitive) are rejected.
func (e *Entity) AddTag(tag string) bool {
	if e == nil || e.destroyed || tag == "" {
		return false
	}
	for _, have := range e.tags {
		if have == tag {
			return false
		}
	}
	e.tags = append(e.tags, tag)
	if e.dir != nil {
		e.dir.tagAdded(e, tag)
	}
	return true
}

// RemoveTag removes a tag if present.
func (e *Entity) RemoveTag(tag string) bool {
	if e == nil || e.destroyed {
		return false
	}
	for i, have := range e.tags {
		if have != tag {
			continue
		}
		e.tags = append(e.tags[:i], e.tags[i+1:]...)
		if e.dir != nil {
			e.dir.tagRemoved(e, tag)
		}
		return true
	}
	return false
}

// HasTag reports tag membership.
func (e *Entity) HasTag(tag string) bool {
	if e == nil {
		return false
	}
	for _, have := range e.tags {
		if have == tag {
			return true
		}
	}
	return false
}

// Tags returns a snapshot of the tag set.
func (e *Entity) Tags() []string {
	if e == nil || len(e.tags) == 0 {
		return nil
	}
	out := make([]string, len(e.tags))
	copy(out, e.tags)
	return out
}

// BindBehavior compiles src as the entity's behavior script and dispatches
// its optional spawn handler.
func (e *Entity) BindBehavior(name string, src []byte) error {
	if e == nil {
		return fmt.Errorf("entity: bind behavior on nil entity")
	}
	if e.destroyed {
		return fmt.Errorf("entity: bind behavior on destroyed entity %d", e.id)
	}

	globals := map[string]any{}
	if e.dir != nil {
		globals["world"] = e.dir.Proxy()
	}
	globals["log"] = scriptLog(e.rt, name)

	b, err := e.rt.CompileBehavior(name, src, globals)
	if err != nil {
		return err
	}
	e.behavior = b
	e.behaviorPath = name

	if _, _, err := e.dispatchObject("spawn"); err != nil {
		return err
	}
	return nil
}

// Behavior returns the bound behavior, if any.
func (e *Entity) Behavior() *script.Behavior {
	if e == nil {
		return nil
	}
	return e.behavior
}

// Dispatch runs the named handler on the entity's behavior script. A missing
// behavior or handler is a "did not run" result, never an error.
func (e *Entity) Dispatch(name string, args ...any) (bool, any, error) {
	objs := make([]tengo.Object, 0, len(args))
	for _, a := range args {
		obj, err := script.ToObject(a)
		if err != nil {
			return false, nil, fmt.Errorf("entity: dispatch %s: %w", name, err)
		}
		objs = append(objs, obj)
	}
	ran, ret, err := e.dispatchObject(name, objs...)
	return ran, script.FromObject(ret), err
}

func (e *Entity) dispatchObject(name string, args ...tengo.Object) (bool, tengo.Object, error) {
	if e == nil || e.destroyed || e.behavior == nil {
		return false, tengo.UndefinedValue, nil
	}
	// Borrow a reference for the duration of the call so the proxy handed to
	// the script as self stays pinned.
	bridge.Acquire(e.rt, e)
	defer bridge.Release(e.rt, e)
	self := e.BridgeProxy(e.rt).(tengo.Object)
	return e.behavior.Invoke(name, self, args...)
}

// Destroy marks the entity destroyed and defers removal to the directory's
// sweep. Further script-facing mutation is silently rejected; components
// stay queryable until native teardown completes.
func (e *Entity) Destroy() {
	if e == nil || e.destroyed {
		return
	}
	e.destroyed = true
	if e.dir != nil {
		e.dir.doomed = append(e.dir.doomed, e)
	}
}

// Lifetime implements bridge.Object.
func (e *Entity) Lifetime() *bridge.Lifetime { return &e.life }

// BridgeProxy implements bridge.Object.
func (e *Entity) BridgeProxy(r bridge.Registry) bridge.Proxy {
	if p := e.proxyRef.Value(); p != nil {
		return p
	}
	p := &entityProxy{e: e}
	e.proxyRef = weak.Make(p)
	runtime.SetFinalizer(p, func(*entityProxy) { r.Finalized(e) })
	return p
}

// FreePayload implements bridge.Object: destroys owned components and drops
// the rest of the payload. Subscriptions are already torn down by the
// directory before the bridge gets here.
func (e *Entity) FreePayload() {
	for i, c := range e.components {
		if c == nil {
			continue
		}
		c.owner = nil
		bridge.Destroy(e.rt, c)
		e.components[i] = nil
	}
	e.components = nil
	e.tags = nil
	e.subs = nil
	e.behavior = nil
}
