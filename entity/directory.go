package entity

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/driftwood-engine/driftwood/bridge"
	"github.com/driftwood-engine/driftwood/script"
)

// Directory owns the global entity set, the tag and id indexes, the pub/sub
// topic table, and the deferred-destroy sweep. One directory per simulation.
type Directory struct {
	rt  *script.Runtime
	log *zap.Logger

	nextID   uint64
	entities map[uint64]*Entity
	order    []*Entity
	tagIndex map[string][]*Entity
	topics   map[string][]Subscription
	doomed   []*Entity

	proxy      *directoryProxy
	loadScript func(name string) ([]byte, error)
}

// NewDirectory creates an empty directory bound to the scripting runtime.
// A nil logger falls back to the runtime's logger.
func NewDirectory(rt *script.Runtime, log *zap.Logger) *Directory {
	if log == nil {
		log = rt.Logger()
	}
	return &Directory{
		rt:       rt,
		log:      log,
		entities: map[uint64]*Entity{},
		tagIndex: map[string][]*Entity{},
		topics:   map[string][]Subscription{},
	}
}

// SetScriptLoader installs the loader used to resolve behavior script names,
// for BindBehaviorFile and hot reload.
func (d *Directory) SetScriptLoader(load func(name string) ([]byte, error)) {
	if d == nil {
		return
	}
	d.loadScript = load
}

// Create allocates and registers a new entity. The directory holds a
// reference on it until removal.
func (d *Directory) Create() *Entity {
	d.nextID++
	e := &Entity{
		id:      d.nextID,
		dir:     d,
		rt:      d.rt,
		active:  true,
		visible: true,
	}
	d.entities[e.id] = e
	d.order = append(d.order, e)
	bridge.Acquire(d.rt, e)
	return e
}

// FindByID returns the entity with the given id, or nil.
func (d *Directory) FindByID(id uint64) *Entity {
	if d == nil {
		return nil
	}
	return d.entities[id]
}

// FindByTag returns all live entities carrying the tag, in creation order.
func (d *Directory) FindByTag(tag string) []*Entity {
	if d == nil {
		return nil
	}
	var out []*Entity
	for _, e := range d.tagIndex[tag] {
		if e != nil && !e.destroyed {
			out = append(out, e)
		}
	}
	return out
}

// FindFirstByTag returns the oldest live entity carrying the tag, or nil.
func (d *Directory) FindFirstByTag(tag string) *Entity {
	for _, e := range d.tagIndex[tag] {
		if e != nil && !e.destroyed {
			return e
		}
	}
	return nil
}

// Count returns the number of live entities.
func (d *Directory) Count() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, e := range d.order {
		if e != nil && !e.destroyed {
			n++
		}
	}
	return n
}

// Remove tears an entity down immediately: subscriptions first, then the
// indexes, then the bridge decides when the payload is freed.
func (d *Directory) Remove(e *Entity) {
	if d == nil || e == nil {
		return
	}
	e.destroyed = true
	d.finalizeRemoval(e)
}

// Sweep processes deferred destroys and reaps objects whose proxies the
// collector reclaimed since the last tick. Call once per tick.
func (d *Directory) Sweep() {
	if d == nil {
		return
	}
	doomed := d.doomed
	d.doomed = nil
	for _, e := range doomed {
		d.finalizeRemoval(e)
	}
	for _, obj := range d.rt.DrainFinalized() {
		bridge.Reap(obj)
	}
}

func (d *Directory) finalizeRemoval(e *Entity) {
	if _, ok := d.entities[e.id]; !ok {
		return
	}
	d.dropSubscriptions(e)
	for _, tag := range e.tags {
		d.tagRemoved(e, tag)
	}
	delete(d.entities, e.id)
	for i, have := range d.order {
		if have == e {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	bridge.Destroy(d.rt, e)
}

// Update runs one simulation tick: each live entity's components in index
// order as of tick start, then its behavior's update handler. Entities and
// components added mid-tick wait for the next tick; destroying an entity
// mid-tick short-circuits the rest of its work.
func (d *Directory) Update(dt float64) {
	if d == nil {
		return
	}
	snapshot := make([]*Entity, len(d.order))
	copy(snapshot, d.order)
	for _, e := range snapshot {
		if e == nil || e.destroyed || !e.active {
			continue
		}
		n := len(e.components)
		for i := 0; i < n && i < len(e.components); i++ {
			e.components[i].Update(dt)
			if e.destroyed {
				break
			}
		}
		if e.destroyed || e.behavior == nil {
			continue
		}
		if _, _, err := e.Dispatch("update", dt); err != nil {
			d.log.Warn("update handler failed",
				zap.Uint64("entity", e.id),
				zap.String("behavior", e.behaviorPath),
				zap.Error(err))
		}
	}
}

// ByDrawOrder returns the live entities sorted by packed draw-order key,
// ties broken by id, for the external renderer.
func (d *Directory) ByDrawOrder() []*Entity {
	if d == nil {
		return nil
	}
	out := make([]*Entity, 0, len(d.order))
	for _, e := range d.order {
		if e != nil && !e.destroyed {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].drawOrder != out[j].drawOrder {
			return out[i].drawOrder < out[j].drawOrder
		}
		return out[i].id < out[j].id
	})
	return out
}

// ClearTransient destroys every non-persistent entity, as on a level change,
// and sweeps immediately.
func (d *Directory) ClearTransient() {
	if d == nil {
		return
	}
	snapshot := make([]*Entity, len(d.order))
	copy(snapshot, d.order)
	for _, e := range snapshot {
		if e != nil && !e.persistent {
			e.Destroy()
		}
	}
	d.Sweep()
}

// BindBehaviorFile loads a behavior script by name through the installed
// loader and binds it to the entity.
func (d *Directory) BindBehaviorFile(e *Entity, name string) error {
	if d == nil || d.loadScript == nil {
		return fmt.Errorf("entity: no script loader installed")
	}
	src, err := d.loadScript(name)
	if err != nil {
		return fmt.Errorf("entity: load behavior %s: %w", name, err)
	}
	return e.BindBehavior(name, src)
}

// ReloadScript recompiles and rebinds the named behavior on every entity
// running it. Used by the hot-reload watcher.
func (d *Directory) ReloadScript(name string) error {
	if d == nil || d.loadScript == nil {
		return fmt.Errorf("entity: no script loader installed")
	}
	src, err := d.loadScript(name)
	if err != nil {
		return fmt.Errorf("entity: reload %s: %w", name, err)
	}
	var firstErr error
	for _, e := range d.order {
		if e == nil || e.destroyed || e.behaviorPath != name {
			continue
		}
		if err := e.BindBehavior(name, src); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			d.log.Warn("behavior rebind failed",
				zap.Uint64("entity", e.id),
				zap.String("behavior", name),
				zap.Error(err))
		}
	}
	return firstErr
}

func (d *Directory) tagAdded(e *Entity, tag string) {
	d.tagIndex[tag] = append(d.tagIndex[tag], e)
}

func (d *Directory) tagRemoved(e *Entity, tag string) {
	have := d.tagIndex[tag]
	for i, other := range have {
		if other != e {
			continue
		}
		have = append(have[:i], have[i+1:]...)
		break
	}
	if len(have) == 0 {
		delete(d.tagIndex, tag)
		return
	}
	d.tagIndex[tag] = have
}
