package entity

import (
	"go.uber.org/zap"

	"github.com/driftwood-engine/driftwood/script"
)

// Subscription pairs an entity with the handler it wants invoked for a topic.
type Subscription struct {
	Entity  *Entity
	Topic   string
	Handler string
}

// Subscribe registers (entity, handler) under topic in the directory's topic
// table and mirrors it in the entity's own subscription list, so teardown is
// symmetric from either side.
func (d *Directory) Subscribe(e *Entity, topic, handler string) bool {
	if d == nil || e == nil || e.destroyed || topic == "" || handler == "" {
		return false
	}
	sub := Subscription{Entity: e, Topic: topic, Handler: handler}
	d.topics[topic] = append(d.topics[topic], sub)
	e.subs = append(e.subs, sub)
	return true
}

// Unsubscribe removes the first matching (entity, handler) pair from both
// the topic table and the entity's list. An emptied topic entry is released.
func (d *Directory) Unsubscribe(e *Entity, topic, handler string) bool {
	if d == nil || e == nil {
		return false
	}
	if !d.removeTopicEntry(e, topic, handler) {
		return false
	}
	for i, sub := range e.subs {
		if sub.Topic == topic && sub.Handler == handler {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			break
		}
	}
	return true
}

func (d *Directory) removeTopicEntry(e *Entity, topic, handler string) bool {
	subs := d.topics[topic]
	for i, sub := range subs {
		if sub.Entity != e || sub.Handler != handler {
			continue
		}
		subs = append(subs[:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(d.topics, topic)
		} else {
			d.topics[topic] = subs
		}
		return true
	}
	return false
}

// dropSubscriptions tears down every subscription of a dying entity before
// its memory is released, so no topic entry outlives it.
func (d *Directory) dropSubscriptions(e *Entity) {
	for _, sub := range e.subs {
		d.removeTopicEntry(e, sub.Topic, sub.Handler)
	}
	e.subs = nil
}

// Publish delivers value to every subscriber of topic, synchronously, in
// subscription-registration order. A failing handler is isolated: the first
// failure is logged and delivery continues. Returns the number of handlers
// that ran.
func (d *Directory) Publish(topic string, value any) int {
	if d == nil {
		return 0
	}
	registered := d.topics[topic]
	if len(registered) == 0 {
		return 0
	}
	// Snapshot so handlers may subscribe and unsubscribe freely.
	subs := make([]Subscription, len(registered))
	copy(subs, registered)

	obj, err := script.ToObject(value)
	if err != nil {
		d.log.Warn("publish value not marshalable",
			zap.String("topic", topic),
			zap.Error(err))
		return 0
	}

	delivered := 0
	logged := false
	for _, sub := range subs {
		e := sub.Entity
		if e == nil || e.destroyed {
			continue
		}
		ran, _, err := e.dispatchObject(sub.Handler, obj)
		if err != nil {
			if !logged {
				logged = true
				d.log.Warn("publish handler failed",
					zap.String("topic", topic),
					zap.Uint64("entity", e.id),
					zap.String("handler", sub.Handler),
					zap.Error(err))
			}
			continue
		}
		if ran {
			delivered++
		}
	}
	return delivered
}
