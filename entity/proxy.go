package entity

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"

	"github.com/driftwood-engine/driftwood/bridge"
	"github.com/driftwood-engine/driftwood/common"
	"github.com/driftwood-engine/driftwood/script"
)

// entityProxy is the scripting runtime's view of an Entity. Property reads
// and writes go through a fixed name table; type or argument mismatches
// surface as script errors, while mutation of a destroyed entity is silently
// dropped.
type entityProxy struct {
	tengo.ObjectImpl
	e *Entity
}

func (p *entityProxy) TypeName() string { return "entity" }

func (p *entityProxy) String() string {
	return fmt.Sprintf("entity(%d)", p.e.ID())
}

func (p *entityProxy) IsFalsy() bool {
	return p.e == nil || p.e.life.Freed()
}

func (p *entityProxy) Copy() tengo.Object { return p }

func (p *entityProxy) Equals(o tengo.Object) bool {
	q, ok := o.(*entityProxy)
	return ok && q.e == p.e
}

func (p *entityProxy) IndexGet(index tengo.Object) (tengo.Object, error) {
	name, ok := tengo.ToString(index)
	if !ok {
		return nil, tengo.ErrInvalidIndexType
	}
	e := p.e

	switch name {
	case "id":
		return &tengo.Int{Value: int64(e.ID())}, nil
	case "active":
		return boolValue(e.Active()), nil
	case "visible":
		return boolValue(e.Visible()), nil
	case "persistent":
		return boolValue(e.Persistent()), nil
	case "destroyed":
		return boolValue(e.Destroyed()), nil
	case "draw_order":
		return &tengo.Int{Value: int64(e.DrawPriority())}, nil
	case "position":
		pos := e.Position()
		return vecValue(pos), nil
	case "bounds":
		return rectValue(e.Bounds()), nil
	case "world_bounds":
		return rectValue(e.WorldBounds()), nil
	case "tags":
		tags := e.Tags()
		out := make([]tengo.Object, 0, len(tags))
		for _, t := range tags {
			out = append(out, &tengo.String{Value: t})
		}
		return &tengo.ImmutableArray{Value: out}, nil
	case "components":
		return &componentsProxy{e: e}, nil

	case "add_tag":
		return &tengo.UserFunction{Name: "add_tag", Value: func(args ...tengo.Object) (tengo.Object, error) {
			tag, err := stringArg(args, 0, "tag")
			if err != nil {
				return nil, err
			}
			return boolValue(e.AddTag(tag)), nil
		}}, nil
	case "remove_tag":
		return &tengo.UserFunction{Name: "remove_tag", Value: func(args ...tengo.Object) (tengo.Object, error) {
			tag, err := stringArg(args, 0, "tag")
			if err != nil {
				return nil, err
			}
			return boolValue(e.RemoveTag(tag)), nil
		}}, nil
	case "has_tag":
		return &tengo.UserFunction{Name: "has_tag", Value: func(args ...tengo.Object) (tengo.Object, error) {
			tag, err := stringArg(args, 0, "tag")
			if err != nil {
				return nil, err
			}
			return boolValue(e.HasTag(tag)), nil
		}}, nil

	case "subscribe":
		return &tengo.UserFunction{Name: "subscribe", Value: func(args ...tengo.Object) (tengo.Object, error) {
			topic, err := stringArg(args, 0, "topic")
			if err != nil {
				return nil, err
			}
			handler, err := stringArg(args, 1, "handler")
			if err != nil {
				return nil, err
			}
			return boolValue(e.dir.Subscribe(e, topic, handler)), nil
		}}, nil
	case "unsubscribe":
		return &tengo.UserFunction{Name: "unsubscribe", Value: func(args ...tengo.Object) (tengo.Object, error) {
			topic, err := stringArg(args, 0, "topic")
			if err != nil {
				return nil, err
			}
			handler, err := stringArg(args, 1, "handler")
			if err != nil {
				return nil, err
			}
			return boolValue(e.dir.Unsubscribe(e, topic, handler)), nil
		}}, nil

	case "dispatch":
		return &tengo.UserFunction{Name: "dispatch", Value: func(args ...tengo.Object) (tengo.Object, error) {
			handler, err := stringArg(args, 0, "handler")
			if err != nil {
				return nil, err
			}
			ran, ret, err := e.dispatchObject(handler, args[1:]...)
			if err != nil {
				// Handler failures never propagate into the caller's run.
				if e.rt != nil {
					e.rt.Logger().Warn("dispatch failed",
						zap.Uint64("entity", e.ID()),
						zap.String("handler", handler),
						zap.Error(err))
				}
				return tengo.UndefinedValue, nil
			}
			if !ran {
				return tengo.UndefinedValue, nil
			}
			return ret, nil
		}}, nil

	case "destroy":
		return &tengo.UserFunction{Name: "destroy", Value: func(args ...tengo.Object) (tengo.Object, error) {
			e.Destroy()
			return tengo.UndefinedValue, nil
		}}, nil
	}

	return tengo.UndefinedValue, nil
}

func (p *entityProxy) IndexSet(index, value tengo.Object) error {
	name, ok := tengo.ToString(index)
	if !ok {
		return tengo.ErrInvalidIndexType
	}
	e := p.e
	if e == nil || e.destroyed || e.life.Freed() {
		// Tolerates idempotent script calls against dead entities.
		return nil
	}

	switch name {
	case "active", "visible", "persistent":
		b, ok := value.(*tengo.Bool)
		if !ok {
			return tengo.ErrInvalidArgumentType{Name: name, Expected: "bool", Found: value.TypeName()}
		}
		v := !b.IsFalsy()
		switch name {
		case "active":
			e.SetActive(v)
		case "visible":
			e.SetVisible(v)
		case "persistent":
			e.SetPersistent(v)
		}
		return nil
	case "draw_order":
		n, ok := tengo.ToInt(value)
		if !ok {
			return tengo.ErrInvalidArgumentType{Name: name, Expected: "int", Found: value.TypeName()}
		}
		return e.SetDrawPriority(n)
	case "position":
		pos, err := vecArg(value, name)
		if err != nil {
			return err
		}
		e.SetPosition(pos)
		return nil
	}
	return fmt.Errorf("entity: cannot set %q", name)
}

// componentsProxy exposes an entity's component list to scripts. Indices
// reported by find are 1-based; insert positions are 0-based over
// [0, count], matching the native API.
type componentsProxy struct {
	tengo.ObjectImpl
	e *Entity
}

func (p *componentsProxy) TypeName() string { return "entity-components" }

func (p *componentsProxy) String() string {
	return fmt.Sprintf("components(%d)", p.e.Count())
}

func (p *componentsProxy) Copy() tengo.Object { return p }

func (p *componentsProxy) IndexGet(index tengo.Object) (tengo.Object, error) {
	name, ok := tengo.ToString(index)
	if !ok {
		return nil, tengo.ErrInvalidIndexType
	}
	e := p.e

	switch name {
	case "count":
		return &tengo.Int{Value: int64(e.Count())}, nil

	case "add":
		return &tengo.UserFunction{Name: "add", Value: func(args ...tengo.Object) (tengo.Object, error) {
			c, err := componentArg(args, 0)
			if err != nil {
				return nil, err
			}
			return boolValue(e.Add(c)), nil
		}}, nil
	case "remove":
		return &tengo.UserFunction{Name: "remove", Value: func(args ...tengo.Object) (tengo.Object, error) {
			c, err := componentArg(args, 0)
			if err != nil {
				return nil, err
			}
			return boolValue(e.Remove(c)), nil
		}}, nil
	case "insert":
		return &tengo.UserFunction{Name: "insert", Value: func(args ...tengo.Object) (tengo.Object, error) {
			c, err := componentArg(args, 0)
			if err != nil {
				return nil, err
			}
			if len(args) < 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			idx, ok := tengo.ToInt(args[1])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "index", Expected: "int", Found: args[1].TypeName()}
			}
			return boolValue(e.Insert(c, idx)), nil
		}}, nil
	case "pop":
		return &tengo.UserFunction{Name: "pop", Value: func(args ...tengo.Object) (tengo.Object, error) {
			return detachedValue(e, e.Pop()), nil
		}}, nil
	case "shift":
		return &tengo.UserFunction{Name: "shift", Value: func(args ...tengo.Object) (tengo.Object, error) {
			return detachedValue(e, e.Shift()), nil
		}}, nil
	case "find":
		return &tengo.UserFunction{Name: "find", Value: func(args ...tengo.Object) (tengo.Object, error) {
			kind, err := stringArg(args, 0, "kind")
			if err != nil {
				return nil, err
			}
			indices := e.Find(Kind(kind))
			out := make([]tengo.Object, 0, len(indices))
			for _, i := range indices {
				out = append(out, &tengo.Int{Value: int64(i)})
			}
			return &tengo.Array{Value: out}, nil
		}}, nil
	case "get":
		return &tengo.UserFunction{Name: "get", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			id, ok := tengo.ToInt64(args[0])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "id", Expected: "int", Found: args[0].TypeName()}
			}
			c := e.Get(uint64(id))
			if c == nil {
				return tengo.UndefinedValue, nil
			}
			return c.BridgeProxy(e.rt).(tengo.Object), nil
		}}, nil
	}

	return tengo.UndefinedValue, nil
}

// componentProxy is the scripting runtime's view of a Component.
type componentProxy struct {
	tengo.ObjectImpl
	c *Component
}

func (p *componentProxy) TypeName() string { return "component" }

func (p *componentProxy) String() string {
	return fmt.Sprintf("component(%s:%d)", p.c.Kind(), p.c.ID())
}

func (p *componentProxy) IsFalsy() bool {
	return p.c == nil || p.c.life.Freed()
}

func (p *componentProxy) Copy() tengo.Object { return p }

func (p *componentProxy) Equals(o tengo.Object) bool {
	q, ok := o.(*componentProxy)
	return ok && q.c == p.c
}

func (p *componentProxy) IndexGet(index tengo.Object) (tengo.Object, error) {
	name, ok := tengo.ToString(index)
	if !ok {
		return nil, tengo.ErrInvalidIndexType
	}
	c := p.c

	switch name {
	case "id":
		return &tengo.Int{Value: int64(c.ID())}, nil
	case "kind":
		return &tengo.String{Value: string(c.Kind())}, nil
	case "active":
		return boolValue(c.Active()), nil
	case "owner":
		owner := c.Owner()
		if owner == nil {
			return tengo.UndefinedValue, nil
		}
		return owner.BridgeProxy(owner.rt).(tengo.Object), nil
	}

	if props, ok := c.Payload().(ScriptProperties); ok {
		if v, ok := props.GetProperty(name); ok {
			return script.ToObject(v)
		}
	}
	return tengo.UndefinedValue, nil
}

func (p *componentProxy) IndexSet(index, value tengo.Object) error {
	name, ok := tengo.ToString(index)
	if !ok {
		return tengo.ErrInvalidIndexType
	}
	c := p.c
	if c == nil || c.life.Freed() {
		return nil
	}
	if owner := c.Owner(); owner != nil && owner.destroyed {
		return nil
	}

	if name == "active" {
		b, ok := value.(*tengo.Bool)
		if !ok {
			return tengo.ErrInvalidArgumentType{Name: name, Expected: "bool", Found: value.TypeName()}
		}
		c.SetActive(!b.IsFalsy())
		return nil
	}

	if props, ok := c.Payload().(ScriptProperties); ok {
		if props.SetProperty(name, script.FromObject(value)) {
			return nil
		}
	}
	return fmt.Errorf("component: cannot set %q on kind %q", name, c.Kind())
}

// directoryProxy is the world object handed to behavior scripts.
type directoryProxy struct {
	tengo.ObjectImpl
	d *Directory
}

// Proxy returns the directory's script-facing world object.
func (d *Directory) Proxy() tengo.Object {
	if d.proxy == nil {
		d.proxy = &directoryProxy{d: d}
	}
	return d.proxy
}

func (p *directoryProxy) TypeName() string { return "world" }

func (p *directoryProxy) String() string {
	return fmt.Sprintf("world(%d)", p.d.Count())
}

func (p *directoryProxy) Copy() tengo.Object { return p }

func (p *directoryProxy) IndexGet(index tengo.Object) (tengo.Object, error) {
	name, ok := tengo.ToString(index)
	if !ok {
		return nil, tengo.ErrInvalidIndexType
	}
	d := p.d

	switch name {
	case "count":
		return &tengo.Int{Value: int64(d.Count())}, nil

	case "create":
		return &tengo.UserFunction{Name: "create", Value: func(args ...tengo.Object) (tengo.Object, error) {
			e := d.Create()
			return e.BridgeProxy(d.rt).(tengo.Object), nil
		}}, nil
	case "component":
		return &tengo.UserFunction{Name: "component", Value: func(args ...tengo.Object) (tengo.Object, error) {
			kind, err := stringArg(args, 0, "kind")
			if err != nil {
				return nil, err
			}
			c, err := NewComponent(Kind(kind))
			if err != nil {
				return nil, err
			}
			// Script-owned until attached: dropping the proxy frees it.
			bridge.Surrender(c)
			return c.BridgeProxy(d.rt).(tengo.Object), nil
		}}, nil
	case "find_by_id":
		return &tengo.UserFunction{Name: "find_by_id", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			id, ok := tengo.ToInt64(args[0])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "id", Expected: "int", Found: args[0].TypeName()}
			}
			e := d.FindByID(uint64(id))
			if e == nil || e.destroyed {
				return tengo.UndefinedValue, nil
			}
			return e.BridgeProxy(d.rt).(tengo.Object), nil
		}}, nil
	case "find_by_tag":
		return &tengo.UserFunction{Name: "find_by_tag", Value: func(args ...tengo.Object) (tengo.Object, error) {
			tag, err := stringArg(args, 0, "tag")
			if err != nil {
				return nil, err
			}
			found := d.FindByTag(tag)
			out := make([]tengo.Object, 0, len(found))
			for _, e := range found {
				out = append(out, e.BridgeProxy(d.rt).(tengo.Object))
			}
			return &tengo.Array{Value: out}, nil
		}}, nil
	case "find_first_by_tag":
		return &tengo.UserFunction{Name: "find_first_by_tag", Value: func(args ...tengo.Object) (tengo.Object, error) {
			tag, err := stringArg(args, 0, "tag")
			if err != nil {
				return nil, err
			}
			e := d.FindFirstByTag(tag)
			if e == nil {
				return tengo.UndefinedValue, nil
			}
			return e.BridgeProxy(d.rt).(tengo.Object), nil
		}}, nil
	case "publish":
		return &tengo.UserFunction{Name: "publish", Value: func(args ...tengo.Object) (tengo.Object, error) {
			topic, err := stringArg(args, 0, "topic")
			if err != nil {
				return nil, err
			}
			var value tengo.Object = tengo.UndefinedValue
			if len(args) > 1 {
				value = args[1]
			}
			delivered := d.Publish(topic, value)
			return &tengo.Int{Value: int64(delivered)}, nil
		}}, nil
	}

	return tengo.UndefinedValue, nil
}

func scriptLog(rt *script.Runtime, source string) *tengo.UserFunction {
	return &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, script.ObjectAsString(a))
		}
		rt.Logger().Info(strings.Join(parts, " "), zap.String("behavior", source))
		return tengo.UndefinedValue, nil
	}}
}

func boolValue(v bool) tengo.Object {
	if v {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}

func vecValue(v common.Vec2) tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"x": &tengo.Float{Value: v.X},
		"y": &tengo.Float{Value: v.Y},
	}}
}

func rectValue(r common.Rect) tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"x":      &tengo.Float{Value: r.X},
		"y":      &tengo.Float{Value: r.Y},
		"width":  &tengo.Float{Value: r.Width},
		"height": &tengo.Float{Value: r.Height},
	}}
}

func vecArg(value tengo.Object, name string) (common.Vec2, error) {
	switch v := value.(type) {
	case *tengo.Array:
		if len(v.Value) == 2 {
			x, okX := tengo.ToFloat64(v.Value[0])
			y, okY := tengo.ToFloat64(v.Value[1])
			if okX && okY {
				return common.Vec2{X: x, Y: y}, nil
			}
		}
	case *tengo.Map:
		return vecFromMap(v.Value, name)
	case *tengo.ImmutableMap:
		return vecFromMap(v.Value, name)
	}
	return common.Vec2{}, tengo.ErrInvalidArgumentType{Name: name, Expected: "[x, y] or {x, y}", Found: value.TypeName()}
}

func vecFromMap(m map[string]tengo.Object, name string) (common.Vec2, error) {
	x, okX := tengo.ToFloat64(m["x"])
	y, okY := tengo.ToFloat64(m["y"])
	if !okX || !okY {
		return common.Vec2{}, tengo.ErrInvalidArgumentType{Name: name, Expected: "{x, y}", Found: "map"}
	}
	return common.Vec2{X: x, Y: y}, nil
}

func stringArg(args []tengo.Object, i int, name string) (string, error) {
	if len(args) <= i {
		return "", tengo.ErrWrongNumArguments
	}
	s, ok := tengo.ToString(args[i])
	if !ok {
		return "", tengo.ErrInvalidArgumentType{Name: name, Expected: "string", Found: args[i].TypeName()}
	}
	return s, nil
}

func componentArg(args []tengo.Object, i int) (*Component, error) {
	if len(args) <= i {
		return nil, tengo.ErrWrongNumArguments
	}
	p, ok := args[i].(*componentProxy)
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "component", Expected: "component", Found: args[i].TypeName()}
	}
	return p.c, nil
}

func detachedValue(e *Entity, c *Component) tengo.Object {
	if c == nil {
		return tengo.UndefinedValue
	}
	// Ownership moved to the script caller.
	bridge.Surrender(c)
	return c.BridgeProxy(e.rt).(tengo.Object)
}
