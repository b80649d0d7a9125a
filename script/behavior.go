package script

import (
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// Behavior scripts assign named handlers into a host-declared map:
//
//	handlers.on_damage = func(amount) { ... }
//
// The host wraps the source with the prelude below and a dispatch trampoline
// appended to the same compilation unit, so handler bytecode shares the
// script's constant pool and can be invoked through Set/Run/Get.
const behaviorPrelude = "handlers := {}\n"

const behaviorTrampoline = `
__ran := false
__ret := undefined
if __target != "" {
	__h := handlers[__target]
	if !is_undefined(__h) {
		__ret = __h(__args...)
		__ran = true
	}
}
`

// Behavior is a compiled behavior script bound to one entity.
type Behavior struct {
	name     string
	compiled *tengo.Compiled
	state    *tengo.Map
	running  bool
}

// CompileBehavior compiles src with the standard dispatch scaffolding and the
// given extra globals, then runs the top level once so handler registration
// executes. Globals named "self", "state", "__target" and "__args" are
// reserved.
//
// Each run re-executes the script top level, so script-declared variables
// reset on every dispatch. The injected "state" map is held by the host and
// is the one place values survive between dispatches:
//
//	if is_undefined(state.hp) { state.hp = 10 }
func (r *Runtime) CompileBehavior(name string, src []byte, globals map[string]any) (*Behavior, error) {
	if r == nil {
		return nil, fmt.Errorf("script: nil runtime")
	}

	full := behaviorPrelude + string(src) + behaviorTrampoline
	s := tengo.NewScript([]byte(full))
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	state := &tengo.Map{Value: map[string]tengo.Object{}}
	_ = s.Add("__target", "")
	_ = s.Add("__args", []any{})
	_ = s.Add("self", nil)
	_ = s.Add("state", state)
	for k, v := range globals {
		if err := s.Add(k, v); err != nil {
			return nil, fmt.Errorf("script: add global %s to %s: %w", k, name, err)
		}
	}

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	if err := compiled.Run(); err != nil {
		return nil, fmt.Errorf("script: init %s: %w", name, err)
	}

	return &Behavior{name: name, compiled: compiled, state: state}, nil
}

// Name returns the name the behavior was compiled under, usually its source
// path.
func (b *Behavior) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Invoke runs the named handler with self bound and args as the call
// arguments. A missing handler is a "did not run" result, not an error.
// Handler failures are returned without escaping into the caller's control
// flow. Dispatch is strictly cooperative: re-entering a behavior that is
// already running is refused.
func (b *Behavior) Invoke(target string, self tengo.Object, args ...tengo.Object) (bool, tengo.Object, error) {
	if b == nil || b.compiled == nil {
		return false, tengo.UndefinedValue, fmt.Errorf("script: invoke on nil behavior")
	}
	if b.running {
		return false, tengo.UndefinedValue, fmt.Errorf("script: recursive dispatch into %s.%s", b.name, target)
	}
	b.running = true
	defer func() { b.running = false }()

	if self == nil {
		self = tengo.UndefinedValue
	}
	if args == nil {
		args = []tengo.Object{}
	}

	if err := b.compiled.Set("self", self); err != nil {
		return false, tengo.UndefinedValue, fmt.Errorf("script: bind self in %s: %w", b.name, err)
	}
	if err := b.compiled.Set("__target", target); err != nil {
		return false, tengo.UndefinedValue, fmt.Errorf("script: bind target in %s: %w", b.name, err)
	}
	if err := b.compiled.Set("__args", &tengo.Array{Value: args}); err != nil {
		return false, tengo.UndefinedValue, fmt.Errorf("script: bind args in %s: %w", b.name, err)
	}

	if err := b.compiled.Run(); err != nil {
		return false, tengo.UndefinedValue, fmt.Errorf("script: %s.%s: %w", b.name, target, err)
	}

	ran := false
	if v := b.compiled.Get("__ran"); v != nil {
		ran, _ = v.Value().(bool)
	}
	if !ran {
		return false, tengo.UndefinedValue, nil
	}

	ret := tengo.UndefinedValue
	if v := b.compiled.Get("__ret"); v != nil {
		if obj, err := ToObject(v.Value()); err == nil {
			ret = obj
		}
	}
	return true, ret, nil
}
