package entity

// Built-in component kinds. Games register their own through RegisterKind;
// these cover the passive-data, per-tick, and dispatching shapes.
const (
	KindText     Kind = "text"
	KindVelocity Kind = "velocity"
	KindTimer    Kind = "timer"
)

func init() {
	RegisterKind(KindText, func() Payload { return &TextPayload{} })
	RegisterKind(KindVelocity, func() Payload { return &VelocityPayload{} })
	RegisterKind(KindTimer, func() Payload { return &TimerPayload{} })
}

// TextPayload is passive label data.
type TextPayload struct {
	Text string
}

func (p *TextPayload) Kind() Kind                 { return KindText }
func (p *TextPayload) Copy() Payload              { cp := *p; return &cp }
func (p *TextPayload) Update(*Component, float64) {}
func (p *TextPayload) Destroy()                   {}

func (p *TextPayload) GetProperty(name string) (any, bool) {
	if name == "text" {
		return p.Text, true
	}
	return nil, false
}

func (p *TextPayload) SetProperty(name string, value any) bool {
	if name != "text" {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	p.Text = s
	return true
}

// VelocityPayload moves its owner every tick.
type VelocityPayload struct {
	DX, DY float64
}

func (p *VelocityPayload) Kind() Kind    { return KindVelocity }
func (p *VelocityPayload) Copy() Payload { cp := *p; return &cp }
func (p *VelocityPayload) Destroy()      {}

func (p *VelocityPayload) Update(c *Component, dt float64) {
	owner := c.Owner()
	if owner == nil {
		return
	}
	pos := owner.Position()
	pos.X += p.DX * dt
	pos.Y += p.DY * dt
	owner.SetPosition(pos)
}

func (p *VelocityPayload) GetProperty(name string) (any, bool) {
	switch name {
	case "dx":
		return p.DX, true
	case "dy":
		return p.DY, true
	}
	return nil, false
}

func (p *VelocityPayload) SetProperty(name string, value any) bool {
	f, ok := asFloat(value)
	if !ok {
		return false
	}
	switch name {
	case "dx":
		p.DX = f
	case "dy":
		p.DY = f
	default:
		return false
	}
	return true
}

// TimerPayload counts down and dispatches a named handler on its owner's
// behavior when it expires.
type TimerPayload struct {
	Duration float64
	Handler  string
	Repeat   bool

	remaining float64
	started   bool
	fired     bool
}

func (p *TimerPayload) Kind() Kind { return KindTimer }
func (p *TimerPayload) Destroy()   {}

func (p *TimerPayload) Copy() Payload {
	return &TimerPayload{Duration: p.Duration, Handler: p.Handler, Repeat: p.Repeat}
}

func (p *TimerPayload) Update(c *Component, dt float64) {
	if p.Duration <= 0 || p.Handler == "" {
		return
	}
	if p.fired && !p.Repeat {
		return
	}
	if !p.started {
		p.remaining = p.Duration
		p.started = true
	}
	p.remaining -= dt
	if p.remaining > 0 {
		return
	}
	p.fired = true
	if p.Repeat {
		p.remaining += p.Duration
	}
	owner := c.Owner()
	if owner == nil {
		return
	}
	if _, _, err := owner.Dispatch(p.Handler); err != nil && owner.rt != nil {
		owner.rt.Logger().Warn("timer handler failed: " + err.Error())
	}
}

func (p *TimerPayload) GetProperty(name string) (any, bool) {
	switch name {
	case "duration":
		return p.Duration, true
	case "handler":
		return p.Handler, true
	case "repeat":
		return p.Repeat, true
	case "remaining":
		return p.remaining, true
	}
	return nil, false
}

func (p *TimerPayload) SetProperty(name string, value any) bool {
	switch name {
	case "duration":
		f, ok := asFloat(value)
		if !ok {
			return false
		}
		p.Duration = f
		p.started = false
		p.fired = false
	case "handler":
		s, ok := value.(string)
		if !ok {
			return false
		}
		p.Handler = s
	case "repeat":
		b, ok := value.(bool)
		if !ok {
			return false
		}
		p.Repeat = b
	default:
		return false
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
