package input

import (
	"math"

	"github.com/allbin/labctl"
)

// Command is a device action produced by the mapping
type Command interface {
	command()
}

// Jog sets the axis velocity and starts an indefinite move
type Jog struct {
	Stage     string
	Axis      labctl.Axis
	Velocity  float64
	Direction labctl.Direction
}

// Stop halts one axis
type Stop struct {
	Stage string
	Axis  labctl.Axis
}

// Enable powers an axis motor
type Enable struct {
	Stage string
	Axis  labctl.Axis
}

// Home stops the axis, sets the homing velocity and starts the origin search
type Home struct {
	Stage    string
	Axis     labctl.Axis
	Velocity float64
}

// Trigger fires a trigger burst
type Trigger struct {
	Request labctl.TriggerRequest
}

func (Jog) command()     {}
func (Stop) command()    {}
func (Enable) command()  {}
func (Home) command()    {}
func (Trigger) command() {}

// MappingConfig names the stages driven by the pad and the jog speeds
type MappingConfig struct {
	XYStage string
	XAxis   labctl.Axis
	YAxis   labctl.Axis
	ZStage  string
	ZAxis   labctl.Axis

	// XYVelocityMax is the stick velocity at full deflection and 100% scale
	XYVelocityMax float64
	// ZVelocityMax is the D-pad vertical velocity; horizontal is a tenth
	ZVelocityMax float64
	Deadzone     float64
	// LeftStickScale slows the left stick relative to the right one
	LeftStickScale float64
}

// DefaultMappingConfig returns the bench defaults
func DefaultMappingConfig() MappingConfig {
	return MappingConfig{
		XYStage:        "xy",
		XAxis:          1,
		YAxis:          2,
		ZStage:         "z",
		ZAxis:          1,
		XYVelocityMax:  20,
		ZVelocityMax:   0.4,
		Deadzone:       0.01,
		LeftStickScale: 0.04,
	}
}

const (
	scaleMax  = 100
	scaleStep = 20
)

// Mapping translates gamepad events into commands. The only state it keeps
// is the stick speed scale, cycled by the B button. It is not safe for
// concurrent use.
type Mapping struct {
	cfg   MappingConfig
	scale int
}

// NewMapping creates a mapping at 100% scale
func NewMapping(cfg MappingConfig) *Mapping {
	return &Mapping{cfg: cfg, scale: scaleMax}
}

// Scale returns the current stick speed scale in percent
func (m *Mapping) Scale() int {
	return m.scale
}

// Map returns the commands for ev, in execution order
func (m *Mapping) Map(ev Event) []Command {
	if ev.Kind == KindButton {
		if !ev.Pressed() {
			return nil
		}
		return m.button(ev.Control)
	}

	switch ev.Control {
	case DPadX, DPadY:
		return m.dpad(ev.Control, ev.Value)
	case LeftX, LeftY, RightX, RightY:
		return m.stick(ev.Control, ev.Value)
	}
	return nil
}

func (m *Mapping) dpad(c Control, value float64) []Command {
	if c == DPadY {
		value = -value
	}
	if math.Abs(value) < m.cfg.Deadzone {
		return []Command{Stop{Stage: m.cfg.ZStage, Axis: m.cfg.ZAxis}}
	}

	velocity := m.cfg.ZVelocityMax
	if c == DPadX {
		velocity /= 10
	}
	return []Command{Jog{Stage: m.cfg.ZStage, Axis: m.cfg.ZAxis, Velocity: velocity, Direction: direction(value)}}
}

func (m *Mapping) stick(c Control, value float64) []Command {
	axis := m.cfg.XAxis
	if c == LeftY || c == RightY {
		axis = m.cfg.YAxis
		value = -value
	}
	if math.Abs(value) < m.cfg.Deadzone {
		return []Command{Stop{Stage: m.cfg.XYStage, Axis: axis}}
	}

	velocity := float64(m.scale) * m.cfg.XYVelocityMax * value / 100
	if c == LeftX || c == LeftY {
		velocity *= m.cfg.LeftStickScale
	}
	return []Command{Jog{Stage: m.cfg.XYStage, Axis: axis, Velocity: math.Abs(velocity), Direction: direction(velocity)}}
}

func (m *Mapping) button(c Control) []Command {
	xy := m.cfg.XYStage
	switch c {
	case ButtonY:
		return []Command{
			Enable{Stage: xy, Axis: m.cfg.XAxis},
			Enable{Stage: xy, Axis: m.cfg.YAxis},
		}
	case ButtonX:
		return []Command{
			Stop{Stage: xy, Axis: m.cfg.XAxis},
			Stop{Stage: xy, Axis: m.cfg.YAxis},
			Stop{Stage: m.cfg.ZStage, Axis: m.cfg.ZAxis},
		}
	case ButtonB:
		m.scale -= scaleStep
		if m.scale <= 0 {
			m.scale = scaleMax
		}
		return nil
	case ButtonA:
		return []Command{Trigger{Request: labctl.TriggerRequest{Channel: labctl.AllChannels, Frames: 1}}}
	case ButtonRB:
		return []Command{
			Home{Stage: xy, Axis: m.cfg.XAxis, Velocity: m.cfg.XYVelocityMax},
			Home{Stage: xy, Axis: m.cfg.YAxis, Velocity: m.cfg.XYVelocityMax},
		}
	case ButtonLB:
		return []Command{Home{Stage: m.cfg.ZStage, Axis: m.cfg.ZAxis, Velocity: m.cfg.ZVelocityMax}}
	}
	return nil
}

func direction(v float64) labctl.Direction {
	if v > 0 {
		return labctl.Forward
	}
	return labctl.Backward
}
