// Package input turns gamepad events into device commands.
//
// Raw joystick events are resolved once, at decode time, into the closed
// Control set below. A Mapping then translates controls into Commands
// without touching any device, and a Dispatcher hands the commands to an
// Executor.
package input

import "fmt"

// Control identifies one physical control on an Xbox 360 layout pad
type Control int

const (
	ControlUnknown Control = iota

	// Axes
	LeftX
	LeftY
	LeftTrigger
	RightX
	RightY
	RightTrigger
	DPadX
	DPadY

	// Buttons
	ButtonA
	ButtonB
	ButtonX
	ButtonY
	ButtonLB
	ButtonRB
	ButtonBack
	ButtonStart
)

var controlNames = map[Control]string{
	LeftX:        "LEFT-X",
	LeftY:        "LEFT-Y",
	LeftTrigger:  "LT",
	RightX:       "RIGHT-X",
	RightY:       "RIGHT-Y",
	RightTrigger: "RT",
	DPadX:        "DPAD-X",
	DPadY:        "DPAD-Y",
	ButtonA:      "A",
	ButtonB:      "B",
	ButtonX:      "X",
	ButtonY:      "Y",
	ButtonLB:     "LB",
	ButtonRB:     "RB",
	ButtonBack:   "BACK",
	ButtonStart:  "START",
}

func (c Control) String() string {
	if name, ok := controlNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Control(%d)", int(c))
}

// xbox360Axes and xbox360Buttons map joystick numbers to controls
var (
	xbox360Axes = map[uint8]Control{
		0: LeftX,
		1: LeftY,
		2: LeftTrigger,
		3: RightX,
		4: RightY,
		5: RightTrigger,
		6: DPadX,
		7: DPadY,
	}
	xbox360Buttons = map[uint8]Control{
		0: ButtonA,
		1: ButtonB,
		2: ButtonX,
		3: ButtonY,
		4: ButtonLB,
		5: ButtonRB,
		6: ButtonBack,
		7: ButtonStart,
	}
)

// EventKind tells axis motion from button presses
type EventKind int

const (
	KindAxis EventKind = iota
	KindButton
)

func (k EventKind) String() string {
	if k == KindButton {
		return "BUTTON"
	}
	return "AXIS"
}

// Event is one decoded gamepad event. Axis values are in [-1, 1]; button
// values are 1 while pressed and 0 when released.
type Event struct {
	Kind    EventKind
	Control Control
	Value   float64
}

// Pressed reports whether a button event is a press
func (e Event) Pressed() bool {
	return e.Kind == KindButton && e.Value != 0
}
