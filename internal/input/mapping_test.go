package input

import (
	"reflect"
	"testing"

	"github.com/allbin/labctl"
)

func axisEvent(c Control, v float64) Event {
	return Event{Kind: KindAxis, Control: c, Value: v}
}

func press(c Control) Event {
	return Event{Kind: KindButton, Control: c, Value: 1}
}

func TestMapDPad(t *testing.T) {
	m := NewMapping(DefaultMappingConfig())

	tests := []struct {
		name     string
		event    Event
		expected []Command
	}{
		{"UpMovesZBackward", axisEvent(DPadY, 1), []Command{Jog{Stage: "z", Axis: 1, Velocity: 0.4, Direction: labctl.Backward}}},
		{"DownMovesZForward", axisEvent(DPadY, -1), []Command{Jog{Stage: "z", Axis: 1, Velocity: 0.4, Direction: labctl.Forward}}},
		{"HorizontalIsSlow", axisEvent(DPadX, 1), []Command{Jog{Stage: "z", Axis: 1, Velocity: 0.04, Direction: labctl.Forward}}},
		{"ReleaseStops", axisEvent(DPadY, 0), []Command{Stop{Stage: "z", Axis: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Map(tt.event)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestMapSticks(t *testing.T) {
	m := NewMapping(DefaultMappingConfig())

	tests := []struct {
		name     string
		event    Event
		expected []Command
	}{
		{"RightXFull", axisEvent(RightX, 1), []Command{Jog{Stage: "xy", Axis: 1, Velocity: 20, Direction: labctl.Forward}}},
		{"RightXHalfBack", axisEvent(RightX, -0.5), []Command{Jog{Stage: "xy", Axis: 1, Velocity: 10, Direction: labctl.Backward}}},
		{"RightYInverted", axisEvent(RightY, 1), []Command{Jog{Stage: "xy", Axis: 2, Velocity: 20, Direction: labctl.Backward}}},
		{"LeftXSlow", axisEvent(LeftX, 1), []Command{Jog{Stage: "xy", Axis: 1, Velocity: 0.8, Direction: labctl.Forward}}},
		{"Deadzone", axisEvent(RightX, 0.005), []Command{Stop{Stage: "xy", Axis: 1}}},
		{"DeadzoneY", axisEvent(LeftY, -0.009), []Command{Stop{Stage: "xy", Axis: 2}}},
		{"TriggerIgnored", axisEvent(RightTrigger, 1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Map(tt.event)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestMapButtons(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected []Command
	}{
		{"YEnablesXY", press(ButtonY), []Command{Enable{Stage: "xy", Axis: 1}, Enable{Stage: "xy", Axis: 2}}},
		{"XStopsAll", press(ButtonX), []Command{Stop{Stage: "xy", Axis: 1}, Stop{Stage: "xy", Axis: 2}, Stop{Stage: "z", Axis: 1}}},
		{"AFiresSingleFrame", press(ButtonA), []Command{Trigger{Request: labctl.TriggerRequest{Channel: labctl.AllChannels, Frames: 1}}}},
		{"RBHomesXY", press(ButtonRB), []Command{Home{Stage: "xy", Axis: 1, Velocity: 20}, Home{Stage: "xy", Axis: 2, Velocity: 20}}},
		{"LBHomesZ", press(ButtonLB), []Command{Home{Stage: "z", Axis: 1, Velocity: 0.4}}},
		{"StartIgnored", press(ButtonStart), nil},
		{"ReleaseIgnored", Event{Kind: KindButton, Control: ButtonA, Value: 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapping(DefaultMappingConfig())
			got := m.Map(tt.event)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestScaleCycle(t *testing.T) {
	m := NewMapping(DefaultMappingConfig())

	expected := []int{80, 60, 40, 20, 100, 80}
	for i, want := range expected {
		if cmds := m.Map(press(ButtonB)); cmds != nil {
			t.Fatalf("Expected B to produce no commands, got %+v", cmds)
		}
		if got := m.Scale(); got != want {
			t.Errorf("Press %d: expected scale %d, got %d", i+1, want, got)
		}
	}

	// scale now 80%
	got := m.Map(axisEvent(RightX, 1))
	jog, ok := got[0].(Jog)
	if !ok || jog.Velocity != 16 {
		t.Errorf("Expected scaled velocity 16, got %+v", got)
	}
}
