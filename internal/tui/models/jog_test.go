package models

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/labtest"
	"github.com/allbin/labctl/internal/rig"
	"github.com/allbin/labctl/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

type testConsole struct {
	*JogModel
	rig     *rig.Rig
	xy, z   *labtest.Stage
	trigger *labtest.Port
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()
	xy, z := labtest.NewStage(3), labtest.NewStage(3)
	trig := labtest.NewPort(labtest.Done)

	r, err := rig.New(rig.Devices{
		Stages: map[string]*labctl.MotionController{
			"xy": xy.Controller(),
			"z":  z.Controller(),
		},
		Trigger: labctl.NewTriggerController(trig.Transport(), labctl.DefaultTriggerConfig(), zerolog.Nop()),
	}, []rig.ChannelConfig{
		{ID: 1, Stage: "z", Axis: 1},
		{ID: 2, Stage: "xy", Axis: 1},
		{ID: 3, Stage: "xy", Axis: 2},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("rig.New failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	var channels []rig.Channel
	for _, id := range r.ChannelIDs() {
		ch, _ := r.Channel(id)
		channels = append(channels, ch)
	}

	m := NewJogModel(context.Background(), r, channels, DefaultJogConfig())
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	t.Cleanup(m.Cancel)
	return &testConsole{JogModel: m, rig: r, xy: xy, z: z, trigger: trig}
}

// press feeds a key and runs the resulting command synchronously
func (c *testConsole) press(t *testing.T, msg tea.KeyMsg) tea.Msg {
	t.Helper()
	_, cmd := c.Update(msg)
	if cmd == nil {
		return nil
	}
	out := cmd()
	c.Update(out)
	return out
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestJogKeys(t *testing.T) {
	tests := []struct {
		name   string
		key    tea.KeyMsg
		stage  func(c *testConsole) *labtest.Port
		frames []string
	}{
		{
			name:   "RightJogsX",
			key:    tea.KeyMsg{Type: tea.KeyRight},
			stage:  func(c *testConsole) *labtest.Port { return c.xy.Port },
			frames: []string{"1VA20\n", "1MV+\n"},
		},
		{
			name:   "UpJogsYForward",
			key:    tea.KeyMsg{Type: tea.KeyUp},
			stage:  func(c *testConsole) *labtest.Port { return c.xy.Port },
			frames: []string{"2VA20\n", "2MV+\n"},
		},
		{
			name:   "FineLeftUsesLeftStickScale",
			key:    runes("a"),
			stage:  func(c *testConsole) *labtest.Port { return c.xy.Port },
			frames: []string{"1VA0.8\n", "1MV-\n"},
		},
		{
			name:   "PageUpJogsZ",
			key:    tea.KeyMsg{Type: tea.KeyPgUp},
			stage:  func(c *testConsole) *labtest.Port { return c.z.Port },
			frames: []string{"1VA0.4\n", "1MV+\n"},
		},
		{
			name:   "SpaceStopsAll",
			key:    tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")},
			stage:  func(c *testConsole) *labtest.Port { return c.xy.Port },
			frames: []string{"1ST\n", "2ST\n"},
		},
		{
			name:   "TriggerFiresOneFrame",
			key:    runes("t"),
			stage:  func(c *testConsole) *labtest.Port { return c.trigger },
			frames: []string{"TANN1\r"},
		},
		{
			name:   "EmergencyStop",
			key:    runes("!"),
			stage:  func(c *testConsole) *labtest.Port { return c.z.Port },
			frames: []string{"AB\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsole(t)
			msg := c.press(t, tt.key)
			done, ok := msg.(CommandDoneMsg)
			if !ok {
				t.Fatalf("Expected CommandDoneMsg, got %T", msg)
			}
			if done.Err != nil {
				t.Fatalf("Command %q failed: %v", done.Label, done.Err)
			}
			if got := tt.stage(c).Frames(); !reflect.DeepEqual(got, tt.frames) {
				t.Errorf("Expected %q, got %q", tt.frames, got)
			}
			if n := len(c.log.Entries()); n != 1 {
				t.Errorf("Expected one log entry, got %d", n)
			}
		})
	}
}

func TestSpeedKeyCyclesScale(t *testing.T) {
	c := newTestConsole(t)

	if msg := c.press(t, runes("v")); msg != nil {
		t.Errorf("Expected no device command, got %T", msg)
	}
	if c.mapping.Scale() != 80 {
		t.Errorf("Expected scale 80, got %d", c.mapping.Scale())
	}

	c.press(t, tea.KeyMsg{Type: tea.KeyRight})
	frames := c.xy.Port.Frames()
	if len(frames) == 0 || frames[0] != "1VA16\n" {
		t.Errorf("Expected scaled velocity 16, got %q", frames)
	}
}

func TestGamepadToggleKey(t *testing.T) {
	c := newTestConsole(t)

	c.press(t, runes("g"))
	if c.rig.GamepadEnabled() {
		t.Error("Expected gamepad disabled")
	}
	c.press(t, runes("g"))
	if !c.rig.GamepadEnabled() {
		t.Error("Expected gamepad enabled")
	}
}

func TestGotoMovesChannel(t *testing.T) {
	c := newTestConsole(t)

	c.Update(runes(":"))
	if !c.InGotoMode() {
		t.Fatal("Expected goto mode")
	}
	c.Update(runes("3 12.5"))

	msg := c.press(t, tea.KeyMsg{Type: tea.KeyEnter})
	done, ok := msg.(CommandDoneMsg)
	if !ok || done.Err != nil {
		t.Fatalf("Expected successful move, got %#v", msg)
	}
	if c.InGotoMode() {
		t.Error("Expected jog mode after enter")
	}
	frames := c.xy.Port.Frames()
	if len(frames) != 2 || frames[1] != "WT50\n2PA12.5\n" {
		t.Errorf("Unexpected frames %q", frames)
	}
}

func TestGotoRejectsBadLine(t *testing.T) {
	c := newTestConsole(t)

	c.Update(runes(":"))
	c.Update(runes("nowhere"))
	if msg := c.press(t, tea.KeyMsg{Type: tea.KeyEnter}); msg != nil {
		t.Errorf("Expected no command, got %T", msg)
	}
	entries := c.log.Entries()
	if len(entries) != 1 || entries[0].Err == nil {
		t.Errorf("Expected one error entry, got %+v", entries)
	}
	if len(c.xy.Port.Frames()) != 0 {
		t.Error("Expected nothing sent")
	}
}

func TestGotoEscapeCancels(t *testing.T) {
	c := newTestConsole(t)

	c.Update(runes(":"))
	c.Update(runes("q"))
	if !c.InGotoMode() {
		t.Fatal("Expected 'q' to be typed into the prompt")
	}
	c.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if c.InGotoMode() || c.input.Value() != "" {
		t.Error("Expected escape to leave goto mode and clear the prompt")
	}
}

func TestSnapshotUpdatesTable(t *testing.T) {
	c := newTestConsole(t)
	c.z.SetMoving(0b001)

	msg := c.Init()()
	_, cmd := c.Update(msg)
	if cmd == nil {
		t.Error("Expected next poll to be scheduled")
	}

	if r, _ := c.table.Row(1); r.State != styles.StatusMoving {
		t.Errorf("Expected channel 1 moving, got %+v", r)
	}

	c.Update(SnapshotMsg{Err: errors.New("port gone")})
	if r, _ := c.table.Row(1); r.State != styles.StatusFault {
		t.Errorf("Expected stale rows after failed poll, got %+v", r)
	}
}

func TestQuit(t *testing.T) {
	c := newTestConsole(t)

	_, cmd := c.Update(runes("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
	if c.Context().Err() == nil {
		t.Error("Expected context cancelled on quit")
	}
}
