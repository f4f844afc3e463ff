package models

import (
	"context"
	"fmt"
	"time"

	"github.com/allbin/labctl/internal/input"
	"github.com/allbin/labctl/internal/rig"
	"github.com/allbin/labctl/internal/tui/components"
	"github.com/allbin/labctl/internal/tui/keys"
	"github.com/allbin/labctl/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Rig is what the console drives
type Rig interface {
	input.Executor
	Snapshot(ctx context.Context) (rig.Snapshot, error)
	MoveChannel(ctx context.Context, id int, position float64) error
	EmergencyStop(ctx context.Context) error
	GamepadEnabled() bool
	SetGamepadEnabled(enabled bool)
}

// JogConfig configures the console
type JogConfig struct {
	Mapping        input.MappingConfig
	PollInterval   time.Duration
	CommandTimeout time.Duration
	Info           components.RigInfo
}

// DefaultJogConfig polls four times a second and gives each command ten
// seconds
func DefaultJogConfig() JogConfig {
	return JogConfig{
		Mapping:        input.DefaultMappingConfig(),
		PollInterval:   250 * time.Millisecond,
		CommandTimeout: 10 * time.Second,
	}
}

type pollMsg struct{}

// JogModel is the keyboard jog console. Movement keys are turned into the
// same pad events the gamepad produces, so both share one mapping.
type JogModel struct {
	*State
	rig       Rig
	cfg       JogConfig
	mapping   *input.Mapping
	channels  int
	table     *components.AxisTable
	log       *components.EventLog
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.JogKeys

	polled     bool
	pollFailed bool
}

func NewJogModel(ctx context.Context, r Rig, channels []rig.Channel, cfg JogConfig) *JogModel {
	m := &JogModel{
		State:     NewState(ctx),
		rig:       r,
		cfg:       cfg,
		mapping:   input.NewMapping(cfg.Mapping),
		channels:  len(channels),
		table:     components.NewAxisTable(channels),
		log:       components.NewEventLog(0, 0),
		statusBar: components.NewStatusBar("labctl jog"),
		input:     components.NewInput(),
		help:      help.New(),
		keys:      keys.NewJogKeys(),
	}
	info := cfg.Info
	m.statusBar.SetRigInfo(&info)
	m.statusBar.SetScale(m.mapping.Scale())
	m.statusBar.SetGamepad(r.GamepadEnabled())
	return m
}

func (m *JogModel) Init() tea.Cmd {
	return m.poll()
}

func (m *JogModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.Context(), m.cfg.CommandTimeout)
		defer cancel()
		snap, err := m.rig.Snapshot(ctx)
		return SnapshotMsg{Snapshot: snap, Err: err}
	}
}

func (m *JogModel) schedulePoll() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

// run executes fn off the UI loop and reports the outcome as a CommandDoneMsg
func (m *JogModel) run(label string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.Context(), m.cfg.CommandTimeout)
		defer cancel()
		return CommandDoneMsg{Label: label, Err: fn(ctx)}
	}
}

func (m *JogModel) execute(label string, cmds []input.Command) tea.Cmd {
	return m.run(label, func(ctx context.Context) error {
		for _, c := range cmds {
			if err := m.rig.Execute(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// padEvent translates a jog key into the pad event it stands for
func (m *JogModel) padEvent(msg tea.KeyMsg) (input.Event, string, bool) {
	axis := func(c input.Control, v float64) input.Event {
		return input.Event{Kind: input.KindAxis, Control: c, Value: v}
	}
	button := func(c input.Control) input.Event {
		return input.Event{Kind: input.KindButton, Control: c, Value: 1}
	}

	bindings := []struct {
		binding key.Binding
		event   input.Event
	}{
		{m.keys.Left, axis(input.RightX, -1)},
		{m.keys.Right, axis(input.RightX, 1)},
		{m.keys.Up, axis(input.RightY, -1)},
		{m.keys.Down, axis(input.RightY, 1)},
		{m.keys.FineLeft, axis(input.LeftX, -1)},
		{m.keys.FineRight, axis(input.LeftX, 1)},
		{m.keys.FineUp, axis(input.LeftY, -1)},
		{m.keys.FineDown, axis(input.LeftY, 1)},
		{m.keys.ZUp, axis(input.DPadY, -1)},
		{m.keys.ZDown, axis(input.DPadY, 1)},
		{m.keys.ZFineUp, axis(input.DPadX, 1)},
		{m.keys.ZFineDown, axis(input.DPadX, -1)},
		{m.keys.Stop, button(input.ButtonX)},
		{m.keys.Enable, button(input.ButtonY)},
		{m.keys.Speed, button(input.ButtonB)},
		{m.keys.Trigger, button(input.ButtonA)},
		{m.keys.HomeXY, button(input.ButtonRB)},
		{m.keys.HomeZ, button(input.ButtonLB)},
	}
	for _, b := range bindings {
		if key.Matches(msg, b.binding) {
			return b.event, b.binding.Help().Desc, true
		}
	}
	return input.Event{}, "", false
}

func (m *JogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.SetReady(true)
		return m, m.log.Update(msg)

	case pollMsg:
		return m, m.poll()

	case SnapshotMsg:
		if msg.Err != nil {
			m.table.MarkStale()
			m.statusBar.SetStatus("status poll failed", msg.Err)
			m.pollFailed = true
		} else {
			m.table.Apply(msg.Snapshot)
			m.statusBar.SetGamepad(msg.Snapshot.GamepadEnabled)
			if m.pollFailed || !m.polled {
				m.statusBar.SetStatus("ready", nil)
			}
			m.pollFailed = false
			m.polled = true
		}
		m.statusBar.SetMoving(m.table.AnyMoving())
		if m.Context().Err() != nil {
			return m, nil
		}
		return m, m.schedulePoll()

	case CommandDoneMsg:
		m.SetError(msg.Err)
		m.log.Add(components.LogEntry{Time: time.Now(), Text: msg.Label, Err: msg.Err})
		m.statusBar.SetStatus(msg.Label, msg.Err)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Cancel()
			return m, tea.Quit
		}
		if m.InGotoMode() {
			return m, m.updateGoto(msg)
		}
		return m, m.updateJog(msg)
	}
	return m, nil
}

func (m *JogModel) updateJog(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Cancel()
		return tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil

	case key.Matches(msg, m.keys.EmergencyStop):
		return m.run("abort all stages", m.rig.EmergencyStop)

	case key.Matches(msg, m.keys.Gamepad):
		enabled := !m.rig.GamepadEnabled()
		m.rig.SetGamepadEnabled(enabled)
		m.statusBar.SetGamepad(enabled)
		label := "gamepad disabled"
		if enabled {
			label = "gamepad enabled"
		}
		m.log.Add(components.LogEntry{Time: time.Now(), Text: label})
		return nil

	case key.Matches(msg, m.keys.Goto):
		m.SetInputMode(InputModeGoto)
		m.input.Focus()
		return textinput.Blink
	}

	ev, label, ok := m.padEvent(msg)
	if !ok {
		return nil
	}
	scale := m.mapping.Scale()
	cmds := m.mapping.Map(ev)
	if s := m.mapping.Scale(); s != scale {
		m.statusBar.SetScale(s)
		m.log.Add(components.LogEntry{Time: time.Now(), Text: fmt.Sprintf("speed scale %d%%", s)})
	}
	if len(cmds) == 0 {
		return nil
	}
	return m.execute(label, cmds)
}

func (m *JogModel) updateGoto(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.leaveGoto()
		return nil

	case key.Matches(msg, m.keys.Enter):
		line := m.input.Value()
		m.leaveGoto()
		req, err := components.ParseMoveRequest(line)
		if err != nil {
			m.log.Add(components.LogEntry{Time: time.Now(), Text: "move", Err: err})
			return nil
		}
		m.input.AddToHistory(line)
		label := fmt.Sprintf("move channel %d to %g", req.Channel, req.Position)
		return m.run(label, func(ctx context.Context) error {
			return m.rig.MoveChannel(ctx, req.Channel, req.Position)
		})

	case key.Matches(msg, m.keys.HistoryUp):
		m.input.NavigateHistoryUp()
		return nil

	case key.Matches(msg, m.keys.HistoryDown):
		m.input.NavigateHistoryDown()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *JogModel) leaveGoto() {
	m.SetInputMode(InputModeJog)
	m.input.SetValue("")
	m.input.Blur()
}

func (m *JogModel) resize(width, height int) {
	const (
		inputHeight  = 3
		statusHeight = 1
		helpHeight   = 1
		borderHeight = 1
	)
	// rounded border, header and separator around the channel rows
	tableHeight := m.channels + 4

	logHeight := height - tableHeight - inputHeight - statusHeight - helpHeight - borderHeight
	if logHeight < 1 {
		logHeight = 1
	}
	m.log.SetSize(width, logHeight)
	m.input.SetWidth(width)
	m.statusBar.SetWidth(width)
	m.help.Width = width
}

func (m *JogModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.log.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.table.View(),
		styles.ContentBorderStyle.Render(content),
		m.input.View(),
		m.help.View(m.keys),
		m.statusBar.View(m.GetInputMode().String(), time.Now().Format("15:04:05")),
	)
}
