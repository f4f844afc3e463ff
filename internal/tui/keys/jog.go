package keys

import "github.com/charmbracelet/bubbles/key"

// JogKeys drives the stages from the keyboard. Movement keys start a
// continuous jog that runs until Stop.
type JogKeys struct {
	CommonKeys
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	FineLeft  key.Binding
	FineRight key.Binding
	FineUp    key.Binding
	FineDown  key.Binding
	ZUp       key.Binding
	ZDown     key.Binding
	ZFineUp   key.Binding
	ZFineDown key.Binding

	Stop          key.Binding
	Enable        key.Binding
	Speed         key.Binding
	Trigger       key.Binding
	HomeXY        key.Binding
	HomeZ         key.Binding
	EmergencyStop key.Binding
	Gamepad       key.Binding
	Goto          key.Binding
	Enter         key.Binding
	HistoryUp     key.Binding
	HistoryDown   key.Binding
}

func NewJogKeys() JogKeys {
	return JogKeys{
		CommonKeys: NewCommonKeys(),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "jog x-"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "jog x+"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "jog y+"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "jog y-"),
		),
		FineLeft: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "fine x-"),
		),
		FineRight: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "fine x+"),
		),
		FineUp: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "fine y+"),
		),
		FineDown: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "fine y-"),
		),
		ZUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "jog z+"),
		),
		ZDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "jog z-"),
		),
		ZFineUp: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "fine z+"),
		),
		ZFineDown: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "fine z-"),
		),
		Stop: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "stop"),
		),
		Enable: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "enable xy"),
		),
		Speed: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "cycle speed"),
		),
		Trigger: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "trigger frame"),
		),
		HomeXY: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "home xy"),
		),
		HomeZ: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "home z"),
		),
		EmergencyStop: key.NewBinding(
			key.WithKeys("!"),
			key.WithHelp("!", "abort all"),
		),
		Gamepad: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "toggle gamepad"),
		),
		Goto: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "move channel"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run move"),
		),
		HistoryUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous move"),
		),
		HistoryDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next move"),
		),
	}
}

func (k JogKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Stop, k.Goto, k.EmergencyStop, k.Quit}
}

func (k JogKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.FineLeft, k.FineRight, k.FineUp, k.FineDown},
		{k.ZUp, k.ZDown, k.ZFineUp, k.ZFineDown},
		{k.Stop, k.Enable, k.Speed, k.Trigger},
		{k.HomeXY, k.HomeZ, k.EmergencyStop, k.Gamepad},
		{k.Goto, k.Help, k.Quit},
	}
}
