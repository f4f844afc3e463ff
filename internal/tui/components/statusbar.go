package components

import (
	"fmt"

	"github.com/allbin/labctl/internal/tui/colors"
	"github.com/allbin/labctl/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// RigInfo is the static part of the status bar
type RigInfo struct {
	Stages    int
	Channels  int
	Trigger   bool
	Waveforms int
}

type StatusBar struct {
	title   string
	status  string
	err     error
	width   int
	scale   int
	gamepad bool
	moving  bool
	info    *RigInfo
}

func NewStatusBar(title string) *StatusBar {
	return &StatusBar{
		title:  title,
		status: "Waiting for first snapshot...",
		scale:  100,
	}
}

func (sb *StatusBar) SetStatus(status string, err error) {
	sb.status = status
	sb.err = err
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetRigInfo(info *RigInfo) {
	sb.info = info
}

func (sb *StatusBar) SetScale(scale int) {
	sb.scale = scale
}

func (sb *StatusBar) SetGamepad(enabled bool) {
	sb.gamepad = enabled
}

func (sb *StatusBar) SetMoving(moving bool) {
	sb.moving = moving
}

// Err returns the error shown in the bar, if any
func (sb *StatusBar) Err() error {
	return sb.err
}

// View renders the bar: mode, title, motion indicator and last status on
// the left, speed scale, gamepad flag and device counts on the right
func (sb *StatusBar) View(mode string, timestamp string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeBg := colors.Blue
	if mode != "JOG" {
		modeBg = colors.Green
	}
	modeView := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeBg).
		Bold(true).
		Padding(0, 1).
		Render(mode)

	title := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.title)

	var indicator string
	switch {
	case sb.err != nil:
		indicator = styles.GetStatusStyle(styles.StatusFault).Render("✗")
	case sb.moving:
		indicator = styles.GetStatusStyle(styles.StatusMoving).Render("●")
	default:
		indicator = styles.GetStatusStyle(styles.StatusIdle).Render("●")
	}

	statusStyle := lipgloss.NewStyle().Foreground(colors.Subtext0).Padding(0, 1)
	if sb.err != nil {
		statusStyle = statusStyle.Foreground(colors.Red)
	}
	status := statusStyle.Render(sb.status)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	gamepad := "pad:off"
	if sb.gamepad {
		gamepad = "pad:on"
	}
	details := fmt.Sprintf("⚡ %d%% %s", sb.scale, gamepad)
	if sb.info != nil {
		details += fmt.Sprintf(" %dst %dch", sb.info.Stages, sb.info.Channels)
		if sb.info.Waveforms > 0 {
			details += fmt.Sprintf(" %dwf", sb.info.Waveforms)
		}
		if sb.info.Trigger {
			details += " trig"
		}
	}
	detailsView := lipgloss.NewStyle().
		Foreground(colors.Peach).
		Padding(0, 1).
		Render(details)

	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, modeView, title, indicator, status, divider)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, detailsView, divider, clock)

	spacerWidth := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
