package styles

import (
	"github.com/allbin/labctl/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	StatusIdleStyle = lipgloss.NewStyle().
			Foreground(colors.Idle).
			Bold(true)

	StatusMovingStyle = lipgloss.NewStyle().
				Foreground(colors.Moving).
				Bold(true)

	StatusFaultStyle = lipgloss.NewStyle().
				Foreground(colors.Fault).
				Bold(true)

	StatusPendingStyle = lipgloss.NewStyle().
				Foreground(colors.Pending)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)

	InfoStyle = lipgloss.NewStyle().
			Foreground(colors.Subtext1)
)

type StatusType int

const (
	StatusPending StatusType = iota
	StatusIdle
	StatusMoving
	StatusFault
)

func GetStatusStyle(status StatusType) lipgloss.Style {
	switch status {
	case StatusIdle:
		return StatusIdleStyle
	case StatusMoving:
		return StatusMovingStyle
	case StatusFault:
		return StatusFaultStyle
	default:
		return StatusPendingStyle
	}
}
