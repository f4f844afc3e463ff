package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/allbin/labctl/internal/tui/colors"
	"github.com/allbin/labctl/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MoveRequest is a parsed "<channel> <position>" line
type MoveRequest struct {
	Channel  int
	Position float64
}

// ParseMoveRequest accepts "3 12.5" or "3=12.5"
func ParseMoveRequest(s string) (MoveRequest, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ' ' || r == '=' || r == '\t'
	})
	if len(fields) != 2 {
		return MoveRequest{}, fmt.Errorf("expected <channel> <position>, got %q", s)
	}
	ch, err := strconv.Atoi(fields[0])
	if err != nil {
		return MoveRequest{}, fmt.Errorf("channel %q is not an integer", fields[0])
	}
	pos, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return MoveRequest{}, fmt.Errorf("position %q is not a number", fields[1])
	}
	return MoveRequest{Channel: ch, Position: pos}, nil
}

// Input is the move prompt with history
type Input struct {
	textInput     textinput.Model
	history       []string
	historyIndex  int
	currentInput  string
	terminalWidth int
}

func NewInput() *Input {
	ti := textinput.New()
	ti.Placeholder = "<channel> <position>"
	ti.CharLimit = 64
	ti.Prompt = ""

	return &Input{
		textInput:    ti,
		historyIndex: -1,
	}
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	// border(2) + padding(2) + prompt(1) + space(1)
	usableWidth := width - 6
	if usableWidth < 20 {
		usableWidth = 20
	}
	i.textInput.Width = usableWidth
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Focused() bool {
	return i.textInput.Focused()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

func (i *Input) View() string {
	prompt := lipgloss.NewStyle().Foreground(colors.Green).Bold(true).Render(":")

	var content string
	if i.textInput.Focused() {
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", i.textInput.View())
	} else {
		hint := lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Render("Press ':' to move a channel to a position")
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", hint)
	}

	// RoundedBorder and Padding(0, 1) add four columns
	width := i.terminalWidth - 4
	if width < 10 {
		width = 10
	}
	style := styles.InputStyle.
		Width(width).
		AlignHorizontal(lipgloss.Left)
	if i.textInput.Focused() {
		style = style.BorderForeground(colors.Green)
	}
	return style.Render(content)
}

// AddToHistory adds a line unless it is empty or repeats the last one
func (i *Input) AddToHistory(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(i.history) > 0 && i.history[len(i.history)-1] == line {
		return
	}

	i.history = append(i.history, line)
	if len(i.history) > 100 {
		i.history = i.history[1:]
	}
	i.historyIndex = -1
	i.currentInput = ""
}

func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}

	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}
	i.textInput.SetValue(i.history[i.historyIndex])
}

func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}

	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
	} else {
		i.historyIndex = -1
		i.textInput.SetValue(i.currentInput)
		i.currentInput = ""
	}
}
