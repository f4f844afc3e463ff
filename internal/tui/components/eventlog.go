package components

import (
	"strings"
	"time"

	"github.com/allbin/labctl/internal/tui/colors"
	"github.com/allbin/labctl/internal/tui/styles"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxLogEntries = 500

// LogEntry is one line of the event log
type LogEntry struct {
	Time time.Time
	Text string
	Err  error
}

func (e LogEntry) format() string {
	ts := lipgloss.NewStyle().Foreground(colors.Overlay0).Render(e.Time.Format("15:04:05.000"))
	if e.Err != nil {
		return ts + " " + styles.ErrorStyle.Render(e.Text+": "+e.Err.Error())
	}
	return ts + " " + styles.InfoStyle.Render(e.Text)
}

// EventLog shows executed commands and their failures, newest at the bottom
type EventLog struct {
	viewport viewport.Model
	entries  []LogEntry
}

func NewEventLog(width, height int) *EventLog {
	return &EventLog{viewport: viewport.New(width, height)}
}

func (l *EventLog) SetSize(width, height int) {
	l.viewport.Width = width
	l.viewport.Height = height
}

func (l *EventLog) Add(entry LogEntry) {
	l.entries = append(l.entries, entry)
	if len(l.entries) > maxLogEntries {
		l.entries = l.entries[len(l.entries)-maxLogEntries:]
	}

	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = e.format()
	}
	l.viewport.SetContent(strings.Join(lines, "\n"))
	l.viewport.GotoBottom()
}

func (l *EventLog) Entries() []LogEntry {
	return l.entries
}

func (l *EventLog) Clear() {
	l.entries = nil
	l.viewport.SetContent("")
}

func (l *EventLog) Update(msg tea.Msg) tea.Cmd {
	// keys belong to the jog bindings
	if _, ok := msg.(tea.WindowSizeMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	l.viewport, cmd = l.viewport.Update(msg)
	return cmd
}

func (l *EventLog) View() string {
	return l.viewport.View()
}
