package components

import (
	"strconv"

	"github.com/allbin/labctl/internal/rig"
	"github.com/allbin/labctl/internal/tui/colors"
	"github.com/allbin/labctl/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
)

const (
	columnKeyChannel  = "channel"
	columnKeyStage    = "stage"
	columnKeyAxis     = "axis"
	columnKeyPosition = "position"
	columnKeyState    = "state"
)

// AxisRow is the displayed state of one logical channel
type AxisRow struct {
	Channel  int
	Stage    string
	Axis     int
	Position float64
	State    styles.StatusType
}

func (r AxisRow) stateText() string {
	switch r.State {
	case styles.StatusIdle:
		return "idle"
	case styles.StatusMoving:
		return "moving"
	case styles.StatusFault:
		return "stale"
	default:
		return "-"
	}
}

// AxisTable lists every channel with its last known position
type AxisTable struct {
	table table.Model
	rows  []AxisRow
	index map[int]int
}

func NewAxisTable(channels []rig.Channel) *AxisTable {
	columns := []table.Column{
		table.NewColumn(columnKeyChannel, "Ch", 4),
		table.NewColumn(columnKeyStage, "Stage", 10),
		table.NewColumn(columnKeyAxis, "Axis", 5),
		table.NewColumn(columnKeyPosition, "Position", 12),
		table.NewColumn(columnKeyState, "State", 8),
	}

	at := &AxisTable{
		rows:  make([]AxisRow, len(channels)),
		index: make(map[int]int, len(channels)),
	}
	for i, ch := range channels {
		at.rows[i] = AxisRow{Channel: ch.ID, Stage: ch.StageName, Axis: int(ch.Axis), State: styles.StatusPending}
		at.index[ch.ID] = i
	}

	at.table = table.New(columns).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Text)).
		WithBaseStyle(lipgloss.NewStyle().Foreground(colors.Subtext1).BorderForeground(colors.Surface1)).
		HighlightStyle(lipgloss.NewStyle().Background(colors.Surface1)).
		Focused(false)
	at.refresh()
	return at
}

// Apply copies positions and moving flags from a snapshot
func (at *AxisTable) Apply(snap rig.Snapshot) {
	for id, i := range at.index {
		row := &at.rows[i]
		if pos, ok := snap.Positions[id]; ok {
			row.Position = pos
		}
		row.State = styles.StatusIdle
		if snap.Moving[id] {
			row.State = styles.StatusMoving
		}
	}
	at.refresh()
}

// MarkStale flags every row after a failed snapshot
func (at *AxisTable) MarkStale() {
	for i := range at.rows {
		at.rows[i].State = styles.StatusFault
	}
	at.refresh()
}

// Row returns the displayed state of channel id
func (at *AxisTable) Row(id int) (AxisRow, bool) {
	i, ok := at.index[id]
	if !ok {
		return AxisRow{}, false
	}
	return at.rows[i], true
}

// AnyMoving reports whether any row is moving
func (at *AxisTable) AnyMoving() bool {
	for _, r := range at.rows {
		if r.State == styles.StatusMoving {
			return true
		}
	}
	return false
}

func (at *AxisTable) refresh() {
	rows := make([]table.Row, len(at.rows))
	for i, r := range at.rows {
		position := "-"
		if r.State != styles.StatusPending {
			position = strconv.FormatFloat(r.Position, 'f', 3, 64)
		}
		rows[i] = table.NewRow(table.RowData{
			columnKeyChannel:  strconv.Itoa(r.Channel),
			columnKeyStage:    r.Stage,
			columnKeyAxis:     strconv.Itoa(r.Axis),
			columnKeyPosition: position,
			columnKeyState:    table.NewStyledCell(r.stateText(), styles.GetStatusStyle(r.State)),
		})
	}
	at.table = at.table.WithRows(rows)
}

func (at *AxisTable) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	at.table, cmd = at.table.Update(msg)
	return cmd
}

func (at *AxisTable) View() string {
	return at.table.View()
}
