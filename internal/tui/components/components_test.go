package components

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/allbin/labctl/internal/rig"
	"github.com/allbin/labctl/internal/tui/styles"
)

func TestParseMoveRequest(t *testing.T) {
	tests := []struct {
		line     string
		expected MoveRequest
		wantErr  bool
	}{
		{"3 12.5", MoveRequest{Channel: 3, Position: 12.5}, false},
		{" 1=-0.25 ", MoveRequest{Channel: 1, Position: -0.25}, false},
		{"2\t7", MoveRequest{Channel: 2, Position: 7}, false},
		{"3", MoveRequest{}, true},
		{"x 1", MoveRequest{}, true},
		{"1 far", MoveRequest{}, true},
		{"1 2 3", MoveRequest{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseMoveRequest(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestInputHistory(t *testing.T) {
	in := NewInput()
	in.AddToHistory("1 0")
	in.AddToHistory("2 5")
	in.AddToHistory("2 5")
	in.AddToHistory("  ")
	in.SetValue("3 1")

	in.NavigateHistoryUp()
	if in.Value() != "2 5" {
		t.Errorf("Expected '2 5', got %q", in.Value())
	}
	in.NavigateHistoryUp()
	in.NavigateHistoryUp()
	if in.Value() != "1 0" {
		t.Errorf("Expected '1 0', got %q", in.Value())
	}
	in.NavigateHistoryDown()
	in.NavigateHistoryDown()
	if in.Value() != "3 1" {
		t.Errorf("Expected unsent line restored, got %q", in.Value())
	}
}

func testChannels() []rig.Channel {
	return []rig.Channel{
		{ID: 1, StageName: "z", Axis: 1},
		{ID: 2, StageName: "xy", Axis: 1},
		{ID: 3, StageName: "xy", Axis: 2},
	}
}

func TestAxisTableApply(t *testing.T) {
	at := NewAxisTable(testChannels())

	if r, _ := at.Row(2); r.State != styles.StatusPending {
		t.Errorf("Expected pending before first snapshot, got %v", r.State)
	}

	at.Apply(rig.Snapshot{
		Positions: map[int]float64{1: -0.25, 2: 3, 3: 12.5},
		Moving:    map[int]bool{3: true},
	})

	r, ok := at.Row(3)
	if !ok || r.Position != 12.5 || r.State != styles.StatusMoving || r.Stage != "xy" || r.Axis != 2 {
		t.Errorf("Unexpected row %+v", r)
	}
	if r, _ := at.Row(1); r.State != styles.StatusIdle {
		t.Errorf("Expected channel 1 idle, got %v", r.State)
	}
	if !at.AnyMoving() {
		t.Error("Expected AnyMoving")
	}
	if _, ok := at.Row(9); ok {
		t.Error("Expected no row for channel 9")
	}
	if !strings.Contains(at.View(), "12.500") {
		t.Errorf("Expected position in view:\n%s", at.View())
	}

	at.MarkStale()
	if r, _ := at.Row(3); r.State != styles.StatusFault || r.Position != 12.5 {
		t.Errorf("Expected stale row keeping its position, got %+v", r)
	}
}

func TestEventLogCapsEntries(t *testing.T) {
	l := NewEventLog(80, 10)
	for i := 0; i < maxLogEntries+20; i++ {
		l.Add(LogEntry{Time: time.Now(), Text: "jog x+"})
	}
	l.Add(LogEntry{Time: time.Now(), Text: "home z", Err: errors.New("device did not reply in time")})

	entries := l.Entries()
	if len(entries) != maxLogEntries {
		t.Errorf("Expected %d entries, got %d", maxLogEntries, len(entries))
	}
	if entries[len(entries)-1].Text != "home z" {
		t.Errorf("Expected newest entry last, got %q", entries[len(entries)-1].Text)
	}

	l.Clear()
	if len(l.Entries()) != 0 {
		t.Error("Expected empty log after Clear")
	}
}

func TestStatusBarView(t *testing.T) {
	sb := NewStatusBar("labctl jog")
	sb.SetWidth(120)
	sb.SetScale(60)
	sb.SetGamepad(true)
	sb.SetRigInfo(&RigInfo{Stages: 2, Channels: 3, Trigger: true})
	sb.SetStatus("home z", nil)

	view := sb.View("JOG", "12:00:00")
	for _, want := range []string{"JOG", "labctl jog", "home z", "60%", "pad:on", "2st 3ch", "trig"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %q in status bar %q", want, view)
		}
	}
}
