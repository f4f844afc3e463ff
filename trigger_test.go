package labctl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTrigger(respond func([]byte) string) (*TriggerController, *mockPort) {
	p := newMockPort(respond)
	cfg := DefaultTriggerConfig()
	cfg.PollTimeout = 10 * time.Millisecond
	return NewTriggerController(newTestTransport(p), cfg, zerolog.Nop()), p
}

func TestTriggerPayload(t *testing.T) {
	tests := []struct {
		name     string
		req      TriggerRequest
		expected string
	}{
		{"Default", DefaultTriggerRequest(), "TAYN1000\r"},
		{"SingleChannel", TriggerRequest{Channel: 3, Frames: 250, Stage: false, Notify: true}, "T3NY250\r"},
		{"ChannelZero", TriggerRequest{Channel: 0, Frames: 1}, "T0NN1\r"},
		{"AllBoth", TriggerRequest{Channel: AllChannels, Frames: 12, Stage: true, Notify: true}, "TAYY12\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.req.Payload()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(payload) != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, payload)
			}
		})
	}
}

func TestTriggerPayloadInvalid(t *testing.T) {
	tests := []TriggerRequest{
		{Channel: AllChannels, Frames: 0},
		{Channel: 1, Frames: -5},
		{Channel: -2, Frames: 10},
	}

	for _, req := range tests {
		if _, err := req.Payload(); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument for %+v, got %v", req, err)
		}
	}
}

func TestParseTriggerChannel(t *testing.T) {
	tests := []struct {
		input    string
		expected TriggerChannel
		wantErr  bool
	}{
		{"A", AllChannels, false},
		{"All", AllChannels, false},
		{"0", 0, false},
		{"7", 7, false},
		{"-1", 0, true},
		{"x", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ch, err := ParseTriggerChannel(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("Expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ch != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, ch)
			}
		})
	}
}

func TestSendTrigger(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected bool
	}{
		{"Done", "D\n", true},
		{"DoneWithCRLF", "D\r\n", true},
		{"EmptyLinesFirst", "\n\r\n\nD\n", true},
		{"OtherReply", "X\nD\n", false},
		{"Lowercase", "d\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p := newTestTrigger(func([]byte) string { return tt.reply })

			done, err := c.SendTrigger(context.Background(), TriggerRequest{Channel: 1, Frames: 5, Stage: true})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if done != tt.expected {
				t.Errorf("Expected done=%v, got %v", tt.expected, done)
			}
			if got := p.frames(); len(got) != 1 || got[0] != "T1YN5\r" {
				t.Errorf("Expected a single T1YN5 frame, got %q", got)
			}
		})
	}
}

func TestSendTriggerWaitsAcrossPollTimeouts(t *testing.T) {
	c, p := newTestTrigger(nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		p.feed("D\n")
	}()

	done, err := c.SendTrigger(context.Background(), DefaultTriggerRequest())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !done {
		t.Error("Expected done marker after several poll timeouts")
	}
}

func TestSendTriggerInvalidWritesNothing(t *testing.T) {
	c, p := newTestTrigger(func([]byte) string { return "D\n" })

	if _, err := c.SendTrigger(context.Background(), TriggerRequest{Channel: 1, Frames: 0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	if got := p.frames(); len(got) != 0 {
		t.Errorf("Expected no writes, got %q", got)
	}
}

func TestSendTriggerDoneTimeout(t *testing.T) {
	c, _ := newTestTrigger(nil)
	c.cfg.DoneTimeout = 30 * time.Millisecond

	done, err := c.SendTrigger(context.Background(), DefaultTriggerRequest())
	if !errors.Is(err, ErrDeviceTimeout) {
		t.Errorf("Expected ErrDeviceTimeout, got %v", err)
	}
	if done {
		t.Error("Expected done=false on timeout")
	}
}

func TestSendTriggerCancelled(t *testing.T) {
	c, _ := newTestTrigger(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := c.SendTrigger(ctx, DefaultTriggerRequest()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}
