// Package labtest provides in-memory serial devices for tests.
package labtest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/allbin/labctl"
	"github.com/rs/zerolog"
)

// Port is an in-memory serial line. Respond, if set, returns what the
// device sends back for each complete write.
type Port struct {
	mu       sync.Mutex
	incoming []byte
	writes   []string
	closed   bool
	respond  func(frame []byte) string
}

// NewPort creates a port answering with respond
func NewPort(respond func(frame []byte) string) *Port {
	return &Port{respond: respond}
}

func (p *Port) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, labctl.ErrPortClosed
	}
	if len(p.incoming) == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(buf, p.incoming)
	p.incoming = p.incoming[n:]
	p.mu.Unlock()
	return n, nil
}

func (p *Port) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, labctl.ErrPortClosed
	}
	p.writes = append(p.writes, string(data))
	if p.respond != nil {
		p.incoming = append(p.incoming, p.respond(data)...)
	}
	return len(data), nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Frames returns every write seen so far
func (p *Port) Frames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

// Closed reports whether Close was called
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Transport wraps p in a silent Transport
func (p *Port) Transport() *labctl.Transport {
	return labctl.NewTransport(p, labctl.WithName("labtest"), labctl.WithLogger(zerolog.Nop()))
}

// Done answers every frame with the completion marker
func Done([]byte) string { return "D\n" }

// Stage simulates an ESP30x controller: PA sets an axis position, TP
// reports positions and TS reports the moving bitmask.
type Stage struct {
	mu     sync.Mutex
	pos    []float64
	moving byte
	Port   *Port
}

// NewStage creates a simulated controller with axes axes, all at 0
func NewStage(axes int) *Stage {
	s := &Stage{pos: make([]float64, axes)}
	s.Port = NewPort(s.respond)
	return s
}

// SetMoving sets the moving bitmask reported by TS
func (s *Stage) SetMoving(mask byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moving = mask
}

// Controller returns a MotionController driving the simulated stage
func (s *Stage) Controller() *labctl.MotionController {
	cfg := labctl.DefaultMotionConfig()
	cfg.AxisCount = len(s.pos)
	cfg.ReadTimeout = 100 * time.Millisecond
	cfg.PollInterval = time.Millisecond
	return labctl.NewMotionController(s.Port.Transport(), cfg, zerolog.Nop())
}

func (s *Stage) respond(frame []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reply strings.Builder
	for _, cmd := range bytes.Split(bytes.TrimSuffix(frame, []byte("\n")), []byte("\n")) {
		i := 0
		for i < len(cmd) && cmd[i] >= '0' && cmd[i] <= '9' {
			i++
		}
		axis, _ := strconv.Atoi(string(cmd[:i]))
		rest := string(cmd[i:])
		switch {
		case rest == "TP":
			fields := make([]string, len(s.pos))
			for j, p := range s.pos {
				fields[j] = strconv.FormatFloat(p, 'f', 3, 64)
			}
			reply.WriteString(strings.Join(fields, ",") + "\r\n")
		case rest == "TS":
			// bit 6 keeps the byte printable, as on the real controller
			reply.WriteString(fmt.Sprintf("%c\r\n", 0x40|s.moving))
		case strings.HasPrefix(rest, "PA") && axis >= 1 && axis <= len(s.pos):
			v, err := strconv.ParseFloat(rest[2:], 64)
			if err == nil {
				s.pos[axis-1] = v
			}
		}
	}
	return reply.String()
}
