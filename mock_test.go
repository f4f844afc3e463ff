package labctl

import (
	"bytes"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// mockPort is an in-memory serial line. Every Write is recorded; respond,
// if set, returns the bytes the "device" sends back for that write.
type mockPort struct {
	mu       sync.Mutex
	stream   bytes.Buffer
	writes   [][]byte
	incoming []byte
	closed   bool
	flushed  bool
	drains   int

	// delay holds every reply back this long, like a slow controller
	delay time.Duration

	// chunk limits how many bytes a single Write accepts (0 = unlimited)
	chunk   int
	respond func(frame []byte) string
}

func newMockPort(respond func(frame []byte) string) *mockPort {
	return &mockPort{respond: respond}
}

func (p *mockPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
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

func (p *mockPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}

	n := len(data)
	if p.chunk > 0 && n > p.chunk {
		n = p.chunk
	}
	p.stream.Write(data[:n])
	p.writes = append(p.writes, bytes.Clone(data[:n]))

	// chunked ports are only used for ordering tests and never reply
	if p.respond != nil && n == len(data) {
		reply := p.respond(data)
		if p.delay > 0 {
			time.AfterFunc(p.delay, func() { p.feed(reply) })
		} else {
			p.incoming = append(p.incoming, reply...)
		}
	}
	return n, nil
}

func (p *mockPort) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drains++
	return nil
}

func (p *mockPort) setDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

func (p *mockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *mockPort) FlushInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed = true
	p.incoming = nil
	return nil
}

// feed queues bytes as if the device had sent them unprompted
func (p *mockPort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.incoming = append(p.incoming, s...)
}

func (p *mockPort) frames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.writes))
	for i, w := range p.writes {
		out[i] = string(w)
	}
	return out
}

func (p *mockPort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream.String()
}

func newTestTransport(p *mockPort) *Transport {
	return NewTransport(p, WithName("mock"), WithLogger(zerolog.Nop()))
}
