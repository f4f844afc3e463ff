package labctl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

var errLineReleased = errors.New("line used after release")

// Transport owns one serial connection and hands it out to one caller at a
// time. Every frame written and every reply consumed happens inside an
// acquisition, so commands from concurrent callers never interleave.
type Transport struct {
	sem     chan struct{}
	conn    io.ReadWriteCloser
	name    string
	log     zerolog.Logger
	pending []byte
	buf     []byte
	closed  bool

	// stale is set when an acquisition gave up on a reply; the next one
	// drains the line until it stays quiet this long
	stale time.Duration
}

// defaultStaleWindow is used when a read without timeout was cancelled
const defaultStaleWindow = 100 * time.Millisecond

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithLogger attaches a logger; frames are logged at debug level
func WithLogger(log zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.log = log
	}
}

// WithName sets the name used in log lines, usually the device path
func WithName(name string) TransportOption {
	return func(t *Transport) {
		t.name = name
	}
}

// NewTransport wraps an open connection. If the connection can discard its
// input buffer, stale bytes from a previous session are flushed.
func NewTransport(conn io.ReadWriteCloser, opts ...TransportOption) *Transport {
	t := &Transport{
		sem:  make(chan struct{}, 1),
		conn: conn,
		log:  zerolog.Nop(),
		buf:  make([]byte, 256),
	}
	if s, ok := conn.(fmt.Stringer); ok {
		t.name = s.String()
	}
	for _, opt := range opts {
		opt(t)
	}
	if f, ok := conn.(interface{ FlushInput() error }); ok {
		if err := f.FlushInput(); err != nil {
			t.log.Warn().Err(err).Str("port", t.name).Msg("failed to flush stale input")
		}
	}
	return t
}

// OpenTransport opens device with the given port options and wraps it
func OpenTransport(device string, log zerolog.Logger, opts ...Option) (*Transport, error) {
	p, err := Open(device, opts...)
	if err != nil {
		return nil, err
	}
	return NewTransport(p, WithLogger(log), WithName(device)), nil
}

// Name returns the transport's display name
func (t *Transport) Name() string {
	return t.name
}

// Line is the handle for an acquired transport. It is only valid until the
// release function returned with it is called.
type Line struct {
	t   *Transport
	ctx context.Context
}

// Acquire blocks until the caller holds the line or ctx is done. The
// returned release function must be called exactly once.
func (t *Transport) Acquire(ctx context.Context) (*Line, func(), error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	if t.closed {
		<-t.sem
		return nil, nil, ErrPortClosed
	}
	if err := t.discardStale(ctx); err != nil {
		<-t.sem
		return nil, nil, err
	}

	l := &Line{t: t, ctx: ctx}
	release := func() {
		l.t = nil
		<-t.sem
	}
	return l, release, nil
}

// discardStale drops input left over from an earlier acquisition. A device
// may still answer a request whose read already timed out; that late reply
// is drained here so it is never taken as the answer to the next command.
func (t *Transport) discardStale(ctx context.Context) error {
	t.pending = t.pending[:0]
	if t.stale <= 0 {
		return nil
	}

	if f, ok := t.conn.(interface{ FlushInput() error }); ok {
		if err := f.FlushInput(); err != nil {
			t.log.Warn().Err(err).Str("port", t.name).Msg("failed to flush stale input")
		}
	}

	discarded := 0
	quietUntil := time.Now().Add(t.stale)
	for time.Now().Before(quietUntil) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := t.conn.Read(t.buf)
		if n > 0 {
			discarded += n
			quietUntil = time.Now().Add(t.stale)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read from %s: %w", t.name, err)
		}
	}
	if discarded > 0 {
		t.log.Debug().Str("port", t.name).Int("bytes", discarded).Msg("discarded late reply")
	}
	t.stale = 0
	return nil
}

// Do runs fn while holding the line. The line is released on every exit
// path, including a panic inside fn.
func (t *Transport) Do(ctx context.Context, fn func(l *Line) error) error {
	l, release, err := t.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(l)
}

// Close closes the underlying connection once any in-flight command finishes
func (t *Transport) Close() error {
	t.sem <- struct{}{}
	defer func() { <-t.sem }()

	if t.closed {
		return ErrPortClosed
	}
	t.closed = true
	return t.conn.Close()
}

// WriteLine writes one complete command frame
func (l *Line) WriteLine(frame []byte) error {
	t := l.t
	if t == nil {
		return errLineReleased
	}

	ev := t.log.Debug().Str("port", t.name).Int("bytes", len(frame))
	if len(frame) <= 64 {
		ev = ev.Bytes("frame", frame)
	}
	ev.Msg("write")

	for written := 0; written < len(frame); {
		n, err := t.conn.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("write to %s: %w", t.name, err)
		}
		written += n
	}

	if d, ok := t.conn.(interface{ Drain() error }); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("drain %s: %w", t.name, err)
		}
	}
	return nil
}

// ReadLine blocks until a newline arrives and returns the line with the
// terminator and surrounding whitespace removed. It returns ErrDeviceTimeout
// if no complete line arrives within timeout; timeout <= 0 waits until the
// acquisition context is done.
func (l *Line) ReadLine(timeout time.Duration) ([]byte, error) {
	t := l.t
	if t == nil {
		return nil, errLineReleased
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if i := bytes.IndexByte(t.pending, '\n'); i >= 0 {
			line := bytes.Clone(bytes.TrimSpace(t.pending[:i]))
			t.pending = append(t.pending[:0], t.pending[i+1:]...)
			t.log.Debug().Str("port", t.name).Bytes("line", line).Msg("read")
			t.stale = 0
			return line, nil
		}

		if err := l.ctx.Err(); err != nil {
			t.stale = defaultStaleWindow
			if timeout > 0 {
				t.stale = timeout
			}
			return nil, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			t.stale = timeout
			return nil, fmt.Errorf("%w: %s after %v", ErrDeviceTimeout, t.name, timeout)
		}

		n, err := t.conn.Read(t.buf)
		if n > 0 {
			t.pending = append(t.pending, t.buf[:n]...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read from %s: %w", t.name, err)
		}
	}
}

// waitForMarker reads lines until the first non-empty one and reports
// whether it equals marker. Empty lines and per-read timeouts are skipped;
// the wait ends early only when limit elapses (limit > 0) or ctx is done.
func (l *Line) waitForMarker(marker []byte, pollTimeout, limit time.Duration) (bool, error) {
	var deadline time.Time
	if limit > 0 {
		deadline = time.Now().Add(limit)
	}

	for {
		line, err := l.ReadLine(pollTimeout)
		switch {
		case errors.Is(err, ErrDeviceTimeout):
		case err != nil:
			return false, err
		case len(line) > 0:
			return bytes.Equal(line, marker), nil
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false, fmt.Errorf("%w: no completion marker within %v", ErrDeviceTimeout, limit)
		}
	}
}
