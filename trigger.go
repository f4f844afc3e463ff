package labctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// doneMarker is the line trigger and waveform units send on completion
var doneMarker = []byte("D")

// TriggerChannel selects a camera channel on the trigger unit
type TriggerChannel int

// AllChannels fires every channel at once
const AllChannels TriggerChannel = -1

// ParseTriggerChannel accepts "A" (or any word starting with it) for all
// channels, or a non-negative channel number
func ParseTriggerChannel(s string) (TriggerChannel, error) {
	if strings.HasPrefix(s, "A") {
		return AllChannels, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: trigger channel %q", ErrInvalidArgument, s)
	}
	return TriggerChannel(n), nil
}

func (c TriggerChannel) String() string {
	if c == AllChannels {
		return "A"
	}
	return strconv.Itoa(int(c))
}

// TriggerRequest describes one burst of frame triggers
type TriggerRequest struct {
	Channel TriggerChannel
	Frames  int
	// Stage asks the unit to step the stage between frames
	Stage bool
	// Notify asks the unit to signal the host for every frame
	Notify bool
}

// DefaultTriggerRequest is the burst fired when no parameters are given
func DefaultTriggerRequest() TriggerRequest {
	return TriggerRequest{Channel: AllChannels, Frames: 1000, Stage: true, Notify: false}
}

// Payload encodes the request as sent on the wire
func (r TriggerRequest) Payload() ([]byte, error) {
	if r.Channel < AllChannels {
		return nil, fmt.Errorf("%w: trigger channel %d", ErrInvalidArgument, r.Channel)
	}
	if r.Frames <= 0 {
		return nil, fmt.Errorf("%w: frame count %d", ErrInvalidArgument, r.Frames)
	}

	var b strings.Builder
	b.WriteByte('T')
	b.WriteString(r.Channel.String())
	b.WriteByte(yesNo(r.Stage))
	b.WriteByte(yesNo(r.Notify))
	b.WriteString(strconv.Itoa(r.Frames))
	b.WriteByte('\r')
	return []byte(b.String()), nil
}

func yesNo(v bool) byte {
	if v {
		return 'Y'
	}
	return 'N'
}

// TriggerConfig holds the settings of a TriggerController
type TriggerConfig struct {
	// PollTimeout bounds each read while waiting for the completion marker
	PollTimeout time.Duration
	// DoneTimeout bounds the whole wait; 0 waits until the context is done
	DoneTimeout time.Duration
}

// DefaultTriggerConfig returns the trigger unit defaults. The completion wait
// is unbounded: a long burst legitimately keeps the unit busy for minutes.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		PollTimeout: time.Second,
		DoneTimeout: 0,
	}
}

// TriggerController fires frame-trigger bursts and waits for the unit to
// report completion. It is safe for concurrent use.
type TriggerController struct {
	t   *Transport
	cfg TriggerConfig
	log zerolog.Logger
}

// NewTriggerController takes ownership of t
func NewTriggerController(t *Transport, cfg TriggerConfig, log zerolog.Logger) *TriggerController {
	return &TriggerController{t: t, cfg: cfg, log: log}
}

// Close releases the transport
func (c *TriggerController) Close() error {
	return c.t.Close()
}

// SendTrigger fires the burst and blocks until the unit answers. It returns
// true if the first non-empty reply is the done marker.
func (c *TriggerController) SendTrigger(ctx context.Context, req TriggerRequest) (bool, error) {
	payload, err := req.Payload()
	if err != nil {
		return false, err
	}

	var done bool
	err = c.t.Do(ctx, func(l *Line) error {
		if err := l.WriteLine(payload); err != nil {
			return err
		}
		start := time.Now()
		var werr error
		done, werr = l.waitForMarker(doneMarker, c.cfg.PollTimeout, c.cfg.DoneTimeout)
		c.log.Debug().
			Str("port", c.t.Name()).
			Stringer("channel", req.Channel).
			Int("frames", req.Frames).
			Bool("done", done).
			Dur("elapsed", time.Since(start)).
			Msg("trigger burst finished")
		return werr
	})
	return done, err
}
