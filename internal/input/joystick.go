package input

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Linux joystick API (linux/joystick.h) event layout
const (
	jsEventSize   = 8
	jsEventButton = 0x01
	jsEventAxis   = 0x02
	jsEventInit   = 0x80

	axisMax = 32767
)

// DecodeEvent decodes one struct js_event. Synthetic init events sent on
// open, unknown control numbers and short buffers report ok=false.
func DecodeEvent(raw []byte) (ev Event, ok bool) {
	if len(raw) < jsEventSize {
		return Event{}, false
	}
	value := int16(binary.LittleEndian.Uint16(raw[4:6]))
	typ := raw[6]
	number := raw[7]

	if typ&jsEventInit != 0 {
		return Event{}, false
	}

	switch typ {
	case jsEventAxis:
		c, known := xbox360Axes[number]
		if !known {
			return Event{}, false
		}
		v := float64(value) / axisMax
		if v < -1 {
			v = -1
		}
		return Event{Kind: KindAxis, Control: c, Value: v}, true
	case jsEventButton:
		c, known := xbox360Buttons[number]
		if !known {
			return Event{}, false
		}
		var v float64
		if value != 0 {
			v = 1
		}
		return Event{Kind: KindButton, Control: c, Value: v}, true
	default:
		return Event{}, false
	}
}

// Joystick reads events from a Linux joystick device node and survives the
// pad being unplugged and plugged back in.
type Joystick struct {
	path  string
	retry time.Duration
	log   zerolog.Logger
	open  func(path string) (io.ReadCloser, error)
}

// NewJoystick creates a reader for path, e.g. /dev/input/js0
func NewJoystick(path string, log zerolog.Logger) *Joystick {
	return &Joystick{
		path:  path,
		retry: time.Second,
		log:   log,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Run delivers events to out until ctx is done. While the device is
// missing it is re-opened every second.
func (j *Joystick) Run(ctx context.Context, out chan<- Event) error {
	waiting := false
	for {
		f, err := j.open(j.path)
		if err != nil {
			if !waiting {
				j.log.Info().Str("device", j.path).Msg("waiting for gamepad")
				waiting = true
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(j.retry):
			}
			continue
		}

		waiting = false
		j.log.Info().Str("device", j.path).Msg("gamepad connected")
		err = j.read(ctx, f, out)
		f.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.log.Warn().Err(err).Str("device", j.path).Msg("gamepad disconnected")
	}
}

func (j *Joystick) read(ctx context.Context, f io.ReadCloser, out chan<- Event) error {
	// a blocked Read only returns once the file is closed
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, jsEventSize)
	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			return err
		}
		ev, ok := DecodeEvent(buf)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
