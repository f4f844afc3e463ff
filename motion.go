package labctl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Axis identifies one motion degree of freedom on a stage controller (1-based)
type Axis int

// Direction is the jog direction understood by the MV command
type Direction byte

const (
	Forward  Direction = '+'
	Backward Direction = '-'
)

// settleCommand makes the controller wait 50ms after a stop before the
// following absolute move is executed
const settleCommand = "WT50\n"

// MotionConfig holds the controller-level settings of a MotionController
type MotionConfig struct {
	// AxisCount is the number of axes reported in the TS status byte
	AxisCount int
	// ReadTimeout bounds the wait for a single query reply
	ReadTimeout time.Duration
	// PollInterval is the pause between status queries while waiting for a move
	PollInterval time.Duration
	// MoveTimeout bounds WaitForMove; 0 waits until the context is done
	MoveTimeout time.Duration
	// QueryRetries is how many times a timed-out TP/TS query is re-sent
	QueryRetries int
	// RetryBackoff is the delay before the first retry; it doubles per attempt
	RetryBackoff time.Duration
}

// DefaultMotionConfig returns the settings used for ESP30x controllers
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		AxisCount:    3,
		ReadTimeout:  time.Second,
		PollInterval: 20 * time.Millisecond,
		MoveTimeout:  0,
		QueryRetries: 0,
		RetryBackoff: 50 * time.Millisecond,
	}
}

// MotionController drives one multi-axis stage controller speaking the
// Newport ESP30x ASCII command set. It is safe for concurrent use.
type MotionController struct {
	t   *Transport
	cfg MotionConfig
	log zerolog.Logger
}

// NewMotionController takes ownership of t
func NewMotionController(t *Transport, cfg MotionConfig, log zerolog.Logger) *MotionController {
	if cfg.AxisCount <= 0 {
		cfg.AxisCount = DefaultMotionConfig().AxisCount
	}
	return &MotionController{t: t, cfg: cfg, log: log}
}

// Close releases the transport
func (m *MotionController) Close() error {
	return m.t.Close()
}

// Name returns the name of the underlying transport
func (m *MotionController) Name() string {
	return m.t.Name()
}

func (m *MotionController) send(ctx context.Context, frame string) error {
	return m.t.Do(ctx, func(l *Line) error {
		return l.WriteLine([]byte(frame))
	})
}

func axisCommand(axis Axis, cmd string, arg string) string {
	return strconv.Itoa(int(axis)) + cmd + arg + "\n"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Home starts the origin search on one axis. It does not wait for completion.
func (m *MotionController) Home(ctx context.Context, axis Axis) error {
	return m.send(ctx, axisCommand(axis, "OR", ""))
}

// HomeAll starts the origin search on every axis
func (m *MotionController) HomeAll(ctx context.Context) error {
	return m.send(ctx, "OR\n")
}

// Stop decelerates one axis to a stop
func (m *MotionController) Stop(ctx context.Context, axis Axis) error {
	return m.send(ctx, axisCommand(axis, "ST", ""))
}

// EmergencyStop aborts motion on all axes. It waits for the line like any
// other command, so it runs after whatever command currently holds it.
func (m *MotionController) EmergencyStop(ctx context.Context) error {
	m.log.Warn().Str("port", m.t.Name()).Msg("emergency stop")
	return m.send(ctx, "AB\n")
}

// SetVelocity sets the velocity setpoint of one axis. The firmware is the
// authority on legal ranges.
func (m *MotionController) SetVelocity(ctx context.Context, axis Axis, velocity float64) error {
	return m.send(ctx, axisCommand(axis, "VA", formatNumber(velocity)))
}

// MoveIndefinite starts a continuous move in dir. Any direction other than
// Forward or Backward is ignored without touching the line.
func (m *MotionController) MoveIndefinite(ctx context.Context, axis Axis, dir Direction) error {
	if dir != Forward && dir != Backward {
		return nil
	}
	return m.send(ctx, axisCommand(axis, "MV", string(dir)))
}

// MoveTo stops the axis, then sends the settle wait and the absolute move
// as one frame
func (m *MotionController) MoveTo(ctx context.Context, axis Axis, position float64) error {
	if err := m.Stop(ctx, axis); err != nil {
		return err
	}
	return m.send(ctx, settleCommand+axisCommand(axis, "PA", formatNumber(position)))
}

// MoveToAndWait moves the axis and blocks until no axis reports motion
func (m *MotionController) MoveToAndWait(ctx context.Context, axis Axis, position float64) error {
	if err := m.MoveTo(ctx, axis, position); err != nil {
		return err
	}
	return m.WaitForMove(ctx)
}

// WaitForMove polls the status byte until every axis is idle
func (m *MotionController) WaitForMove(ctx context.Context) error {
	var deadline time.Time
	if m.cfg.MoveTimeout > 0 {
		deadline = time.Now().Add(m.cfg.MoveTimeout)
	}

	for {
		moving, err := m.IsMoving(ctx)
		if err != nil {
			return err
		}
		if !moving {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w: axes still moving after %v", ErrDeviceTimeout, m.cfg.MoveTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// EnableAxis turns the motor power of one axis on
func (m *MotionController) EnableAxis(ctx context.Context, axis Axis) error {
	return m.send(ctx, axisCommand(axis, "MO", ""))
}

// Reset reboots the controller
func (m *MotionController) Reset(ctx context.Context) error {
	return m.send(ctx, "RS\n")
}

// query writes a command and returns the single reply line, retrying
// timed-out queries when configured to
func (m *MotionController) query(ctx context.Context, cmd string) ([]byte, error) {
	backoff := m.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		var reply []byte
		err := m.t.Do(ctx, func(l *Line) error {
			if err := l.WriteLine([]byte(cmd)); err != nil {
				return err
			}
			var err error
			reply, err = l.ReadLine(m.cfg.ReadTimeout)
			return err
		})
		if err == nil || !errors.Is(err, ErrDeviceTimeout) || attempt >= m.cfg.QueryRetries {
			return reply, err
		}

		m.log.Debug().Str("port", m.t.Name()).Int("attempt", attempt+1).Msg("query timed out, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// Position returns the current position of every axis, keyed by axis
func (m *MotionController) Position(ctx context.Context) (map[Axis]float64, error) {
	reply, err := m.query(ctx, "TP\n")
	if err != nil {
		return nil, err
	}
	return parsePositions(reply)
}

func parsePositions(reply []byte) (map[Axis]float64, error) {
	fields := bytes.Split(reply, []byte(","))
	positions := make(map[Axis]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(string(bytes.TrimSpace(field)), 64)
		if err != nil {
			return nil, &ProtocolError{Command: "TP", Reply: reply, Reason: fmt.Sprintf("field %d is not a number", i+1)}
		}
		positions[Axis(i+1)] = v
	}
	return positions, nil
}

// MovingState returns whether each axis is in motion
func (m *MotionController) MovingState(ctx context.Context) (map[Axis]bool, error) {
	reply, err := m.query(ctx, "TS\n")
	if err != nil {
		return nil, err
	}
	return parseMovingState(reply, m.cfg.AxisCount)
}

// parseMovingState unpacks the status byte: bit i is set while axis i+1 moves
func parseMovingState(reply []byte, axes int) (map[Axis]bool, error) {
	if len(reply) != 1 {
		return nil, &ProtocolError{Command: "TS", Reply: reply, Reason: fmt.Sprintf("expected 1 status byte, got %d", len(reply))}
	}
	status := reply[0]
	moving := make(map[Axis]bool, axes)
	for i := 0; i < axes; i++ {
		moving[Axis(i+1)] = status&(1<<i) != 0
	}
	return moving, nil
}

// IsMoving reports whether any axis is in motion
func (m *MotionController) IsMoving(ctx context.Context) (bool, error) {
	state, err := m.MovingState(ctx)
	if err != nil {
		return false, err
	}
	for _, moving := range state {
		if moving {
			return true, nil
		}
	}
	return false, nil
}

// ReadError fetches the oldest entry of the controller's error buffer
func (m *MotionController) ReadError(ctx context.Context) (string, error) {
	reply, err := m.query(ctx, "TB\n")
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

// StageStatus is a snapshot of a controller's axes
type StageStatus struct {
	Position map[Axis]float64 `json:"position"`
	Moving   map[Axis]bool    `json:"axes_moving"`
	Active   bool             `json:"stage_active_flag"`
}

// Status queries positions and moving flags
func (m *MotionController) Status(ctx context.Context) (StageStatus, error) {
	pos, err := m.Position(ctx)
	if err != nil {
		return StageStatus{}, err
	}
	moving, err := m.MovingState(ctx)
	if err != nil {
		return StageStatus{}, err
	}
	s := StageStatus{Position: pos, Moving: moving}
	for _, v := range moving {
		s.Active = s.Active || v
	}
	return s, nil
}
