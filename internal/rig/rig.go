// Package rig wires the configured devices together: stage controllers,
// the trigger unit and the waveform generators, plus the logical channel
// map used by the HTTP API and the gamepad-enabled flag.
package rig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/input"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrUnknownDevice  = errors.New("unknown device")
)

// Channel is one logical axis: a stage controller and an axis on it
type Channel struct {
	ID        int
	StageName string
	Stage     *labctl.MotionController
	Axis      labctl.Axis
}

// Devices holds already constructed controllers
type Devices struct {
	Stages    map[string]*labctl.MotionController
	Trigger   *labctl.TriggerController
	Waveforms map[int]*labctl.WaveformController
}

// Rig is the shared context passed to the API server and the gamepad
// dispatcher. It is safe for concurrent use.
type Rig struct {
	dev      Devices
	channels map[int]Channel
	ids      []int
	gamepad  *atomic.Bool
	log      zerolog.Logger
}

// New builds a rig from open devices and the channel map
func New(dev Devices, channels []ChannelConfig, log zerolog.Logger) (*Rig, error) {
	if dev.Stages == nil {
		dev.Stages = map[string]*labctl.MotionController{}
	}
	if dev.Waveforms == nil {
		dev.Waveforms = map[int]*labctl.WaveformController{}
	}

	r := &Rig{
		dev:      dev,
		channels: make(map[int]Channel, len(channels)),
		gamepad:  atomic.NewBool(true),
		log:      log,
	}
	for _, ch := range channels {
		stage, ok := dev.Stages[ch.Stage]
		if !ok {
			return nil, fmt.Errorf("channel %d: %w %q", ch.ID, ErrUnknownDevice, ch.Stage)
		}
		r.channels[ch.ID] = Channel{ID: ch.ID, StageName: ch.Stage, Stage: stage, Axis: labctl.Axis(ch.Axis)}
		r.ids = append(r.ids, ch.ID)
	}
	sort.Ints(r.ids)
	return r, nil
}

// Open opens every configured device and loads default waveform tables.
// Devices opened before a failure are closed again.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Rig, error) {
	dev := Devices{
		Stages:    map[string]*labctl.MotionController{},
		Waveforms: map[int]*labctl.WaveformController{},
	}
	var opened []io.Closer
	fail := func(err error) (*Rig, error) {
		for _, c := range opened {
			c.Close()
		}
		return nil, err
	}

	for _, s := range cfg.Stages {
		m, err := OpenStage(s, log)
		if err != nil {
			return fail(err)
		}
		dev.Stages[s.Name] = m
		opened = append(opened, m)
		log.Info().Str("stage", s.Name).Str("port", s.Port).Msg("stage controller opened")
	}

	if cfg.Trigger != nil {
		t, err := OpenTrigger(*cfg.Trigger, log)
		if err != nil {
			return fail(err)
		}
		dev.Trigger = t
		opened = append(opened, dev.Trigger)
		log.Info().Str("port", cfg.Trigger.Port).Msg("trigger unit opened")
	}

	for _, w := range cfg.Waveforms {
		wc, err := OpenWaveform(w, log)
		if err != nil {
			return fail(err)
		}
		dev.Waveforms[w.ID] = wc
		opened = append(opened, wc)

		if w.Defaults == "" {
			continue
		}
		if err := wc.LoadDefaults(ctx, w.Defaults); err != nil {
			return fail(fmt.Errorf("waveform %d: %w", w.ID, err))
		}
	}

	r, err := New(dev, cfg.Channels, log)
	if err != nil {
		return fail(err)
	}
	r.gamepad.Store(cfg.Gamepad.Enabled)
	return r, nil
}

// OpenStage opens one stage controller
func OpenStage(s StageConfig, log zerolog.Logger) (*labctl.MotionController, error) {
	t, err := openTransport(s.PortConfig, log)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", s.Name, err)
	}
	return labctl.NewMotionController(t, s.Settings(), log.With().Str("stage", s.Name).Logger()), nil
}

// OpenTrigger opens the trigger unit
func OpenTrigger(c TriggerConfig, log zerolog.Logger) (*labctl.TriggerController, error) {
	t, err := openTransport(c.PortConfig, log)
	if err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	return labctl.NewTriggerController(t, c.Settings(), log.With().Str("device", "trigger").Logger()), nil
}

// OpenWaveform opens one waveform generator without loading its defaults
func OpenWaveform(w WaveformConfig, log zerolog.Logger) (*labctl.WaveformController, error) {
	t, err := openTransport(w.PortConfig, log)
	if err != nil {
		return nil, fmt.Errorf("waveform %d: %w", w.ID, err)
	}
	return labctl.NewWaveformController(t, w.Settings(), log.With().Int("waveform", w.ID).Str("line", w.Name).Logger()), nil
}

func openTransport(p PortConfig, log zerolog.Logger) (*labctl.Transport, error) {
	opts, err := p.Options()
	if err != nil {
		return nil, err
	}
	return labctl.OpenTransport(p.Port, log, opts...)
}

// Close closes every device
func (r *Rig) Close() error {
	var errs []error
	for _, s := range r.dev.Stages {
		errs = append(errs, s.Close())
	}
	if r.dev.Trigger != nil {
		errs = append(errs, r.dev.Trigger.Close())
	}
	for _, w := range r.dev.Waveforms {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// GamepadEnabled reports whether gamepad events are dispatched
func (r *Rig) GamepadEnabled() bool {
	return r.gamepad.Load()
}

// SetGamepadEnabled turns gamepad dispatch on or off
func (r *Rig) SetGamepadEnabled(enabled bool) {
	if r.gamepad.Swap(enabled) != enabled {
		r.log.Info().Bool("enabled", enabled).Msg("gamepad dispatch toggled")
	}
}

// Stage returns a stage controller by name
func (r *Rig) Stage(name string) (*labctl.MotionController, error) {
	s, ok := r.dev.Stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: stage %q", ErrUnknownDevice, name)
	}
	return s, nil
}

// StageNames returns the configured stage names, sorted
func (r *Rig) StageNames() []string {
	names := make([]string, 0, len(r.dev.Stages))
	for name := range r.dev.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trigger returns the trigger unit
func (r *Rig) Trigger() (*labctl.TriggerController, error) {
	if r.dev.Trigger == nil {
		return nil, fmt.Errorf("%w: no trigger unit configured", ErrUnknownDevice)
	}
	return r.dev.Trigger, nil
}

// Waveform returns a waveform generator by id
func (r *Rig) Waveform(id int) (*labctl.WaveformController, error) {
	w, ok := r.dev.Waveforms[id]
	if !ok {
		return nil, fmt.Errorf("%w: waveform %d", ErrUnknownDevice, id)
	}
	return w, nil
}

// Channel returns the mapping of a logical channel
func (r *Rig) Channel(id int) (Channel, error) {
	ch, ok := r.channels[id]
	if !ok {
		return Channel{}, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return ch, nil
}

// ChannelIDs returns the configured channel ids in ascending order
func (r *Rig) ChannelIDs() []int {
	return append([]int(nil), r.ids...)
}

// MoveChannel moves a logical channel to an absolute position
func (r *Rig) MoveChannel(ctx context.Context, id int, position float64) error {
	ch, err := r.Channel(id)
	if err != nil {
		return err
	}
	return ch.Stage.MoveTo(ctx, ch.Axis, position)
}

// SetChannelVelocity sets the velocity of a logical channel
func (r *Rig) SetChannelVelocity(ctx context.Context, id int, velocity float64) error {
	ch, err := r.Channel(id)
	if err != nil {
		return err
	}
	return ch.Stage.SetVelocity(ctx, ch.Axis, velocity)
}

// channelsByStage groups channel ids so each stage is queried once
func (r *Rig) channelsByStage() map[string][]Channel {
	groups := make(map[string][]Channel)
	for _, id := range r.ids {
		ch := r.channels[id]
		groups[ch.StageName] = append(groups[ch.StageName], ch)
	}
	return groups
}

// Positions returns the position of every logical channel
func (r *Rig) Positions(ctx context.Context) (map[int]float64, error) {
	out := make(map[int]float64, len(r.ids))
	for name, chans := range r.channelsByStage() {
		pos, err := chans[0].Stage.Position(ctx)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		for _, ch := range chans {
			v, ok := pos[ch.Axis]
			if !ok {
				return nil, &labctl.ProtocolError{Command: "TP", Reason: fmt.Sprintf("no position for axis %d", ch.Axis)}
			}
			out[ch.ID] = v
		}
	}
	return out, nil
}

// Moving returns whether each logical channel is in motion
func (r *Rig) Moving(ctx context.Context) (map[int]bool, error) {
	out := make(map[int]bool, len(r.ids))
	for name, chans := range r.channelsByStage() {
		state, err := chans[0].Stage.MovingState(ctx)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		for _, ch := range chans {
			out[ch.ID] = state[ch.Axis]
		}
	}
	return out, nil
}

// AnyMoving reports whether any logical channel is in motion
func (r *Rig) AnyMoving(ctx context.Context) (bool, error) {
	moving, err := r.Moving(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range moving {
		if m {
			return true, nil
		}
	}
	return false, nil
}

// EmergencyStop aborts motion on every stage. All stages are attempted
// even if one fails.
func (r *Rig) EmergencyStop(ctx context.Context) error {
	var errs []error
	for _, name := range r.StageNames() {
		if err := r.dev.Stages[name].EmergencyStop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stage %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot is the periodic status pushed to stream clients
type Snapshot struct {
	Time           time.Time       `json:"time"`
	Positions      map[int]float64 `json:"positions"`
	Moving         map[int]bool    `json:"moving"`
	GamepadEnabled bool            `json:"gamepad_enabled"`
}

// Snapshot queries positions and moving flags of every channel
func (r *Rig) Snapshot(ctx context.Context) (Snapshot, error) {
	pos, err := r.Positions(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	moving, err := r.Moving(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Time:           time.Now(),
		Positions:      pos,
		Moving:         moving,
		GamepadEnabled: r.GamepadEnabled(),
	}, nil
}

// Execute carries out a gamepad command
func (r *Rig) Execute(ctx context.Context, cmd input.Command) error {
	switch c := cmd.(type) {
	case input.Jog:
		s, err := r.Stage(c.Stage)
		if err != nil {
			return err
		}
		if err := s.SetVelocity(ctx, c.Axis, c.Velocity); err != nil {
			return err
		}
		return s.MoveIndefinite(ctx, c.Axis, c.Direction)
	case input.Stop:
		s, err := r.Stage(c.Stage)
		if err != nil {
			return err
		}
		return s.Stop(ctx, c.Axis)
	case input.Enable:
		s, err := r.Stage(c.Stage)
		if err != nil {
			return err
		}
		return s.EnableAxis(ctx, c.Axis)
	case input.Home:
		s, err := r.Stage(c.Stage)
		if err != nil {
			return err
		}
		if err := s.Stop(ctx, c.Axis); err != nil {
			return err
		}
		if err := s.SetVelocity(ctx, c.Axis, c.Velocity); err != nil {
			return err
		}
		return s.Home(ctx, c.Axis)
	case input.Trigger:
		t, err := r.Trigger()
		if err != nil {
			return err
		}
		done, err := t.SendTrigger(ctx, c.Request)
		if err != nil {
			return err
		}
		if !done {
			r.log.Warn().Stringer("channel", c.Request.Channel).Msg("trigger unit did not report done")
		}
		return nil
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

// MappingConfig builds the gamepad mapping settings from the config
func (g GamepadConfig) MappingConfig() input.MappingConfig {
	return input.MappingConfig{
		XYStage:        g.XYStage,
		XAxis:          labctl.Axis(g.XAxis),
		YAxis:          labctl.Axis(g.YAxis),
		ZStage:         g.ZStage,
		ZAxis:          labctl.Axis(g.ZAxis),
		XYVelocityMax:  g.XYVelocityMax,
		ZVelocityMax:   g.ZVelocityMax,
		Deadzone:       g.Deadzone,
		LeftStickScale: g.LeftStickScale,
	}
}
