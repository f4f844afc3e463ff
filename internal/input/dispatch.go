package input

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Executor carries out commands against the devices
type Executor interface {
	Execute(ctx context.Context, cmd Command) error
}

// Dispatcher feeds gamepad events through a Mapping into an Executor.
// Command failures are logged and never stop the loop.
type Dispatcher struct {
	mapping *Mapping
	exec    Executor
	enabled func() bool
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher. Events are dropped while enabled
// returns false.
func NewDispatcher(mapping *Mapping, exec Executor, enabled func() bool, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{mapping: mapping, exec: exec, enabled: enabled, log: log}
}

// Run handles events until ctx is done or events is closed
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	if d.enabled != nil && !d.enabled() {
		return
	}

	scale := d.mapping.Scale()
	cmds := d.mapping.Map(ev)
	if s := d.mapping.Scale(); s != scale {
		d.log.Info().Int("scale", s).Msg("stick speed scale changed")
	}

	for _, cmd := range cmds {
		if err := d.exec.Execute(ctx, cmd); err != nil {
			d.log.Error().
				Err(err).
				Stringer("control", ev.Control).
				Str("command", fmt.Sprintf("%T", cmd)).
				Msg("gamepad command failed")
		}
	}
}
