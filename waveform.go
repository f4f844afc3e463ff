package labctl

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// WaveformConfig holds the settings of a WaveformController
type WaveformConfig struct {
	// PollTimeout bounds each read while waiting for the completion marker
	PollTimeout time.Duration
	// DoneTimeout bounds the whole wait; 0 waits until the context is done
	DoneTimeout time.Duration
	// Gate is the gate pattern uploaded by LoadDefaults
	Gate GateShape
}

// DefaultWaveformConfig returns the waveform unit defaults
func DefaultWaveformConfig() WaveformConfig {
	return WaveformConfig{
		PollTimeout: time.Second,
		DoneTimeout: 0,
		Gate:        DefaultGateShape(),
	}
}

// WaveformController uploads waveform and gate tables to one generator
// unit and keeps the last uploaded copy of each. Tables are read and
// written only while holding the unit's transport.
type WaveformController struct {
	t   *Transport
	cfg WaveformConfig
	log zerolog.Logger

	wave []uint32
	gate []uint8
}

// NewWaveformController takes ownership of t. Both tables start empty.
func NewWaveformController(t *Transport, cfg WaveformConfig, log zerolog.Logger) *WaveformController {
	return &WaveformController{t: t, cfg: cfg, log: log}
}

// Close releases the transport
func (w *WaveformController) Close() error {
	return w.t.Close()
}

// Name returns the name of the underlying transport
func (w *WaveformController) Name() string {
	return w.t.Name()
}

func (w *WaveformController) transfer(l *Line, frame []byte) (bool, error) {
	if err := l.WriteLine(frame); err != nil {
		return false, err
	}
	return l.waitForMarker(doneMarker, w.cfg.PollTimeout, w.cfg.DoneTimeout)
}

// UploadTable sends table under key with each sample encoded in width
// bytes, then waits for the unit. It reports whether the unit answered with
// the done marker. The stored tables are not changed.
func (w *WaveformController) UploadTable(ctx context.Context, table []uint32, key byte, width int) (bool, error) {
	frame, err := EncodeTable(key, table, width)
	if err != nil {
		return false, err
	}

	var done bool
	err = w.t.Do(ctx, func(l *Line) error {
		var terr error
		done, terr = w.transfer(l, frame)
		return terr
	})
	return done, err
}

// UploadWaveTable stores samples as the waveform table and uploads it
func (w *WaveformController) UploadWaveTable(ctx context.Context, samples []uint32) (bool, error) {
	frame, err := EncodeTable(WaveKey, samples, WaveSampleWidth)
	if err != nil {
		return false, err
	}

	var done bool
	err = w.t.Do(ctx, func(l *Line) error {
		w.wave = slices.Clone(samples)
		var terr error
		done, terr = w.transfer(l, frame)
		return terr
	})
	w.log.Info().Str("port", w.t.Name()).Int("samples", len(samples)).Bool("done", done).Msg("waveform table uploaded")
	return done, err
}

// UploadGateTable stores gates as the gate table and uploads it
func (w *WaveformController) UploadGateTable(ctx context.Context, gates []uint8) (bool, error) {
	frame, err := EncodeTable(GateKey, gatesToSamples(gates), GateSampleWidth)
	if err != nil {
		return false, err
	}

	var done bool
	err = w.t.Do(ctx, func(l *Line) error {
		w.gate = slices.Clone(gates)
		var terr error
		done, terr = w.transfer(l, frame)
		return terr
	})
	w.log.Info().Str("port", w.t.Name()).Int("samples", len(gates)).Bool("done", done).Msg("gate table uploaded")
	return done, err
}

// SendWaveTable re-sends the stored waveform table
func (w *WaveformController) SendWaveTable(ctx context.Context) (bool, error) {
	var done bool
	err := w.t.Do(ctx, func(l *Line) error {
		frame, err := EncodeTable(WaveKey, w.wave, WaveSampleWidth)
		if err != nil {
			return err
		}
		done, err = w.transfer(l, frame)
		return err
	})
	return done, err
}

// SendGateTable re-sends the stored gate table
func (w *WaveformController) SendGateTable(ctx context.Context) (bool, error) {
	var done bool
	err := w.t.Do(ctx, func(l *Line) error {
		frame, err := EncodeTable(GateKey, gatesToSamples(w.gate), GateSampleWidth)
		if err != nil {
			return err
		}
		done, err = w.transfer(l, frame)
		return err
	})
	return done, err
}

// Reset clears the unit's output state. It returns true once the unit has
// answered, whatever the answer was.
func (w *WaveformController) Reset(ctx context.Context) (bool, error) {
	err := w.t.Do(ctx, func(l *Line) error {
		_, err := w.transfer(l, []byte{ResetByte})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// WaveTable returns a copy of the stored waveform table
func (w *WaveformController) WaveTable(ctx context.Context) ([]uint32, error) {
	var table []uint32
	err := w.t.Do(ctx, func(*Line) error {
		table = slices.Clone(w.wave)
		return nil
	})
	return table, err
}

// GateTable returns a copy of the stored gate table
func (w *WaveformController) GateTable(ctx context.Context) ([]uint8, error) {
	var table []uint8
	err := w.t.Do(ctx, func(*Line) error {
		table = slices.Clone(w.gate)
		return nil
	})
	return table, err
}

// Steps of LoadDefaults, as reported in *StepError
const (
	StepReadDefaults  = "read defaults"
	StepParseDefaults = "parse defaults"
	StepReset         = "reset"
	StepUploadWave    = "upload waveform"
	StepUploadGate    = "upload gate table"
)

var errNotAcknowledged = fmt.Errorf("%w: unit did not acknowledge with the done marker", ErrProtocol)

// LoadDefaults parses the default waveform table at path, resets the unit,
// uploads the table and then the configured gate pattern. Nothing is sent
// if the file cannot be read or parsed, or holds a sample too wide to encode. The first failing step aborts the
// rest and is reported as a *StepError.
func (w *WaveformController) LoadDefaults(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &StepError{Step: StepReadDefaults, Err: err}
	}
	samples, err := ParseTable(raw)
	if err != nil {
		return &StepError{Step: StepParseDefaults, Err: err}
	}
	if _, err := EncodeTable(WaveKey, samples, WaveSampleWidth); err != nil {
		return &StepError{Step: StepParseDefaults, Err: err}
	}

	log := w.log.With().Str("port", w.t.Name()).Str("table", path).Logger()

	log.Info().Msg("resetting unit")
	if _, err := w.Reset(ctx); err != nil {
		return &StepError{Step: StepReset, Err: err}
	}

	start := time.Now()
	done, err := w.UploadWaveTable(ctx, samples)
	if err == nil && !done {
		err = errNotAcknowledged
	}
	if err != nil {
		return &StepError{Step: StepUploadWave, Err: err}
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("waveform applied")

	start = time.Now()
	done, err = w.UploadGateTable(ctx, w.cfg.Gate.Table())
	if err == nil && !done {
		err = errNotAcknowledged
	}
	if err != nil {
		return &StepError{Step: StepUploadGate, Err: err}
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("gate table applied")

	return nil
}
