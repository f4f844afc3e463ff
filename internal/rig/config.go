package rig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allbin/labctl"
	"github.com/spf13/viper"
)

// Config describes every device on the rig and how logical channels map
// onto stage axes. It is loaded with viper from labctl.yaml.
type Config struct {
	Stages    []StageConfig    `mapstructure:"stages"`
	Channels  []ChannelConfig  `mapstructure:"channels"`
	Trigger   *TriggerConfig   `mapstructure:"trigger"`
	Waveforms []WaveformConfig `mapstructure:"waveforms"`
	Gamepad   GamepadConfig    `mapstructure:"gamepad"`
	API       APIConfig        `mapstructure:"api"`
}

// PortConfig holds the serial settings shared by every device entry
type PortConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	FlowControl string        `mapstructure:"flow_control"`
	Driver      string        `mapstructure:"driver"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// StageConfig is one ESP30x motion controller
type StageConfig struct {
	Name       string `mapstructure:"name"`
	PortConfig `mapstructure:",squash"`

	Axes         int           `mapstructure:"axes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MoveTimeout  time.Duration `mapstructure:"move_timeout"`
	QueryRetries int           `mapstructure:"query_retries"`
}

// ChannelConfig maps an API channel number to one axis of a stage
type ChannelConfig struct {
	ID    int    `mapstructure:"id"`
	Stage string `mapstructure:"stage"`
	Axis  int    `mapstructure:"axis"`
}

// TriggerConfig is the frame-trigger unit
type TriggerConfig struct {
	PortConfig `mapstructure:",squash"`

	DoneTimeout time.Duration `mapstructure:"done_timeout"`
}

// WaveformConfig is one waveform/gate generator. ID is the index used by
// the API; Name is the laser line it drives.
type WaveformConfig struct {
	ID         int    `mapstructure:"id"`
	Name       string `mapstructure:"name"`
	PortConfig `mapstructure:",squash"`

	Defaults    string           `mapstructure:"defaults"`
	Gate        labctl.GateShape `mapstructure:"gate"`
	DoneTimeout time.Duration    `mapstructure:"done_timeout"`
}

// GamepadConfig configures the joystick jog mapping
type GamepadConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Device         string  `mapstructure:"device"`
	XYStage        string  `mapstructure:"xy_stage"`
	XAxis          int     `mapstructure:"x_axis"`
	YAxis          int     `mapstructure:"y_axis"`
	ZStage         string  `mapstructure:"z_stage"`
	ZAxis          int     `mapstructure:"z_axis"`
	XYVelocityMax  float64 `mapstructure:"xy_velocity_max"`
	ZVelocityMax   float64 `mapstructure:"z_velocity_max"`
	Deadzone       float64 `mapstructure:"deadzone"`
	LeftStickScale float64 `mapstructure:"left_stick_scale"`
}

// APIConfig configures the HTTP server
type APIConfig struct {
	Listen         string        `mapstructure:"listen"`
	StatusInterval time.Duration `mapstructure:"status_interval"`
}

// SetDefaults registers the default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gamepad.enabled", true)
	v.SetDefault("gamepad.device", "/dev/input/js0")
	v.SetDefault("gamepad.x_axis", 1)
	v.SetDefault("gamepad.y_axis", 2)
	v.SetDefault("gamepad.z_axis", 1)
	v.SetDefault("gamepad.xy_velocity_max", 20.0)
	v.SetDefault("gamepad.z_velocity_max", 0.4)
	v.SetDefault("gamepad.deadzone", 0.01)
	v.SetDefault("gamepad.left_stick_scale", 0.04)
	v.SetDefault("api.listen", ":5000")
	v.SetDefault("api.status_interval", 250*time.Millisecond)
}

// Load decodes the rig configuration held by v and validates it
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	gate := labctl.DefaultGateShape()
	for i := range c.Waveforms {
		if c.Waveforms[i].Gate == (labctl.GateShape{}) {
			c.Waveforms[i].Gate = gate
		}
	}
}

// Validate checks that names are unique and that every reference points
// at a configured device
func (c Config) Validate() error {
	var errs []error

	stages := make(map[string]bool, len(c.Stages))
	for _, s := range c.Stages {
		switch {
		case s.Name == "":
			errs = append(errs, errors.New("stage without name"))
		case stages[s.Name]:
			errs = append(errs, fmt.Errorf("duplicate stage %q", s.Name))
		case s.Port == "":
			errs = append(errs, fmt.Errorf("stage %q: no port", s.Name))
		}
		stages[s.Name] = true
	}

	channels := make(map[int]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if channels[ch.ID] {
			errs = append(errs, fmt.Errorf("duplicate channel %d", ch.ID))
		}
		channels[ch.ID] = true
		if !stages[ch.Stage] {
			errs = append(errs, fmt.Errorf("channel %d: unknown stage %q", ch.ID, ch.Stage))
		}
		if ch.Axis < 1 {
			errs = append(errs, fmt.Errorf("channel %d: axis must be >= 1", ch.ID))
		}
	}

	waves := make(map[int]bool, len(c.Waveforms))
	for _, w := range c.Waveforms {
		if waves[w.ID] {
			errs = append(errs, fmt.Errorf("duplicate waveform %d", w.ID))
		}
		waves[w.ID] = true
		if w.Port == "" {
			errs = append(errs, fmt.Errorf("waveform %d: no port", w.ID))
		}
	}

	if c.Trigger != nil && c.Trigger.Port == "" {
		errs = append(errs, errors.New("trigger: no port"))
	}

	if c.Gamepad.Enabled {
		for _, name := range []string{c.Gamepad.XYStage, c.Gamepad.ZStage} {
			if name != "" && !stages[name] {
				errs = append(errs, fmt.Errorf("gamepad: unknown stage %q", name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", labctl.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Options converts the entry into port options
func (p PortConfig) Options() ([]labctl.Option, error) {
	var opts []labctl.Option
	if p.Baud != 0 {
		opts = append(opts, labctl.WithBaudRate(p.Baud))
	}

	switch strings.ToLower(p.FlowControl) {
	case "", "none":
	case "rtscts":
		opts = append(opts, labctl.WithFlowControl(labctl.FlowControlRTSCTS))
	default:
		return nil, fmt.Errorf("%w: flow control %q", labctl.ErrInvalidConfig, p.FlowControl)
	}

	driver, err := labctl.ParseDriver(strings.ToLower(p.Driver))
	if err != nil {
		return nil, fmt.Errorf("%w: driver %q", err, p.Driver)
	}
	opts = append(opts, labctl.WithDriver(driver))
	return opts, nil
}

// Settings returns the controller settings for the stage
func (s StageConfig) Settings() labctl.MotionConfig {
	cfg := labctl.DefaultMotionConfig()
	if s.Axes > 0 {
		cfg.AxisCount = s.Axes
	}
	if s.ReadTimeout > 0 {
		cfg.ReadTimeout = s.ReadTimeout
	}
	if s.PollInterval > 0 {
		cfg.PollInterval = s.PollInterval
	}
	cfg.MoveTimeout = s.MoveTimeout
	cfg.QueryRetries = s.QueryRetries
	return cfg
}

// Settings returns the controller settings for the trigger unit
func (t TriggerConfig) Settings() labctl.TriggerConfig {
	cfg := labctl.DefaultTriggerConfig()
	if t.PollTimeout > 0 {
		cfg.PollTimeout = t.PollTimeout
	}
	cfg.DoneTimeout = t.DoneTimeout
	return cfg
}

// Settings returns the controller settings for the generator
func (w WaveformConfig) Settings() labctl.WaveformConfig {
	cfg := labctl.DefaultWaveformConfig()
	if w.PollTimeout > 0 {
		cfg.PollTimeout = w.PollTimeout
	}
	cfg.DoneTimeout = w.DoneTimeout
	if w.Gate != (labctl.GateShape{}) {
		cfg.Gate = w.Gate
	}
	return cfg
}

// FindStage returns the stage named name
func (c Config) FindStage(name string) (StageConfig, error) {
	for _, s := range c.Stages {
		if s.Name == name {
			return s, nil
		}
	}
	return StageConfig{}, fmt.Errorf("%w: stage %q", ErrUnknownDevice, name)
}

// FindWaveform returns the waveform generator with the given id
func (c Config) FindWaveform(id int) (WaveformConfig, error) {
	for _, w := range c.Waveforms {
		if w.ID == id {
			return w, nil
		}
	}
	return WaveformConfig{}, fmt.Errorf("%w: waveform %d", ErrUnknownDevice, id)
}
