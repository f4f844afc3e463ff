package rig

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/allbin/labctl"
	"github.com/spf13/viper"
)

const benchConfig = `
stages:
  - name: xy
    port: /dev/serial/by-path/pci-0000:00:14.0-usb-0:1.3:1.0-port0
    baud: 19200
    flow_control: rtscts
  - name: z
    port: /dev/serial/by-path/pci-0000:00:14.0-usb-0:1.2:1.0-port0
    baud: 19200
    move_timeout: 30s
channels:
  - {id: 1, stage: z, axis: 1}
  - {id: 2, stage: xy, axis: 1}
  - {id: 3, stage: xy, axis: 2}
trigger:
  port: /dev/serial/by-id/usb-Raspberry_Pi_Pico_E660D4A0A79A5125-if00
  driver: portable
waveforms:
  - id: 0
    name: "488"
    port: /dev/serial/by-id/usb-Raspberry_Pi_Pico_E660C0D1C7514D30-if00
    defaults: 488.txt
  - id: 1
    name: "560"
    port: /dev/serial/by-id/usb-Raspberry_Pi_Pico_E660D4A0A790912E-if00
    gate: {lead: 10, high: 20, trail: 5}
gamepad:
  xy_stage: xy
  z_stage: z
api:
  listen: 127.0.0.1:5000
`

func loadString(t *testing.T, content string) (Config, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	return Load(v)
}

func TestLoad(t *testing.T) {
	cfg, err := loadString(t, benchConfig)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Stages) != 2 || cfg.Stages[0].Name != "xy" || cfg.Stages[0].Baud != 19200 {
		t.Errorf("Unexpected stages %+v", cfg.Stages)
	}
	if cfg.Stages[1].Settings().MoveTimeout != 30*time.Second {
		t.Errorf("Expected move timeout 30s, got %v", cfg.Stages[1].Settings().MoveTimeout)
	}
	if len(cfg.Channels) != 3 || cfg.Channels[2].Stage != "xy" || cfg.Channels[2].Axis != 2 {
		t.Errorf("Unexpected channels %+v", cfg.Channels)
	}
	if cfg.Trigger == nil || cfg.Trigger.Driver != "portable" {
		t.Errorf("Unexpected trigger %+v", cfg.Trigger)
	}
	if cfg.Waveforms[0].Gate != labctl.DefaultGateShape() {
		t.Errorf("Expected default gate shape, got %+v", cfg.Waveforms[0].Gate)
	}
	if cfg.Waveforms[1].Gate != (labctl.GateShape{Lead: 10, High: 20, Trail: 5}) {
		t.Errorf("Expected configured gate shape, got %+v", cfg.Waveforms[1].Gate)
	}
	if cfg.Gamepad.Device != "/dev/input/js0" || cfg.Gamepad.ZVelocityMax != 0.4 {
		t.Errorf("Expected gamepad defaults, got %+v", cfg.Gamepad)
	}
	if cfg.API.Listen != "127.0.0.1:5000" || cfg.API.StatusInterval != 250*time.Millisecond {
		t.Errorf("Unexpected api config %+v", cfg.API)
	}
}

func TestLoadRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"UnknownStage", "stages: [{name: xy, port: /dev/a}]\nchannels: [{id: 1, stage: z, axis: 1}]\n"},
		{"DuplicateStage", "stages: [{name: xy, port: /dev/a}, {name: xy, port: /dev/b}]\n"},
		{"ZeroAxis", "stages: [{name: xy, port: /dev/a}]\nchannels: [{id: 1, stage: xy, axis: 0}]\n"},
		{"WaveformWithoutPort", "waveforms: [{id: 0}]\n"},
		{"GamepadUnknownStage", "gamepad: {xy_stage: nope}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadString(t, tt.content); !errors.Is(err, labctl.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestPortOptions(t *testing.T) {
	opts, err := PortConfig{Baud: 19200, FlowControl: "RTSCTS", Driver: "portable"}.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}

	config := labctl.DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			t.Fatalf("Option failed: %v", err)
		}
	}
	if config.BaudRate != 19200 || config.FlowControl != labctl.FlowControlRTSCTS || config.Driver != labctl.DriverPortable {
		t.Errorf("Unexpected config %+v", config)
	}

	if _, err := (PortConfig{FlowControl: "xonxoff"}).Options(); !errors.Is(err, labctl.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for flow control, got %v", err)
	}
	if _, err := (PortConfig{Driver: "ftdi"}).Options(); !errors.Is(err, labctl.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for driver, got %v", err)
	}
}

func TestGamepadMappingConfig(t *testing.T) {
	cfg, err := loadString(t, benchConfig)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	m := cfg.Gamepad.MappingConfig()
	if m.XYStage != "xy" || m.XAxis != 1 || m.YAxis != 2 || m.ZStage != "z" || m.LeftStickScale != 0.04 {
		t.Errorf("Unexpected mapping config %+v", m)
	}
}

func TestFindDevices(t *testing.T) {
	cfg, err := loadString(t, benchConfig)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s, err := cfg.FindStage("z"); err != nil || s.Baud != 19200 {
		t.Errorf("Expected stage z, got %+v (%v)", s, err)
	}
	if _, err := cfg.FindStage("theta"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Expected ErrUnknownDevice, got %v", err)
	}
	if w, err := cfg.FindWaveform(1); err != nil || w.Name != "560" {
		t.Errorf("Expected waveform 1, got %+v (%v)", w, err)
	}
	if _, err := cfg.FindWaveform(4); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Expected ErrUnknownDevice, got %v", err)
	}
}
