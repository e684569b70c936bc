// Package config loads board descriptions for the flight daemon: which
// layout the six channels use, their pins, calibration, and which PWM backend
// drives them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"flightemu/core"
)

// Board layouts
const (
	LayoutSingle = "single" // one unit, channel pairs share a timer
	LayoutDual   = "dual"   // two units, one timer per channel, phase synced
	LayoutCustom = "custom" // every output given explicitly
)

// Backends the daemon can drive
const (
	BackendSim = "sim"
	BackendRPi = "rpi"
)

// OutputConfig places one channel on the hardware (custom layout only)
type OutputConfig struct {
	Unit     uint8  `json:"unit"`
	Timer    uint8  `json:"timer"`
	Operator string `json:"operator"` // "a" or "b"
	Pin      uint32 `json:"pin"`
}

// SyncConfig overrides the phase sync constants
type SyncConfig struct {
	Source uint8   `json:"source"`
	Window float64 `json:"window"`
	Scale  float64 `json:"scale"`
}

// I2CConfig locates the PCA9685 expanders of the rpi backend
type I2CConfig struct {
	Bus       string   `json:"bus"`
	Addresses []uint16 `json:"addresses"`
	OEPin     *int     `json:"oe_pin,omitempty"`
}

// Config is one board file
type Config struct {
	Name        string                  `json:"name"`
	Layout      string                  `json:"layout"`
	Synced      *bool                   `json:"synced,omitempty"`
	Protocol    string                  `json:"protocol"`
	Backend     string                  `json:"backend"`
	FrequencyHz uint32                  `json:"frequency_hz"`
	Pins        []uint32                `json:"pins"`
	Outputs     map[string]OutputConfig `json:"outputs,omitempty"`
	Calibration map[string]core.Bounds  `json:"calibration,omitempty"`
	Sync        SyncConfig              `json:"sync"`
	Binding     map[string]string       `json:"binding,omitempty"`
	I2C         I2CConfig               `json:"i2c"`
}

// LoadConfig parses a JSON board file and fills in defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyDefaults(&config)
	if _, err := config.Board(); err != nil {
		return nil, err
	}
	if _, err := config.AxisBinding(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Load reads and parses a board file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return LoadConfig(data)
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	if config.Layout == "" {
		config.Layout = LayoutSingle
	}
	if config.Protocol == "" {
		config.Protocol = core.ProtocolPWM.String()
	}
	if config.Backend == "" {
		config.Backend = BackendSim
	}
	if config.FrequencyHz == 0 {
		config.FrequencyHz = core.DefaultApproxFrequencyHz
	}
	if config.Sync.Window == 0 {
		config.Sync.Window = core.DefaultSyncWindow
	}
	if config.Sync.Scale == 0 {
		config.Sync.Scale = core.DefaultSyncScale
	}
	if config.Synced == nil {
		synced := config.Layout == LayoutDual
		config.Synced = &synced
	}
	if config.Backend == BackendRPi {
		if len(config.I2C.Addresses) == 0 {
			config.I2C.Addresses = []uint16{0x40, 0x41}
		}
		if config.I2C.OEPin == nil {
			none := -1
			config.I2C.OEPin = &none
		}
	}
}

// IsSynced reports whether the board runs the phase synced controller
func (c *Config) IsSynced() bool {
	return c.Synced != nil && *c.Synced
}

// FlightProtocol resolves the configured protocol name
func (c *Config) FlightProtocol() (core.FlightProtocol, error) {
	switch strings.ToLower(c.Protocol) {
	case "pwm":
		return core.ProtocolPWM, nil
	case "ppm":
		return core.ProtocolPPM, nil
	}
	return 0, fmt.Errorf("config: protocol %q: %w", c.Protocol, core.ErrUnsupportedProtocol)
}

// Board builds the core board description
func (c *Config) Board() (core.BoardConfig, error) {
	var board core.BoardConfig

	switch c.Layout {
	case LayoutSingle, LayoutDual:
		if len(c.Pins) != core.NumChannels {
			return board, fmt.Errorf("config: %s layout needs %d pins, got %d", c.Layout, core.NumChannels, len(c.Pins))
		}
		var pins [core.NumChannels]core.PinID
		for i, p := range c.Pins {
			pins[i] = core.PinID(p)
		}
		if c.Layout == LayoutSingle {
			if c.IsSynced() {
				return board, fmt.Errorf("config: single layout shares timers between channels and cannot be synced: %w", core.ErrInvalidInput)
			}
			board = core.SingleUnitBoard(0, pins)
		} else {
			board = core.DualUnitBoard(pins)
		}
	case LayoutCustom:
		board = core.BoardConfig{Calibration: core.DefaultCalibration()}
		for _, ch := range core.AllChannels {
			out, ok := c.Outputs[ch.String()]
			if !ok {
				return board, fmt.Errorf("config: no output for channel %s", ch)
			}
			op, err := parseOperator(out.Operator)
			if err != nil {
				return board, fmt.Errorf("config: channel %s: %w", ch, err)
			}
			board.Outputs[ch.Index()] = core.OutputBinding{
				Unit:     core.UnitID(out.Unit),
				Timer:    core.TimerID(out.Timer),
				Operator: op,
				Pin:      core.PinID(out.Pin),
			}
		}
	default:
		return board, fmt.Errorf("config: unknown layout %q", c.Layout)
	}

	board.FrequencyHz = c.FrequencyHz
	board.Sync = core.SyncConfig{
		Source: core.SyncSource(c.Sync.Source),
		Window: c.Sync.Window,
		Scale:  c.Sync.Scale,
	}
	for name, bounds := range c.Calibration {
		ch, ok := core.ParseChannel(name)
		if !ok {
			return board, fmt.Errorf("config: calibration for unknown channel %q", name)
		}
		board.Calibration[ch.Index()] = bounds
	}

	if err := board.Validate(); err != nil {
		return board, fmt.Errorf("config: %w", err)
	}
	return board, nil
}

// AxisBinding builds the axis to channel binding, starting from the default
func (c *Config) AxisBinding() (core.AxisBinding, error) {
	binding := core.DefaultAxisBinding()
	for axisName, channelName := range c.Binding {
		axis, ok := core.ParseAxis(axisName)
		if !ok {
			return binding, fmt.Errorf("config: unknown axis %q", axisName)
		}
		ch, ok := core.ParseChannel(channelName)
		if !ok {
			return binding, fmt.Errorf("config: axis %s bound to unknown channel %q", axisName, channelName)
		}
		binding[axis] = ch
	}
	if err := binding.Validate(); err != nil {
		return binding, fmt.Errorf("config: %w", err)
	}
	return binding, nil
}

func parseOperator(s string) (core.Operator, error) {
	switch strings.ToLower(s) {
	case "", "a":
		return core.OperatorA, nil
	case "b":
		return core.OperatorB, nil
	}
	return 0, fmt.Errorf("operator %q: %w", s, core.ErrInvalidInput)
}

// DefaultFeatherConfig is the single-unit reference board: all six channels
// on one PWM unit of an ESP32 Feather
func DefaultFeatherConfig() *Config {
	config := &Config{
		Name:   "feather",
		Layout: LayoutSingle,
		Pins:   []uint32{12, 27, 33, 15, 32, 14},
	}
	applyDefaults(config)
	return config
}

// DefaultDualUnitConfig drives the channels from two PCA9685 expanders, three
// LED channels each, with phase sync
func DefaultDualUnitConfig() *Config {
	config := &Config{
		Name:    "dual-pca9685",
		Layout:  LayoutDual,
		Backend: BackendRPi,
		Pins:    []uint32{0, 1, 2, 0, 1, 2},
	}
	applyDefaults(config)
	return config
}
