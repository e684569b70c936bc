package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"flightemu/core"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{"pins": [12, 27, 33, 15, 32, 14]}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Layout != LayoutSingle || cfg.Backend != BackendSim || cfg.Protocol != "pwm" {
		t.Errorf("defaults %+v", cfg)
	}
	if cfg.IsSynced() {
		t.Error("single layout defaulted to synced")
	}

	board, err := cfg.Board()
	if err != nil {
		t.Fatal(err)
	}
	if board.FrequencyHz != core.DefaultApproxFrequencyHz {
		t.Errorf("frequency %d", board.FrequencyHz)
	}
	if board.Calibration != core.DefaultCalibration() {
		t.Error("calibration not defaulted")
	}
	if o := board.Output(core.ChannelRudder); o.Timer != 1 || o.Operator != core.OperatorB || o.Pin != 15 {
		t.Errorf("rudder output %+v", o)
	}
}

func TestLoadConfigDual(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"layout": "dual",
		"backend": "rpi",
		"pins": [0, 1, 2, 0, 1, 2],
		"calibration": {"throttle": {"min": 5.0, "max": 10.0}},
		"sync": {"scale": 4},
		"i2c": {"bus": "I2C1", "oe_pin": 17}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsSynced() {
		t.Error("dual layout should default to synced")
	}
	if len(cfg.I2C.Addresses) != 2 || *cfg.I2C.OEPin != 17 {
		t.Errorf("i2c %+v", cfg.I2C)
	}

	board, _ := cfg.Board()
	if b := board.Calibration[core.ChannelThrottle.Index()]; b.Min != 5 || b.Max != 10 {
		t.Errorf("throttle calibration %+v", b)
	}
	if board.Sync.Window != core.DefaultSyncWindow || board.Sync.Scale != 4 {
		t.Errorf("sync %+v", board.Sync)
	}
	if len(board.Groups()) != 2 {
		t.Errorf("groups %v", board.Groups())
	}
}

func TestLoadConfigCustom(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"layout": "custom",
		"outputs": {
			"aileron":  {"unit": 0, "timer": 0, "operator": "a", "pin": 2},
			"throttle": {"unit": 0, "timer": 0, "operator": "b", "pin": 3},
			"elevator": {"unit": 0, "timer": 1, "pin": 4},
			"rudder":   {"unit": 0, "timer": 1, "operator": "B", "pin": 5},
			"aux_a":    {"unit": 0, "timer": 2, "pin": 6},
			"aux_b":    {"unit": 0, "timer": 3, "pin": 8}
		},
		"binding": {"roll": "rudder", "yaw": "aileron"}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	board, _ := cfg.Board()
	if o := board.Output(core.ChannelAuxB); o.Timer != 3 || o.Pin != 8 {
		t.Errorf("aux_b %+v", o)
	}
	binding, _ := cfg.AxisBinding()
	if binding.Channel(core.AxisRoll) != core.ChannelRudder || binding.Channel(core.AxisYaw) != core.ChannelAileron {
		t.Errorf("binding %v", binding)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	testCases := []struct {
		name string
		json string
	}{
		{"syntax", `{`},
		{"pin count", `{"pins": [1, 2, 3]}`},
		{"layout", `{"layout": "triple", "pins": [1, 2, 3, 4, 5, 6]}`},
		{"calibration channel", `{"pins": [1, 2, 3, 4, 5, 6], "calibration": {"flaps": {"min": 1, "max": 2}}}`},
		{"inverted bounds", `{"pins": [1, 2, 3, 4, 5, 6], "calibration": {"aux_a": {"min": 9, "max": 2}}}`},
		{"binding axis", `{"pins": [1, 2, 3, 4, 5, 6], "binding": {"flaps": "aux_a"}}`},
		{"binding clash", `{"pins": [1, 2, 3, 4, 5, 6], "binding": {"roll": "throttle"}}`},
		{"custom missing", `{"layout": "custom", "outputs": {"aileron": {"pin": 1}}}`},
		{"custom operator", `{"layout": "custom", "outputs": {"aileron": {"operator": "c"}}}`},
		{"synced single", `{"layout": "single", "synced": true, "pins": [1, 2, 3, 4, 5, 6]}`},
	}
	for _, tc := range testCases {
		if _, err := LoadConfig([]byte(tc.json)); err == nil {
			t.Errorf("%s: accepted", tc.name)
		}
	}
}

func TestFlightProtocol(t *testing.T) {
	cfg := DefaultFeatherConfig()
	if p, err := cfg.FlightProtocol(); err != nil || p != core.ProtocolPWM {
		t.Errorf("protocol %v %v", p, err)
	}
	cfg.Protocol = "PPM"
	if p, err := cfg.FlightProtocol(); err != nil || p != core.ProtocolPPM {
		t.Errorf("ppm parsed as %v %v", p, err)
	}
	cfg.Protocol = "sbus"
	if _, err := cfg.FlightProtocol(); !errors.Is(err, core.ErrUnsupportedProtocol) {
		t.Errorf("sbus: %v", err)
	}
}

func TestDefaultConfigs(t *testing.T) {
	for _, cfg := range []*Config{DefaultFeatherConfig(), DefaultDualUnitConfig()} {
		if _, err := cfg.Board(); err != nil {
			t.Errorf("%s: %v", cfg.Name, err)
		}
	}
	if !DefaultDualUnitConfig().IsSynced() {
		t.Error("dual config not synced")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	if err := os.WriteFile(path, []byte(`{"name": "bench", "pins": [1, 2, 3, 4, 5, 6]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "bench" {
		t.Errorf("name %q", cfg.Name)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file loaded")
	}
}
