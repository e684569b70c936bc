package main

import (
	"testing"

	"flightemu/config"
	"flightemu/core"
)

func TestBuildControllerSim(t *testing.T) {
	fc, closer, err := buildController(config.DefaultFeatherConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	if _, ok := fc.Output().(*core.PWMController); !ok {
		t.Errorf("single layout built %T", fc.Output())
	}
	if err := fc.Init(); err != nil {
		t.Fatal(err)
	}
	if err := fc.Start(); err != nil {
		t.Fatal(err)
	}
}

func TestBuildControllerSynced(t *testing.T) {
	cfg := config.DefaultDualUnitConfig()
	cfg.Backend = config.BackendSim
	cfg.Binding = map[string]string{"pitch": "aileron", "roll": "elevator"}

	fc, closer, err := buildController(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	if _, ok := fc.Output().(*core.SyncedPWMController); !ok {
		t.Errorf("dual layout built %T", fc.Output())
	}
	if got := fc.Binding().Channel(core.AxisPitch); got != core.ChannelAileron {
		t.Errorf("pitch bound to %s", got)
	}
}

func TestBuildControllerUnknownBackend(t *testing.T) {
	cfg := config.DefaultFeatherConfig()
	cfg.Backend = "fpga"
	if _, _, err := buildController(cfg); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestLoadConfigBackendOverride(t *testing.T) {
	defer func(old string) { *backend = old }(*backend)

	*backend = config.BackendRPi
	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Layout != config.LayoutDual || cfg.I2C.OEPin == nil || len(cfg.I2C.Addresses) != 2 {
		t.Errorf("rpi override gave %+v", cfg)
	}

	*backend = ""
	cfg, err = loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != config.BackendSim || cfg.IsSynced() {
		t.Errorf("default config %+v", cfg)
	}
}
