package main

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/google/shlex"

	"flightemu/core"
	"flightemu/host/link"
	"flightemu/targets/sim"
)

func newShellClient(t *testing.T) *link.Client {
	t.Helper()
	board := core.SingleUnitBoard(0, [core.NumChannels]core.PinID{12, 27, 33, 15, 32, 14})
	ctrl, err := core.NewPWMController(sim.New(), board)
	if err != nil {
		t.Fatal(err)
	}
	fc, _ := core.NewFlightController(core.ProtocolPWM, ctrl)

	hostConn, devConn := net.Pipe()
	go sim.NewDevice(fc).Serve(devConn)
	t.Cleanup(func() { devConn.Close() })

	c := link.NewClient(hostConn)
	t.Cleanup(func() { c.Close() })
	if err := c.RetrieveDictionary(); err != nil {
		t.Fatal(err)
	}
	return c
}

func run(t *testing.T, c *link.Client, line string) (string, error) {
	t.Helper()
	args, err := shlex.Split(line)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err = execute(c, args, &out)
	return out.String(), err
}

func TestShellSession(t *testing.T) {
	c := newShellClient(t)

	steps := []struct {
		line string
		kind error
	}{
		{"throttle 20", core.ErrModeSwapFailure},
		{"init", nil},
		{"start", nil},
		{"throttle 75 # cruise", nil},
		{"pitch -0.5", nil},
		{"yaw 3", core.ErrInvalidInput},
		{"aux aux_b 30", nil},
		{"aux 'throttle' 30", core.ErrInvalidChannel},
		{"output 6 120", core.ErrOutOfRange},
		{"duty rudder 8", nil},
		{"controls 50 0 0 0", nil},
	}
	for _, s := range steps {
		out, err := run(t, c, s.line)
		if s.kind == nil {
			if err != nil || strings.TrimSpace(out) != "ok" {
				t.Errorf("%q: out %q err %v", s.line, out, err)
			}
			continue
		}
		if !errors.Is(err, s.kind) {
			t.Errorf("%q: err %v, expected %v", s.line, err, s.kind)
		}
	}

	out, err := run(t, c, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "state: active") || !strings.Contains(out, "throttle  output  50.000%") {
		t.Errorf("status output:\n%s", out)
	}
}

func TestShellUsage(t *testing.T) {
	c := newShellClient(t)

	if _, err := run(t, c, "throttle"); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("missing argument: %v", err)
	}
	if _, err := run(t, c, "throttle fast"); err == nil {
		t.Error("non-numeric value accepted")
	}
	if _, err := run(t, c, "aux flaps 10"); err == nil {
		t.Error("unknown channel accepted")
	}
	if _, err := run(t, c, "barrel_roll"); err == nil {
		t.Error("unknown command accepted")
	}
	if _, err := run(t, c, "q"); !errors.Is(err, errQuit) {
		t.Errorf("q: %v", err)
	}

	out, err := run(t, c, "help")
	if err != nil || !strings.Contains(out, "controls <throttle> <pitch> <roll> <yaw>") {
		t.Errorf("help output:\n%s", out)
	}
	out, _ = run(t, c, "dict")
	if !strings.Contains(out, "DUTY_MAX_AUX_B = ") {
		t.Errorf("dict output:\n%s", out)
	}
}
