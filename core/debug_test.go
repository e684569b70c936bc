package core

import (
	"strings"
	"testing"
)

func TestDebugOutputGated(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})
	defer SetDebugEnabled(false)

	ctrl, backend := newTestController(t)
	backend.failOn["set_duty"] = true

	SetDebugEnabled(false)
	ctrl.Init()
	ctrl.SetDuty(ChannelAileron, 7)
	if IsDebugEnabled() || len(lines) != 0 {
		t.Fatalf("disabled debug wrote %q", lines)
	}

	SetDebugEnabled(true)
	ctrl.SetDuty(ChannelAileron, 7)
	if !IsDebugEnabled() || len(lines) != 1 || !strings.Contains(lines[0], "[PWM] set duty") {
		t.Errorf("debug lines %q", lines)
	}
}
