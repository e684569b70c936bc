package expander

import (
	"errors"
	"testing"

	"flightemu/core"
)

type ledWrite struct {
	led     uint8
	on, off uint32
}

// fakeChip records LED writes and the programmed period
type fakeChip struct {
	period uint64
	writes []ledWrite
	leds   [NumLEDs]ledWrite
	fail   error
}

func (c *fakeChip) SetPeriod(ns uint64) error {
	if c.fail != nil {
		return c.fail
	}
	c.period = ns
	return nil
}

func (c *fakeChip) SetPhased(channel uint8, on, off uint32) error {
	if c.fail != nil {
		return c.fail
	}
	w := ledWrite{led: channel, on: on, off: off}
	c.writes = append(c.writes, w)
	c.leds[channel] = w
	return nil
}

func (c *fakeChip) Top() uint32 { return 4095 }

type fakeEnable struct {
	states []bool
}

func (e *fakeEnable) SetOutputEnabled(enabled bool) error {
	e.states = append(e.states, enabled)
	return nil
}

var expanderPins = [core.NumChannels]core.PinID{0, 1, 2, 0, 1, 2}

func newTestBackend(t *testing.T) (*core.SyncedPWMController, *Backend, [2]*fakeChip, *fakeEnable) {
	t.Helper()
	chips := [2]*fakeChip{{}, {}}
	oe := &fakeEnable{}
	b := New([]Chip{chips[0], chips[1]}, WithOutputEnable(oe))
	ctrl, err := core.NewSyncedPWMController(b, core.DualUnitBoard(expanderPins))
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Init(); err != nil {
		t.Fatal(err)
	}
	return ctrl, b, chips, oe
}

func TestPulseTicks(t *testing.T) {
	testCases := []struct {
		duty    float64
		phase   uint32
		on, off uint32
	}{
		{0, 0, 0, 0},
		{50, 0, 0, 2048},
		{5.44, 0, 0, 223},
		{10, 4000, 4000, 314}, // wraps past the end of the period
		{100, 0, 0, 4095},
	}
	for _, tc := range testCases {
		on, off := pulseTicks(tc.duty, tc.phase, 4095)
		if on != tc.on || off != tc.off {
			t.Errorf("pulseTicks(%v, %d) = %d,%d, expected %d,%d", tc.duty, tc.phase, on, off, tc.on, tc.off)
		}
	}
}

func TestPhaseTicks(t *testing.T) {
	testCases := []struct {
		offset uint32
		want   uint32
	}{
		{10000, 0},  // first channel of a group
		{9945, 225}, // 5.5% into the period
		{9890, 451}, // 11%
		{0, 0},      // clamped offsets wrap to the period start
		{10500, 0},  // beyond the window
	}
	for _, tc := range testCases {
		if got := phaseTicks(tc.offset, 1000, 10, 4095); got != tc.want {
			t.Errorf("phaseTicks(%d) = %d, expected %d", tc.offset, got, tc.want)
		}
	}
}

func TestBackendInit(t *testing.T) {
	_, b, chips, oe := newTestBackend(t)

	hz := uint64(core.DefaultApproxFrequencyHz)
	for i, c := range chips {
		if c.period != 1000000000/hz {
			t.Errorf("chip %d period %d", i, c.period)
		}
		// nothing drives the outputs before start
		for _, w := range c.writes {
			if w.on != 0 || w.off != 0 {
				t.Errorf("chip %d output %+v before start", i, w)
			}
		}
	}
	if len(oe.states) != 0 {
		t.Errorf("output enable toggled during init: %v", oe.states)
	}

	// aileron is first on unit 0, throttle second
	if p, _ := b.Phase(0, 0); p != 0 {
		t.Errorf("aileron phase %d", p)
	}
	if p, _ := b.Phase(0, 1); p == 0 {
		t.Error("throttle phase not shifted")
	}
}

func TestBackendStartStop(t *testing.T) {
	ctrl, b, chips, oe := newTestBackend(t)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if len(oe.states) != 1 || !oe.states[0] {
		t.Errorf("output enable states %v", oe.states)
	}

	// pulses on unit 0 follow each other
	aileron := chips[0].leds[0]
	throttle := chips[0].leds[1]
	if aileron.on != 0 || aileron.off == 0 {
		t.Errorf("aileron pulse %+v", aileron)
	}
	phase, _ := b.Phase(0, 1)
	if throttle.on != phase {
		t.Errorf("throttle on %d, expected phase %d", throttle.on, phase)
	}
	if throttle.on+2 < aileron.off {
		t.Errorf("throttle starts at %d while aileron ends at %d", throttle.on, aileron.off)
	}

	if err := ctrl.SetChannelOutput(core.ChannelRudder, 100); err != nil {
		t.Fatal(err)
	}
	rudder := chips[1].leds[0]
	if _, off := pulseTicks(core.DutyRudderMax, 0, 4095); rudder.on != 0 || rudder.off != off {
		t.Errorf("rudder pulse %+v", rudder)
	}

	if err := ctrl.Stop(); err != nil {
		t.Fatal(err)
	}
	for i, c := range chips {
		for led := 0; led < 3; led++ {
			if w := c.leds[led]; w.on != 0 || w.off != 0 {
				t.Errorf("chip %d led %d still driven: %+v", i, led, w)
			}
		}
	}
	if len(oe.states) != 2 || oe.states[1] {
		t.Errorf("output enable states %v", oe.states)
	}
}

func TestBackendRejects(t *testing.T) {
	b := New([]Chip{&fakeChip{}})

	if err := b.GPIOInit(1, 0, 0); !errors.Is(err, ErrNoChip) {
		t.Errorf("missing chip: %v", err)
	}
	if err := b.GPIOInit(0, 1, 0); !errors.Is(err, ErrBadOperator) {
		t.Errorf("operator B: %v", err)
	}
	if err := b.GPIOInit(0, 0, 16); !errors.Is(err, ErrBadPin) {
		t.Errorf("pin 16: %v", err)
	}
	if err := b.SetDuty(0, 3, core.OperatorA, 7); !errors.Is(err, ErrNotRouted) {
		t.Errorf("unrouted timer: %v", err)
	}

	// a single-unit board needs operator B and cannot be driven
	ctrl, err := core.NewPWMController(b, core.SingleUnitBoard(0, expanderPins))
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Init(); !errors.Is(err, core.ErrBackendFailure) || !errors.Is(err, ErrBadOperator) {
		t.Errorf("single unit board init: %v", err)
	}
}

func TestBackendChipFailure(t *testing.T) {
	ctrl, _, chips, _ := newTestBackend(t)
	fault := errors.New("nak")
	chips[1].fail = fault

	if err := ctrl.Start(); !errors.Is(err, fault) {
		t.Errorf("start with failing chip: %v", err)
	}
}
