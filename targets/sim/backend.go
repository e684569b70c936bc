// Package sim provides a PWM backend that keeps the programmed hardware state
// in memory. It backs the daemon when no hardware is attached and lets tests
// inject failures into any primitive.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"flightemu/core"
)

// Primitive names used by FailOn and Calls
const (
	OpGPIOInit     = "gpio_init"
	OpTimerInit    = "timer_init"
	OpSetFrequency = "set_frequency"
	OpStart        = "start"
	OpStop         = "stop"
	OpSetDuty      = "set_duty"
	OpSyncEnable   = "sync_enable"
)

// ErrInjected is returned by primitives armed with FailOn
var ErrInjected = errors.New("sim: injected fault")

// Call is one recorded primitive invocation
type Call struct {
	Op       string
	Unit     core.UnitID
	Timer    core.TimerID
	Operator core.Operator
	Signal   core.Signal
	Pin      core.PinID
	Duty     float64
	Hz       uint32
	Source   core.SyncSource
	Offset   uint32
}

func (c Call) String() string {
	switch c.Op {
	case OpGPIOInit:
		return fmt.Sprintf("%s unit=%d signal=%d pin=%d", c.Op, c.Unit, c.Signal, c.Pin)
	case OpSetDuty:
		return fmt.Sprintf("%s unit=%d timer=%d op=%d duty=%.3f", c.Op, c.Unit, c.Timer, c.Operator, c.Duty)
	case OpSetFrequency:
		return fmt.Sprintf("%s unit=%d timer=%d hz=%d", c.Op, c.Unit, c.Timer, c.Hz)
	case OpSyncEnable:
		return fmt.Sprintf("%s unit=%d timer=%d offset=%d", c.Op, c.Unit, c.Timer, c.Offset)
	default:
		return fmt.Sprintf("%s unit=%d timer=%d", c.Op, c.Unit, c.Timer)
	}
}

// TimerState is the simulated register state of one timer
type TimerState struct {
	Configured  bool
	Running     bool
	FrequencyHz uint32
	Duty        [2]float64 // per operator, percent
	Synced      bool
	SyncSource  core.SyncSource
	SyncOffset  uint32
}

// Backend implements core.PWMBackend in memory. It is safe for concurrent use.
type Backend struct {
	mu     sync.Mutex
	calls  []Call
	timers map[core.TimerRef]*TimerState
	pins   map[core.PinID]core.Signal
	fail   map[string]int
}

// New returns an empty simulated backend
func New() *Backend {
	return &Backend{
		timers: make(map[core.TimerRef]*TimerState),
		pins:   make(map[core.PinID]core.Signal),
		fail:   make(map[string]int),
	}
}

// FailOn arms the next n calls of op to fail with ErrInjected.
// n < 0 fails every call until FailOn(op, 0).
func (b *Backend) FailOn(op string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n == 0 {
		delete(b.fail, op)
		return
	}
	b.fail[op] = n
}

// record logs the call and consumes one armed failure. Must hold mu.
func (b *Backend) record(c Call) error {
	b.calls = append(b.calls, c)
	n, armed := b.fail[c.Op]
	if !armed {
		return nil
	}
	if n > 0 {
		if n == 1 {
			delete(b.fail, c.Op)
		} else {
			b.fail[c.Op] = n - 1
		}
	}
	return fmt.Errorf("%s unit %d timer %d: %w", c.Op, c.Unit, c.Timer, ErrInjected)
}

func (b *Backend) timer(unit core.UnitID, timer core.TimerID) *TimerState {
	ref := core.TimerRef{Unit: unit, Timer: timer}
	t, ok := b.timers[ref]
	if !ok {
		t = &TimerState{}
		b.timers[ref] = t
	}
	return t
}

func (b *Backend) GPIOInit(unit core.UnitID, signal core.Signal, pin core.PinID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: OpGPIOInit, Unit: unit, Signal: signal, Pin: pin}); err != nil {
		return err
	}
	b.pins[pin] = signal
	return nil
}

func (b *Backend) TimerInit(unit core.UnitID, timer core.TimerID, cfg core.TimerConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: OpTimerInit, Unit: unit, Timer: timer, Hz: cfg.FrequencyHz}); err != nil {
		return err
	}
	t := b.timer(unit, timer)
	t.Configured = true
	t.FrequencyHz = cfg.FrequencyHz
	t.Duty = [2]float64{cfg.DutyA, cfg.DutyB}
	return nil
}

func (b *Backend) SetFrequency(unit core.UnitID, timer core.TimerID, hz uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: OpSetFrequency, Unit: unit, Timer: timer, Hz: hz}); err != nil {
		return err
	}
	b.timer(unit, timer).FrequencyHz = hz
	return nil
}

func (b *Backend) Start(unit core.UnitID, timer core.TimerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: OpStart, Unit: unit, Timer: timer}); err != nil {
		return err
	}
	b.timer(unit, timer).Running = true
	return nil
}

func (b *Backend) Stop(unit core.UnitID, timer core.TimerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: OpStop, Unit: unit, Timer: timer}); err != nil {
		return err
	}
	b.timer(unit, timer).Running = false
	return nil
}

func (b *Backend) SetDuty(unit core.UnitID, timer core.TimerID, op core.Operator, dutyPct float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: OpSetDuty, Unit: unit, Timer: timer, Operator: op, Duty: dutyPct}); err != nil {
		return err
	}
	if op > core.OperatorB {
		return fmt.Errorf("sim: operator %d out of range", op)
	}
	b.timer(unit, timer).Duty[op] = dutyPct
	return nil
}

func (b *Backend) SyncEnable(unit core.UnitID, timer core.TimerID, source core.SyncSource, offset uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: OpSyncEnable, Unit: unit, Timer: timer, Source: source, Offset: offset}); err != nil {
		return err
	}
	t := b.timer(unit, timer)
	t.Synced = true
	t.SyncSource = source
	t.SyncOffset = offset
	return nil
}

// Timer returns a copy of a timer's simulated state
func (b *Backend) Timer(unit core.UnitID, timer core.TimerID) (TimerState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.timers[core.TimerRef{Unit: unit, Timer: timer}]
	if !ok {
		return TimerState{}, false
	}
	return *t, true
}

// PinSignal reports which output slot a pin was routed to
func (b *Backend) PinSignal(pin core.PinID) (core.Signal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.pins[pin]
	return s, ok
}

// Calls returns the recorded calls of op, or all calls when op is empty
func (b *Backend) Calls(op string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ClearCalls drops the call log but keeps the simulated state
func (b *Backend) ClearCalls() {
	b.mu.Lock()
	b.calls = nil
	b.mu.Unlock()
}

var _ core.PWMBackend = (*Backend)(nil)
