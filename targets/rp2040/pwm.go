//go:build rp2040 && !pca9685

package main

import (
	"errors"
	"machine"

	"flightemu/core"
)

var (
	errBadUnit         = errors.New("rp2040 pwm: only unit 0 exists")
	errBadSlice        = errors.New("rp2040 pwm: slice out of range")
	errPinMismatch     = errors.New("rp2040 pwm: pin is not wired to that slice output")
	errNotConfigured   = errors.New("rp2040 pwm: slice not configured")
	errSyncUnsupported = errors.New("rp2040 pwm: slices have no sync input")
)

const numSlices = 8

// Channel pins of the single-unit board. GPIO N drives slice N/2, output
// N%2, so the board layout lines up with the hardware directly.
var boardPins = [core.NumChannels]core.PinID{0, 1, 2, 3, 4, 5}

// pwmPeripheral abstracts TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
	SetPeriod(period uint64) error
	SetInverting(channel uint8, inverting bool)
	Enable(enable bool)
}

type sliceState struct {
	pwm      pwmPeripheral
	channels [2]uint8
	duty     [2]float64
	running  bool
}

// RP2040PWMBackend drives the channels from the RP2040's PWM slices. A
// slice is a timer and its A/B outputs are the two operators.
type RP2040PWMBackend struct {
	slices [numSlices]*sliceState
}

// NewRP2040PWMBackend creates a backend with every slice unconfigured
func NewRP2040PWMBackend() *RP2040PWMBackend {
	return &RP2040PWMBackend{}
}

func (d *RP2040PWMBackend) slice(unit core.UnitID, timer core.TimerID) (*sliceState, error) {
	if unit != 0 {
		return nil, errBadUnit
	}
	if int(timer) >= numSlices {
		return nil, errBadSlice
	}
	s := d.slices[timer]
	if s == nil {
		s = &sliceState{pwm: getPWMPeripheral(uint8(timer))}
		d.slices[timer] = s
	}
	return s, nil
}

func (d *RP2040PWMBackend) GPIOInit(unit core.UnitID, signal core.Signal, pin core.PinID) error {
	timer := core.TimerID(signal / 2)
	op := core.Operator(signal % 2)
	if uint32(pin)>>1&7 != uint32(timer) || core.Operator(pin&1) != op {
		return errPinMismatch
	}
	s, err := d.slice(unit, timer)
	if err != nil {
		return err
	}
	ch, err := s.pwm.Channel(machine.Pin(pin))
	if err != nil {
		return err
	}
	s.channels[op] = ch
	return nil
}

func (d *RP2040PWMBackend) TimerInit(unit core.UnitID, timer core.TimerID, cfg core.TimerConfig) error {
	if cfg.FrequencyHz == 0 {
		return core.ErrInvalidInput
	}
	s, err := d.slice(unit, timer)
	if err != nil {
		return err
	}
	if err := s.pwm.Configure(machine.PWMConfig{Period: periodNs(cfg.FrequencyHz)}); err != nil {
		return err
	}
	// Configure enables the slice; it only runs after Start
	s.pwm.Enable(false)
	s.running = false

	inverting := cfg.DutyMode == core.DutyActiveLow
	s.pwm.SetInverting(s.channels[core.OperatorA], inverting)
	s.pwm.SetInverting(s.channels[core.OperatorB], inverting)
	s.duty = [2]float64{cfg.DutyA, cfg.DutyB}
	s.write(core.OperatorA)
	s.write(core.OperatorB)
	return nil
}

func (d *RP2040PWMBackend) SetFrequency(unit core.UnitID, timer core.TimerID, hz uint32) error {
	if hz == 0 {
		return core.ErrInvalidInput
	}
	s, err := d.configured(unit, timer)
	if err != nil {
		return err
	}
	if err := s.pwm.SetPeriod(periodNs(hz)); err != nil {
		return err
	}
	// Top changes with the period; rescale both compare values
	s.write(core.OperatorA)
	s.write(core.OperatorB)
	return nil
}

func (d *RP2040PWMBackend) Start(unit core.UnitID, timer core.TimerID) error {
	s, err := d.configured(unit, timer)
	if err != nil {
		return err
	}
	s.pwm.Enable(true)
	s.running = true
	return nil
}

func (d *RP2040PWMBackend) Stop(unit core.UnitID, timer core.TimerID) error {
	s, err := d.configured(unit, timer)
	if err != nil {
		return err
	}
	s.pwm.Enable(false)
	s.running = false
	return nil
}

func (d *RP2040PWMBackend) SetDuty(unit core.UnitID, timer core.TimerID, op core.Operator, dutyPct float64) error {
	if op > core.OperatorB {
		return core.ErrInvalidInput
	}
	s, err := d.configured(unit, timer)
	if err != nil {
		return err
	}
	s.duty[op] = dutyPct
	s.write(op)
	return nil
}

func (d *RP2040PWMBackend) SyncEnable(unit core.UnitID, timer core.TimerID, source core.SyncSource, offset uint32) error {
	return errSyncUnsupported
}

func (d *RP2040PWMBackend) configured(unit core.UnitID, timer core.TimerID) (*sliceState, error) {
	if unit != 0 {
		return nil, errBadUnit
	}
	if int(timer) >= numSlices || d.slices[timer] == nil {
		return nil, errNotConfigured
	}
	return d.slices[timer], nil
}

// write converts a duty percentage into a compare value against Top
func (s *sliceState) write(op core.Operator) {
	top := uint64(s.pwm.Top()) + 1
	level := uint64(s.duty[op]*float64(top)/100 + 0.5)
	if level > top {
		level = top
	}
	s.pwm.Set(s.channels[op], uint32(level))
}

func periodNs(hz uint32) uint64 {
	return 1000000000 / uint64(hz)
}

// getPWMPeripheral returns slice n as a pwmPeripheral
func getPWMPeripheral(n uint8) pwmPeripheral {
	switch n {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// newOutputs builds the single-unit controller over the PWM slices
func newOutputs() (core.ChannelOutputBackend, error) {
	return core.NewPWMController(NewRP2040PWMBackend(), core.SingleUnitBoard(0, boardPins))
}
