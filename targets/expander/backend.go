// Package expander drives the flight outputs through PCA9685 16-channel PWM
// expanders. Each chip is one unit and each LED channel one single-operator
// timer. All channels of a chip share the chip's period, and phase sync is
// expressed through the per-channel ON tick.
package expander

import (
	"errors"
	"math"
	"strconv"

	"flightemu/core"
)

// NumLEDs is the number of PWM channels of one PCA9685
const NumLEDs = 16

var (
	ErrNoChip       = errors.New("expander: no chip for unit")
	ErrNotRouted    = errors.New("expander: timer has no routed pin")
	ErrBadPin       = errors.New("expander: pin is not a PCA9685 channel")
	ErrBadOperator  = errors.New("expander: PCA9685 channels have a single output")
	ErrBadFrequency = errors.New("expander: frequency out of range")
)

// Chip is the register access the backend needs from one PCA9685
type Chip interface {
	// SetPeriod programs the chip wide PWM period in nanoseconds
	SetPeriod(ns uint64) error

	// SetPhased sets the ON and OFF tick of one LED channel
	SetPhased(channel uint8, on, off uint32) error

	// Top returns the largest tick value
	Top() uint32
}

// OutputEnabler gates every chip output at once, typically through the
// active low OE pin.
type OutputEnabler interface {
	SetOutputEnabled(enabled bool) error
}

type ledState struct {
	led     uint8
	routed  bool
	running bool
	duty    float64
	phase   uint32 // ON tick
}

// Backend implements core.PWMBackend on one or more PCA9685 chips.
// Calls must be serialized by the caller.
type Backend struct {
	chips   []Chip
	leds    map[core.TimerRef]*ledState
	enabler OutputEnabler
	enabled bool
	window  float64
	scale   float64
}

// Option configures a Backend
type Option func(*Backend)

// WithOutputEnable lets Start and Stop drive the chips' OE line
func WithOutputEnable(e OutputEnabler) Option {
	return func(b *Backend) { b.enabler = e }
}

// WithSyncWindow overrides the window and scale sync offsets are computed with
func WithSyncWindow(window, scale float64) Option {
	return func(b *Backend) {
		b.window = window
		b.scale = scale
	}
}

// New returns a backend where unit i is chips[i]
func New(chips []Chip, opts ...Option) *Backend {
	b := &Backend{
		chips:  chips,
		leds:   make(map[core.TimerRef]*ledState),
		window: core.DefaultSyncWindow,
		scale:  core.DefaultSyncScale,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) chip(unit core.UnitID) (Chip, error) {
	if int(unit) >= len(b.chips) || b.chips[unit] == nil {
		return nil, errors.Join(ErrNoChip, errors.New("unit "+strconv.Itoa(int(unit))))
	}
	return b.chips[unit], nil
}

func (b *Backend) led(unit core.UnitID, timer core.TimerID) (Chip, *ledState, error) {
	c, err := b.chip(unit)
	if err != nil {
		return nil, nil, err
	}
	s, ok := b.leds[core.TimerRef{Unit: unit, Timer: timer}]
	if !ok || !s.routed {
		return nil, nil, ErrNotRouted
	}
	return c, s, nil
}

// GPIOInit binds the timer behind signal to LED channel pin
func (b *Backend) GPIOInit(unit core.UnitID, signal core.Signal, pin core.PinID) error {
	if _, err := b.chip(unit); err != nil {
		return err
	}
	if signal%2 != 0 {
		return ErrBadOperator
	}
	if pin >= NumLEDs {
		return ErrBadPin
	}
	ref := core.TimerRef{Unit: unit, Timer: core.TimerID(signal / 2)}
	b.leds[ref] = &ledState{led: uint8(pin), routed: true}
	return nil
}

// TimerInit stores the initial duty and programs the chip period. Outputs
// stay low until Start.
func (b *Backend) TimerInit(unit core.UnitID, timer core.TimerID, cfg core.TimerConfig) error {
	c, s, err := b.led(unit, timer)
	if err != nil {
		return err
	}
	if cfg.DutyB != 0 {
		return ErrBadOperator
	}
	s.duty = cfg.DutyA
	s.running = false
	if err := b.setFrequency(c, cfg.FrequencyHz); err != nil {
		return err
	}
	return c.SetPhased(s.led, 0, 0)
}

// SetFrequency changes the period of the whole chip the timer lives on
func (b *Backend) SetFrequency(unit core.UnitID, timer core.TimerID, hz uint32) error {
	c, _, err := b.led(unit, timer)
	if err != nil {
		return err
	}
	return b.setFrequency(c, hz)
}

func (b *Backend) setFrequency(c Chip, hz uint32) error {
	if hz == 0 {
		return ErrBadFrequency
	}
	return c.SetPeriod(uint64(1e9 / float64(hz)))
}

func (b *Backend) Start(unit core.UnitID, timer core.TimerID) error {
	c, s, err := b.led(unit, timer)
	if err != nil {
		return err
	}
	s.running = true
	if err := b.write(c, s); err != nil {
		return err
	}
	return b.updateEnable()
}

func (b *Backend) Stop(unit core.UnitID, timer core.TimerID) error {
	c, s, err := b.led(unit, timer)
	if err != nil {
		return err
	}
	s.running = false
	if err := c.SetPhased(s.led, 0, 0); err != nil {
		return err
	}
	return b.updateEnable()
}

func (b *Backend) SetDuty(unit core.UnitID, timer core.TimerID, op core.Operator, dutyPct float64) error {
	if op != core.OperatorA {
		return ErrBadOperator
	}
	c, s, err := b.led(unit, timer)
	if err != nil {
		return err
	}
	s.duty = dutyPct
	if !s.running {
		return nil
	}
	return b.write(c, s)
}

// SyncEnable converts the sync offset into the channel's ON tick. An offset
// of scale*(window-d) starts the pulse d percent into the period. The source
// is implied: every chip channel counts from the same oscillator edge.
func (b *Backend) SyncEnable(unit core.UnitID, timer core.TimerID, source core.SyncSource, offset uint32) error {
	c, s, err := b.led(unit, timer)
	if err != nil {
		return err
	}
	s.phase = phaseTicks(offset, b.window, b.scale, c.Top())
	if !s.running {
		return nil
	}
	return b.write(c, s)
}

// Phase returns the ON tick currently applied to a timer
func (b *Backend) Phase(unit core.UnitID, timer core.TimerID) (uint32, bool) {
	s, ok := b.leds[core.TimerRef{Unit: unit, Timer: timer}]
	if !ok {
		return 0, false
	}
	return s.phase, true
}

func (b *Backend) write(c Chip, s *ledState) error {
	on, off := pulseTicks(s.duty, s.phase, c.Top())
	return c.SetPhased(s.led, on, off)
}

func (b *Backend) updateEnable() error {
	if b.enabler == nil {
		return nil
	}
	running := false
	for _, s := range b.leds {
		if s.running {
			running = true
			break
		}
	}
	if running == b.enabled {
		return nil
	}
	if err := b.enabler.SetOutputEnabled(running); err != nil {
		return err
	}
	b.enabled = running
	return nil
}

// pulseTicks returns the ON and OFF ticks of a pulse of dutyPct percent
// starting at phase, wrapping around the period
func pulseTicks(dutyPct float64, phase, top uint32) (on, off uint32) {
	period := top + 1
	width := uint32(math.Round(dutyPct / 100 * float64(period)))
	if width >= period {
		width = top
	}
	on = phase % period
	off = (on + width) % period
	return on, off
}

func phaseTicks(offset uint32, window, scale float64, top uint32) uint32 {
	if scale <= 0 {
		return 0
	}
	delay := window - float64(offset)/scale
	if delay < 0 {
		delay = 0
	}
	period := float64(top) + 1
	return uint32(math.Round(delay/100*period)) % (top + 1)
}

var _ core.PWMBackend = (*Backend)(nil)
