package core

// Timing of the reference 6-channel setup, measured on the receiver side
const (
	DefaultPeriodSeconds     = 0.018302
	DefaultFrequencyHz       = 54.6388
	DefaultApproxFrequencyHz = 55

	// Phase sync reference window and tick scale
	DefaultSyncWindow = 1000
	DefaultSyncScale  = 10
)

// OutputBinding places one channel on the hardware
type OutputBinding struct {
	Unit     UnitID
	Timer    TimerID
	Operator Operator
	Pin      PinID
}

// Signal returns the unit output slot this binding drives
func (o OutputBinding) Signal() Signal {
	return Signal(uint8(o.Timer)*2 + uint8(o.Operator))
}

// TimerRef names one timer of one unit
type TimerRef struct {
	Unit  UnitID
	Timer TimerID
}

// SyncConfig holds the phase sync constants of a multi-unit board
type SyncConfig struct {
	Source SyncSource
	Window float64 // reference window the cumulative duty is subtracted from
	Scale  float64 // ticks per window unit
}

// BoardConfig describes how the six channels are wired to PWM hardware.
// The controller keeps its own copy; nothing in it is global.
type BoardConfig struct {
	Outputs     [NumChannels]OutputBinding
	FrequencyHz uint32
	CounterMode CounterMode
	DutyMode    DutyMode
	Calibration CalibrationTable
	Sync        SyncConfig
}

// SingleUnitBoard wires all six channels to one unit: three timers with two
// operators each, channel pairs (1,2) (3,4) (5,6) sharing a timer.
func SingleUnitBoard(unit UnitID, pins [NumChannels]PinID) BoardConfig {
	b := BoardConfig{
		FrequencyHz: DefaultApproxFrequencyHz,
		Calibration: DefaultCalibration(),
		Sync:        SyncConfig{Window: DefaultSyncWindow, Scale: DefaultSyncScale},
	}
	for i := range b.Outputs {
		b.Outputs[i] = OutputBinding{
			Unit:     unit,
			Timer:    TimerID(i / 2),
			Operator: Operator(i % 2),
			Pin:      pins[i],
		}
	}
	return b
}

// DualUnitBoard splits the channels over two units: channels 1-3 on unit 0
// and 4-6 on unit 1, one timer per channel on operator A. Each unit forms one
// timer group for phase sync.
func DualUnitBoard(pins [NumChannels]PinID) BoardConfig {
	b := BoardConfig{
		FrequencyHz: DefaultApproxFrequencyHz,
		Calibration: DefaultCalibration(),
		Sync:        SyncConfig{Window: DefaultSyncWindow, Scale: DefaultSyncScale},
	}
	for i := range b.Outputs {
		b.Outputs[i] = OutputBinding{
			Unit:     UnitID(i / 3),
			Timer:    TimerID(i % 3),
			Operator: OperatorA,
			Pin:      pins[i],
		}
	}
	return b
}

// Output returns the binding of a channel. Callers must check Valid first.
func (b *BoardConfig) Output(ch Channel) OutputBinding {
	return b.Outputs[ch.Index()]
}

// Timers lists the distinct timers in order of first use
func (b *BoardConfig) Timers() []TimerRef {
	timers := make([]TimerRef, 0, NumChannels)
	for _, o := range b.Outputs {
		ref := TimerRef{Unit: o.Unit, Timer: o.Timer}
		found := false
		for _, t := range timers {
			if t == ref {
				found = true
				break
			}
		}
		if !found {
			timers = append(timers, ref)
		}
	}
	return timers
}

// Groups returns the channels of each unit in bus order. The position of a
// channel inside its group is its phase order.
func (b *BoardConfig) Groups() [][]Channel {
	var units []UnitID
	var groups [][]Channel
	for _, ch := range AllChannels {
		unit := b.Output(ch).Unit
		idx := -1
		for i, u := range units {
			if u == unit {
				idx = i
				break
			}
		}
		if idx < 0 {
			units = append(units, unit)
			groups = append(groups, nil)
			idx = len(groups) - 1
		}
		groups[idx] = append(groups[idx], ch)
	}
	return groups
}

// Validate checks the board can be driven
func (b *BoardConfig) Validate() error {
	if err := b.Calibration.Validate(); err != nil {
		return err
	}
	if b.FrequencyHz == 0 {
		return &ChannelError{Op: "board frequency 0Hz", Err: ErrInvalidInput}
	}
	for i, o := range b.Outputs {
		if o.Operator > OperatorB {
			return &ChannelError{Op: "board operator", Channel: Channel(i + 1), Err: ErrInvalidInput}
		}
		for j := 0; j < i; j++ {
			p := b.Outputs[j]
			if p.Unit == o.Unit && p.Timer == o.Timer && p.Operator == o.Operator {
				return &ChannelError{Op: "board output shared with " + Channel(j+1).String(), Channel: Channel(i + 1), Err: ErrInvalidInput}
			}
		}
	}
	return nil
}
