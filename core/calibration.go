package core

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Duty bounds measured on the reference receiver at the default 55Hz output.
// Values are positive duty cycle percentages of one PWM period.
const (
	DutyAileronMin  = 5.54455
	DutyAileronMax  = 10.84444
	DutyThrottleMin = 5.44339
	DutyThrottleMax = 10.87176
	DutyElevatorMin = 5.90324
	DutyElevatorMax = 10.86134
	DutyRudderMin   = 5.44188
	DutyRudderMax   = 10.80428
	DutyAuxMin      = 5.43988
	DutyAuxMax      = 10.87071
)

// Bounds is the duty range a channel accepts, from its 0% to its 100% point
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CalibrationTable holds the calibrated bounds of every channel, indexed by
// Channel.Index(). The table is plain data; mapping through it never mutates it.
type CalibrationTable [NumChannels]Bounds

// DefaultCalibration returns the measured bounds of the reference setup
func DefaultCalibration() CalibrationTable {
	return CalibrationTable{
		{Min: DutyAileronMin, Max: DutyAileronMax},
		{Min: DutyThrottleMin, Max: DutyThrottleMax},
		{Min: DutyElevatorMin, Max: DutyElevatorMax},
		{Min: DutyRudderMin, Max: DutyRudderMax},
		{Min: DutyAuxMin, Max: DutyAuxMax},
		{Min: DutyAuxMin, Max: DutyAuxMax},
	}
}

// Bounds returns the calibrated range of a channel
func (t *CalibrationTable) Bounds(ch Channel) (Bounds, error) {
	if !ch.Valid() {
		return Bounds{}, &ChannelError{Op: "calibration", Channel: ch, Err: ErrInvalidChannel}
	}
	return t[ch.Index()], nil
}

// MapPercentageToDuty converts an RC output percentage (0-100) into the duty
// cycle percentage for the given channel.
func (t *CalibrationTable) MapPercentageToDuty(ch Channel, percentage float64) (float64, error) {
	b, err := t.Bounds(ch)
	if err != nil {
		return 0, err
	}
	if !inRange(percentage, 0, 100) {
		return 0, &ChannelError{Op: "map " + ftoa(percentage) + "%", Channel: ch, Err: ErrOutOfRange}
	}
	// Endpoints are returned verbatim so 0% and 100% hit the measured values
	// without rounding error.
	switch percentage {
	case 0:
		return b.Min, nil
	case 100:
		return b.Max, nil
	}
	return constrain(mapRange(percentage, 0, 100, b.Min, b.Max), b.Min, b.Max), nil
}

// DutyToPercentage is the inverse of MapPercentageToDuty. Duties outside the
// bounds are clamped to 0 or 100.
func (t *CalibrationTable) DutyToPercentage(ch Channel, duty float64) (float64, error) {
	b, err := t.Bounds(ch)
	if err != nil {
		return 0, err
	}
	pct := mapRange(duty, b.Min, b.Max, 0, 100)
	return constrain(pct, 0, 100), nil
}

// Contains reports whether a raw duty lies inside the channel's bounds
func (t *CalibrationTable) Contains(ch Channel, duty float64) bool {
	if !ch.Valid() {
		return false
	}
	b := t[ch.Index()]
	return inRange(duty, b.Min, b.Max)
}

// Validate rejects tables that cannot produce a monotonic mapping
func (t *CalibrationTable) Validate() error {
	for i, b := range t {
		ch := Channel(i + 1)
		if !inRange(b.Min, 0, 100) || !inRange(b.Max, 0, 100) || b.Min >= b.Max {
			return &ChannelError{
				Op:      "calibration bounds " + ftoa(b.Min) + ".." + ftoa(b.Max),
				Channel: ch,
				Err:     ErrOutOfRange,
			}
		}
	}
	return nil
}

// inRange is false for NaN
func inRange[T constraints.Float](v, lo, hi T) bool {
	return v >= lo && v <= hi
}

func constrain[T constraints.Float](v, lo, hi T) T {
	if math.IsNaN(float64(v)) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mapRange linearly maps value from one range to another
func mapRange[T constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)/(fromMax-fromMin)*(toMax-toMin) + toMin
}
