package core

// UnitID identifies a PWM peripheral (a group of timers sharing a clock)
type UnitID uint8

// TimerID identifies a timer within a unit
type TimerID uint8

// Operator selects one of the two compare outputs driven by a timer
type Operator uint8

const (
	OperatorA Operator = 0
	OperatorB Operator = 1
)

// Signal is the output slot a pin is routed to: timer*2 + operator
type Signal uint8

// PinID is an opaque, board specific pin number
type PinID uint32

// SyncSource selects the reference edge a timer resynchronizes to
type SyncSource uint8

// CounterMode of a PWM timer
type CounterMode uint8

const (
	CounterUp CounterMode = iota
	CounterDown
	CounterUpDown
)

// DutyMode selects whether duty is the high or low portion of the period
type DutyMode uint8

const (
	DutyActiveHigh DutyMode = iota
	DutyActiveLow
)

// TimerConfig is the initial programming of one timer
type TimerConfig struct {
	FrequencyHz uint32
	DutyA       float64 // initial operator A duty, percent
	DutyB       float64 // initial operator B duty, percent
	CounterMode CounterMode
	DutyMode    DutyMode
}

// PWMBackend is the abstract timer/GPIO interface the controllers drive.
// Platform-specific implementations handle actual hardware control.
// Every call blocks until the hardware accepted or rejected it.
type PWMBackend interface {
	// GPIOInit routes a unit's output signal to a pin
	GPIOInit(unit UnitID, signal Signal, pin PinID) error

	// TimerInit programs a timer with its initial configuration
	TimerInit(unit UnitID, timer TimerID, cfg TimerConfig) error

	// SetFrequency changes a timer's PWM frequency
	SetFrequency(unit UnitID, timer TimerID, hz uint32) error

	// Start begins pulse generation on a timer
	Start(unit UnitID, timer TimerID) error

	// Stop halts pulse generation on a timer
	Stop(unit UnitID, timer TimerID) error

	// SetDuty sets the positive duty cycle percentage of one operator
	SetDuty(unit UnitID, timer TimerID, op Operator, dutyPct float64) error

	// SyncEnable makes the timer restart from offset whenever source fires
	SyncEnable(unit UnitID, timer TimerID, source SyncSource, offset uint32) error
}
