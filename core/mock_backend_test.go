package core

import "errors"

var errMockHardware = errors.New("mock hardware fault")

// backendCall is one recorded PWMBackend primitive
type backendCall struct {
	Op       string
	Unit     UnitID
	Timer    TimerID
	Operator Operator
	Signal   Signal
	Pin      PinID
	Duty     float64
	Hz       uint32
	Offset   uint32
	Config   TimerConfig
}

// MockPWMBackend records every call. Ops listed in failOn return
// errMockHardware.
type MockPWMBackend struct {
	calls  []backendCall
	failOn map[string]bool
}

func NewMockPWMBackend() *MockPWMBackend {
	return &MockPWMBackend{failOn: make(map[string]bool)}
}

func (m *MockPWMBackend) record(c backendCall) error {
	m.calls = append(m.calls, c)
	if m.failOn[c.Op] {
		return errMockHardware
	}
	return nil
}

func (m *MockPWMBackend) GPIOInit(unit UnitID, signal Signal, pin PinID) error {
	return m.record(backendCall{Op: "gpio_init", Unit: unit, Signal: signal, Pin: pin})
}

func (m *MockPWMBackend) TimerInit(unit UnitID, timer TimerID, cfg TimerConfig) error {
	return m.record(backendCall{Op: "timer_init", Unit: unit, Timer: timer, Config: cfg})
}

func (m *MockPWMBackend) SetFrequency(unit UnitID, timer TimerID, hz uint32) error {
	return m.record(backendCall{Op: "set_frequency", Unit: unit, Timer: timer, Hz: hz})
}

func (m *MockPWMBackend) Start(unit UnitID, timer TimerID) error {
	return m.record(backendCall{Op: "start", Unit: unit, Timer: timer})
}

func (m *MockPWMBackend) Stop(unit UnitID, timer TimerID) error {
	return m.record(backendCall{Op: "stop", Unit: unit, Timer: timer})
}

func (m *MockPWMBackend) SetDuty(unit UnitID, timer TimerID, op Operator, dutyPct float64) error {
	return m.record(backendCall{Op: "set_duty", Unit: unit, Timer: timer, Operator: op, Duty: dutyPct})
}

func (m *MockPWMBackend) SyncEnable(unit UnitID, timer TimerID, source SyncSource, offset uint32) error {
	return m.record(backendCall{Op: "sync_enable", Unit: unit, Timer: timer, Offset: offset})
}

// Calls returns the recorded calls of one primitive
func (m *MockPWMBackend) Calls(op string) []backendCall {
	var out []backendCall
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockPWMBackend) Reset() {
	m.calls = nil
}

var featherPins = [NumChannels]PinID{12, 27, 33, 15, 32, 14}
