package core

// FlightState is the lifecycle state of a FlightController
type FlightState uint8

const (
	StateUninitialized FlightState = iota
	StateInitialized
	StateActive
	StateStopped
)

// StateIdle is the state a started controller holds the neutral pattern in
const StateIdle = StateActive

var flightStateNames = [...]string{"uninitialized", "initialized", "active", "stopped"}

func (s FlightState) String() string {
	if int(s) >= len(flightStateNames) {
		return "state(" + itoa(int(s)) + ")"
	}
	return flightStateNames[s]
}

// FlightProtocol selects how outputs reach the receiver
type FlightProtocol uint8

const (
	ProtocolPWM FlightProtocol = iota
	ProtocolPPM
)

func (p FlightProtocol) String() string {
	switch p {
	case ProtocolPWM:
		return "pwm"
	case ProtocolPPM:
		return "ppm"
	default:
		return "protocol(" + itoa(int(p)) + ")"
	}
}

// Neutral pattern written by Idle, as calibrated output percentages
const (
	IdleCenter   = 50.0
	IdleElevator = 0.0
)

// FlightController gates output operations behind the flight lifecycle and
// translates logical axis inputs into channel outputs.
// It is not safe for concurrent use.
type FlightController struct {
	protocol FlightProtocol
	output   ChannelOutputBackend
	binding  AxisBinding
	state    FlightState
}

// NewFlightController builds an uninitialized controller with the default
// axis binding. Only ProtocolPWM is supported.
func NewFlightController(protocol FlightProtocol, output ChannelOutputBackend) (*FlightController, error) {
	return NewFlightControllerWithBinding(protocol, output, DefaultAxisBinding())
}

// NewFlightControllerWithBinding is NewFlightController with a custom axis
// to channel binding
func NewFlightControllerWithBinding(protocol FlightProtocol, output ChannelOutputBackend, binding AxisBinding) (*FlightController, error) {
	if protocol != ProtocolPWM {
		return nil, &FlightError{Op: "new " + protocol.String(), Kind: ErrUnsupportedProtocol}
	}
	if err := binding.Validate(); err != nil {
		return nil, err
	}
	return &FlightController{
		protocol: protocol,
		output:   output,
		binding:  binding,
	}, nil
}

func (f *FlightController) State() FlightState {
	return f.state
}

// Initialized reports whether Init has succeeded at least once
func (f *FlightController) Initialized() bool {
	return f.state != StateUninitialized
}

func (f *FlightController) Protocol() FlightProtocol {
	return f.protocol
}

func (f *FlightController) Binding() AxisBinding {
	return f.binding
}

// Output returns the channel controller the state machine drives
func (f *FlightController) Output() ChannelOutputBackend {
	return f.output
}

// Init prepares the outputs. Calling it again on an initialized controller
// re-runs the hardware setup and keeps the current state.
func (f *FlightController) Init() error {
	if err := f.output.Init(); err != nil {
		return f.fail("init", ErrProtocolFailure, err)
	}
	if f.state == StateUninitialized {
		f.setState(StateInitialized)
	}
	return nil
}

// Start writes the neutral pattern then starts pulse generation. If the
// timers fail to start the state is left as it was.
func (f *FlightController) Start() error {
	if !f.Initialized() {
		return f.fail("start", ErrProtocolFailure, ErrModeSwapFailure)
	}
	if err := f.Idle(); err != nil {
		return f.fail("start", ErrProtocolFailure, err)
	}
	if err := f.output.Start(); err != nil {
		return f.fail("start", ErrProtocolFailure, err)
	}
	f.setState(StateActive)
	return nil
}

// Stop halts pulse generation
func (f *FlightController) Stop() error {
	if !f.Initialized() {
		return f.fail("stop", ErrModeSwapFailure, nil)
	}
	if err := f.output.Stop(); err != nil {
		return f.fail("stop", ErrProtocolFailure, err)
	}
	f.setState(StateStopped)
	return nil
}

// Idle centers aileron, throttle and rudder and drops the elevator to 0%.
// The auxiliary channels are left as they are.
func (f *FlightController) Idle() error {
	if !f.Initialized() {
		return f.fail("idle", ErrModeSwapFailure, nil)
	}
	pattern := []struct {
		ch  Channel
		pct float64
	}{
		{ChannelAileron, IdleCenter},
		{ChannelThrottle, IdleCenter},
		{ChannelElevator, IdleElevator},
		{ChannelRudder, IdleCenter},
	}
	for _, p := range pattern {
		if err := f.output.SetChannelOutput(p.ch, p.pct); err != nil {
			return f.fail("idle", ErrModeSwapFailure, err)
		}
	}
	return nil
}

// SetThrottle sets the throttle output, 0 to 100 percent
func (f *FlightController) SetThrottle(value float64) error {
	return f.setAxis(AxisThrottle, value, 0, 100, value)
}

// SetPitch sets the pitch input, -1 to 1
func (f *FlightController) SetPitch(value float64) error {
	return f.setAxis(AxisPitch, value, -1, 1, bipolarToPercent(value))
}

// SetRoll sets the roll input, -1 to 1
func (f *FlightController) SetRoll(value float64) error {
	return f.setAxis(AxisRoll, value, -1, 1, bipolarToPercent(value))
}

// SetYaw sets the yaw input, -1 to 1
func (f *FlightController) SetYaw(value float64) error {
	return f.setAxis(AxisYaw, value, -1, 1, bipolarToPercent(value))
}

// ResetControl centers pitch, roll and yaw. Throttle is not touched.
func (f *FlightController) ResetControl() error {
	if !f.Initialized() {
		return f.fail("reset control", ErrModeSwapFailure, nil)
	}
	for _, a := range []Axis{AxisPitch, AxisRoll, AxisYaw} {
		if err := f.output.SetChannelOutput(f.binding.Channel(a), IdleCenter); err != nil {
			return f.fail("reset control", ErrProtocolFailure, err)
		}
	}
	return nil
}

// SetAux sets one of the auxiliary channels, 0 to 100 percent
func (f *FlightController) SetAux(ch Channel, value float64) error {
	op := "set aux " + ch.String()
	if !f.Initialized() {
		return f.fail(op, ErrModeSwapFailure, nil)
	}
	if ch != ChannelAuxA && ch != ChannelAuxB {
		return f.fail(op, ErrInvalidChannel, nil)
	}
	if !inRange(value, 0, 100) {
		return f.fail(op, ErrInvalidInput, nil)
	}
	if err := f.output.SetChannelOutput(ch, value); err != nil {
		return f.fail(op, ErrProtocolFailure, err)
	}
	return nil
}

// SetControls sets all four axes in one bus pass. Every value is checked
// before any channel is written; the auxiliary channels keep their outputs.
func (f *FlightController) SetControls(throttle, pitch, roll, yaw float64) error {
	if !f.Initialized() {
		return f.fail("set controls", ErrModeSwapFailure, nil)
	}
	if !inRange(throttle, 0, 100) || !inRange(pitch, -1, 1) || !inRange(roll, -1, 1) || !inRange(yaw, -1, 1) {
		return f.fail("set controls", ErrInvalidInput, nil)
	}

	var values [NumChannels]float64
	var bound [NumChannels]bool
	for _, a := range []struct {
		axis  Axis
		value float64
	}{
		{AxisThrottle, throttle},
		{AxisPitch, bipolarToPercent(pitch)},
		{AxisRoll, bipolarToPercent(roll)},
		{AxisYaw, bipolarToPercent(yaw)},
	} {
		i := f.binding.Channel(a.axis).Index()
		values[i] = a.value
		bound[i] = true
	}

	// bus order, only the bound channels touch the hardware
	for _, ch := range AllChannels {
		if !bound[ch.Index()] {
			continue
		}
		if err := f.output.SetChannelOutput(ch, values[ch.Index()]); err != nil {
			return f.fail("set controls", ErrProtocolFailure, err)
		}
	}
	return nil
}

// SetChannelOutput writes a calibrated output to any channel, bypassing the
// axis binding. Controller errors are returned as they are.
func (f *FlightController) SetChannelOutput(ch Channel, percentage float64) error {
	if !f.Initialized() {
		return f.fail("set output "+ch.String(), ErrModeSwapFailure, nil)
	}
	return f.output.SetChannelOutput(ch, percentage)
}

// SetDuty writes a raw duty to any channel. Controller errors are returned
// as they are.
func (f *FlightController) SetDuty(ch Channel, dutyPct float64) error {
	if !f.Initialized() {
		return f.fail("set duty "+ch.String(), ErrModeSwapFailure, nil)
	}
	return f.output.SetDuty(ch, dutyPct)
}

func (f *FlightController) setAxis(a Axis, value, lo, hi, percentage float64) error {
	op := "set " + a.String()
	if !f.Initialized() {
		return f.fail(op, ErrModeSwapFailure, nil)
	}
	if !inRange(value, lo, hi) {
		return f.fail(op+" "+ftoa(value), ErrInvalidInput, nil)
	}
	if err := f.output.SetChannelOutput(f.binding.Channel(a), percentage); err != nil {
		return f.fail(op, ErrProtocolFailure, err)
	}
	return nil
}

func (f *FlightController) setState(s FlightState) {
	if s != f.state {
		DebugPrintln("[FLIGHT] " + f.state.String() + " -> " + s.String())
	}
	f.state = s
}

func (f *FlightController) fail(op string, kind, err error) error {
	return &FlightError{Op: op, State: f.state, Kind: kind, Err: err}
}

// bipolarToPercent maps -1..1 onto 0..100
func bipolarToPercent(v float64) float64 {
	return (v + 1) * 50
}
