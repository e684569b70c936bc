package core

// ChannelOutputBackend drives the six bus channels through calibrated duty
// values. Implementations own the current duty of every channel.
type ChannelOutputBackend interface {
	// Init routes every channel to its pin and programs every timer
	Init() error

	// Start begins pulse generation on every timer
	Start() error

	// Stop halts pulse generation on every timer
	Stop() error

	// SetDuty writes a raw duty cycle percentage. The duty must lie inside
	// the channel's calibration bounds.
	SetDuty(ch Channel, dutyPct float64) error

	// SetChannelOutput writes a calibrated output percentage (0-100)
	SetChannelOutput(ch Channel, percentage float64) error

	// SetChannelOutputAll writes all six outputs in bus order, stopping at
	// the first failure
	SetChannelOutputAll(percentages [NumChannels]float64) error

	// SetAllOutputsByAxis is SetChannelOutputAll with named arguments
	SetAllOutputsByAxis(aileron, throttle, elevator, rudder, auxA, auxB float64) error

	// Duty returns the current duty of one channel
	Duty(ch Channel) (float64, error)

	// Duties returns the current duty of every channel
	Duties() [NumChannels]float64

	// Outputs returns the current output percentage of every channel
	Outputs() [NumChannels]float64

	// Calibration returns the table the controller maps through
	Calibration() CalibrationTable
}

// dutySetter is the single primitive the calibrated setters are built on
type dutySetter interface {
	SetDuty(ch Channel, dutyPct float64) error
}

// channelBank is the state shared by both controller variants
type channelBank struct {
	backend PWMBackend
	board   BoardConfig
	duties  [NumChannels]float64
}

func newChannelBank(backend PWMBackend, board BoardConfig) (channelBank, error) {
	if err := board.Validate(); err != nil {
		return channelBank{}, err
	}
	b := channelBank{backend: backend, board: board}
	for i := range b.duties {
		b.duties[i] = board.Calibration[i].Min
	}
	return b, nil
}

// initOutputs routes the pins then programs each timer with the duties the
// channels currently hold
func (b *channelBank) initOutputs() error {
	for _, ch := range AllChannels {
		o := b.board.Output(ch)
		if err := b.backend.GPIOInit(o.Unit, o.Signal(), o.Pin); err != nil {
			return b.backendError("gpio init", ch, err)
		}
	}

	for _, t := range b.board.Timers() {
		cfg := TimerConfig{
			FrequencyHz: b.board.FrequencyHz,
			CounterMode: b.board.CounterMode,
			DutyMode:    b.board.DutyMode,
		}
		for _, ch := range AllChannels {
			o := b.board.Output(ch)
			if o.Unit != t.Unit || o.Timer != t.Timer {
				continue
			}
			if o.Operator == OperatorA {
				cfg.DutyA = b.duties[ch.Index()]
			} else {
				cfg.DutyB = b.duties[ch.Index()]
			}
		}
		if err := b.backend.TimerInit(t.Unit, t.Timer, cfg); err != nil {
			return b.timerError("timer init", t, err)
		}
		if err := b.backend.SetFrequency(t.Unit, t.Timer, b.board.FrequencyHz); err != nil {
			return b.timerError("set frequency", t, err)
		}
	}

	DebugPrintln("[PWM] outputs initialized at " + itoa(int(b.board.FrequencyHz)) + "Hz")
	return nil
}

func (b *channelBank) Start() error {
	for _, t := range b.board.Timers() {
		if err := b.backend.Start(t.Unit, t.Timer); err != nil {
			return b.timerError("start", t, err)
		}
	}
	return nil
}

func (b *channelBank) Stop() error {
	for _, t := range b.board.Timers() {
		if err := b.backend.Stop(t.Unit, t.Timer); err != nil {
			return b.timerError("stop", t, err)
		}
	}
	return nil
}

// writeDuty validates, records and writes one duty. The attempted value is
// kept even when the hardware rejects it.
func (b *channelBank) writeDuty(ch Channel, dutyPct float64) error {
	if !ch.Valid() {
		return &ChannelError{Op: "set duty", Channel: ch, Err: ErrInvalidChannel}
	}
	if !b.board.Calibration.Contains(ch, dutyPct) {
		return &ChannelError{Op: "set duty " + ftoa(dutyPct) + "%", Channel: ch, Err: ErrOutOfRange}
	}

	b.duties[ch.Index()] = dutyPct
	o := b.board.Output(ch)
	if err := b.backend.SetDuty(o.Unit, o.Timer, o.Operator, dutyPct); err != nil {
		return b.backendError("set duty "+ftoa(dutyPct)+"%", ch, err)
	}
	return nil
}

func (b *channelBank) Duty(ch Channel) (float64, error) {
	if !ch.Valid() {
		return 0, &ChannelError{Op: "read duty", Channel: ch, Err: ErrInvalidChannel}
	}
	return b.duties[ch.Index()], nil
}

func (b *channelBank) Duties() [NumChannels]float64 {
	return b.duties
}

func (b *channelBank) Outputs() [NumChannels]float64 {
	var out [NumChannels]float64
	for _, ch := range AllChannels {
		out[ch.Index()], _ = b.board.Calibration.DutyToPercentage(ch, b.duties[ch.Index()])
	}
	return out
}

func (b *channelBank) Calibration() CalibrationTable {
	return b.board.Calibration
}

// Board returns a copy of the board the controller drives
func (b *channelBank) Board() BoardConfig {
	return b.board
}

func (b *channelBank) backendError(op string, ch Channel, err error) error {
	if IsDebugEnabled() {
		DebugPrintln("[PWM] " + op + " " + ch.String() + " failed: " + err.Error())
	}
	return &ChannelError{Op: op, Channel: ch, Err: ErrBackendFailure, Cause: err}
}

// timerError attributes a timer-wide failure to the first channel on it
func (b *channelBank) timerError(op string, t TimerRef, err error) error {
	var ch Channel
	for _, c := range AllChannels {
		o := b.board.Output(c)
		if o.Unit == t.Unit && o.Timer == t.Timer {
			ch = c
			break
		}
	}
	op += " unit " + itoa(int(t.Unit)) + " timer " + itoa(int(t.Timer))
	return b.backendError(op, ch, err)
}

func setCalibrated(d dutySetter, cal *CalibrationTable, ch Channel, percentage float64) error {
	duty, err := cal.MapPercentageToDuty(ch, percentage)
	if err != nil {
		return err
	}
	return d.SetDuty(ch, duty)
}

func setCalibratedAll(d dutySetter, cal *CalibrationTable, percentages [NumChannels]float64) error {
	for _, ch := range AllChannels {
		if err := setCalibrated(d, cal, ch, percentages[ch.Index()]); err != nil {
			return err
		}
	}
	return nil
}

// PWMController drives all channels from one timer unit with no phase
// relationship between timers.
type PWMController struct {
	channelBank
}

// NewPWMController builds a controller over backend for the given board.
// Every channel starts at its calibrated 0% duty.
func NewPWMController(backend PWMBackend, board BoardConfig) (*PWMController, error) {
	bank, err := newChannelBank(backend, board)
	if err != nil {
		return nil, err
	}
	return &PWMController{channelBank: bank}, nil
}

func (c *PWMController) Init() error {
	return c.initOutputs()
}

func (c *PWMController) SetDuty(ch Channel, dutyPct float64) error {
	return c.writeDuty(ch, dutyPct)
}

func (c *PWMController) SetChannelOutput(ch Channel, percentage float64) error {
	return setCalibrated(c, &c.board.Calibration, ch, percentage)
}

func (c *PWMController) SetChannelOutputAll(percentages [NumChannels]float64) error {
	return setCalibratedAll(c, &c.board.Calibration, percentages)
}

func (c *PWMController) SetAllOutputsByAxis(aileron, throttle, elevator, rudder, auxA, auxB float64) error {
	return c.SetChannelOutputAll([NumChannels]float64{aileron, throttle, elevator, rudder, auxA, auxB})
}

var _ ChannelOutputBackend = (*PWMController)(nil)
