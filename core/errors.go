package core

import "errors"

// Error kinds. A failing path can match more than one with errors.Is: a
// FlightError matches its own kind and the kind of the error it wraps.
// ResultCode picks the outermost one.
var (
	ErrInvalidChannel      = errors.New("invalid channel")
	ErrInvalidInput        = errors.New("invalid input")
	ErrOutOfRange          = errors.New("value out of RC range")
	ErrModeSwapFailure     = errors.New("mode swap failure")
	ErrProtocolFailure     = errors.New("protocol failure")
	ErrBackendFailure      = errors.New("PWM backend failure")
	ErrUnsupportedProtocol = errors.New("unsupported flight protocol")
)

// ChannelError reports a failed controller or calibration operation on one channel
type ChannelError struct {
	Op      string
	Channel Channel
	Err     error // kind
	Cause   error // backend error, if any
}

func (e *ChannelError) Error() string {
	msg := e.Op + " " + e.Channel.String() + ": " + e.Err.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ChannelError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// FlightError reports a failed state machine operation
type FlightError struct {
	Op    string
	State FlightState // state when the operation ran
	Kind  error
	Err   error // underlying controller error, if any
}

func (e *FlightError) Error() string {
	msg := "flight " + e.Op + " (" + e.State.String() + "): " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FlightError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Result codes carried by flight_result on the wire
const (
	ResultSuccess uint8 = iota
	ResultProtocolFailure
	ResultModeSwapFailure
	ResultInvalidInput
	ResultInvalidChannel
	ResultOutOfRange
	ResultBackendFailure
	ResultUnsupported
)

// ResultCode classifies an error for the wire. The outermost kind wins, so a
// FlightError reports its own kind rather than the controller error it wraps.
func ResultCode(err error) uint8 {
	if err == nil {
		return ResultSuccess
	}
	var fe *FlightError
	if errors.As(err, &fe) {
		return kindCode(fe.Kind)
	}
	var ce *ChannelError
	if errors.As(err, &ce) {
		return kindCode(ce.Err)
	}
	return kindCode(err)
}

func kindCode(err error) uint8 {
	switch {
	case errors.Is(err, ErrProtocolFailure):
		return ResultProtocolFailure
	case errors.Is(err, ErrModeSwapFailure):
		return ResultModeSwapFailure
	case errors.Is(err, ErrInvalidInput):
		return ResultInvalidInput
	case errors.Is(err, ErrInvalidChannel):
		return ResultInvalidChannel
	case errors.Is(err, ErrOutOfRange):
		return ResultOutOfRange
	case errors.Is(err, ErrUnsupportedProtocol):
		return ResultUnsupported
	default:
		return ResultBackendFailure
	}
}

// ErrorFromCode maps a wire result code back to its error kind
func ErrorFromCode(code uint8) error {
	switch code {
	case ResultSuccess:
		return nil
	case ResultProtocolFailure:
		return ErrProtocolFailure
	case ResultModeSwapFailure:
		return ErrModeSwapFailure
	case ResultInvalidInput:
		return ErrInvalidInput
	case ResultInvalidChannel:
		return ErrInvalidChannel
	case ResultOutOfRange:
		return ErrOutOfRange
	case ResultUnsupported:
		return ErrUnsupportedProtocol
	default:
		return ErrBackendFailure
	}
}
