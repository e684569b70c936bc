package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestResultCode(t *testing.T) {
	cause := errors.New("i2c nak")

	testCases := []struct {
		name string
		err  error
		code uint8
	}{
		{"nil", nil, ResultSuccess},
		{"channel", &ChannelError{Op: "set duty", Channel: 9, Err: ErrInvalidChannel}, ResultInvalidChannel},
		{"range", &ChannelError{Op: "map", Channel: 1, Err: ErrOutOfRange}, ResultOutOfRange},
		{"backend", &ChannelError{Op: "set duty", Channel: 1, Err: ErrBackendFailure, Cause: cause}, ResultBackendFailure},
		{"flight wraps controller", &FlightError{Op: "set throttle", Kind: ErrProtocolFailure,
			Err: &ChannelError{Op: "set duty", Channel: 2, Err: ErrBackendFailure, Cause: cause}}, ResultProtocolFailure},
		{"flight mode swap", &FlightError{Op: "stop", Kind: ErrModeSwapFailure}, ResultModeSwapFailure},
		{"wrapped by fmt", fmt.Errorf("http: %w", &FlightError{Op: "x", Kind: ErrInvalidInput}), ResultInvalidInput},
		{"bare sentinel", ErrUnsupportedProtocol, ResultUnsupported},
		{"foreign", cause, ResultBackendFailure},
	}

	for _, tc := range testCases {
		if got := ResultCode(tc.err); got != tc.code {
			t.Errorf("%s: code %d, expected %d", tc.name, got, tc.code)
		}
	}
}

func TestErrorFromCode(t *testing.T) {
	for code := ResultSuccess; code <= ResultUnsupported; code++ {
		err := ErrorFromCode(code)
		if code == ResultSuccess {
			if err != nil {
				t.Errorf("success mapped to %v", err)
			}
			continue
		}
		if got := ResultCode(err); got != code {
			t.Errorf("code %d -> %v -> %d", code, err, got)
		}
	}
	if !errors.Is(ErrorFromCode(200), ErrBackendFailure) {
		t.Error("unknown codes should map to backend failure")
	}
}

func TestErrorChains(t *testing.T) {
	cause := errors.New("bus fault")
	err := &FlightError{
		Op:    "set yaw",
		State: StateActive,
		Kind:  ErrProtocolFailure,
		Err:   &ChannelError{Op: "set duty", Channel: ChannelRudder, Err: ErrBackendFailure, Cause: cause},
	}

	for _, target := range []error{ErrProtocolFailure, ErrBackendFailure, cause} {
		if !errors.Is(err, target) {
			t.Errorf("errors.Is(%v) false", target)
		}
	}
	if errors.Is(err, ErrModeSwapFailure) {
		t.Error("unrelated kind matched")
	}

	want := "flight set yaw (active): protocol failure: set duty rudder: PWM backend failure: bus fault"
	if err.Error() != want {
		t.Errorf("message %q, expected %q", err.Error(), want)
	}
}
