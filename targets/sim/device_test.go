package sim

import (
	"testing"

	"flightemu/core"
	"flightemu/protocol"
)

// decodeFrames splits device output into frames
func decodeFrames(t *testing.T, data []byte) []protocol.Frame {
	t.Helper()
	var frames []protocol.Frame
	for len(data) > 0 {
		n := int(data[0])
		if n < protocol.MessageLengthMin || n > len(data) {
			t.Fatalf("bad frame length %d in % x", n, data)
		}
		frames = append(frames, protocol.Frame{
			Sequence: data[1],
			Payload:  data[protocol.MessageHeaderSize : n-protocol.MessageTrailerSize],
		})
		data = data[n:]
	}
	return frames
}

func TestDeviceFeed(t *testing.T) {
	ctrl, err := core.NewPWMController(New(), core.SingleUnitBoard(0, testPins))
	if err != nil {
		t.Fatal(err)
	}
	fc, _ := core.NewFlightController(core.ProtocolPWM, ctrl)
	dev := NewDevice(fc)

	initCmd, _ := dev.Registry().GetCommandByName("flight_init")
	result, _ := dev.Registry().GetCommandByName("flight_result")

	frame, err := protocol.BuildFrame(protocol.MessageDest, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(initCmd.ID))
	})
	if err != nil {
		t.Fatal(err)
	}

	// split delivery: the device waits for the whole frame
	if out := dev.Feed(frame[:3]); len(out) != 0 {
		t.Fatalf("answered a partial frame: % x", out)
	}
	frames := decodeFrames(t, dev.Feed(frame[3:]))
	if len(frames) != 2 {
		t.Fatalf("expected response and ACK, got %d frames", len(frames))
	}

	payload := frames[0].Payload
	id, _ := protocol.DecodeVLQUint(&payload)
	code, _ := protocol.DecodeVLQUint(&payload)
	if uint16(id) != result.ID || code != uint32(core.ResultSuccess) {
		t.Errorf("response id %d code %d", id, code)
	}
	if !frames[1].IsAck() || frames[1].Sequence != protocol.NextSequence(protocol.MessageDest) {
		t.Errorf("ack %+v", frames[1])
	}
	if fc.State() != core.StateInitialized {
		t.Errorf("state %s", fc.State())
	}
}

func TestDeviceDecodeError(t *testing.T) {
	ctrl, _ := core.NewPWMController(New(), core.SingleUnitBoard(0, testPins))
	fc, _ := core.NewFlightController(core.ProtocolPWM, ctrl)
	dev := NewDevice(fc)
	aux, _ := dev.Registry().GetCommandByName("flight_set_aux")

	frame, _ := protocol.BuildFrame(protocol.MessageDest, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(aux.ID))
		protocol.EncodeVLQUint(out, 5) // value missing
	})
	frames := decodeFrames(t, dev.Feed(frame))
	if len(frames) != 1 || !frames[0].IsAck() {
		t.Errorf("expected a bare ACK, got %+v", frames)
	}
	if dev.Errors() != 1 {
		t.Errorf("errors %d", dev.Errors())
	}
}
