package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0, 1, -1, 31, -32, 95, 96, -33,
		127, -127, 128, -128,
		1000, -1000, 12287, 12288,
		65535, -65535, 1000000, -1000000,
		math.MaxInt32, math.MinInt32,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("VLQ decode left %d bytes for value %d", len(data), expected)
		}
	}
}

func TestVLQEncodingWidth(t *testing.T) {
	testCases := []struct {
		value    int32
		expected []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{-32, []byte{0x60}},
		{96, []byte{0x80, 0x60}},
		{1000, []byte{0x87, 0x68}},
		{-1, []byte{0x7F}},
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, tc.value)
		if got := output.Result(); !bytes.Equal(got, tc.expected) {
			t.Errorf("EncodeVLQInt(%d) = %x, expected %x", tc.value, got, tc.expected)
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	for _, expected := range []uint32{0, 1, 127, 128, 255, 1000, 65535, 1000000, math.MaxUint32} {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d", expected, decoded)
		}
	}
}

func TestVLQBytes(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01},
		{0xFF, 0xFE, 0xFD},
		make([]byte, 50),
	}

	for i, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQBytes(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("Test case %d: Failed to decode bytes: %v", i, err)
			continue
		}
		if !bytes.Equal(decoded, expected) {
			t.Errorf("Test case %d: expected %v, got %v", i, expected, decoded)
		}
	}

	data := []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&data); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("short byte array: expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQString(t *testing.T) {
	for _, expected := range []string{"", "aileron", `{"version":"x"}`} {
		output := NewScratchOutput()
		EncodeVLQString(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQString(&data)
		if err != nil {
			t.Errorf("Failed to decode string '%s': %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("String mismatch: expected '%s', got '%s'", expected, decoded)
		}
	}
}

func TestVLQMalformed(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}

	data = []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ for 6 byte encoding, got %v", err)
	}
}

func TestFixed(t *testing.T) {
	testCases := []struct {
		value float64
		wire  int32
	}{
		{0, 0},
		{75, 75000},
		{100, 100000},
		{-1, -1000},
		{0.5, 500},
		{5.54455, 5545},
		{10.84444, 10844},
	}

	for _, tc := range testCases {
		if got := ToFixed(tc.value); got != tc.wire {
			t.Errorf("ToFixed(%v) = %d, expected %d", tc.value, got, tc.wire)
		}

		output := NewScratchOutput()
		EncodeFixed(output, tc.value)
		data := output.Result()
		decoded, err := DecodeFixed(&data)
		if err != nil {
			t.Fatalf("DecodeFixed(%v): %v", tc.value, err)
		}
		if decoded != FromFixed(tc.wire) {
			t.Errorf("DecodeFixed(%v) = %v, expected %v", tc.value, decoded, FromFixed(tc.wire))
		}
	}
}
