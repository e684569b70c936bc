// Package serial opens the USB CDC link to a flight controller board
package serial

import (
	"io"
)

// Port is a serial connection to the board. Tests substitute one end of a
// net.Pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unsent and unread data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a blocking configuration for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device: device,
		Baud:   250000,
	}
}
