//go:build rp2040

package main

import (
	"machine"
)

// InitUSB configures the CDC-ACM serial port. On the RP2040 machine.Serial
// is the USB device, not a UART.
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// USBAvailable returns the number of bytes buffered from the host
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes as much of data as the endpoint accepts
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
