// Package protocol implements the framed VLQ link between the flight
// firmware and its host. Frames follow the Klipper block layout:
//
//	len seq payload crc16_hi crc16_lo 0x7E
//
// A frame with an empty payload acknowledges everything up to its sequence.
package protocol

// Version is reported in the data dictionary
const Version = "flightemu-0.1.0"

// MessageMax is the size of a scratch output buffer; large enough for
// several frames queued between flushes.
const MessageMax = 512

// Message sequence masks
const (
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)
