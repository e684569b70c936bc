package protocol

import "errors"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
)

// MessagePayloadMax is the largest payload one frame can carry
const MessagePayloadMax = MessageLengthMax - MessageLengthMin

var ErrFrameTooLong = errors.New("frame exceeds maximum length")

// Frame is one validated block taken off the wire
type Frame struct {
	Sequence uint8
	Payload  []byte // between header and trailer, no CRC
}

// IsAck reports whether the frame only acknowledges
func (f *Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// NextSequence returns the sequence following seq, keeping the 0x10 marker
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// WriteFrame writes one frame to output. body may be nil for an ACK.
func WriteFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) {
	cursor := output.CurPosition()
	output.Output([]byte{0, seq})
	if body != nil {
		body(output)
	}

	length := len(output.DataSince(cursor)) + MessageTrailerSize
	output.Update(cursor, uint8(length))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// BuildFrame returns a standalone frame, rejecting payloads that do not fit
func BuildFrame(seq uint8, body func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	WriteFrame(scratch, seq, body)
	frame := scratch.Result()
	if len(frame) > MessageLengthMax {
		return nil, ErrFrameTooLong
	}
	out := make([]byte, len(frame))
	copy(out, frame)
	return out, nil
}

// frameScanner splits a byte stream into frames and resynchronizes on the
// sync byte after corruption. Not safe for concurrent use.
type frameScanner struct {
	desynced bool

	// checkDest rejects frames whose sequence lacks the 0x10 marker
	checkDest bool
}

// scan consumes every complete frame in data and returns the number of
// bytes used. onResync runs when the scanner regains sync.
func (s *frameScanner) scan(data []byte, onFrame func(Frame), onResync func()) int {
	total := len(data)

	for len(data) > 0 {
		if s.desynced {
			idx := -1
			for i, b := range data {
				if b == MessageValueSync {
					idx = i
					break
				}
			}
			if idx < 0 {
				data = nil
				break
			}
			data = data[idx+1:]
			s.desynced = false
			if onResync != nil {
				onResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			s.desynced = true
			continue
		}
		seq := data[MessagePositionSeq]
		if s.checkDest && seq&^MessageSeqMask != MessageDest {
			s.desynced = true
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			s.desynced = true
			continue
		}

		wantCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
		if CRC16(data[:msgLen-MessageTrailerSize]) != wantCRC {
			s.desynced = true
			continue
		}

		onFrame(Frame{
			Sequence: seq,
			Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
		})
		data = data[msgLen:]
	}

	return total - len(data)
}
