package protocol

import "sync/atomic"

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device side of the link: it validates incoming frames,
// dispatches the commands they carry, acknowledges every frame and frames
// outgoing responses.
type Transport struct {
	scanner frameScanner

	// Expected sequence of the next host frame (0x10-0x1F). ACKs and
	// responses carry the same value.
	nextSequence uint32

	output        OutputBuffer
	handler       CommandHandler
	errorCallback func(cmdID uint16, err error)
	resetCallback func() // Called when host reset is detected
	flushCallback func() // Called to push an ACK out immediately
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		scanner:      frameScanner{checkDest: true},
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
}

// Receive processes every complete frame in input and pops the consumed
// bytes. Partial frames stay in input for the next call.
func (t *Transport) Receive(input InputBuffer) {
	consumed := t.scanner.scan(input.Data(), t.handleFrame, t.encodeAckNak)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) handleFrame(f Frame) {
	expected := t.Sequence()
	if f.Sequence == MessageDest && expected != MessageDest {
		// Host restarted its sequence
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if f.Sequence == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(NextSequence(f.Sequence)))
		t.parseFrame(f.Payload)
	}
	// A frame out of sequence is answered with the expected sequence, which
	// the host reads as a NAK
	t.encodeAckNak()
}

// parseFrame dispatches every command of a payload. A handler error stops
// the rest of the frame but keeps the link in sync.
func (t *Transport) parseFrame(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.scanner.desynced = true
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.scanner.desynced = true
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(uint16(cmdID), err)
			}
			return
		}
	}
}

// encodeAckNak writes an empty frame and flushes it ahead of any response
func (t *Transport) encodeAckNak() {
	WriteFrame(t.output, t.Sequence(), nil)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame frames a response with the current sequence. Several
// responses may share one sequence.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	WriteFrame(t.output, t.Sequence(), frameData)
}

// SendCommand frames a message id followed by its arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Sequence returns the sequence the next host frame must carry
func (t *Transport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSequence))
}

// Reset returns the transport to its power-on state (after a USB
// disconnect or host restart)
func (t *Transport) Reset() {
	t.scanner.desynced = false
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback to be called when host reset is detected
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that pushes queued output to the wire
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets a callback for command handler failures
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}
