package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAckTimeout bounds how long SendCommand waits for the device
const DefaultAckTimeout = 2 * time.Second

var (
	ErrTimeout         = errors.New("timeout")
	ErrTransportClosed = errors.New("transport closed")
	ErrNak             = errors.New("frame not acknowledged")
)

// ResponseHandler is a function type for handling received responses
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host side of the link: it frames commands, waits for
// their ACK and queues the responses the device sends back.
type HostTransport struct {
	port io.ReadWriteCloser

	// Sequence of the next frame to send (0x10-0x1F)
	currentSeq uint32

	scanner     frameScanner
	inputBuffer *FifoBuffer

	ackChan      chan Frame
	responseChan chan Frame

	responseHandler ResponseHandler

	// sendMutex keeps one command in flight
	sendMutex sync.Mutex
	readMutex sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts reading from port in the background
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		scanner:      frameScanner{checkDest: true},
		inputBuffer:  NewFifoBuffer(1024),
		ackChan:      make(chan Frame, 1),
		responseChan: make(chan Frame, 32),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// SendCommand sends a command and waits for the device to acknowledge it
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout is SendCommand with a custom ACK timeout
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMutex.Lock()
	defer t.sendMutex.Unlock()

	seq := t.GetCurrentSequence()
	msg, err := BuildFrame(seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to build command %d: %w", cmdID, err)
	}

	// Drop a stale ACK left over from an earlier timeout
	select {
	case <-t.ackChan:
	default:
	}

	if err := t.writeMessage(msg); err != nil {
		return fmt.Errorf("failed to write command %d: %w", cmdID, err)
	}

	if err := t.waitForAck(seq, timeout); err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}
	return nil
}

func (t *HostTransport) writeMessage(msg []byte) error {
	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// waitForAck waits for the device to report sent+1 as its next sequence
func (t *HostTransport) waitForAck(sent uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-t.ackChan:
		want := NextSequence(sent)
		if ack.Sequence != want {
			// Device expects another sequence; follow it so the next
			// command goes through.
			atomic.StoreUint32(&t.currentSeq, uint32(ack.Sequence))
			return fmt.Errorf("%w: expected seq 0x%02x, got 0x%02x", ErrNak, want, ack.Sequence)
		}
		atomic.StoreUint32(&t.currentSeq, uint32(want))
		return nil

	case <-timer.C:
		return fmt.Errorf("%w: no ACK after %v", ErrTimeout, timeout)

	case <-t.stopChan:
		return ErrTransportClosed
	}
}

// ReceiveResponse returns the next response frame
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return Frame{}, fmt.Errorf("%w: no response after %v", ErrTimeout, timeout)
	case <-t.stopChan:
		return Frame{}, ErrTransportClosed
	}
}

// SetResponseHandler sets a callback run on the read goroutine for every
// response, before it is queued
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()
	t.responseHandler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		n, err := t.port.Read(buffer)
		if n > 0 {
			t.inputBuffer.Write(buffer[:n])
			t.processMessages()
		}
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				t.Close()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	consumed := t.scanner.scan(t.inputBuffer.Data(), t.dispatchMessage, nil)
	if consumed > 0 {
		t.inputBuffer.Pop(consumed)
	}
}

// dispatchMessage routes a frame; payloads are copied out of the input
// buffer before they leave this goroutine
func (t *HostTransport) dispatchMessage(f Frame) {
	if f.IsAck() {
		select {
		case t.ackChan <- f:
		default:
		}
		return
	}

	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	f.Payload = payload

	if t.responseHandler != nil {
		data := payload
		if cmdID, err := DecodeVLQUint(&data); err == nil {
			_ = t.responseHandler(uint16(cmdID), &data)
		}
	}

	select {
	case t.responseChan <- f:
	default:
		// Queue full: drop the oldest response
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- f
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
	})
	return err
}

// Wait blocks until the read goroutine has exited
func (t *HostTransport) Wait() {
	<-t.doneChan
}

// Reset drops queued frames and restarts the sequence
func (t *HostTransport) Reset() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	t.scanner.desynced = false
	atomic.StoreUint32(&t.currentSeq, MessageDest)

	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}
	t.inputBuffer.Reset()
}

// GetCurrentSequence returns the sequence of the next frame to send
func (t *HostTransport) GetCurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
