package sim

import (
	"errors"
	"io"
	"strconv"
	"sync"

	"flightemu/core"
	"flightemu/protocol"
)

// Device runs the firmware command loop in process: framed bytes in, flight
// commands dispatched, responses and ACKs out. It lets hosts talk to a
// simulated board over any byte stream.
type Device struct {
	mu        sync.Mutex
	reg       *core.CommandRegistry
	dict      *core.Dictionary
	transport *protocol.Transport
	input     *protocol.FifoBuffer
	output    *protocol.ScratchOutput
	errors    uint32
}

// NewDevice registers the flight commands of fc on a fresh registry
func NewDevice(fc *core.FlightController) *Device {
	d := &Device{
		reg:    core.NewCommandRegistry(),
		input:  protocol.NewFifoBuffer(protocol.MessageMax),
		output: protocol.NewScratchOutput(),
	}
	d.dict = core.NewDictionary(d.reg, protocol.Version)
	d.transport = protocol.NewTransport(d.output, d.reg.Dispatch)
	d.transport.SetResetCallback(func() {
		d.input.Reset()
		d.output.Reset()
	})
	d.transport.SetErrorCallback(func(cmdID uint16, err error) {
		d.errors++
		core.DebugPrintln("[SIM] command " + strconv.Itoa(int(cmdID)) + ": " + err.Error())
	})
	core.RegisterFlightCommands(d.reg, d.dict, fc, d.transport.SendCommand)
	d.dict.BuildDictionary()
	return d
}

// Registry returns the command registry the device dispatches to
func (d *Device) Registry() *core.CommandRegistry {
	return d.reg
}

// Errors counts commands whose arguments failed to decode
func (d *Device) Errors() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errors
}

// Feed processes received bytes and returns what the device sends back
func (d *Device) Feed(data []byte) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(data) > 0 {
		n := d.input.Write(data)
		data = data[n:]
		d.transport.Receive(d.input)
		if n == 0 && d.input.Free() == 0 {
			// no frame fits: drop the garbage
			d.input.Reset()
		}
	}

	out := append([]byte(nil), d.output.Result()...)
	d.output.Reset()
	return out
}

// Serve answers frames read from conn until it fails or closes
func (d *Device) Serve(conn io.ReadWriter) error {
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if out := d.Feed(buf[:n]); len(out) > 0 {
				if _, werr := conn.Write(out); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
