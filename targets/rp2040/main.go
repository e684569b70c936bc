//go:build rp2040

// Firmware for an RP2040 board acting as the six-channel flight controller.
// The host speaks the framed command protocol over USB CDC. Build with the
// pca9685 tag to drive two I2C expanders instead of the on-chip PWM slices.
package main

import (
	"machine"
	"strconv"
	"time"

	"flightemu/core"
	"flightemu/protocol"
)

const watchdogTimeoutMs = 2000

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	registry     *core.CommandRegistry

	// Debug counters
	messagesReceived uint32
	messagesSent     uint32
	msgerrors        uint32

	// USB connection state tracking
	lastUSBActivity          uint64
	lastWriteSuccess         uint64
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear any watchdog left armed by the previous run
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebugUART()

	outputs, err := newOutputs()
	if err != nil {
		core.DebugPrintln("[MAIN] outputs: " + err.Error())
		halt()
	}
	fc, err := core.NewFlightController(core.ProtocolPWM, outputs)
	if err != nil {
		core.DebugPrintln("[MAIN] flight controller: " + err.Error())
		halt()
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	registry = core.NewCommandRegistry()
	dict := core.NewDictionary(registry, protocol.Version)
	registerClockConstants(dict)

	transport = protocol.NewTransport(outputBuffer, registry.Dispatch)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	transport.SetErrorCallback(func(cmdID uint16, err error) {
		msgerrors++
		core.DebugPrintln("[MAIN] command " + strconv.Itoa(int(cmdID)) + ": " + err.Error())
	})
	// Push ACKs out as soon as they are framed
	transport.SetFlushCallback(func() {
		writeUSB()
	})

	core.RegisterFlightCommands(registry, dict, fc, transport.SendCommand)
	dict.BuildDictionary()

	// A stalled main loop resets the board, which leaves every output low
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogTimeoutMs}); err == nil {
		machine.Watchdog.Start()
	}

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			machine.Watchdog.Update()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
				messagesReceived++
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
				messagesSent++
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// halt parks the firmware after a fatal setup error. The watchdog is not
// armed yet, so the board stays put for the debug UART to be read.
func halt() {
	for {
		time.Sleep(time.Second)
	}
}

// usbReaderLoop moves bytes from USB into the input FIFO
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// First byte after a disconnect starts a fresh session
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				messagesReceived = 0
				messagesSent = 0
				consecutiveWriteFailures = 0
			}

			lastUSBActivity = uptimeMicros()

			if inputBuffer.Write([]byte{data}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB drains the output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// Likely a disconnect. After repeated failures drop the stale
			// data so the next session starts clean.
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}

	consecutiveWriteFailures = 0
	lastWriteSuccess = uptimeMicros()
	outputBuffer.Reset()
}
