//go:build rp2040

package main

import (
	"machine"

	"flightemu/core"
)

var debugUART *machine.UART

// InitDebugUART routes core debug output to UART1 on GP8 (TX) and GP9 (RX)
// at 115200 baud. USB stays reserved for the host protocol.
func InitDebugUART() {
	debugUART = machine.UART1
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP8,
		RX:       machine.GP9,
	})
	if err != nil {
		debugUART = nil
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	// UART writes block; keep them off the command loop
	core.InitAsyncDebug()
	core.DebugPrintln("=== RP2040 flight controller debug UART ===")
}
