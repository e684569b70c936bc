//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"flightemu/core"
)

// RP2040 timer peripheral, a free running 64-bit microsecond counter
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24
	timerTIMERAWL = timerBase + 0x28
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// registerClockConstants publishes the MCU identity in the dictionary
func registerClockConstants(dict *core.Dictionary) {
	dict.AddConstant("MCU", "rp2040")
	dict.AddConstant("CLOCK_FREQ", uint32(1000000))
}

// uptimeMicros reads the full counter. High is read on both sides of low
// to catch a carry between the two reads.
func uptimeMicros() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}
