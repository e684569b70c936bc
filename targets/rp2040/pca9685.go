//go:build rp2040 && pca9685

package main

import (
	"machine"

	"flightemu/core"
	"flightemu/targets/expander"
)

// Two expanders on I2C0 (GP4 SDA, GP5 SCL), LED channels 0-2 of each
var (
	expanderAddrs = []uint8{expander.DefaultAddress, expander.DefaultAddress + 1}
	boardPins     = [core.NumChannels]core.PinID{0, 1, 2, 0, 1, 2}
)

// newOutputs builds the phase synced dual-unit controller over the expanders
func newOutputs() (core.ChannelOutputBackend, error) {
	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	if err != nil {
		return nil, err
	}

	board := core.DualUnitBoard(boardPins)
	period := uint64(1000000000) / uint64(board.FrequencyHz)
	chips := make([]expander.Chip, 0, len(expanderAddrs))
	for _, addr := range expanderAddrs {
		chip, err := expander.NewChip(machine.I2C0, addr, period)
		if err != nil {
			return nil, err
		}
		chips = append(chips, chip)
	}
	return core.NewSyncedPWMController(expander.New(chips), board)
}
