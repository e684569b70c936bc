package expander

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/pca9685"
)

// DefaultAddress is the PCA9685 address with all address pins low
const DefaultAddress = 0x40

// driverChip adapts the TinyGo PCA9685 driver. LED writes are staged in the
// buffered device and flushed in one transaction so bus errors surface.
type driverChip struct {
	dev *pca9685.DevBuffered
}

// NewChip configures the PCA9685 at addr on bus. Any I2C bus with a Tx
// method works: machine.I2C on a microcontroller or a Linux bus.
func NewChip(bus drivers.I2C, addr uint8, periodNs uint64) (Chip, error) {
	dev := pca9685.NewBuffered(bus, addr)
	if err := dev.IsConnected(); err != nil {
		return nil, err
	}
	if err := dev.Configure(pca9685.PWMConfig{Period: periodNs}); err != nil {
		return nil, err
	}
	return &driverChip{dev: dev}, nil
}

func (c *driverChip) SetPeriod(ns uint64) error {
	return c.dev.SetPeriod(ns)
}

func (c *driverChip) SetPhased(channel uint8, on, off uint32) error {
	c.dev.PrepPhasedSet(channel, on, off)
	return c.dev.Update()
}

func (c *driverChip) Top() uint32 {
	return c.dev.Top()
}
