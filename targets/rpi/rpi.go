// Package rpi runs the flight outputs from a Raspberry Pi: PCA9685 expanders
// on the Pi's I2C bus through periph.io, and the expanders' shared output
// enable line on a GPIO through go-rpio.
package rpi

import (
	"errors"
	"fmt"
	"log"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"

	"flightemu/targets/expander"
)

// Config selects the bus, the chips and the optional OE pin
type Config struct {
	Bus       string   // periph bus name, "" for the first bus
	Addresses []uint16 // one PCA9685 per unit, in unit order
	OEPin     int      // BCM pin wired to OE, negative when unused

	// Phase sync constants, zero for the defaults
	SyncWindow float64
	SyncScale  float64
}

// Board owns the opened bus and GPIO memory of a Pi driven backend
type Board struct {
	*expander.Backend
	bus  i2c.BusCloser
	gpio bool
}

// Open brings up the host drivers and every configured chip
func Open(cfg Config) (*Board, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("rpi: no PCA9685 address configured")
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("rpi: host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("rpi: open I2C bus %q: %w", cfg.Bus, err)
	}

	b := &Board{bus: bus}
	chips := make([]expander.Chip, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		dev, err := pca9685.NewI2C(bus, addr)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("rpi: PCA9685 at %#x: %w", addr, err)
		}
		chips = append(chips, &periphChip{dev: dev})
		log.Printf("rpi: PCA9685 at %#x on %s", addr, bus)
	}

	var opts []expander.Option
	if cfg.SyncWindow > 0 && cfg.SyncScale > 0 {
		opts = append(opts, expander.WithSyncWindow(cfg.SyncWindow, cfg.SyncScale))
	}
	if cfg.OEPin >= 0 {
		if err := rpio.Open(); err != nil {
			b.Close()
			return nil, fmt.Errorf("rpi: open GPIO: %w", err)
		}
		b.gpio = true
		opts = append(opts, expander.WithOutputEnable(NewOutputEnable(cfg.OEPin)))
	}
	b.Backend = expander.New(chips, opts...)
	return b, nil
}

// Close releases the GPIO mapping and the bus
func (b *Board) Close() error {
	var errs []error
	if b.gpio {
		errs = append(errs, rpio.Close())
		b.gpio = false
	}
	if b.bus != nil {
		errs = append(errs, b.bus.Close())
		b.bus = nil
	}
	return errors.Join(errs...)
}

// periphChip adapts the periph.io PCA9685 driver to the expander backend
type periphChip struct {
	dev *pca9685.Dev
}

func (c *periphChip) SetPeriod(ns uint64) error {
	if ns == 0 {
		return expander.ErrBadFrequency
	}
	return c.dev.SetPwmFreq(periodToFrequency(ns))
}

func (c *periphChip) SetPhased(channel uint8, on, off uint32) error {
	return c.dev.SetPwm(int(channel), gpio.Duty(on), gpio.Duty(off))
}

func (c *periphChip) Top() uint32 {
	return 4095
}

func periodToFrequency(ns uint64) physic.Frequency {
	return physic.Frequency(uint64(physic.Hertz) * 1_000_000_000 / ns)
}

// OutputEnable drives the active low OE input of the expanders
type OutputEnable struct {
	pin rpio.Pin
}

// NewOutputEnable claims a BCM pin as output, starting with outputs disabled.
// rpio.Open must have been called.
func NewOutputEnable(pin int) *OutputEnable {
	p := rpio.Pin(pin)
	p.Output()
	p.High()
	return &OutputEnable{pin: p}
}

func (o *OutputEnable) SetOutputEnabled(enabled bool) error {
	if enabled {
		o.pin.Low()
	} else {
		o.pin.High()
	}
	return nil
}
