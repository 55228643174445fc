// Package thermo reads the ambient temperature used to calibrate refresh
// timing.
package thermo

import (
	"context"
	"fmt"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// Reader returns the current ambient temperature.
type Reader interface {
	Read(ctx context.Context) (physic.Temperature, error)
}

// Fixed always reports the same temperature. It stands in for a sensor on
// boards that have none.
type Fixed physic.Temperature

func (f Fixed) Read(ctx context.Context) (physic.Temperature, error) {
	return physic.Temperature(f), ctx.Err()
}

// FromCelsius converts whole degrees Celsius.
func FromCelsius(c int) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(c)*physic.Celsius
}

// Celsius converts t to whole degrees, rounding down.
func Celsius(t physic.Temperature) int {
	return int(math.Floor(float64(t-physic.ZeroCelsius) / float64(physic.Celsius)))
}

// bmeReader samples a BME280 or BMP280 on an I2C bus. The bus is opened for
// each read so the reader holds nothing between refreshes.
type bmeReader struct {
	bus  string
	addr uint16
	open func(name string) (i2c.BusCloser, error)
}

// NewI2CReader returns a Reader for a BME280/BMP280 at addr on the named
// i2creg bus. An empty bus name selects the first bus.
func NewI2CReader(bus string, addr uint16) Reader {
	return &bmeReader{bus: bus, addr: addr, open: openBus}
}

func openBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return i2creg.Open(name)
}

func (r *bmeReader) Read(ctx context.Context) (physic.Temperature, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	bus, err := r.open(r.bus)
	if err != nil {
		return 0, fmt.Errorf("thermo: open %q: %w", r.bus, err)
	}
	defer bus.Close()

	dev, err := bmxx80.NewI2C(bus, r.addr, &bmxx80.DefaultOpts)
	if err != nil {
		return 0, fmt.Errorf("thermo: %#x: %w", r.addr, err)
	}
	defer dev.Halt()

	var env physic.Env
	if err := dev.Sense(&env); err != nil {
		return 0, fmt.Errorf("thermo: sense: %w", err)
	}
	return env.Temperature, nil
}
