// Package platform provides board access for the instrument drivers.
// Each supported OS implements the Platform interface; boards without an
// I2C controller get a stub whose buses never open.
package platform

import (
	"errors"

	"periph.io/x/conn/v3/i2c"
)

// ErrUnsupported is returned when the platform has no I2C support.
var ErrUnsupported = errors.New("i2c is not supported on this platform")

// Platform opens hardware buses.
type Platform interface {
	// OpenI2C opens an I2C bus by name or number ("1", "/dev/i2c-1").
	// An empty name selects the first bus found.
	OpenI2C(name string) (i2c.BusCloser, error)

	// Name returns the platform name (linux, stub).
	Name() string
}
