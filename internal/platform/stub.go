//go:build !linux

// Stub Platform implementation for non-Linux builds.
// Every I2C source fails to initialize; simulated and host sources still work.
package platform

import "periph.io/x/conn/v3/i2c"

// StubPlatform is a Platform without any buses.
type StubPlatform struct{}

// New creates a stub platform instance for non-Linux systems.
func New() Platform {
	return &StubPlatform{}
}

// Name returns the platform identifier.
func (p *StubPlatform) Name() string { return "stub" }

// OpenI2C always fails with ErrUnsupported.
func (p *StubPlatform) OpenI2C(string) (i2c.BusCloser, error) {
	return nil, ErrUnsupported
}
