//go:build linux

package platform

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// LinuxPlatform opens buses through periph's sysfs drivers.
type LinuxPlatform struct {
	initOnce sync.Once
	initErr  error
}

// New creates the Linux platform. Host drivers are loaded on first use.
func New() Platform {
	return &LinuxPlatform{}
}

// Name returns the platform identifier.
func (p *LinuxPlatform) Name() string { return "linux" }

// OpenI2C loads the host drivers once and opens the named bus.
func (p *LinuxPlatform) OpenI2C(name string) (i2c.BusCloser, error) {
	p.initOnce.Do(func() {
		_, p.initErr = host.Init()
	})
	if p.initErr != nil {
		return nil, fmt.Errorf("load host drivers: %w", p.initErr)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return bus, nil
}
