// Package driver holds the instrument drivers behind source.Sampler: the
// I2C weather sensors, the host CPU temperature and simulated instruments.
// Register access and calibration math live here and nowhere else.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

var errBusClosed = errors.New("i2c bus closed")

// Bus lazily opens an I2C bus shared by several devices and serializes
// transactions on it. Every device on a bus that failed to open reports
// the same error from Initialize.
type Bus struct {
	open func() (i2c.BusCloser, error)

	openOnce sync.Once
	bus      i2c.BusCloser
	openErr  error

	mu sync.Mutex

	// wait pauses for a conversion; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewBus creates a bus that calls open on first use.
func NewBus(open func() (i2c.BusCloser, error)) *Bus {
	return &Bus{open: open, wait: sleepCtx}
}

func (b *Bus) get() (i2c.Bus, error) {
	b.openOnce.Do(func() {
		b.bus, b.openErr = b.open()
	})
	return b.bus, b.openErr
}

// Close closes the underlying bus if it was opened. A bus that was never
// used is not opened afterwards.
func (b *Bus) Close() error {
	b.openOnce.Do(func() { b.openErr = errBusClosed })
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return nil
	}
	return b.bus.Close()
}

// Device returns a handle for the device at addr.
func (b *Bus) Device(addr uint16) *Device {
	return &Device{bus: b, addr: addr}
}

// Device is a single peripheral on a Bus.
type Device struct {
	bus  *Bus
	addr uint16
}

// Addr returns the 7-bit device address.
func (d *Device) Addr() uint16 { return d.addr }

// Tx writes w then reads len(r) bytes in one transaction.
func (d *Device) Tx(w, r []byte) error {
	bus, err := d.bus.get()
	if err != nil {
		return err
	}
	d.bus.mu.Lock()
	defer d.bus.mu.Unlock()
	if err := bus.Tx(d.addr, w, r); err != nil {
		return fmt.Errorf("i2c 0x%02x: %w", d.addr, err)
	}
	return nil
}

// Write sends raw bytes.
func (d *Device) Write(w ...byte) error {
	return d.Tx(w, nil)
}

// Read reads n raw bytes.
func (d *Device) Read(n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.Tx(nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteReg writes one register.
func (d *Device) WriteReg(reg, value byte) error {
	return d.Tx([]byte{reg, value}, nil)
}

// ReadReg reads one register.
func (d *Device) ReadReg(reg byte) (byte, error) {
	r, err := d.ReadRegs(reg, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

// ReadRegs reads n consecutive registers starting at reg.
func (d *Device) ReadRegs(reg byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.Tx([]byte{reg}, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Wait pauses for a conversion or reset to complete.
func (d *Device) Wait(ctx context.Context, dur time.Duration) error {
	return d.bus.wait(ctx, dur)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
