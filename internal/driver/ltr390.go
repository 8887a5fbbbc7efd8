package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/Guliveer/aerostat/internal/source"
)

// LTR390 registers.
const (
	LTR390Addr = 0x53

	ltrRegMainCtrl = 0x00
	ltrRegMeasRate = 0x04
	ltrRegGain     = 0x05
	ltrRegPartID   = 0x06
	ltrRegUVSData  = 0x10

	ltrPartID = 0x0B

	// UVS mode, sensor enabled.
	ltrEnableUVS = 0x0A
	// 18x gain.
	ltrGain18 = 0x04
	// 20-bit resolution, 500 ms rate.
	ltrRate = 0x04

	// Counts per UV index unit at 18x gain and 20-bit resolution.
	ltrUVSensitivity = 2300
)

// LTR390 is the ultraviolet light sensor, reported as a UV index.
type LTR390 struct {
	dev *Device
}

// NewLTR390 creates the driver for the sensor at its fixed address.
func NewLTR390(bus *Bus) *LTR390 {
	return &LTR390{dev: bus.Device(LTR390Addr)}
}

// Initialize checks the part id and starts UV measurements.
func (l *LTR390) Initialize(context.Context) error {
	id, err := l.dev.ReadReg(ltrRegPartID)
	if err != nil {
		return err
	}
	if id>>4 != ltrPartID {
		return fmt.Errorf("ltr390: unexpected part id 0x%02x", id)
	}
	if err := l.dev.WriteReg(ltrRegGain, ltrGain18); err != nil {
		return err
	}
	if err := l.dev.WriteReg(ltrRegMeasRate, ltrRate); err != nil {
		return err
	}
	return l.dev.WriteReg(ltrRegMainCtrl, ltrEnableUVS)
}

// UVIndex reads the latest UVS conversion.
func (l *LTR390) UVIndex(context.Context) (float64, error) {
	b, err := l.dev.ReadRegs(ltrRegUVSData, 3)
	if err != nil {
		return 0, err
	}
	raw := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2]&0x0F)<<16
	return float64(raw) / ltrUVSensitivity, nil
}

// Sampler returns the UV index channel.
func (l *LTR390) Sampler(interval time.Duration) source.Sampler {
	return channel{init: l.Initialize, read: l.UVIndex, interval: interval}
}
