package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Guliveer/aerostat/internal/source"
)

// TSL2561 registers. Every register access carries the command bit; word
// reads also set the word bit.
const (
	TSL2561Addr = 0x39

	tslCmd  = 0x80
	tslWord = 0x20

	tslRegControl = 0x00
	tslRegTiming  = 0x01
	tslRegID      = 0x0A
	tslRegData0   = 0x0C
	tslRegData1   = 0x0E

	tslPowerOn = 0x03
	tslPartNo  = 0x05

	// Gain 1x, 402 ms integration.
	tslTiming    = 0x02
	tslGainScale = 16
	tslClip      = 65000
)

var (
	errTSLSaturated = errors.New("tsl2561: sensor saturated")
	errTSLDark      = errors.New("tsl2561: no broadband signal")
)

// TSL2561 is the broadband and infrared light sensor, reported in lux.
type TSL2561 struct {
	dev *Device
}

// NewTSL2561 creates the driver for the sensor at its default address.
func NewTSL2561(bus *Bus) *TSL2561 {
	return &TSL2561{dev: bus.Device(TSL2561Addr)}
}

// Initialize powers the sensor on and checks its part number.
func (t *TSL2561) Initialize(context.Context) error {
	if err := t.dev.WriteReg(tslCmd|tslRegControl, tslPowerOn); err != nil {
		return err
	}
	ctrl, err := t.dev.ReadReg(tslCmd | tslRegControl)
	if err != nil {
		return err
	}
	if ctrl&tslPowerOn != tslPowerOn {
		return fmt.Errorf("tsl2561: power on not acknowledged (control 0x%02x)", ctrl)
	}
	id, err := t.dev.ReadReg(tslCmd | tslRegID)
	if err != nil {
		return err
	}
	if id>>4 != tslPartNo {
		return fmt.Errorf("tsl2561: unexpected part number 0x%x", id>>4)
	}
	return t.dev.WriteReg(tslCmd|tslRegTiming, tslTiming)
}

// Lux reads both channels and computes illuminance.
func (t *TSL2561) Lux(context.Context) (float64, error) {
	ch0, err := t.readChannel(tslRegData0)
	if err != nil {
		return 0, err
	}
	ch1, err := t.readChannel(tslRegData1)
	if err != nil {
		return 0, err
	}
	return computeLux(ch0, ch1)
}

func (t *TSL2561) readChannel(reg byte) (uint16, error) {
	b, err := t.dev.ReadRegs(tslCmd|tslWord|reg, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// computeLux applies the datasheet's piecewise approximation for the T,
// FN and CL packages, scaled from 16x gain to the 1x gain in use.
func computeLux(broadband, infrared uint16) (float64, error) {
	if broadband == 0 {
		return 0, errTSLDark
	}
	if broadband > tslClip || infrared > tslClip {
		return 0, errTSLSaturated
	}
	ch0, ch1 := float64(broadband), float64(infrared)
	ratio := ch1 / ch0

	var lux float64
	switch {
	case ratio <= 0.50:
		lux = 0.0304*ch0 - 0.062*ch0*math.Pow(ratio, 1.4)
	case ratio <= 0.61:
		lux = 0.0224*ch0 - 0.031*ch1
	case ratio <= 0.80:
		lux = 0.0128*ch0 - 0.0153*ch1
	case ratio <= 1.30:
		lux = 0.00146*ch0 - 0.00112*ch1
	}
	return lux * tslGainScale, nil
}

// Sampler returns the lux channel.
func (t *TSL2561) Sampler(interval time.Duration) source.Sampler {
	return channel{init: t.Initialize, read: t.Lux, interval: interval}
}
