package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Guliveer/aerostat/internal/source"
)

// MPL3115A2 register map.
const (
	MPL3115A2Addr = 0x60

	mplRegStatus    = 0x00
	mplRegOutPMSB   = 0x01
	mplRegWhoAmI    = 0x0C
	mplRegPTDataCfg = 0x13
	mplRegCtrl1     = 0x26

	mplWhoAmI = 0xC4

	// Barometer mode, 16x oversampling (about 66 ms per conversion).
	mplCtrlOS16 = 0x20
	mplCtrlOST  = 0x02

	mplDataFlags = 0x07
	mplStatusPTD = 0x06

	mplConversion = 70 * time.Millisecond
	mplPollStep   = 10 * time.Millisecond
	mplPollTries  = 10
)

// MPL3115A2 is the barometric pressure and temperature sensor. Each
// measurement triggers a one-shot conversion of both quantities.
type MPL3115A2 struct {
	dev  *Device
	init initOnce
	mu   sync.Mutex
}

// NewMPL3115A2 creates the driver for the sensor at its fixed address.
func NewMPL3115A2(bus *Bus) *MPL3115A2 {
	return &MPL3115A2{dev: bus.Device(MPL3115A2Addr)}
}

// Initialize checks the chip id and configures barometer mode.
func (m *MPL3115A2) Initialize(ctx context.Context) error {
	return m.init.do(func() error {
		id, err := m.dev.ReadReg(mplRegWhoAmI)
		if err != nil {
			return err
		}
		if id != mplWhoAmI {
			return fmt.Errorf("mpl3115a2: unexpected chip id 0x%02x", id)
		}
		if err := m.dev.WriteReg(mplRegCtrl1, mplCtrlOS16); err != nil {
			return err
		}
		return m.dev.WriteReg(mplRegPTDataCfg, mplDataFlags)
	})
}

// Measure runs one conversion and returns pressure in hPa and temperature in °C.
func (m *MPL3115A2) Measure(ctx context.Context) (pressure, temperature float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.dev.WriteReg(mplRegCtrl1, mplCtrlOS16|mplCtrlOST); err != nil {
		return 0, 0, err
	}
	if err := m.dev.Wait(ctx, mplConversion); err != nil {
		return 0, 0, err
	}
	for i := 0; ; i++ {
		status, err := m.dev.ReadReg(mplRegStatus)
		if err != nil {
			return 0, 0, err
		}
		if status&mplStatusPTD == mplStatusPTD {
			break
		}
		if i == mplPollTries {
			return 0, 0, fmt.Errorf("mpl3115a2: conversion not ready (status 0x%02x)", status)
		}
		if err := m.dev.Wait(ctx, mplPollStep); err != nil {
			return 0, 0, err
		}
	}

	b, err := m.dev.ReadRegs(mplRegOutPMSB, 5)
	if err != nil {
		return 0, 0, err
	}
	pressure, temperature = decodeMPL(b)
	return pressure, temperature, nil
}

// decodeMPL converts OUT_P (20-bit unsigned, Q18.2 Pa) and OUT_T
// (12-bit signed, Q8.4 °C).
func decodeMPL(b []byte) (hPa, celsius float64) {
	rawP := (uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])) >> 4
	rawT := int16(uint16(b[3])<<8|uint16(b[4])) >> 4
	return float64(rawP) / 400, float64(rawT) / 16
}

// Pressure returns the pressure channel in hPa.
func (m *MPL3115A2) Pressure(interval time.Duration) source.Sampler {
	return channel{
		init:     m.Initialize,
		interval: interval,
		read: func(ctx context.Context) (float64, error) {
			p, _, err := m.Measure(ctx)
			return p, err
		},
	}
}

// Temperature returns the temperature channel in °C.
func (m *MPL3115A2) Temperature(interval time.Duration) source.Sampler {
	return channel{
		init:     m.Initialize,
		interval: interval,
		read: func(ctx context.Context) (float64, error) {
			_, t, err := m.Measure(ctx)
			return t, err
		},
	}
}
