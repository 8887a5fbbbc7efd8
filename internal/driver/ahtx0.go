package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Guliveer/aerostat/internal/source"
)

// AHT10/AHT20 commands.
const (
	AHTx0Addr = 0x38

	ahtCmdSoftReset = 0xBA
	ahtCmdCalibrate = 0xBE
	ahtCmdTrigger   = 0xAC

	ahtStatusBusy       = 0x80
	ahtStatusCalibrated = 0x08

	ahtResetDelay   = 20 * time.Millisecond
	ahtCalibDelay   = 10 * time.Millisecond
	ahtMeasureDelay = 80 * time.Millisecond
	ahtBusyRetries  = 5

	ahtFullScale = 1 << 20
)

var errAHTBusy = errors.New("ahtx0: measurement still busy")

// AHTx0 is the temperature and humidity sensor.
type AHTx0 struct {
	dev  *Device
	init initOnce
	mu   sync.Mutex
}

// NewAHTx0 creates the driver for the sensor at its fixed address.
func NewAHTx0(bus *Bus) *AHTx0 {
	return &AHTx0{dev: bus.Device(AHTx0Addr)}
}

// Initialize resets and calibrates the sensor.
func (a *AHTx0) Initialize(ctx context.Context) error {
	return a.init.do(func() error {
		if err := a.dev.Write(ahtCmdSoftReset); err != nil {
			return err
		}
		if err := a.dev.Wait(ctx, ahtResetDelay); err != nil {
			return err
		}
		if err := a.dev.Write(ahtCmdCalibrate, 0x08, 0x00); err != nil {
			return err
		}
		if err := a.dev.Wait(ctx, ahtCalibDelay); err != nil {
			return err
		}
		status, err := a.dev.Read(1)
		if err != nil {
			return err
		}
		if status[0]&ahtStatusCalibrated == 0 {
			return fmt.Errorf("ahtx0: sensor not calibrated (status 0x%02x)", status[0])
		}
		return nil
	})
}

// Measure triggers a conversion and returns temperature in °C and
// relative humidity in percent.
func (a *AHTx0) Measure(ctx context.Context) (temperature, humidity float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.dev.Write(ahtCmdTrigger, 0x33, 0x00); err != nil {
		return 0, 0, err
	}
	for i := 0; i < ahtBusyRetries; i++ {
		if err := a.dev.Wait(ctx, ahtMeasureDelay); err != nil {
			return 0, 0, err
		}
		b, err := a.dev.Read(6)
		if err != nil {
			return 0, 0, err
		}
		if b[0]&ahtStatusBusy == 0 {
			temperature, humidity = decodeAHT(b)
			return temperature, humidity, nil
		}
	}
	return 0, 0, errAHTBusy
}

func decodeAHT(b []byte) (celsius, rh float64) {
	rawH := uint32(b[1])<<12 | uint32(b[2])<<4 | uint32(b[3])>>4
	rawT := (uint32(b[3])&0x0F)<<16 | uint32(b[4])<<8 | uint32(b[5])
	return float64(rawT)*200/ahtFullScale - 50, float64(rawH) * 100 / ahtFullScale
}

// Temperature returns the temperature channel in °C.
func (a *AHTx0) Temperature(interval time.Duration) source.Sampler {
	return channel{
		init:     a.Initialize,
		interval: interval,
		read: func(ctx context.Context) (float64, error) {
			t, _, err := a.Measure(ctx)
			return t, err
		},
	}
}

// Humidity returns the relative humidity channel in percent.
func (a *AHTx0) Humidity(interval time.Duration) source.Sampler {
	return channel{
		init:     a.Initialize,
		interval: interval,
		read: func(ctx context.Context) (float64, error) {
			_, h, err := a.Measure(ctx)
			return h, err
		},
	}
}
