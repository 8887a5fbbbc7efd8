package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/Guliveer/aerostat/internal/models"
)

// playback returns a bus replaying ops with conversion waits skipped.
func playback(t *testing.T, ops ...i2ctest.IO) *Bus {
	t.Helper()
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	b := NewBus(func() (i2c.BusCloser, error) { return pb, nil })
	b.wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() {
		assert.NoError(t, b.Close(), "all expected transactions were consumed")
	})
	return b
}

func scalar(t *testing.T, r models.Reading) float64 {
	t.Helper()
	v, ok := r.Scalar()
	require.True(t, ok, "reading %s is not scalar", r)
	return v
}

func TestBusOpenFailureReachesEveryDevice(t *testing.T) {
	opens := 0
	b := NewBus(func() (i2c.BusCloser, error) {
		opens++
		return nil, errors.New("/dev/i2c-1: no such file or directory")
	})
	aht := NewAHTx0(b)
	ctx := context.Background()

	err := aht.Temperature(0).Initialize(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
	assert.Equal(t, err, aht.Humidity(0).Initialize(ctx))
	assert.Error(t, NewTSL2561(b).Initialize(ctx))
	assert.Equal(t, 1, opens)
	assert.NoError(t, b.Close())
}

func TestMPL3115A2(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x0C}, R: []byte{0xC4}},
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x26, 0x20}},
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x13, 0x07}},
		// pressure read: one status poll before data is ready
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x26, 0x22}},
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x00}, R: []byte{0x00}},
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x00}, R: []byte{0x0E}},
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x01}, R: []byte{0x62, 0xF3, 0x40, 0x15, 0x80}},
		// temperature read
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x26, 0x22}},
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x00}, R: []byte{0x06}},
		i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x01}, R: []byte{0x62, 0xF3, 0x40, 0xFA, 0xC0}},
	)
	mpl := NewMPL3115A2(b)
	pressure, temperature := mpl.Pressure(0), mpl.Temperature(0)
	ctx := context.Background()

	require.NoError(t, pressure.Initialize(ctx))
	require.NoError(t, temperature.Initialize(ctx), "second channel reuses the first initialization")

	r, err := pressure.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1013.25, scalar(t, r), 1e-9)

	r, err = temperature.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, -5.25, scalar(t, r), 1e-9)
}

func TestMPL3115A2WrongChip(t *testing.T) {
	b := playback(t, i2ctest.IO{Addr: MPL3115A2Addr, W: []byte{0x0C}, R: []byte{0xEE}})
	err := NewMPL3115A2(b).Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chip id 0xee")
}

func TestAHTx0(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: AHTx0Addr, W: []byte{0xBA}},
		i2ctest.IO{Addr: AHTx0Addr, W: []byte{0xBE, 0x08, 0x00}},
		i2ctest.IO{Addr: AHTx0Addr, R: []byte{0x18}},
		// humidity read, busy on the first poll
		i2ctest.IO{Addr: AHTx0Addr, W: []byte{0xAC, 0x33, 0x00}},
		i2ctest.IO{Addr: AHTx0Addr, R: []byte{0x98, 0, 0, 0, 0, 0}},
		i2ctest.IO{Addr: AHTx0Addr, R: []byte{0x1C, 0x80, 0x00, 0x06, 0x00, 0x00}},
		// temperature read
		i2ctest.IO{Addr: AHTx0Addr, W: []byte{0xAC, 0x33, 0x00}},
		i2ctest.IO{Addr: AHTx0Addr, R: []byte{0x1C, 0x80, 0x00, 0x06, 0x00, 0x00}},
	)
	aht := NewAHTx0(b)
	temperature, humidity := aht.Temperature(0), aht.Humidity(0)
	ctx := context.Background()

	require.NoError(t, temperature.Initialize(ctx))
	require.NoError(t, humidity.Initialize(ctx))

	r, err := humidity.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, scalar(t, r), 1e-9)

	r, err = temperature.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, scalar(t, r), 1e-9)
}

func TestAHTx0NotCalibrated(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: AHTx0Addr, W: []byte{0xBA}},
		i2ctest.IO{Addr: AHTx0Addr, W: []byte{0xBE, 0x08, 0x00}},
		i2ctest.IO{Addr: AHTx0Addr, R: []byte{0x10}},
	)
	err := NewAHTx0(b).Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not calibrated")
}

func TestSGP40(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: SGP40Addr, W: []byte{0x28, 0x0E}},
		i2ctest.IO{Addr: SGP40Addr, R: []byte{0xD4, 0x00, 0xC6}},
		// 25 °C and 50 % encode as the datasheet's default compensation words
		i2ctest.IO{Addr: SGP40Addr, W: []byte{0x26, 0x0F, 0x80, 0x00, 0xA2, 0x66, 0x66, 0x93}},
		i2ctest.IO{Addr: SGP40Addr, R: []byte{0x7D, 0x00, 0xFA}},
	)
	sgp := NewSGP40(b)
	ctx := context.Background()
	require.NoError(t, sgp.Initialize(ctx))

	index, err := sgp.Combine(ctx, 25, 50)
	require.NoError(t, err)
	assert.Zero(t, index, "index is 0 while the baseline is learned")
	assert.Equal(t, 1, sgp.index.Samples())
}

func TestSGP40CRCMismatch(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: SGP40Addr, W: []byte{0x28, 0x0E}},
		i2ctest.IO{Addr: SGP40Addr, R: []byte{0xD4, 0x00, 0x00}},
	)
	err := NewSGP40(b).Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crc mismatch")
}

func TestSensirionCRC(t *testing.T) {
	assert.Equal(t, byte(0x92), sensirionCRC([]byte{0xBE, 0xEF}))
	assert.Equal(t, uint16(0x8000), humidityTicks(50))
	assert.Equal(t, uint16(0x6666), temperatureTicks(25))
	assert.Equal(t, uint16(0xFFFF), humidityTicks(140), "humidity is clamped")
	assert.Equal(t, uint16(0), temperatureTicks(-60), "temperature is clamped")
}

func TestTSL2561(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: TSL2561Addr, W: []byte{0x80, 0x03}},
		i2ctest.IO{Addr: TSL2561Addr, W: []byte{0x80}, R: []byte{0x03}},
		i2ctest.IO{Addr: TSL2561Addr, W: []byte{0x8A}, R: []byte{0x50}},
		i2ctest.IO{Addr: TSL2561Addr, W: []byte{0x81, 0x02}},
		i2ctest.IO{Addr: TSL2561Addr, W: []byte{0xAC}, R: []byte{0xE8, 0x03}},
		i2ctest.IO{Addr: TSL2561Addr, W: []byte{0xAE}, R: []byte{0x26, 0x02}},
	)
	s := NewTSL2561(b).Sampler(0)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, time.Second, s.Interval())

	r, err := s.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 85.6, scalar(t, r), 1e-6)
}

func TestComputeLux(t *testing.T) {
	lux, err := computeLux(1000, 200)
	require.NoError(t, err)
	assert.InDelta(t, 382.179, lux, 1e-3)

	lux, err = computeLux(1000, 1400)
	require.NoError(t, err)
	assert.Zero(t, lux, "infrared dominated light reads as dark")

	_, err = computeLux(65535, 100)
	assert.ErrorIs(t, err, errTSLSaturated)

	_, err = computeLux(0, 0)
	assert.ErrorIs(t, err, errTSLDark)
}

func TestLTR390(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x06}, R: []byte{0xB2}},
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x05, 0x04}},
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x04, 0x04}},
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x00, 0x0A}},
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x10}, R: []byte{0xF8, 0x11, 0xF0}},
	)
	s := NewLTR390(b).Sampler(2 * time.Second)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, 2*time.Second, s.Interval())

	r, err := s.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, scalar(t, r), 1e-9, "upper nibble of the high byte is ignored")
}

func TestReadErrorIsReturned(t *testing.T) {
	b := playback(t,
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x06}, R: []byte{0xB2}},
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x05, 0x04}},
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x04, 0x04}},
		i2ctest.IO{Addr: LTR390Addr, W: []byte{0x00, 0x0A}},
	)
	s := NewLTR390(b).Sampler(0)
	require.NoError(t, s.Initialize(context.Background()))

	// The playback has no transaction left, so the read fails like a NAK would.
	_, err := s.Read(context.Background())
	assert.Error(t, err)
}
