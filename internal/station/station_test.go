package station

import (
	"context"
	"errors"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3/i2c"

	"github.com/Guliveer/aerostat/internal/config"
	"github.com/Guliveer/aerostat/internal/source"
)

type fakePlatform struct {
	opened []string
}

func (p *fakePlatform) Name() string { return "fake" }

func (p *fakePlatform) OpenI2C(name string) (i2c.BusCloser, error) {
	p.opened = append(p.opened, name)
	return nil, errors.New("no i2c adapter")
}

func names(r *source.Registry) []string {
	var out []string
	for _, s := range r.Sources() {
		out = append(out, s.Name())
	}
	return out
}

func TestBuildSimAllSensors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sensors.Mode = config.ModeSim
	cfg.Sensors.LTR390 = true
	cfg.Sensors.HostTemperature = true

	plat := &fakePlatform{}
	st, err := Build(cfg, plat, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, []string{
		MPLTemperature, MPLPressure,
		AHTTemperature, AHTHumidity, SGP40,
		TSL2561, LTR390, HostTemperature,
	}, names(st.Registry()))
	assert.Empty(t, plat.opened, "sim mode never touches the bus")

	ready := st.Registry().InitializeAll(context.Background())
	assert.Equal(t, 8, ready)
}

func TestBuildI2CWithoutBus(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sensors.I2CBus = "1"

	plat := &fakePlatform{}
	st, err := Build(cfg, plat, zaptest.NewLogger(t))
	require.NoError(t, err)

	reg := st.Registry()
	assert.Equal(t, []string{
		MPLTemperature, MPLPressure,
		AHTTemperature, AHTHumidity, SGP40,
		TSL2561,
	}, names(reg))

	assert.Zero(t, reg.InitializeAll(context.Background()))
	for _, s := range reg.Sources() {
		assert.Equal(t, source.Failed, s.State(), s.Name())
	}
	assert.Equal(t, []string{"1"}, plat.opened, "the bus is opened once for every device")
	assert.NoError(t, st.Close())
}

func TestBuildSGP40NeedsAHT(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sensors.Mode = config.ModeSim
	cfg.Sensors.AHTx0 = false

	st, err := Build(cfg, &fakePlatform{}, nil)
	require.NoError(t, err)
	assert.NotContains(t, names(st.Registry()), SGP40)
}

func TestSimDerivedSourceFlows(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sensors.Mode = config.ModeSim
	mock := clock.NewMock()

	st, err := Build(cfg, &fakePlatform{}, nil, WithClock(mock))
	require.NoError(t, err)
	reg := st.Registry()
	reg.InitializeAll(context.Background())

	temperature, _ := reg.Lookup(AHTTemperature)
	humidity, _ := reg.Lookup(AHTHumidity)
	voc, _ := reg.Lookup(SGP40)
	ctx := context.Background()

	assert.ErrorIs(t, voc.Poll(ctx), source.ErrNoUpstreamData)

	require.NoError(t, temperature.Poll(ctx))
	require.NoError(t, humidity.Poll(ctx))
	require.NoError(t, voc.Poll(ctx))

	avg, ok := voc.DrainAverage()
	require.True(t, ok)
	index, _ := avg.Scalar()
	assert.InDelta(t, 100, index, 60)
	assert.Zero(t, temperature.Pending(), "the derived read drained its upstream")
}
