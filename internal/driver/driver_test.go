package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVOCIndex(t *testing.T) {
	v := NewVOCIndex()
	for i := 0; i < vocBlackoutSamples; i++ {
		assert.Zero(t, v.Process(30000), "sample %d is inside the blackout", i)
	}

	steady := v.Process(30000)
	assert.InDelta(t, 100, steady, 1, "baseline air reads as 100")

	polluted := v.Process(29700)
	assert.Greater(t, polluted, 200.0, "a drop in raw signal raises the index")
	assert.LessOrEqual(t, polluted, vocMaxIndex)

	clean := v.Process(30400)
	assert.Less(t, clean, steady)
	assert.GreaterOrEqual(t, clean, 0.0)
}

func TestHostTemperature(t *testing.T) {
	h := NewHostTemperature(0, nil)
	h.sensors = func(context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{
			{SensorKey: "coretemp_core_0_input", Temperature: 51},
			{SensorKey: "coretemp_core_1_input", Temperature: 55.5},
			{SensorKey: "nvme_composite_input", Temperature: 70},
			{SensorKey: "coretemp_core_2_input", Temperature: 400},
		}, errors.New("warnings: could not read temp2")
	}
	ctx := context.Background()

	require.NoError(t, h.Initialize(ctx))
	r, err := h.Read(ctx)
	require.NoError(t, err)
	v, _ := r.Scalar()
	assert.Equal(t, 55.5, v, "hottest valid CPU sensor wins, others are ignored")
}

func TestHostTemperatureUnavailable(t *testing.T) {
	h := NewHostTemperature(0, nil)
	h.sensors = func(context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{{SensorKey: "nvme_composite_input", Temperature: 40}}, nil
	}
	assert.ErrorIs(t, h.Initialize(context.Background()), errNoCPUSensor)

	h.sensors = func(context.Context) ([]host.TemperatureStat, error) {
		return nil, errors.New("not implemented yet")
	}
	assert.EqualError(t, h.Initialize(context.Background()), "not implemented yet")
}

func TestSimStaysInBounds(t *testing.T) {
	s := NewSim(SimProfile{Start: 99, Step: 5, Min: 90, Max: 100}, 0, 42)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	for i := 0; i < 500; i++ {
		r, err := s.Read(ctx)
		require.NoError(t, err)
		v, ok := r.Scalar()
		require.True(t, ok)
		require.GreaterOrEqual(t, v, 90.0)
		require.LessOrEqual(t, v, 100.0)
	}
}

func TestSimIsDeterministicPerSeed(t *testing.T) {
	a := NewSim(SimTemperature, 0, 7)
	b := NewSim(SimTemperature, 0, 7)
	for i := 0; i < 20; i++ {
		ra, _ := a.Read(context.Background())
		rb, _ := b.Read(context.Background())
		assert.Equal(t, ra, rb)
	}
}

func TestSimFailures(t *testing.T) {
	s := NewSim(SimProfile{Start: 1, Max: 2, FailureRate: 1}, 0, 1)
	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrSimulatedRead)
}

func TestSimVOC(t *testing.T) {
	v := NewSimVOC(3)
	index, err := v.Combine(context.Background(), 22, 45)
	require.NoError(t, err)
	assert.InDelta(t, 100, index, 20)

	humid, err := v.Combine(context.Background(), 22, 95)
	require.NoError(t, err)
	assert.Greater(t, humid, index)
}
