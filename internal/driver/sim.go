package driver

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Guliveer/aerostat/internal/models"
	"github.com/Guliveer/aerostat/internal/source"
)

// ErrSimulatedRead is returned by a simulated instrument on an injected failure.
var ErrSimulatedRead = errors.New("simulated read failure")

// SimProfile describes a simulated instrument as a bounded random walk.
type SimProfile struct {
	Start float64
	Step  float64 // standard deviation of one step
	Min   float64
	Max   float64
	// FailureRate is the probability in [0, 1] of a read failing.
	FailureRate float64
}

// Profiles for the station's instruments in sim mode.
var (
	SimTemperature = SimProfile{Start: 21, Step: 0.05, Min: -20, Max: 45}
	SimPressure    = SimProfile{Start: 1013.25, Step: 0.08, Min: 950, Max: 1060}
	SimHumidity    = SimProfile{Start: 45, Step: 0.2, Min: 0, Max: 100}
	SimLight       = SimProfile{Start: 300, Step: 4, Min: 0, Max: 40000}
	SimUVIndex     = SimProfile{Start: 2, Step: 0.02, Min: 0, Max: 11}
	SimCPU         = SimProfile{Start: 48, Step: 0.3, Min: 30, Max: 85}
)

// Sim is a simulated scalar instrument. Not safe for concurrent reads;
// each source has a single polling loop.
type Sim struct {
	profile  SimProfile
	interval time.Duration
	value    float64
	step     distuv.Normal
	fail     distuv.Uniform
}

var _ source.Sampler = (*Sim)(nil)

// NewSim creates a simulated instrument seeded with seed.
func NewSim(profile SimProfile, interval time.Duration, seed uint64) *Sim {
	src := rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)
	return &Sim{
		profile:  profile,
		interval: interval,
		value:    profile.Start,
		step:     distuv.Normal{Mu: 0, Sigma: profile.Step, Src: src},
		fail:     distuv.Uniform{Min: 0, Max: 1, Src: src},
	}
}

// Initialize always succeeds.
func (s *Sim) Initialize(context.Context) error { return nil }

// Interval returns the polling interval.
func (s *Sim) Interval() time.Duration {
	if s.interval <= 0 {
		return source.DefaultInterval
	}
	return s.interval
}

// Read advances the walk by one step.
func (s *Sim) Read(context.Context) (models.Reading, error) {
	if s.profile.FailureRate > 0 && s.fail.Rand() < s.profile.FailureRate {
		return models.Reading{}, ErrSimulatedRead
	}
	if s.profile.Step > 0 {
		s.value += s.step.Rand()
	}
	s.value = math.Min(math.Max(s.value, s.profile.Min), s.profile.Max)
	return models.Scalar(s.value), nil
}

// SimVOC stands in for the SGP40 combiner. The index rises with humidity
// and temperature away from 22 °C and 45 %.
type SimVOC struct {
	noise distuv.Normal
}

var _ source.Combiner = (*SimVOC)(nil)

// NewSimVOC creates the simulated VOC combiner.
func NewSimVOC(seed uint64) *SimVOC {
	return &SimVOC{noise: distuv.Normal{Mu: 0, Sigma: 3, Src: rand.NewPCG(seed, seed+1)}}
}

// Initialize always succeeds.
func (v *SimVOC) Initialize(context.Context) error { return nil }

// Combine returns a plausible VOC index for temperature and humidity.
func (v *SimVOC) Combine(_ context.Context, temperature, humidity float64) (float64, error) {
	index := 100 + 2*math.Abs(temperature-22) + 0.8*(humidity-45) + v.noise.Rand()
	return math.Min(math.Max(index, 0), vocMaxIndex), nil
}
