// Package station assembles the weather station's fixed set of sources
// from configuration: the I2C instruments (or their simulated stand-ins),
// the derived VOC index and the host CPU temperature.
package station

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"

	"github.com/Guliveer/aerostat/internal/config"
	"github.com/Guliveer/aerostat/internal/driver"
	"github.com/Guliveer/aerostat/internal/models"
	"github.com/Guliveer/aerostat/internal/platform"
	"github.com/Guliveer/aerostat/internal/source"
)

// Source names. They are the tag values written to the sink.
const (
	MPLTemperature  = "MPLTemperatureSensor"
	MPLPressure     = "MPLPressureSensor"
	AHTTemperature  = "AHTTemperatureSensor"
	AHTHumidity     = "AHTHumiditySensor"
	SGP40           = "SGP40Sensor"
	TSL2561         = "TSL2561Sensor"
	LTR390          = "LTR390Sensor"
	HostTemperature = "HostTemperatureSensor"
)

// Station holds the assembled sources and the bus they share.
type Station struct {
	registry *source.Registry
	bus      *driver.Bus
}

// Option configures Build.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock sets the clock every source polls on.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// instruments produces the samplers for one sensor mode.
type instruments struct {
	mplPressure, mplTemperature source.Sampler
	ahtTemperature, ahtHumidity source.Sampler
	voc                         source.Combiner
	light, uv, cpu              source.Sampler
}

// Build registers the enabled sources in their fixed order. Sources are
// not initialized here; the scheduler does that on start.
func Build(cfg *config.Config, plat platform.Platform, logger *zap.Logger, opts ...Option) (*Station, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	st := &Station{registry: source.NewRegistry(logger)}
	poll := cfg.Schedule.PollInterval.Duration

	var inst instruments
	if cfg.Sensors.Mode == config.ModeSim {
		inst = simInstruments(poll)
	} else {
		st.bus = driver.NewBus(func() (i2c.BusCloser, error) {
			return plat.OpenI2C(cfg.Sensors.I2CBus)
		})
		inst = i2cInstruments(st.bus, poll)
		inst.cpu = driver.NewHostTemperature(poll, logger)
	}

	srcOpts := []source.Option{source.WithLogger(logger), source.WithClock(o.clock)}
	add := func(name string, sampler source.Sampler) (*source.Source, error) {
		src := source.New(name, models.ShapeScalar, sampler, srcOpts...)
		return src, st.registry.Register(src)
	}

	if cfg.Sensors.MPL3115A2 {
		if _, err := add(MPLTemperature, inst.mplTemperature); err != nil {
			return nil, err
		}
		if _, err := add(MPLPressure, inst.mplPressure); err != nil {
			return nil, err
		}
	}

	if cfg.Sensors.AHTx0 {
		temperature, err := add(AHTTemperature, inst.ahtTemperature)
		if err != nil {
			return nil, err
		}
		humidity, err := add(AHTHumidity, inst.ahtHumidity)
		if err != nil {
			return nil, err
		}
		if cfg.Sensors.SGP40 {
			derived := source.NewDerived(temperature, humidity, inst.voc,
				source.WithIntervals(poll, cfg.Schedule.DerivedBackoff.Duration))
			if _, err := add(SGP40, derived); err != nil {
				return nil, err
			}
		}
	} else if cfg.Sensors.SGP40 {
		logger.Warn("SGP40 needs the AHTx0 temperature and humidity sources, skipping")
	}

	if cfg.Sensors.TSL2561 {
		if _, err := add(TSL2561, inst.light); err != nil {
			return nil, err
		}
	}
	if cfg.Sensors.LTR390 {
		if _, err := add(LTR390, inst.uv); err != nil {
			return nil, err
		}
	}
	if cfg.Sensors.HostTemperature {
		if _, err := add(HostTemperature, inst.cpu); err != nil {
			return nil, err
		}
	}

	logger.Info("Station assembled",
		zap.String("mode", cfg.Sensors.Mode),
		zap.String("platform", plat.Name()),
		zap.Int("sources", len(st.registry.Sources())))
	return st, nil
}

func i2cInstruments(bus *driver.Bus, poll time.Duration) instruments {
	mpl := driver.NewMPL3115A2(bus)
	aht := driver.NewAHTx0(bus)
	return instruments{
		mplPressure:    mpl.Pressure(poll),
		mplTemperature: mpl.Temperature(poll),
		ahtTemperature: aht.Temperature(poll),
		ahtHumidity:    aht.Humidity(poll),
		voc:            driver.NewSGP40(bus),
		light:          driver.NewTSL2561(bus).Sampler(poll),
		uv:             driver.NewLTR390(bus).Sampler(poll),
	}
}

func simInstruments(poll time.Duration) instruments {
	return instruments{
		mplPressure:    driver.NewSim(driver.SimPressure, poll, 1),
		mplTemperature: driver.NewSim(driver.SimTemperature, poll, 2),
		ahtTemperature: driver.NewSim(driver.SimTemperature, poll, 3),
		ahtHumidity:    driver.NewSim(driver.SimHumidity, poll, 4),
		voc:            driver.NewSimVOC(5),
		light:          driver.NewSim(driver.SimLight, poll, 6),
		uv:             driver.NewSim(driver.SimUVIndex, poll, 7),
		cpu:            driver.NewSim(driver.SimCPU, poll, 8),
	}
}

// Registry returns the assembled sources.
func (s *Station) Registry() *source.Registry { return s.registry }

// Close releases the I2C bus, if one was opened.
func (s *Station) Close() error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Close()
}
