// Host CPU temperature, read through gopsutil's thermal sensors. The
// hottest matching sensor represents the package temperature.

package driver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/Guliveer/aerostat/internal/models"
	"github.com/Guliveer/aerostat/internal/source"
)

// Sensor name substrings used to identify CPU temperature sensors.
// Linux:  coretemp_core_0_input, k10temp_tctl_input, cpu_thermal_input (Raspberry Pi)
// macOS:  TC0P (CPU proximity), TC0D (CPU die), TCXC (CPU core)
var cpuSensorKeys = []string{
	"cpu", "core", "package",
	"tctl", "tdie", "k10temp", "coretemp",
	"tc0p", "tc0d", "tcxc",
	"acpitz", "zenpower", "soc_thermal",
}

// minValidTemp is the minimum temperature (°C) considered valid.
const minValidTemp = 0.0

// maxValidTemp is the maximum temperature (°C) considered valid.
// Readings above this are likely sensor errors.
const maxValidTemp = 150.0

var errNoCPUSensor = errors.New("no CPU temperature sensor found")

// HostTemperature samples the hottest CPU thermal sensor.
type HostTemperature struct {
	sensors  func(ctx context.Context) ([]host.TemperatureStat, error)
	interval time.Duration
	logger   *zap.Logger
}

// NewHostTemperature creates the host sampler. Pass nil for no logging.
func NewHostTemperature(interval time.Duration, logger *zap.Logger) *HostTemperature {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostTemperature{
		sensors:  host.SensorsTemperaturesWithContext,
		interval: interval,
		logger:   logger,
	}
}

var _ source.Sampler = (*HostTemperature)(nil)

// Initialize fails when the host exposes no usable CPU sensor.
func (h *HostTemperature) Initialize(ctx context.Context) error {
	t, err := h.cpuTemperature(ctx)
	if err != nil {
		return err
	}
	h.logger.Debug("CPU temperature sensor found", zap.Float64("temp_c", t))
	return nil
}

// Interval returns the polling interval.
func (h *HostTemperature) Interval() time.Duration {
	if h.interval <= 0 {
		return source.DefaultInterval
	}
	return h.interval
}

// Read returns the current CPU temperature in °C.
func (h *HostTemperature) Read(ctx context.Context) (models.Reading, error) {
	t, err := h.cpuTemperature(ctx)
	if err != nil {
		return models.Reading{}, err
	}
	return models.Scalar(t), nil
}

func (h *HostTemperature) cpuTemperature(ctx context.Context) (float64, error) {
	temps, err := h.sensors(ctx)
	if err != nil && len(temps) == 0 {
		// gopsutil returns partial results alongside warnings.
		return 0, err
	}

	var cpuMax float64
	found := false
	for _, t := range temps {
		if !isValidTemperature(t.Temperature) {
			continue
		}
		if matchesSensor(strings.ToLower(t.SensorKey), cpuSensorKeys) {
			if !found || t.Temperature > cpuMax {
				cpuMax = t.Temperature
				found = true
			}
		}
	}
	if !found {
		return 0, errNoCPUSensor
	}
	return cpuMax, nil
}

// matchesSensor checks if the sensor name contains any of the given key substrings.
func matchesSensor(name string, keys []string) bool {
	for _, key := range keys {
		if strings.Contains(name, key) {
			return true
		}
	}
	return false
}

// isValidTemperature returns true if the temperature is within a plausible range.
func isValidTemperature(temp float64) bool {
	return temp > minValidTemp && temp <= maxValidTemp
}
