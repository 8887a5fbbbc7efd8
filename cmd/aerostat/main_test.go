package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/aerostat/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func noConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.yaml")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "aerostat dev\n", out)
}

func TestConfigCommandAppliesFlags(t *testing.T) {
	out, err := execute(t, "config", "--config", noConfig(t), "--sink-url", "http://influx.local:8086", "--sensor-mode", "sim")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "http://influx.local:8086", cfg.Sink.Influx.URL)
	assert.Equal(t, config.ModeSim, cfg.Sensors.Mode)
}

func TestConfigCommandWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aerostat.yaml")
	_, err := execute(t, "config", "--config", noConfig(t), "--write", path, "--log-level", "debug")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	_, err := execute(t, "config", "--config", noConfig(t), "--sensor-mode", "spi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestProbeSim(t *testing.T) {
	out, err := execute(t, "probe", "--config", noConfig(t), "--sensor-mode", "sim")
	require.NoError(t, err)
	assert.Contains(t, out, "MPLPressureSensor")
	assert.Contains(t, out, "SGP40Sensor")
	assert.Contains(t, out, "6 of 6 sources ready")
}

func TestInstallRejectsUnknownMode(t *testing.T) {
	_, err := execute(t, "install", "--mode", "global")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid install mode")
}

func TestEmbeddedConfigParses(t *testing.T) {
	cfg, err := config.LoadLayered(config.CLIOverrides{}, embeddedConfig, "")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
