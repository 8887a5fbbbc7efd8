//go:build linux

package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeManager(t *testing.T, fail string) (*linuxManager, *[]string) {
	t.Helper()
	var calls []string
	return &linuxManager{
		mode:    UserMode,
		unitDir: filepath.Join(t.TempDir(), "systemd", "user"),
		run: func(args ...string) error {
			calls = append(calls, filepath.Join(args...))
			if len(args) > 0 && args[0] == fail {
				return errors.New("systemctl " + fail + " failed")
			}
			return nil
		},
	}, &calls
}

func TestInstallAndUninstall(t *testing.T) {
	m, calls := fakeManager(t, "")

	installed, err := m.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, m.Install("/opt/aerostat", "/opt/aerostat.yaml"))
	installed, err = m.IsInstalled()
	require.NoError(t, err)
	assert.True(t, installed)

	content, err := os.ReadFile(m.unitPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "ExecStart=/opt/aerostat run --config /opt/aerostat.yaml")
	assert.Equal(t, []string{"daemon-reload", "enable/aerostat", "start/aerostat"}, *calls)

	require.NoError(t, m.Uninstall())
	installed, err = m.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestInstallStopsOnSystemctlError(t *testing.T) {
	m, calls := fakeManager(t, "enable")
	err := m.Install("/opt/aerostat", "/opt/aerostat.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enable failed")
	assert.Equal(t, []string{"daemon-reload", "enable/aerostat"}, *calls)
}

func TestUninstallWhenMissing(t *testing.T) {
	m, _ := fakeManager(t, "stop")
	assert.NoError(t, m.Uninstall())
}
