//go:build linux

package autostart

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
)

const systemUnitDir = "/etc/systemd/system"

// linuxManager implements Manager for Linux using systemd.
type linuxManager struct {
	mode    Mode
	unitDir string
	run     func(args ...string) error
}

// New returns a Manager that installs a system-wide systemd service.
func New() Manager {
	return NewWithMode(SystemMode)
}

// NewWithMode returns a Manager for the given mode. User mode installs
// into ~/.config/systemd/user and drives systemctl --user.
func NewWithMode(mode Mode) Manager {
	dir := systemUnitDir
	if mode == UserMode {
		if cfg, err := os.UserConfigDir(); err == nil {
			dir = filepath.Join(cfg, "systemd", "user")
		}
	}
	return &linuxManager{mode: mode, unitDir: dir, run: systemctl(mode)}
}

func systemctl(mode Mode) func(args ...string) error {
	return func(args ...string) error {
		if mode == UserMode {
			args = append([]string{"--user"}, args...)
		}
		out, err := exec.Command("systemctl", args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("running systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}

// ServiceName returns the systemd service name.
func (l *linuxManager) ServiceName() string { return ServiceName }

func (l *linuxManager) unitPath() string {
	return filepath.Join(l.unitDir, ServiceName+".service")
}

// IsInstalled checks whether the systemd unit file exists.
func (l *linuxManager) IsInstalled() (bool, error) {
	_, err := os.Stat(l.unitPath())
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking unit file: %w", err)
	}
	return true, nil
}

// Install writes the systemd unit file, reloads the daemon, enables and starts the service.
func (l *linuxManager) Install(execPath, configPath string) error {
	if err := CheckElevation(l.mode); err != nil {
		return err
	}
	if err := os.MkdirAll(l.unitDir, 0755); err != nil {
		return fmt.Errorf("creating unit directory: %w", err)
	}

	content, err := io.ReadAll(unit.Serialize(Unit(l.mode, execPath, configPath)))
	if err != nil {
		return fmt.Errorf("rendering unit file: %w", err)
	}
	if err := os.WriteFile(l.unitPath(), content, 0644); err != nil {
		return fmt.Errorf("writing unit file: %w", err)
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", ServiceName},
		{"start", ServiceName},
	} {
		if err := l.run(args...); err != nil {
			return err
		}
	}
	return nil
}

// Uninstall stops, disables, and removes the systemd service.
func (l *linuxManager) Uninstall() error {
	// Best-effort stop and disable; ignore errors if the service is already inactive.
	_ = l.run("stop", ServiceName)
	_ = l.run("disable", ServiceName)

	if err := os.Remove(l.unitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}

	_ = l.run("daemon-reload")
	return nil
}

// CheckElevation verifies the process has root privileges when needed.
// Returns nil if mode is UserMode or if running as root.
func CheckElevation(mode Mode) error {
	if mode == UserMode {
		return nil
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("system-wide installation requires root privileges\n\nRun with sudo:\n  sudo %s install", os.Args[0])
	}
	return nil
}
