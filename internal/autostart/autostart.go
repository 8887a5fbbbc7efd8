// Package autostart installs the station as a systemd service so it starts
// at boot (system mode) or at login (user mode).
package autostart

import (
	"errors"
	"fmt"

	"github.com/coreos/go-systemd/v22/unit"
)

// ServiceName is the systemd unit name without suffix.
const ServiceName = "aerostat"

// ErrUnsupported is returned on platforms without systemd.
var ErrUnsupported = errors.New("autostart requires systemd")

// Mode determines whether the service is installed system-wide or per-user.
type Mode int

const (
	SystemMode Mode = iota // System-wide service (requires root)
	UserMode               // Per-user service
)

func (m Mode) String() string {
	switch m {
	case SystemMode:
		return "system"
	case UserMode:
		return "user"
	default:
		return "unknown"
	}
}

// ParseMode parses "system" or "user".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "system":
		return SystemMode, nil
	case "user":
		return UserMode, nil
	default:
		return 0, fmt.Errorf("invalid install mode %q (expected \"system\" or \"user\")", s)
	}
}

// Manager provides platform-specific autostart installation.
type Manager interface {
	IsInstalled() (bool, error)
	Install(execPath, configPath string) error
	Uninstall() error
	ServiceName() string
}

// Unit returns the service unit running execPath with configPath. The
// service notifies readiness and keeps a watchdog.
func Unit(mode Mode, execPath, configPath string) []*unit.UnitOption {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "Aerostat weather station"),
		unit.NewUnitOption("Unit", "After", "network-online.target"),
		unit.NewUnitOption("Unit", "Wants", "network-online.target"),

		unit.NewUnitOption("Service", "Type", "notify"),
		unit.NewUnitOption("Service", "ExecStart", fmt.Sprintf("%s run --config %s", execPath, configPath)),
		unit.NewUnitOption("Service", "Restart", "always"),
		unit.NewUnitOption("Service", "RestartSec", "10"),
		unit.NewUnitOption("Service", "WatchdogSec", "30"),
		unit.NewUnitOption("Service", "SyslogIdentifier", ServiceName),
		unit.NewUnitOption("Service", "NoNewPrivileges", "true"),
		unit.NewUnitOption("Service", "PrivateTmp", "true"),
	}
	if mode == SystemMode {
		// I2C device nodes are group-owned by i2c on most boards.
		opts = append(opts,
			unit.NewUnitOption("Service", "SupplementaryGroups", "i2c"),
			unit.NewUnitOption("Service", "ProtectSystem", "strict"),
			unit.NewUnitOption("Service", "ProtectHome", "true"),
			unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
		)
	} else {
		opts = append(opts, unit.NewUnitOption("Install", "WantedBy", "default.target"))
	}
	return opts
}
