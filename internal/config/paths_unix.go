//go:build !windows

package config

import (
	"os"
	"path/filepath"
)

// UserPath is the per-user config file location.
func UserPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aerostat", "config.yaml")
}

// SystemPath is the system-wide config file location.
func SystemPath() string {
	return "/etc/aerostat/aerostat.yaml"
}

func configSearchPaths() []string {
	return []string{UserPath(), SystemPath()}
}
