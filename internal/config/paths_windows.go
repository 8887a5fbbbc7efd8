//go:build windows

package config

import (
	"os"
	"path/filepath"
)

// UserPath is the per-user config file location.
func UserPath() string {
	return filepath.Join(os.Getenv("LOCALAPPDATA"), "Aerostat", "config.yaml")
}

// SystemPath is the system-wide config file location.
func SystemPath() string {
	return filepath.Join(os.Getenv("ProgramData"), "Aerostat", "aerostat.yaml")
}

func configSearchPaths() []string {
	return []string{UserPath(), SystemPath()}
}
