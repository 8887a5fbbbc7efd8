//go:build !linux

package autostart

type unsupportedManager struct{}

// New returns a Manager that always fails with ErrUnsupported.
func New() Manager { return unsupportedManager{} }

// NewWithMode returns a Manager that always fails with ErrUnsupported.
func NewWithMode(Mode) Manager { return unsupportedManager{} }

func (unsupportedManager) IsInstalled() (bool, error)   { return false, nil }
func (unsupportedManager) Install(string, string) error { return ErrUnsupported }
func (unsupportedManager) Uninstall() error             { return ErrUnsupported }
func (unsupportedManager) ServiceName() string          { return ServiceName }

// CheckElevation is a no-op without systemd.
func CheckElevation(Mode) error { return nil }
