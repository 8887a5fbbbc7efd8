// Package service integrates with the systemd service manager: readiness
// and shutdown notifications and the watchdog keepalive. Outside systemd
// every call is a no-op.
package service

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
)

// Notifier reports the process lifecycle to systemd.
type Notifier struct {
	logger   *zap.Logger
	notify   func(state string) (bool, error)
	watchdog func() (time.Duration, error)
}

// New creates a notifier talking to $NOTIFY_SOCKET.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		watchdog: func() (time.Duration, error) {
			return daemon.SdWatchdogEnabled(false)
		},
	}
}

// Ready tells systemd that startup finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown began.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) {
	n.send("STATUS=" + msg)
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.logger.Warn("Failed to notify systemd", zap.String("state", state), zap.Error(err))
	case sent:
		n.logger.Debug("Notified systemd", zap.String("state", state))
	}
}

// Watchdog pings the systemd watchdog at half its timeout until ctx is
// cancelled. It returns at once when the watchdog is not enabled.
func (n *Notifier) Watchdog(ctx context.Context) error {
	interval, err := n.watchdog()
	if err != nil {
		n.logger.Warn("Failed to read watchdog settings", zap.Error(err))
		return nil
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	n.logger.Info("Watchdog enabled", zap.Duration("timeout", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
