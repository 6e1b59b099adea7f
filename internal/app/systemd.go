package app

import (
	"net"

	"github.com/coreos/go-systemd/v22/daemon"

	"nebula-gateway/pkg/logging"
)

// notifyReady tells systemd the listener is up when running under a
// Type=notify unit. Outside systemd it does nothing.
func notifyReady(addr net.Addr) {
	sdNotify(daemon.SdNotifyReady)
	logging.Debug("Bootstrap", "Ready on %s", addr)
}

func notifyStopping() {
	sdNotify(daemon.SdNotifyStopping)
}

func sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Bootstrap", "systemd notification %s failed: %v", state, err)
		return
	}
	if sent {
		logging.Debug("Bootstrap", "Sent %s to systemd", state)
	}
}
