package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/notifications"
)

// serialMonitor watches udev netlink events for the motion controller's
// serial adapter. A mid-show cable wiggle shows up in the log and on the
// operator's phone instead of surfacing later as an opaque motion timeout.
type serialMonitor struct {
	logger   *slog.Logger
	notifier notifications.Service
	device   string

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newSerialMonitor(cfg *config.Config, logger *slog.Logger, notifier notifications.Service) *serialMonitor {
	device := strings.TrimSpace(cfg.Motion.SerialPort)
	if device == "" {
		return nil
	}
	return &serialMonitor{
		logger:   logging.NewComponentLogger(logger, "serial-monitor"),
		notifier: notifier,
		device:   device,
	}
}

// Start begins listening for udev netlink events. Failure to connect is
// non-fatal; hotplug awareness is a convenience, not a precondition.
func (m *serialMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; serial hotplug detection disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "controller attach/detach will not be reported"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("serial hotplug monitor started",
		logging.String(logging.FieldEventType, "serial_monitor_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *serialMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("serial hotplug monitor stopped",
		logging.String(logging.FieldEventType, "serial_monitor_stopped"),
	)
}

func (m *serialMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("serial hotplug monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "serial_monitor_error"),
				logging.String(logging.FieldImpact, "controller attach/detach may go unreported"),
			)
		}
	}
}

// buildMatcher matches tty add/remove events; the device filter happens in
// handleEvent because DEVNAME arrives inside the event environment.
func (m *serialMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

func (m *serialMonitor) handleEvent(uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" || devname != m.device {
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		m.logger.Info("motion controller attached",
			logging.String(logging.FieldEventType, "controller_attached"),
			logging.String("device", devname),
		)
		m.notifier.NotifyControllerAttached(devname)
	case netlink.REMOVE:
		logging.WarnWithContext(m.logger, "motion controller detached", "controller_detached",
			logging.String("device", devname),
			logging.String(logging.FieldErrorHint, "check the USB serial cable"),
			logging.String(logging.FieldImpact, "pours will fail until the controller returns"),
		)
		m.notifier.NotifyControllerDetached(devname)
	}
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			return "/dev/" + devname
		}
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
