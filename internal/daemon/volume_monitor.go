package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"shelf/internal/config"
	"shelf/internal/logging"
)

// volumeMonitor listens for udev netlink events and requests a scan when a
// removable volume appears. The scheduler's debounce window absorbs the
// burst of events a single attach produces.
type volumeMonitor struct {
	cfg     *config.Config
	logger  *slog.Logger
	onMount func(device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newVolumeMonitor(cfg *config.Config, logger *slog.Logger, onMount func(device string)) *volumeMonitor {
	if cfg == nil {
		return nil
	}
	return &volumeMonitor{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "volume-monitor"),
		onMount: onMount,
	}
}

// Start begins listening for udev netlink events. Connection failure is not
// fatal; manual and scheduled scans keep working without the monitor.
func (m *volumeMonitor) Start(ctx context.Context) error {
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
		m.logger.Warn("failed to connect to netlink socket; volume-attach scans unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "scans run on schedule and manual triggers only"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("volume monitor started",
		logging.String(logging.FieldEventType, "volume_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *volumeMonitor) Stop() {
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

	m.logger.Info("volume monitor stopped",
		logging.String(logging.FieldEventType, "volume_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *volumeMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *volumeMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
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
			m.logger.Warn("volume monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "volume_monitor_error"),
				logging.String(logging.FieldImpact, "volume-attach scans may be missed"),
			)
		}
	}
}

// buildMatcher selects block partition add events:
// SUBSYSTEM=block, DEVTYPE=partition, ACTION=add.
func (m *volumeMonitor) buildMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition",
		},
	})
	return rules
}

func (m *volumeMonitor) handleEvent(uevent netlink.UEvent) {
	device := extractDeviceName(uevent)
	if device == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	m.logger.Info("volume attached",
		logging.String(logging.FieldEventType, "volume_attached"),
		logging.String("device", device),
	)

	if m.onMount != nil {
		m.onMount(device)
	}
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if strings.HasPrefix(devname, "/") {
			return devname
		}
		return "/dev/" + devname
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
