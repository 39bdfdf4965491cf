package events

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/bus"
)

// Logger defines the logging interface used by the Monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Monitor probes the network link and mirrors it into a Group. Each
// transition is broadcast as a LinkState command to the system group.
type Monitor struct {
	prober   Prober
	group    *Group
	system   string
	interval time.Duration
	ep       *bus.Endpoint
	logger   Logger

	known bool
	up    bool
}

// NewMonitor creates a monitor routed through router.
func NewMonitor(router bus.Router, prober Prober, group *Group, systemGroup string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		prober:   prober,
		group:    group,
		system:   systemGroup,
		interval: interval,
		ep:       bus.NewEndpoint(router, nil),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// Start connects the monitor's endpoint.
func (m *Monitor) Start() error {
	if !m.ep.Initialize() {
		return bus.ErrNotConnected
	}
	return nil
}

// Run probes every interval until ctx is cancelled, then closes the endpoint.
func (m *Monitor) Run(ctx context.Context) {
	defer m.ep.Close()

	for ctx.Err() == nil {
		m.Check(ctx)
		// Nothing is addressed to the monitor; waiting on its mailbox keeps
		// relays moving if something is.
		m.ep.TryReceive(ctx, m.interval)
	}
}

// Check probes once and publishes a LinkState on change.
// Returns the current link state.
func (m *Monitor) Check(ctx context.Context) bool {
	up, iface, err := m.prober.Probe(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("link probe failed", "interface", iface, "error", err)
		}
		up = false
	}

	if m.known && up == m.up {
		return up
	}
	m.known = true
	m.up = up

	if up {
		m.group.Set(LinkConnected)
		m.logger.Info("link up", "interface", iface)
	} else {
		m.group.Clear(LinkConnected)
		m.logger.Info("link down", "interface", iface)
	}

	err = m.ep.SendName(m.system, bus.LinkState{Connected: up, Interface: iface})
	if err != nil && !errors.Is(err, bus.ErrUnknownGroup) {
		m.logger.Warn("publishing link state failed", "error", err)
	}
	return up
}
