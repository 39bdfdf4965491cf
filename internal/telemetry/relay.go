package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/bus"
)

// Logger defines the logging interface used by the telemetry package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RelayConfig configures a Relay.
type RelayConfig struct {
	// SensorsGroup is joined to receive Temperature commands.
	SensorsGroup string

	// SystemGroup is joined to receive LinkState commands.
	SystemGroup string

	// DeviceID is announced in Discovery frames.
	DeviceID uint32

	// DiscoveryInterval between announcements while the link is up.
	// Zero announces only on link-up.
	DiscoveryInterval time.Duration

	// ReceiveWait bounds each bus receive.
	ReceiveWait time.Duration
}

// Relay forwards bus temperatures to a UDP collector while the network link
// is up. On every link-up, and periodically afterwards, it announces the
// node with a Discovery frame.
type Relay struct {
	cfg    RelayConfig
	sender Sender
	ep     *bus.Endpoint
	logger Logger
	now    func() time.Time

	mu            sync.Mutex
	linkUp        bool
	nextDiscovery time.Time
	sent          int
	failed        int
	skipped       int
}

// NewRelay creates a relay routed through router that transmits with sender.
func NewRelay(router bus.Router, sender Sender, cfg RelayConfig) *Relay {
	r := &Relay{
		cfg:    cfg,
		sender: sender,
		logger: noopLogger{},
		now:    time.Now,
	}
	r.ep = bus.NewEndpoint(router, &relayVisitor{r: r})
	return r
}

// SetLogger sets the logger for the relay and its endpoint.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
	r.ep.SetLogger(logger)
}

// Endpoint returns the relay's bus endpoint.
func (r *Relay) Endpoint() *bus.Endpoint {
	return r.ep
}

// Start connects the endpoint and joins the sensors and system groups.
func (r *Relay) Start() error {
	if !r.ep.Initialize() {
		return bus.ErrNotConnected
	}
	for _, g := range []string{r.cfg.SensorsGroup, r.cfg.SystemGroup} {
		if g == "" {
			continue
		}
		if _, err := r.ep.JoinName(g); err != nil {
			return err
		}
	}
	return nil
}

// Run services the endpoint until ctx is cancelled, then closes it.
func (r *Relay) Run(ctx context.Context) {
	defer r.ep.Close()

	for ctx.Err() == nil {
		r.announceIfDue()
		r.ep.TryReceive(ctx, r.waitBudget())
	}
}

// LinkUp reports the last link state seen on the bus.
func (r *Relay) LinkUp() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.linkUp
}

// Stats returns the number of frames sent and failed.
func (r *Relay) Stats() (sent, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent, r.failed
}

// Skipped returns the number of temperatures dropped while the link was down.
func (r *Relay) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// skipIfDown counts a skipped reading when the link is down.
func (r *Relay) skipIfDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linkUp {
		return false
	}
	r.skipped++
	return true
}

func (r *Relay) waitBudget() time.Duration {
	wait := r.cfg.ReceiveWait
	if wait <= 0 {
		wait = time.Second
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linkUp && r.cfg.DiscoveryInterval > 0 {
		if until := r.nextDiscovery.Sub(r.now()); until < wait {
			wait = max(until, 0)
		}
	}
	return wait
}

func (r *Relay) announceIfDue() {
	r.mu.Lock()
	due := r.linkUp && r.cfg.DiscoveryInterval > 0 && !r.now().Before(r.nextDiscovery)
	r.mu.Unlock()
	if due {
		r.announce()
	}
}

func (r *Relay) announce() {
	r.transmit(Discovery{DeviceID: r.cfg.DeviceID})

	r.mu.Lock()
	r.nextDiscovery = r.now().Add(r.cfg.DiscoveryInterval)
	r.mu.Unlock()
}

func (r *Relay) transmit(m Message) {
	err := r.sender.Send(m)

	r.mu.Lock()
	if err != nil {
		r.failed++
	} else {
		r.sent++
	}
	r.mu.Unlock()

	if err != nil && !errors.Is(err, ErrNotConnected) {
		r.logger.Warn("telemetry send failed", "message_id", m.ID(), "error", err)
	}
}

func (r *Relay) setLink(up bool) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed = r.linkUp != up
	r.linkUp = up
	return changed
}

// relayVisitor handles bus commands for the relay.
type relayVisitor struct {
	bus.NopVisitor
	r *Relay
}

func (v *relayVisitor) VisitTemperature(_, _ bus.Address, t bus.Temperature) {
	if v.r.skipIfDown() {
		return
	}
	v.r.transmit(Temperature{SensorID: t.SensorID, Value: float32(t.Celsius)})
}

func (v *relayVisitor) VisitLinkState(_, _ bus.Address, s bus.LinkState) {
	if !v.r.setLink(s.Connected) {
		return
	}
	v.r.logger.Info("telemetry link changed", "connected", s.Connected, "interface", s.Interface)
	if s.Connected {
		v.r.announce()
	}
}
