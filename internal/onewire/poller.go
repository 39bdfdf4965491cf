package onewire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/bus"
)

// Logger defines the logging interface used by the Poller.
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

// PollerConfig configures a Poller.
type PollerConfig struct {
	// SensorsGroup receives a Temperature command per reading.
	SensorsGroup string

	// ControlGroup is joined to receive ScanRequest commands.
	ControlGroup string

	// Interval between scheduled scans.
	Interval time.Duration

	// ReceiveWait bounds each bus receive so scans stay on schedule.
	ReceiveWait time.Duration
}

// Poller periodically measures every thermometer on a Device and publishes
// the readings to the sensors group. A ScanRequest on the control group
// triggers an immediate scan.
//
// The poller owns a single bus endpoint; Run drives it from one goroutine.
type Poller struct {
	dev    Device
	cfg    PollerConfig
	ep     *bus.Endpoint
	logger Logger
	now    func() time.Time

	scanRequested atomic.Bool

	mu      sync.Mutex
	sensors map[ROM]*Sensor
	scans   int
}

// NewPoller creates a poller for dev routed through router.
func NewPoller(router bus.Router, dev Device, cfg PollerConfig) *Poller {
	p := &Poller{
		dev:     dev,
		cfg:     cfg,
		logger:  noopLogger{},
		now:     time.Now,
		sensors: make(map[ROM]*Sensor),
	}
	p.ep = bus.NewEndpoint(router, &pollerVisitor{p: p})
	return p
}

// SetLogger sets the logger for the poller and its endpoint.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
	p.ep.SetLogger(logger)
}

// Endpoint returns the poller's bus endpoint.
func (p *Poller) Endpoint() *bus.Endpoint {
	return p.ep
}

// Start connects the endpoint and joins the control group.
func (p *Poller) Start() error {
	if !p.ep.Initialize() {
		return bus.ErrNotConnected
	}
	if p.cfg.ControlGroup != "" {
		if _, err := p.ep.JoinName(p.cfg.ControlGroup); err != nil {
			return err
		}
	}
	return nil
}

// Run scans immediately and then every Interval until ctx is cancelled.
// Between scans it services the endpoint's mailbox. The endpoint is closed
// on return.
func (p *Poller) Run(ctx context.Context) {
	defer p.ep.Close()

	interval := p.cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	next := p.now()

	for ctx.Err() == nil {
		requested := p.scanRequested.Swap(false)
		if requested || !p.now().Before(next) {
			p.Scan(ctx)
			next = p.now().Add(interval)
			continue
		}

		wait := next.Sub(p.now())
		if p.cfg.ReceiveWait > 0 && p.cfg.ReceiveWait < wait {
			wait = p.cfg.ReceiveWait
		}
		p.ep.TryReceive(ctx, wait)
	}
}

// Scan measures every sensor once and returns the number of readings
// published. Faulty sensors are logged and skipped.
func (p *Poller) Scan(ctx context.Context) int {
	roms, err := p.dev.Search(ctx)
	if err != nil {
		p.logger.Warn("1-wire search failed", "error", err)
		return 0
	}

	published := 0
	for _, rom := range roms {
		if ctx.Err() != nil {
			break
		}

		s, err := p.sensor(rom)
		if err != nil {
			p.logger.Debug("skipping 1-wire device", "rom", rom.String(), "error", err)
			continue
		}

		celsius, err := s.Measure(ctx)
		if err != nil {
			p.logger.Warn("temperature measurement failed", "rom", rom.String(), "error", err)
			continue
		}

		cmd := bus.Temperature{SensorID: rom.ID(), Celsius: celsius, MeasuredAt: p.now()}
		if err := p.ep.SendName(p.cfg.SensorsGroup, cmd); err != nil {
			if !errors.Is(err, bus.ErrUnknownGroup) {
				p.logger.Warn("publishing temperature failed", "rom", rom.String(), "error", err)
			}
			continue
		}
		published++
	}

	p.mu.Lock()
	p.scans++
	p.mu.Unlock()

	p.logger.Debug("1-wire scan complete", "devices", len(roms), "published", published)
	return published
}

// Scans returns how many scans have completed.
func (p *Poller) Scans() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scans
}

// sensor returns the cached sensor for rom, creating it on first sight.
func (p *Poller) sensor(rom ROM) (*Sensor, error) {
	if !rom.Valid() {
		return nil, ErrInvalidROM
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sensors[rom]; ok {
		return s, nil
	}
	s, err := NewSensor(p.dev, rom)
	if err != nil {
		return nil, err
	}
	p.sensors[rom] = s
	p.logger.Info("1-wire sensor found", "rom", rom.String(), "model", s.Model())
	return s, nil
}

// pollerVisitor handles bus commands addressed to the poller.
type pollerVisitor struct {
	bus.NopVisitor
	p *Poller
}

func (v *pollerVisitor) VisitScanRequest(_, _ bus.Address, cmd bus.ScanRequest) {
	v.p.logger.Debug("scan requested", "reason", cmd.Reason)
	v.p.scanRequested.Store(true)
}
