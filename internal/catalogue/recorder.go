package catalogue

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/bus"
	"github.com/nerrad567/sensorbus-core/internal/onewire"
)

// writeTimeout bounds each repository write made from the bus.
const writeTimeout = 5 * time.Second

// MetricWriter receives a time-series point per reading.
// *influxdb.Client satisfies it.
type MetricWriter interface {
	WriteTemperature(rom, model string, celsius float64, at time.Time)
}

// Logger defines the logging interface used by the Recorder.
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

// Recorder is a bus endpoint on the sensors group that stores every
// Temperature in the catalogue and, when a MetricWriter is set, in the
// time-series database.
type Recorder struct {
	repo    Repository
	metrics MetricWriter
	group   string
	wait    time.Duration
	ep      *bus.Endpoint
	logger  Logger
	now     func() time.Time

	mu       sync.Mutex
	recorded int
	failed   int
}

// NewRecorder creates a recorder routed through router. metrics may be nil.
func NewRecorder(router bus.Router, repo Repository, metrics MetricWriter, sensorsGroup string, wait time.Duration) *Recorder {
	r := &Recorder{
		repo:    repo,
		metrics: metrics,
		group:   sensorsGroup,
		wait:    wait,
		logger:  noopLogger{},
		now:     time.Now,
	}
	r.ep = bus.NewEndpoint(router, &recorderVisitor{r: r})
	return r
}

// SetLogger sets the logger for the recorder and its endpoint.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
	r.ep.SetLogger(logger)
}

// Endpoint returns the recorder's bus endpoint.
func (r *Recorder) Endpoint() *bus.Endpoint {
	return r.ep
}

// Start connects the endpoint and joins the sensors group.
func (r *Recorder) Start() error {
	if !r.ep.Initialize() {
		return bus.ErrNotConnected
	}
	_, err := r.ep.JoinName(r.group)
	return err
}

// Run services the endpoint until ctx is cancelled, then closes it.
func (r *Recorder) Run(ctx context.Context) {
	defer r.ep.Close()
	wait := r.wait
	if wait <= 0 {
		wait = time.Second
	}
	r.ep.Serve(ctx, wait)
}

// Stats returns how many readings were stored and how many failed.
func (r *Recorder) Stats() (recorded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded, r.failed
}

func (r *Recorder) record(t bus.Temperature) {
	rom := onewire.ROMFromID(t.SensorID)
	at := t.MeasuredAt
	if at.IsZero() {
		at = r.now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.repo.RecordReading(ctx, Reading{ROM: rom, Celsius: t.Celsius, MeasuredAt: at})

	r.mu.Lock()
	if err != nil {
		r.failed++
	} else {
		r.recorded++
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("recording reading failed", "rom", rom.String(), "error", err)
		return
	}

	if r.metrics != nil {
		r.metrics.WriteTemperature(rom.String(), rom.Family().String(), t.Celsius, at)
	}
}

// recorderVisitor handles bus commands for the recorder.
type recorderVisitor struct {
	bus.NopVisitor
	r *Recorder
}

func (v *recorderVisitor) VisitTemperature(_, _ bus.Address, t bus.Temperature) {
	v.r.record(t)
}
