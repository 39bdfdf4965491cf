package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/bus"
	"github.com/nerrad567/sensorbus-core/internal/catalogue"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/config"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/database"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/logging"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger

	// Bus is the registry the server's endpoint connects to and reports on.
	Bus         *bus.Registry
	Groups      config.BusGroupsConfig
	ReceiveWait time.Duration

	Sensors catalogue.Repository

	// Optional infrastructure, reported by health and metrics.
	DB       *database.DB
	MQTT     *mqtt.Client
	InfluxDB *influxdb.Client

	Version string
}

// Server is the diagnostics HTTP API server.
//
// It manages the HTTP listener, routes, middleware, WebSocket hub and the
// bus endpoint that feeds the hub. The server is created with New() and
// started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	registry    *bus.Registry
	groups      config.BusGroupsConfig
	receiveWait time.Duration
	sensors     catalogue.Repository
	db          *database.DB
	mqtt        *mqtt.Client
	influx      *influxdb.Client
	version     string
	startTime   time.Time

	ep     *bus.Endpoint
	server *http.Server
	hub    *Hub
	cancel context.CancelFunc // cancels background goroutines on Close()
	wg     sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, bus registry, sensor catalogue)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("bus registry is required")
	}
	if deps.Sensors == nil {
		return nil, fmt.Errorf("sensor catalogue is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		registry:    deps.Bus,
		groups:      deps.Groups,
		receiveWait: deps.ReceiveWait,
		sensors:     deps.Sensors,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		influx:      deps.InfluxDB,
		version:     deps.Version,
		startTime:   time.Now(),
	}
	s.ep = bus.NewEndpoint(deps.Bus, &eventVisitor{s: s})
	s.ep.SetLogger(deps.Logger)
	return s, nil
}

// Endpoint returns the server's bus endpoint.
func (s *Server) Endpoint() *bus.Endpoint {
	return s.ep
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, connects the bus endpoint and joins the
// sensors and system groups, then launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and endpoint goroutines
//
// Returns:
//   - error: If the bus endpoint cannot join its groups
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	if err := s.startBus(srvCtx); err != nil {
		s.cancel()
		return err
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startBus connects the endpoint, joins the event groups and serves the
// mailbox until ctx is cancelled.
func (s *Server) startBus(ctx context.Context) error {
	if !s.ep.Initialize() {
		return bus.ErrNotConnected
	}
	for _, name := range []string{s.groups.Sensors, s.groups.System} {
		if name == "" {
			continue
		}
		if _, err := s.ep.JoinName(name); err != nil {
			s.ep.Close()
			return fmt.Errorf("joining bus group %q: %w", name, err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.ep.Close()
		s.ep.Serve(ctx, s.receiveWait)
	}()
	return nil
}

// Close gracefully shuts down the API server.
//
// It stops the bus endpoint, then waits up to 10 seconds for in-flight
// requests to complete before forcefully closing remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	if !s.ep.IsConnected() {
		return fmt.Errorf("api bus endpoint disconnected")
	}

	return nil
}
