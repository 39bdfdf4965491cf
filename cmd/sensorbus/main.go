// SensorBus Core - 1-Wire temperature node
//
// This is the main entry point for the SensorBus Core application.
// A node polls 1-Wire thermometers and fans each reading out over an
// in-process command bus to:
//   - A UDP telemetry collector (with discovery announcements)
//   - An MQTT broker (retained per-sensor state)
//   - A local SQLite sensor catalogue and optional InfluxDB history
//   - A diagnostics HTTP/WebSocket API
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/sensorbus-core/migrations"

	"github.com/nerrad567/sensorbus-core/internal/api"
	"github.com/nerrad567/sensorbus-core/internal/bridges/mqttbridge"
	"github.com/nerrad567/sensorbus-core/internal/bus"
	"github.com/nerrad567/sensorbus-core/internal/catalogue"
	"github.com/nerrad567/sensorbus-core/internal/events"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/config"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/database"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/logging"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorbus-core/internal/onewire"
	"github.com/nerrad567/sensorbus-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// busMetricsInterval is how often registry counters are written to InfluxDB.
const busMetricsInterval = 30 * time.Second

// component is a bus participant with its own endpoint.
type component interface {
	Start() error
	Run(ctx context.Context)
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Sequential startup wiring
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SensorBus Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("node", cfg.Node.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	sensors := catalogue.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, fmt.Sprint(cfg.MQTT.Broker.Port)),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// UDP telemetry collector (optional)
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Dial(cfg.Telemetry.Host, cfg.Telemetry.Port)
		if err != nil {
			return fmt.Errorf("dialling telemetry collector: %w", err)
		}
		defer func() {
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry client", "error", closeErr)
			}
		}()
		log.Info("telemetry collector configured", "addr", telemetryClient.Addr())
	} else {
		log.Info("UDP telemetry disabled")
	}

	dev, err := newDevice(cfg.Sensors)
	if err != nil {
		return fmt.Errorf("creating 1-wire device: %w", err)
	}

	registry := bus.NewRegistry()
	registry.SetLogger(log.Component("bus"))
	groups := cfg.Bus.Groups
	wait := cfg.Bus.ReceiveWait

	// Consumers are started before producers so no early reading finds
	// the sensors group empty.
	var components []component

	var metrics catalogue.MetricWriter
	if influxClient != nil {
		metrics = influxClient
	}
	recorder := catalogue.NewRecorder(registry, sensors, metrics, groups.Sensors, wait)
	recorder.SetLogger(log.Component("catalogue"))
	components = append(components, recorder)

	if telemetryClient != nil {
		relay := telemetry.NewRelay(registry, telemetryClient, telemetry.RelayConfig{
			SensorsGroup:      groups.Sensors,
			SystemGroup:       groups.System,
			DeviceID:          cfg.Node.DeviceID,
			DiscoveryInterval: cfg.Telemetry.DiscoveryInterval,
			ReceiveWait:       wait,
		})
		relay.SetLogger(log.Component("telemetry"))
		components = append(components, relay)
	}

	if mqttClient != nil {
		bridge, bridgeErr := mqttbridge.NewBridge(registry, mqttClient, mqttbridge.Config{
			SensorsGroup: groups.Sensors,
			SystemGroup:  groups.System,
			ControlGroup: groups.Control,
			QoS:          mqttClient.QoS(),
			ReceiveWait:  wait,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		bridge.SetLogger(log.Component("mqttbridge"))
		components = append(components, bridge)
	}

	link := events.NewGroup()
	monitor := events.NewMonitor(registry, events.InterfaceProber{Name: cfg.Link.Interface}, link, groups.System, cfg.Link.ProbeInterval)
	monitor.SetLogger(log.Component("link"))

	poller := onewire.NewPoller(registry, dev, onewire.PollerConfig{
		SensorsGroup: groups.Sensors,
		ControlGroup: groups.Control,
		Interval:     cfg.Sensors.PollInterval,
		ReceiveWait:  wait,
	})
	poller.SetLogger(log.Component("onewire"))
	components = append(components, monitor, poller)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log.Component("api"),
			Bus:         registry,
			Groups:      groups,
			ReceiveWait: wait,
			Sensors:     sensors,
			DB:          db,
			MQTT:        mqttClient,
			InfluxDB:    influxClient,
			Version:     version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(runCtx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	var wg sync.WaitGroup
	for _, c := range components {
		if err := c.Start(); err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("starting %T: %w", c, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(runCtx)
		}()
	}
	log.Info("bus participants started", "endpoints", len(registry.Snapshot().Endpoints))

	if cfg.Telemetry.ListenPort != 0 {
		if err := startTelemetryListener(runCtx, &wg, cfg.Telemetry.ListenPort, log.Component("telemetry")); err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	if influxClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reportBusMetrics(runCtx, registry, influxClient, cfg.Node.ID)
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Every Run closes its endpoint on return, relaying anything still
	// buffered before the infrastructure below goes away.
	stop()
	wg.Wait()

	recorded, failed := recorder.Stats()
	log.Info("bus participants stopped",
		"scans", poller.Scans(),
		"recorded", recorded,
		"record_failures", failed,
		"bus", registry.Metrics(),
	)

	// Deferred Close() calls run in reverse order:
	// API, telemetry, MQTT, InfluxDB, database.

	log.Info("SensorBus Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENSORBUS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENSORBUS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newDevice returns the 1-Wire bus access for the configured backend.
func newDevice(cfg config.SensorsConfig) (onewire.Device, error) {
	switch cfg.Backend {
	case config.SensorBackendSimulated:
		dev := onewire.NewSimulatedDevice()
		for _, s := range cfg.Simulated {
			rom, err := onewire.ParseROM(s.ROM)
			if err != nil {
				return nil, fmt.Errorf("simulated sensor: %w", err)
			}
			dev.Add(rom, s.Celsius, s.Jitter)
		}
		return dev, nil
	case config.SensorBackendSysfs:
		return onewire.NewSysfsDevice(cfg.SysfsRoot), nil
	default:
		return nil, fmt.Errorf("unknown sensor backend %q", cfg.Backend)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// startTelemetryListener logs frames arriving on the diagnostic UDP port
// until ctx is cancelled.
func startTelemetryListener(ctx context.Context, wg *sync.WaitGroup, port int, log *logging.Logger) error {
	listener, err := telemetry.Listen(port)
	if err != nil {
		return fmt.Errorf("starting telemetry listener: %w", err)
	}
	listener.SetLogger(log)
	log.Info("telemetry listener started", "addr", listener.Addr().String())

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := listener.Serve(ctx, func(from net.Addr, m telemetry.Message) {
			log.Debug("telemetry frame received", "from", from.String(), "message", fmt.Sprintf("%+v", m))
		})
		if err != nil {
			log.Error("telemetry listener stopped", "error", err)
		}
	}()
	return nil
}

// reportBusMetrics writes the registry counters to InfluxDB every
// busMetricsInterval until ctx is cancelled.
func reportBusMetrics(ctx context.Context, registry *bus.Registry, influxClient *influxdb.Client, node string) {
	ticker := time.NewTicker(busMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			influxClient.WriteBusMetrics(node, busCounters(registry.Metrics()))
		}
	}
}

// busCounters flattens a metrics snapshot into InfluxDB fields.
func busCounters(m bus.MetricsSnapshot) map[string]uint64 {
	return map[string]uint64{
		"connects":         uint64(m.Connects),
		"disconnects":      uint64(m.Disconnects),
		"sends":            uint64(m.Sends),
		"hops":             uint64(m.Hops),
		"delivered":        uint64(m.Delivered),
		"dropped_no_route": uint64(m.DroppedNoRoute),
		"dropped_full":     uint64(m.DroppedFull),
	}
}
