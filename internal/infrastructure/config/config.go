package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SensorBus Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Bus       BusConfig       `yaml:"bus"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Link      LinkConfig      `yaml:"link"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NodeConfig identifies this sensor node.
type NodeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// DeviceID is announced in UDP discovery frames.
	DeviceID uint32 `yaml:"device_id"`
}

// BusConfig contains message bus settings.
type BusConfig struct {
	// ReceiveWait bounds each endpoint receive wait. Zero or negative
	// blocks until a command arrives.
	ReceiveWait time.Duration `yaml:"receive_wait"`

	Groups BusGroupsConfig `yaml:"groups"`
}

// BusGroupsConfig names the well-known bus groups.
type BusGroupsConfig struct {
	// Sensors carries temperature readings.
	Sensors string `yaml:"sensors"`
	// System carries link state and discovery.
	System string `yaml:"system"`
	// Control carries scan requests to pollers.
	Control string `yaml:"control"`
}

// Sensor backends.
const (
	SensorBackendSysfs     = "sysfs"
	SensorBackendSimulated = "simulated"
)

// SensorsConfig contains 1-Wire sensor polling settings.
type SensorsConfig struct {
	// Backend is "sysfs" (Linux w1 driver) or "simulated".
	Backend      string        `yaml:"backend"`
	SysfsRoot    string        `yaml:"sysfs_root"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Simulated lists sensors for the simulated backend.
	Simulated []SimulatedSensorConfig `yaml:"simulated"`
}

// SimulatedSensorConfig describes one simulated sensor.
type SimulatedSensorConfig struct {
	// ROM in w1 notation, e.g. "28-0316a2794dff".
	ROM     string  `yaml:"rom"`
	Celsius float64 `yaml:"celsius"`
	// Jitter is the maximum random deviation per reading.
	Jitter float64 `yaml:"jitter"`
}

// TelemetryConfig contains UDP telemetry settings.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// ListenPort enables the diagnostic UDP listener when non-zero.
	ListenPort int `yaml:"listen_port"`

	DiscoveryInterval time.Duration `yaml:"discovery_interval"`
}

// LinkConfig contains network link monitoring settings.
type LinkConfig struct {
	// Interface is the network interface to watch. Empty means any
	// non-loopback interface that is up.
	Interface     string        `yaml:"interface"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SENSORBUS_SECTION_KEY
// For example: SENSORBUS_DATABASE_PATH, SENSORBUS_TELEMETRY_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:   "node-001",
			Name: "SensorBus",
		},
		Bus: BusConfig{
			ReceiveWait: 100 * time.Millisecond,
			Groups: BusGroupsConfig{
				Sensors: "sensors",
				System:  "system",
				Control: "control",
			},
		},
		Sensors: SensorsConfig{
			Backend:      SensorBackendSysfs,
			SysfsRoot:    "/sys/bus/w1/devices",
			PollInterval: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Port:              4210,
			DiscoveryInterval: 30 * time.Second,
		},
		Link: LinkConfig{
			ProbeInterval: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/sensorbus.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sensorbus-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SENSORBUS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Node
	if v := os.Getenv("SENSORBUS_NODE_ID"); v != "" {
		cfg.Node.ID = v
	}
	if v := os.Getenv("SENSORBUS_NODE_DEVICE_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 0, 32); err == nil {
			cfg.Node.DeviceID = uint32(id)
		}
	}

	// Sensors
	if v := os.Getenv("SENSORBUS_SENSORS_BACKEND"); v != "" {
		cfg.Sensors.Backend = v
	}

	// Telemetry
	if v := os.Getenv("SENSORBUS_TELEMETRY_HOST"); v != "" {
		cfg.Telemetry.Host = v
	}

	// Link
	if v := os.Getenv("SENSORBUS_LINK_INTERFACE"); v != "" {
		cfg.Link.Interface = v
	}

	// Database
	if v := os.Getenv("SENSORBUS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SENSORBUS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SENSORBUS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SENSORBUS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SENSORBUS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("SENSORBUS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SENSORBUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Node validation
	if c.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	// Bus validation
	g := c.Bus.Groups
	if g.Sensors == "" || g.System == "" || g.Control == "" {
		errs = append(errs, "bus.groups.sensors, system and control are required")
	} else if g.Sensors == g.System || g.Sensors == g.Control || g.System == g.Control {
		errs = append(errs, "bus.groups names must be distinct")
	}

	// Sensors validation
	switch c.Sensors.Backend {
	case SensorBackendSysfs:
		if c.Sensors.SysfsRoot == "" {
			errs = append(errs, "sensors.sysfs_root is required for the sysfs backend")
		}
	case SensorBackendSimulated:
		if len(c.Sensors.Simulated) == 0 {
			errs = append(errs, "sensors.simulated must list at least one sensor")
		}
	default:
		errs = append(errs, fmt.Sprintf("sensors.backend must be %q or %q", SensorBackendSysfs, SensorBackendSimulated))
	}
	if c.Sensors.PollInterval <= 0 {
		errs = append(errs, "sensors.poll_interval must be positive")
	}

	// Telemetry validation
	if c.Telemetry.Enabled {
		if c.Telemetry.Host == "" {
			errs = append(errs, "telemetry.host is required when telemetry is enabled")
		}
		if c.Telemetry.Port < 1 || c.Telemetry.Port > 65535 {
			errs = append(errs, "telemetry.port must be between 1 and 65535")
		}
	}
	if c.Telemetry.ListenPort < 0 || c.Telemetry.ListenPort > 65535 {
		errs = append(errs, "telemetry.listen_port must be between 0 and 65535")
	}

	// Link validation
	if c.Link.ProbeInterval <= 0 {
		errs = append(errs, "link.probe_interval must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
