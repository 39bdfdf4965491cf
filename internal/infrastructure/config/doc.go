// Package config handles loading and validating SensorBus Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SENSORBUS_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Durations (bus.receive_wait, sensors.poll_interval, ...) use Go duration
// syntax in YAML, e.g. "250ms" or "10s".
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Node.Name)
package config
