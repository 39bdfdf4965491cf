// Package api implements the diagnostics HTTP API and WebSocket stream for
// SensorBus Core.
//
// This package provides:
//   - REST endpoints for the bus registry, delivery counters and sensor catalogue
//   - A scan trigger that sends ScanRequest on the control group
//   - WebSocket hub for live temperature and link events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server owns one bus endpoint joined to the sensors and system groups.
// Commands delivered to it are broadcast to WebSocket clients subscribed to
// "sensor.temperature" or "system.link". Scan requests leave through the same
// endpoint, so the API is an ordinary bus participant.
//
// # Graceful Degradation
//
// The database, MQTT and InfluxDB dependencies are optional. Health and
// metrics report what is present; bus and catalogue endpoints keep working.
package api
