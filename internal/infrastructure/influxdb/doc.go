// Package influxdb provides InfluxDB connectivity for SensorBus Core.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health checks.
//
// # Measurements
//
//	sensor_temperature  tags: rom, model   fields: celsius
//	bus_metrics         tags: node         fields: one per bus counter
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteTemperature("28-0316a2794dff", "DS18B20", 21.5, time.Now())
//
// InfluxDB is optional: Connect returns ErrDisabled when it is switched off
// in configuration and callers carry on without it.
package influxdb
