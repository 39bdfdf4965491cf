package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTemperature = "sensor_temperature"
	MeasurementBus         = "bus_metrics"
)

// WriteTemperature records one sensor reading.
//
// Tags: rom, model. Fields: celsius.
//
//	client.WriteTemperature("28-0316a2794dff", "DS18B20", 21.5, time.Now())
func (c *Client) WriteTemperature(rom, model string, celsius float64, at time.Time) {
	tags := map[string]string{"rom": rom}
	if model != "" {
		tags["model"] = model
	}
	c.WritePointWithTime(MeasurementTemperature, tags, map[string]any{"celsius": celsius}, at)
}

// WriteBusMetrics records a snapshot of bus counters for node.
func (c *Client) WriteBusMetrics(node string, counters map[string]uint64) {
	if len(counters) == 0 {
		return
	}
	fields := make(map[string]any, len(counters))
	for k, v := range counters {
		fields[k] = v
	}
	c.WritePoint(MeasurementBus, map[string]string{"node": node}, fields)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with an explicit timestamp.
// Writes on a disconnected client are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
