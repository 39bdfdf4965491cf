// Package catalogue keeps a persistent record of every 1-Wire sensor seen
// on the bus: first and last sighting, last reading, observed range and
// reading count.
//
// SQLiteRepository stores the catalogue in the sensors table created by the
// embedded migrations. Recorder joins the sensors group and writes each
// bus.Temperature through the repository, mirroring it to InfluxDB when a
// MetricWriter is configured.
package catalogue
