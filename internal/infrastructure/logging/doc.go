// Package logging provides structured logging for SensorBus Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the node.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-component child loggers (component=poller, component=relay, ...)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Bus delivery drops are logged at debug level only.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	reg.SetLogger(logger.Component("bus"))
//	logger.Info("starting node", "node_id", cfg.Node.ID)
package logging
