// Package logging provides structured logging for the I/O bridge.
//
// This package wraps Go's standard log/slog package so every component
// (registry, dispatcher, hardware backends, MQTT bridge, HTTP API) logs
// with the same shape.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("channel attached", "device_id", "523981", "channel", 3)
//
// # Security
//
// Never log webhook tokens, MQTT passwords or the JWT secret.
package logging
