// Package logging provides structured logging for the ACM runtime.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields (service, version, runtime_id).
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
//	logger := logging.New(cfg.Logging, version, cfg.Runtime.ID)
//	logger.Info("starting runtime", "port", 6969)
//
//	supervisionLog := logger.Component("supervision")
//	supervisionLog.Warn("report dropped", logging.InstanceID(id), logging.Err(err))
//
// Never log credentials. Participant and instance identifiers are fine.
package logging
