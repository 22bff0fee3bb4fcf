// Package logger provides structured logging for wirekit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers carrying structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get(logger.ComponentScanner)
//	log.Warn("unit skipped", logger.Fields(logger.FieldUnit, path))
package logger
