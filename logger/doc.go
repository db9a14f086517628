// Package logger provides structured logging for viewkit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with map-based structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("fetchcache")
//	log.Info("entry loaded", logger.Fields("cache_key", key.String()))
package logger
