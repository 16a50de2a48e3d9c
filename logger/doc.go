// Package logger provides structured logging backed by zerolog.
//
// Loggers are scoped with pipeline, stage and component fields so a line
// emitted from a worker can be traced back to where it came from.
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
//	log := logger.WithStage("decode")
//	log.Warn("queue full", logger.Fields(logger.FieldStreamID, "cam-1"))
package logger
