// Package hyperstream defines the record-streaming core of a push-based, row-oriented
// data-processing plugin.
//
// A plugin instance receives variable-length binary records from one or more upstream
// producers, batches them into bounded memory buffers, and fans them out to zero or more
// downstream sinks. Completion is tracked across all inputs so that the shutdown cascade
// runs exactly once.
//
// This package holds the public contracts shared by the rest of the module:
// - The connection protocol every inbound and outbound endpoint implements (IncomingConnection)
// - The host engine collaborator (Engine) and its status codes (MessageStatus)
// - The business-logic plugin API (Plugin, Provider, InputConnection, OutputAnchor)
// - Configuration (Config, ConfigBuilder)
// - Structured logging (Logger, Level, Field)
// - Lifecycle hooks and per-anchor metrics snapshots
//
// The concrete stream implementation lives in pkg/stream, record framing in pkg/record.
//
// Basic usage:
//
//	pc, err := stream.New(ctx, toolID, myPlugin, stream.WithEngine(engine))
//	if err != nil {
//		return err
//	}
//
//	input, _ := pc.AddIncomingConnection("Input")
//	input.Init(schema)
//	input.PushRecord(rec)
//	input.Close() // last input closing runs the completion cascade
package hyperstream

import (
	"context"
)

// Level represents the severity of a log message.
type Level uint8

const (
	// TraceLevel represents verbose debugging information.
	TraceLevel Level = iota
	// DebugLevel represents debugging information.
	DebugLevel
	// InfoLevel represents general operational information.
	InfoLevel
	// WarnLevel represents warning messages.
	WarnLevel
	// ErrorLevel represents error messages.
	ErrorLevel
	// FatalLevel represents fatal error messages.
	FatalLevel
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the given Level is a valid log level, and false otherwise.
func (l Level) IsValid() bool {
	return l <= FatalLevel
}

// Field represents a key-value pair in structured logging.
type Field struct {
	Key   string
	Value any
}

// Str creates a Field with a string value.
func Str(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates a Field with an int value.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a Field with an uint64 value.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Logger defines the interface for logging operations.
type Logger interface {
	Trace(msg string)
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	// Formatted log methods
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// WithContext adds context information to the logger
	WithContext(ctx context.Context) Logger
	// WithFields adds structured fields to the logger
	WithFields(fields ...Field) Logger
	// WithField adds a single field to the logger
	WithField(key string, value any) Logger
	// WithError adds an error to the logger
	WithError(err error) Logger
	// GetLevel returns the current logging level
	GetLevel() Level
	// SetLevel sets the logging level
	SetLevel(level Level)
	// Sync ensures all logs are written
	Sync() error
}
