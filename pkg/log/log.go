// Package log creates the loggers used by plugin hosts.
//
// NewWithDefaults picks settings by environment:
//
// - In non-production environments: Debug level with colored text output
// - In production environments: Info level with structured JSON output
// - Service name and environment included as additional fields in all log entries
//
// Usage:
//
//	logger, err := log.NewWithDefaults(ctx, "development", "passthrough")
//	if err != nil {
//		return err
//	}
//
//	pc, err := stream.New(ctx, toolID, plugin, stream.WithLogger(logger))
package log

import (
	"context"
	"os"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/constants"
	"github.com/hyp3rd/hyperstream/pkg/adapter"
)

// NewWithDefaults creates a logger for the given environment and service.
func NewWithDefaults(ctx context.Context, environment, service string) (*adapter.Adapter, error) {
	config := hyperstream.DefaultConfig()
	config.Log.Output = os.Stdout

	if environment == constants.NonProductionEnvironment {
		config.Log.Level = hyperstream.DebugLevel
		config.Log.EnableJSON = false
		config.Log.EnableColor = true
	} else {
		config.Log.Level = hyperstream.InfoLevel
		config.Log.EnableJSON = true
	}

	config.Log.AdditionalFields = []hyperstream.Field{
		{Key: "service", Value: service},
		{Key: "environment", Value: environment},
	}

	return New(ctx, config)
}

// New creates the logger described by config.Log.
func New(ctx context.Context, config hyperstream.Config) (*adapter.Adapter, error) {
	err := config.Validate()
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid logger configuration")
	}

	logger, err := adapter.NewAdapter(ctx, config.Log)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create logger")
	}

	return logger, nil
}
