// Package constants provides values shared across the stream packages: log field keys,
// timeouts, and the names used for engine-facing identifiers.
package constants

import "time"

const (
	// NonProductionEnvironment is the environment name for non-production environments.
	NonProductionEnvironment = "development"
	// DefaultTimeout bounds the delivery of metrics snapshots to registered handlers.
	DefaultTimeout = 5 * time.Second
	// DefaultEnvPrefix is the environment variable prefix read by the config loader.
	DefaultEnvPrefix = "HYPERSTREAM"
	// MetricsNamespace prefixes every exported metric.
	MetricsNamespace = "hyperstream"
)
