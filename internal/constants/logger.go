package constants

// Field keys attached to log entries by the stream core.
const (
	// PluginIDKey is the unique id of a plugin context.
	PluginIDKey = "plugin_id"
	// ToolIDKey is the engine-assigned tool id of a plugin context.
	ToolIDKey = "tool_id"
	// AnchorKey names an input or output anchor.
	AnchorKey = "anchor"
	// ConnectionKey identifies an input connection.
	ConnectionKey = "connection_id"
	// SinkKey names a downstream connection.
	SinkKey = "sink"
	// RecordsKey carries a record count.
	RecordsKey = "records"
	// BytesKey carries a byte count.
	BytesKey = "bytes"
)

// OutputType represents the type of log output.
type OutputType string

const (
	// LogOutputStdout represents the standard output stream.
	LogOutputStdout OutputType = "stdout"
	// LogOutputStderr represents the standard error stream.
	LogOutputStderr OutputType = "stderr"
	// LogOutputFile represents a file output.
	LogOutputFile OutputType = "file"
)

// IsValid returns true if the given OutputType is a valid output type, and false otherwise.
func (o OutputType) IsValid() bool {
	switch o {
	case LogOutputStdout, LogOutputStderr, LogOutputFile:
		return true
	default:
		return false
	}
}

// String returns the string representation of the OutputType.
func (o OutputType) String() string {
	return string(o)
}
