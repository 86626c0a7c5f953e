package hyperstream

import (
	"github.com/hyp3rd/hyperstream/pkg/record"
)

// IncomingConnection is the protocol implemented by every endpoint that receives records:
// the core's own input connections as well as the downstream sinks attached to output anchors.
//
// Init and PushRecord report success; a false from a downstream sink closes that sink's
// connection. Callers never receive panics or errors across this boundary.
type IncomingConnection interface {
	// Init announces the stream schema. It is called once before any record.
	Init(schema string) bool
	// PushRecord delivers one framed record. The slice is only valid during the call.
	PushRecord(rec []byte) bool
	// UpdateProgress reports upstream progress as a fraction in [0, 1].
	UpdateProgress(percent float64)
	// Close ends the stream.
	Close()
	// Free releases whatever the endpoint still holds after Close.
	Free()
}

// Engine is the host collaborator that receives status messages and progress, and that
// can supply browse-everywhere sinks. A nil Engine is valid everywhere one is accepted.
type Engine interface {
	// OutputMessage delivers a status message for the given tool.
	OutputMessage(toolID int, status MessageStatus, message string)
	// OutputToolProgress reports tool-level progress.
	OutputToolProgress(toolID int, progress float64)
	// BrowseEverywhereReserveAnchor reserves an auxiliary sink id for a new output anchor.
	// Zero means none was reserved.
	BrowseEverywhereReserveAnchor(toolID int) uint32
	// BrowseEverywhereGetConnection resolves a reserved id into a sink.
	BrowseEverywhereGetConnection(anchorID uint32, toolID int, anchorName string) IncomingConnection
}

// ConnectionStatus is the lifecycle state of an input connection.
type ConnectionStatus uint8

const (
	// StatusCreated is the state after registration.
	StatusCreated ConnectionStatus = iota + 1
	// StatusInitialized is the state after a successful Init.
	StatusInitialized
	// StatusReceiving is the state after the first record.
	StatusReceiving
	// StatusClosed is terminal.
	StatusClosed
)

// String returns the string representation of the status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusInitialized:
		return "initialized"
	case StatusReceiving:
		return "receiving"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RecordPacket iterates over one batch of records delivered to the plugin.
type RecordPacket interface {
	Next() bool
	Record() []byte
	Err() error
}

// InputConnection is the plugin's read-only view of one inbound stream.
type InputConnection interface {
	// ID uniquely identifies the connection.
	ID() string
	// Name is the name of the input anchor the connection belongs to.
	Name() string
	// Schema is the blob passed to Init.
	Schema() string
	// Layout is the framing resolved from the schema.
	Layout() record.Layout
	// Progress is the last percentage reported by the producer.
	Progress() float64
	// Status is the lifecycle state.
	Status() ConnectionStatus
}

// OutputAnchor is a named output port. Records written to it are batched and fanned out to
// every open downstream connection.
type OutputAnchor interface {
	Name() string
	IsOpen() bool
	Schema() string
	Layout() record.Layout
	// Open announces the schema to the engine and every attached sink.
	Open(schema string, layout record.Layout) error
	// Write appends one framed record.
	Write(rec []byte) error
	// UpdateProgress forwards progress to every open sink.
	UpdateProgress(percent float64)
	// Close flushes and closes every open sink. It is idempotent.
	Close()
	NumConnections() int
	RecordCount() uint64
	TotalDataSize() uint64
}

// Io is the plugin's side channel to the engine.
type Io interface {
	Error(msg string)
	Warn(msg string)
	Info(msg string)
	UpdateProgress(progress float64)
	NotifyFileInput(path string)
	NotifyFileOutput(path string)
}

// Provider gives the plugin access to its environment.
type Provider interface {
	ToolConfig() string
	Io() Io
	Logger() Logger
	GetOutputAnchor(name string) OutputAnchor
}

// Plugin is the business logic driven by the stream core. All callbacks run synchronously
// on the engine thread that triggered them; OnRecordPacket must not block waiting for more
// input from the same connection.
type Plugin interface {
	// Init is called once when the plugin context is created.
	Init(provider Provider) error
	// OnInputConnectionOpened is called from a connection's Init. An error fails the Init.
	OnInputConnectionOpened(conn InputConnection) error
	// OnRecordPacket receives each flushed batch of a connection.
	OnRecordPacket(conn InputConnection, packet RecordPacket)
	// OnComplete runs at the start of the completion cascade, before outputs are closed.
	OnComplete()
}

// LayoutResolver maps an input schema blob to its record framing.
type LayoutResolver interface {
	ResolveLayout(schema string) (record.Layout, error)
}

// LayoutResolverFunc adapts a function into a LayoutResolver.
type LayoutResolverFunc func(schema string) (record.Layout, error)

// ResolveLayout calls f.
func (f LayoutResolverFunc) ResolveLayout(schema string) (record.Layout, error) {
	return f(schema)
}

// DescriptorResolver resolves schemas written as compact layout descriptors
// (see record.Layout.String). It is the default resolver.
func DescriptorResolver() LayoutResolver {
	return LayoutResolverFunc(record.ParseLayout)
}

// StaticResolver returns the same layout for every schema.
func StaticResolver(layout record.Layout) LayoutResolver {
	return LayoutResolverFunc(func(string) (record.Layout, error) {
		return layout, layout.Validate()
	})
}
