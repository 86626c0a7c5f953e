// Package stream implements the record-streaming core of a plugin instance.
//
// A PluginContext owns the named input and output anchors of one plugin, the per-connection
// record buffers, and the completion coordinator. Upstream producers register input
// connections and push framed records into them; the records are batched and delivered to
// the Plugin as RecordPackets. The plugin writes records to output anchors, which batch them
// again and fan them out to every open downstream connection.
//
// When the last input connection closes, or when PushAllRecords is called, the completion
// cascade runs exactly once: the plugin's OnComplete, then every output anchor is flushed and
// closed, then all buffers are released and the engine is told the tool is complete.
//
// All callbacks run synchronously on the goroutine of the caller; the package starts no
// goroutines of its own. A plugin must not block inside OnRecordPacket waiting for more input
// from the same connection, and a downstream sink must not write back into the anchor that
// is feeding it.
package stream

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/constants"
)

// PluginContext is one plugin instance: its anchors, its connections, and its completion state.
//
//nolint:containedctx
type PluginContext struct {
	id             string
	toolID         int
	ctx            context.Context
	plugin         hyperstream.Plugin
	engine         hyperstream.Engine
	logger         hyperstream.Logger
	config         hyperstream.Config
	resolver       hyperstream.LayoutResolver
	toolConfig     string
	hooks          *hyperstream.HookRegistry
	metricsHandler hyperstream.AnchorMetricsHandler
	io             *pluginIo

	mu                 sync.Mutex
	inputs             []*inputAnchor
	outputs            []*outputAnchor
	totalInputs        int
	closedInputs       int
	registrationClosed bool

	completed atomic.Bool
	done      chan struct{}
}

// New creates a plugin context for the given tool and calls the plugin's Init with its provider.
func New(ctx context.Context, toolID int, plugin hyperstream.Plugin, opts ...Option) (*PluginContext, error) {
	if plugin == nil {
		return nil, ErrNilPlugin
	}

	if ctx == nil {
		ctx = context.Background()
	}

	pc := &PluginContext{
		id:       uuid.NewString(),
		toolID:   toolID,
		ctx:      ctx,
		plugin:   plugin,
		logger:   hyperstream.NewNoop(),
		config:   hyperstream.DefaultConfig(),
		resolver: hyperstream.DescriptorResolver(),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(pc)
	}

	err := pc.config.Validate()
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid plugin configuration").WithMetadata("tool_id", toolID)
	}

	pc.logger = pc.logger.WithContext(ctx).WithFields(
		hyperstream.Str(constants.PluginIDKey, pc.id),
		hyperstream.Int(constants.ToolIDKey, toolID),
	)
	pc.io = newPluginIo(pc)

	err = plugin.Init(&provider{pc: pc})
	if err != nil {
		return nil, ewrap.Wrap(err, "plugin init failed").WithMetadata("tool_id", toolID)
	}

	pc.logger.Debug("plugin context initialized")

	return pc, nil
}

// ID returns the unique id of the plugin context.
func (pc *PluginContext) ID() string {
	return pc.id
}

// ToolID returns the engine-assigned tool id.
func (pc *PluginContext) ToolID() int {
	return pc.toolID
}

// Done is closed when the completion cascade has finished.
func (pc *PluginContext) Done() <-chan struct{} {
	return pc.done
}

// Completed reports whether the completion cascade has started.
func (pc *PluginContext) Completed() bool {
	return pc.completed.Load()
}

// AddIncomingConnection registers a new upstream producer on the named input anchor and
// returns the endpoint it pushes records into.
func (pc *PluginContext) AddIncomingConnection(name string) (hyperstream.IncomingConnection, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.registrationClosed {
		return nil, ewrap.Wrap(ErrRegistrationClosed, "adding incoming connection").
			WithMetadata("anchor", name)
	}

	anchor := pc.inputAnchor(name)
	conn := newInputConnection(pc, anchor.name, pc.config.NoCache)
	anchor.connections = append(anchor.connections, conn)
	pc.totalInputs++

	conn.logger.Debug("incoming connection registered")

	return conn, nil
}

// AddOutgoingConnection attaches a downstream sink to the named output anchor. If the anchor is
// already open the sink is initialized immediately.
func (pc *PluginContext) AddOutgoingConnection(name string, sink hyperstream.IncomingConnection) error {
	if sink == nil {
		return ewrap.Wrap(ErrNilSink, "adding outgoing connection").WithMetadata("anchor", name)
	}

	pc.mu.Lock()

	if pc.completed.Load() {
		pc.mu.Unlock()

		return ewrap.Wrap(ErrRegistrationClosed, "adding outgoing connection").
			WithMetadata("anchor", name)
	}

	anchor := pc.outputAnchorLocked(name)
	conn := anchor.attach(sink)
	pc.mu.Unlock()

	anchor.initLate(conn)

	return nil
}

// PushAllRecords is the explicit completion request used for tools without inputs. It closes
// registration and runs the completion cascade if it has not run yet. The record limit is
// recorded for diagnostics only.
func (pc *PluginContext) PushAllRecords(recordLimit int64) bool {
	pc.mu.Lock()
	pc.registrationClosed = true
	pc.mu.Unlock()

	pc.logger.WithField("record_limit", recordLimit).Debug("push all records requested")
	pc.complete()

	return true
}

// Close is the engine's final call. It closes registration; the completion cascade is driven
// by the inputs or PushAllRecords, not by Close.
func (pc *PluginContext) Close(hasErrors bool) {
	pc.mu.Lock()
	pc.registrationClosed = true
	pc.mu.Unlock()

	if hasErrors {
		pc.logger.Warn("plugin closed with errors")

		return
	}

	pc.logger.Debug("plugin closed")
}

// Metrics returns a snapshot of every output anchor.
func (pc *PluginContext) Metrics() []hyperstream.AnchorMetrics {
	pc.mu.Lock()
	outputs := slices.Clone(pc.outputs)
	pc.mu.Unlock()

	metrics := make([]hyperstream.AnchorMetrics, 0, len(outputs))
	for _, anchor := range outputs {
		metrics = append(metrics, anchor.Metrics())
	}

	return metrics
}

// inputAnchor returns the named input anchor, creating it at the tail. Callers hold pc.mu.
func (pc *PluginContext) inputAnchor(name string) *inputAnchor {
	for _, anchor := range pc.inputs {
		if anchor.name == name {
			return anchor
		}
	}

	anchor := &inputAnchor{name: name}
	pc.inputs = append(pc.inputs, anchor)

	return anchor
}

// outputAnchor returns the named output anchor, creating it at the tail and reserving its
// browse-everywhere sink on creation.
func (pc *PluginContext) outputAnchor(name string) *outputAnchor {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	return pc.outputAnchorLocked(name)
}

func (pc *PluginContext) outputAnchorLocked(name string) *outputAnchor {
	for _, anchor := range pc.outputs {
		if anchor.name == name {
			return anchor
		}
	}

	var browseID uint32
	if pc.engine != nil {
		browseID = pc.engine.BrowseEverywhereReserveAnchor(pc.toolID)
	}

	anchor := newOutputAnchor(pc, name, browseID)
	pc.outputs = append(pc.outputs, anchor)

	return anchor
}

// inputClosed counts a closed input connection and triggers completion after the last one.
func (pc *PluginContext) inputClosed() {
	pc.mu.Lock()
	pc.closedInputs++
	pc.registrationClosed = true
	last := pc.closedInputs == pc.totalInputs
	pc.mu.Unlock()

	if last {
		pc.complete()
	}
}

// complete runs the completion cascade once.
func (pc *PluginContext) complete() {
	if !pc.completed.CompareAndSwap(false, true) {
		return
	}

	pc.mu.Lock()
	pc.registrationClosed = true
	inputs := slices.Clone(pc.inputs)
	outputs := slices.Clone(pc.outputs)
	pc.mu.Unlock()

	pc.plugin.OnComplete()

	for _, anchor := range outputs {
		anchor.Close()
	}

	for _, anchor := range inputs {
		for _, conn := range anchor.connections {
			conn.release()
		}
	}

	for _, anchor := range outputs {
		anchor.release()
	}

	pc.message(hyperstream.StatusComplete, "")
	pc.fire(&hyperstream.Event{Kind: hyperstream.EventCompleted})

	pc.logger.WithFields(
		hyperstream.Int("inputs", len(inputs)),
		hyperstream.Int("outputs", len(outputs)),
	).Info("plugin completed")

	close(pc.done)
}

func (pc *PluginContext) message(status hyperstream.MessageStatus, msg string) {
	if pc.engine == nil {
		return
	}

	pc.engine.OutputMessage(pc.toolID, status, msg)
}

func (pc *PluginContext) fire(event *hyperstream.Event) {
	event.ToolID = pc.toolID

	var errs []error
	if pc.hooks != nil {
		errs = pc.hooks.FireHooks(pc.ctx, event)
	} else {
		errs = hyperstream.FireGlobalHooks(pc.ctx, event)
	}

	for _, err := range errs {
		pc.logger.WithError(err).WithField("event", event.Kind.String()).Warn("lifecycle hook failed")
	}
}

func (pc *PluginContext) emitMetrics(metrics hyperstream.AnchorMetrics) {
	if pc.metricsHandler != nil {
		pc.metricsHandler(pc.ctx, metrics)
	}

	hyperstream.EmitAnchorMetrics(pc.ctx, metrics)
}

type inputAnchor struct {
	name        string
	connections []*inputConnection
}
