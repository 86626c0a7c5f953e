package stream

import (
	"fmt"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/constants"
	"github.com/hyp3rd/hyperstream/pkg/record"
)

const browseEverywhereSink = "browse_everywhere"

// outputConnection is one downstream sink of an output anchor. A closed connection stays in
// the list and is skipped by every later fan-out.
type outputConnection struct {
	name        string
	sink        hyperstream.IncomingConnection
	isOpen      bool
	initialized bool
}

// outputAnchor batches the records written by the plugin and fans every record out to each
// open downstream connection.
type outputAnchor struct {
	pc       *PluginContext
	name     string
	browseID uint32
	logger   hyperstream.Logger

	mu            sync.Mutex
	schema        string
	layout        record.Layout
	isOpen        bool
	closed        bool
	connections   []*outputConnection
	buffer        *record.Buffer
	recordCount   uint64
	totalDataSize uint64
	batches       uint64
	rejected      uint64
	sinceStatus   uint64
	closing       bool
	pending       []func()
}

func newOutputAnchor(pc *PluginContext, name string, browseID uint32) *outputAnchor {
	anchor := &outputAnchor{
		pc:       pc,
		name:     name,
		browseID: browseID,
		logger:   pc.logger.WithField(constants.AnchorKey, name),
	}

	if !pc.config.NoCache {
		anchor.buffer = record.NewBuffer(pc.config.CacheSize, anchor.writeBatch)
	}

	return anchor
}

var _ hyperstream.OutputAnchor = (*outputAnchor)(nil)

// Name returns the anchor name.
func (a *outputAnchor) Name() string { return a.name }

// IsOpen reports whether the anchor has been opened and not yet closed.
func (a *outputAnchor) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.isOpen
}

// Schema returns the schema the anchor was opened with.
func (a *outputAnchor) Schema() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.schema
}

// Layout returns the layout the anchor was opened with.
func (a *outputAnchor) Layout() record.Layout {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.layout
}

// NumConnections returns the number of attached downstream connections, open or not.
func (a *outputAnchor) NumConnections() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.connections)
}

// RecordCount returns how many records were accepted by at least one downstream connection.
func (a *outputAnchor) RecordCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.recordCount
}

// TotalDataSize returns the total size in bytes of the counted records.
func (a *outputAnchor) TotalDataSize() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.totalDataSize
}

// Metrics returns a snapshot of the anchor's counters.
func (a *outputAnchor) Metrics() hyperstream.AnchorMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.metricsLocked()
}

// Open announces the schema to the engine, attaches the browse-everywhere sink when one was
// reserved, and initializes every attached sink. Sinks that refuse the schema stay closed.
func (a *outputAnchor) Open(schema string, layout record.Layout) error {
	defer a.dispatch()

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.isOpen:
		return ewrap.Wrap(ErrAnchorAlreadyOpen, "opening output anchor").WithMetadata("anchor", a.name)
	case a.closed:
		return ewrap.Wrap(ErrAnchorClosed, "opening output anchor").WithMetadata("anchor", a.name)
	}

	err := layout.Validate()
	if err != nil {
		return ewrap.Wrap(err, "opening output anchor").WithMetadata("anchor", a.name)
	}

	a.schema = schema
	a.layout = layout

	a.notify(func() { a.pc.message(hyperstream.StatusUpdateOutputMetaInfo, schema) })

	if a.pc.engine != nil && a.browseID > 0 {
		sink := a.pc.engine.BrowseEverywhereGetConnection(a.browseID, a.pc.toolID, a.name)
		if sink != nil {
			a.connections = append(a.connections, &outputConnection{name: browseEverywhereSink, sink: sink})
		}
	}

	a.isOpen = true

	for _, conn := range a.connections {
		if !conn.initialized {
			a.initConnection(conn)
		}
	}

	a.logger.WithField("connections", len(a.connections)).Debug("output anchor opened")

	return nil
}

// Write validates rec against the anchor layout and queues it for fan-out.
func (a *outputAnchor) Write(rec []byte) error {
	defer a.dispatch()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return ewrap.Wrap(ErrAnchorNotOpen, "writing record").WithMetadata("anchor", a.name)
	}

	err := a.layout.Check(rec)
	if err != nil {
		return ewrap.Wrap(ErrLayoutMismatch, err.Error()).
			WithMetadata("anchor", a.name).
			WithMetadata("size", len(rec))
	}

	if a.buffer == nil {
		a.writeRecord(rec)

		return nil
	}

	err = a.buffer.Append(rec)
	if err != nil {
		return ewrap.Wrap(err, "buffering record").WithMetadata("anchor", a.name)
	}

	return nil
}

// UpdateProgress forwards progress to every open sink.
func (a *outputAnchor) UpdateProgress(percent float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, conn := range a.connections {
		if conn.isOpen {
			conn.sink.UpdateProgress(percent)
		}
	}
}

// Close flushes the buffered records and closes every open sink. Only an open anchor does
// anything; closing again is a no-op. The final record count is reported once, after the sinks
// are closed.
func (a *outputAnchor) Close() {
	defer a.dispatch()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return
	}

	if a.buffer != nil {
		a.closing = true
		a.buffer.Flush()
		a.closing = false
	}

	for _, conn := range a.connections {
		if conn.isOpen {
			conn.sink.Close()
			conn.isOpen = false
		}
	}

	a.isOpen = false
	a.closed = true

	a.reportStatus()

	a.logger.WithFields(
		hyperstream.Uint64(constants.RecordsKey, a.recordCount),
		hyperstream.Uint64(constants.BytesKey, a.totalDataSize),
	).Debug("output anchor closed")

	a.fire(&hyperstream.Event{
		Kind:    hyperstream.EventAnchorClosed,
		Anchor:  a.name,
		Records: a.recordCount,
	})
}

// attach appends a sink in the closed state. The caller holds pc.mu, so the completion cascade
// either sees the connection or has already refused it.
func (a *outputAnchor) attach(sink hyperstream.IncomingConnection) *outputConnection {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn := &outputConnection{
		name: sinkName(sink, len(a.connections)),
		sink: sink,
	}
	a.connections = append(a.connections, conn)

	a.logger.WithField(constants.SinkKey, conn.name).Debug("outgoing connection registered")

	return conn
}

// initLate initializes a sink attached after the anchor was opened.
func (a *outputAnchor) initLate(conn *outputConnection) {
	defer a.dispatch()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen && !conn.initialized {
		a.initConnection(conn)
	}
}

// release drops the buffer and frees every sink. Called by the completion cascade.
func (a *outputAnchor) release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buffer != nil {
		a.buffer.Release()
	}

	for _, conn := range a.connections {
		conn.sink.Free()
	}

	a.closed = true
}

func (a *outputAnchor) initConnection(conn *outputConnection) {
	conn.initialized = true
	conn.isOpen = conn.sink.Init(a.schema)
	if !conn.isOpen {
		a.reject(conn, "sink refused the schema")
	}
}

// writeBatch is the flush callback of the anchor buffer.
func (a *outputAnchor) writeBatch(batch []byte) {
	packet := record.NewPacket(batch, a.layout)
	for packet.Next() {
		a.writeRecord(packet.Record())
	}

	err := packet.Err()
	if err != nil {
		a.logger.WithError(err).Error("corrupt output batch")
	}

	a.batches++

	if !a.closing {
		a.reportStatus()
	}
}

// writeRecord pushes one record to every open connection. A connection that refuses it is
// closed and skipped from then on; the others still receive the record.
func (a *outputAnchor) writeRecord(rec []byte) {
	accepted := false

	for _, conn := range a.connections {
		if !conn.isOpen {
			continue
		}

		if conn.sink.PushRecord(rec) {
			accepted = true

			continue
		}

		conn.sink.Close()
		conn.isOpen = false
		a.reject(conn, "sink refused a record")
	}

	if accepted {
		a.recordCount++
		a.totalDataSize += uint64(len(rec))
	}

	a.sinceStatus++

	interval := a.pc.config.StatusInterval
	if interval > 0 && a.sinceStatus >= interval {
		a.reportStatus()
	}
}

func (a *outputAnchor) reject(conn *outputConnection, reason string) {
	a.rejected++

	a.logger.WithField(constants.SinkKey, conn.name).Warn(reason)

	a.fire(&hyperstream.Event{
		Kind:    hyperstream.EventSinkRejected,
		Anchor:  a.name,
		Sink:    conn.name,
		Records: a.recordCount,
	})
}

// reportStatus queues the record count message and a metrics snapshot.
func (a *outputAnchor) reportStatus() {
	a.sinceStatus = 0

	msg := hyperstream.RecordCountMessage(a.name, a.recordCount, a.totalDataSize)
	metrics := a.metricsLocked()

	a.notify(func() {
		a.pc.message(hyperstream.StatusRecordCount, msg)
		a.pc.emitMetrics(metrics)
	})
}

// notify queues an engine message, hook, or metrics call. Callers hold a.mu; the queue is
// drained by dispatch once the lock is released, so handlers may read the anchor.
func (a *outputAnchor) notify(fn func()) {
	a.pending = append(a.pending, fn)
}

func (a *outputAnchor) fire(event *hyperstream.Event) {
	a.notify(func() { a.pc.fire(event) })
}

// dispatch runs the queued notifications. It must be called without a.mu held.
func (a *outputAnchor) dispatch() {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (a *outputAnchor) metricsLocked() hyperstream.AnchorMetrics {
	open := 0

	for _, conn := range a.connections {
		if conn.isOpen {
			open++
		}
	}

	return hyperstream.AnchorMetrics{
		ToolID:          a.pc.toolID,
		Anchor:          a.name,
		Records:         a.recordCount,
		Bytes:           a.totalDataSize,
		Batches:         a.batches,
		Connections:     len(a.connections),
		OpenConnections: open,
		Rejected:        a.rejected,
	}
}

func sinkName(sink hyperstream.IncomingConnection, index int) string {
	if named, ok := sink.(interface{ Name() string }); ok && named.Name() != "" {
		return named.Name()
	}

	return fmt.Sprintf("%T[%d]", sink, index)
}
