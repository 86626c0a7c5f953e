package stream

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/constants"
	"github.com/hyp3rd/hyperstream/pkg/record"
)

// ingester is how an input connection hands records to the plugin.
type ingester interface {
	push(rec []byte) error
	flush()
	release()
}

// bufferedIngest batches records in a record buffer and delivers each flushed batch.
type bufferedIngest struct {
	buffer *record.Buffer
}

func (b *bufferedIngest) push(rec []byte) error { return b.buffer.Append(rec) }
func (b *bufferedIngest) flush()                { b.buffer.Flush() }
func (b *bufferedIngest) release()              { b.buffer.Release() }

// directIngest delivers every record as its own packet.
type directIngest struct {
	deliver record.BatchFunc
}

func (d *directIngest) push(rec []byte) error {
	d.deliver(rec)

	return nil
}

func (*directIngest) flush()   {}
func (*directIngest) release() {}

// inputConnection is one inbound stream. It moves through
// Created -> Initialized -> Receiving -> Closed.
//
// The engine pushes into a connection from one goroutine at a time; mu only guards against
// the completion cascade releasing the connection from another goroutine.
type inputConnection struct {
	id     string
	anchor string
	pc     *PluginContext
	logger hyperstream.Logger

	mu      sync.Mutex
	ingest  ingester
	schema  string
	layout  record.Layout
	status  atomic.Uint32
	percent atomic.Uint64
	records atomic.Uint64
}

func newInputConnection(pc *PluginContext, anchor string, noCache bool) *inputConnection {
	conn := &inputConnection{
		id:     uuid.NewString(),
		anchor: anchor,
		pc:     pc,
	}

	conn.logger = pc.logger.WithFields(
		hyperstream.Str(constants.AnchorKey, anchor),
		hyperstream.Str(constants.ConnectionKey, conn.id),
	)

	if noCache {
		conn.ingest = &directIngest{deliver: conn.deliver}
	} else {
		conn.ingest = &bufferedIngest{buffer: record.NewBuffer(pc.config.CacheSize, conn.deliver)}
	}

	conn.status.Store(uint32(hyperstream.StatusCreated))

	return conn
}

var (
	_ hyperstream.IncomingConnection = (*inputConnection)(nil)
	_ hyperstream.InputConnection    = (*inputConnection)(nil)
)

// ID returns the connection id.
func (c *inputConnection) ID() string { return c.id }

// Name returns the input anchor name.
func (c *inputConnection) Name() string { return c.anchor }

// Schema returns the schema passed to Init.
func (c *inputConnection) Schema() string { return c.schema }

// Layout returns the record layout resolved from the schema.
func (c *inputConnection) Layout() record.Layout { return c.layout }

// Progress returns the last progress reported upstream.
func (c *inputConnection) Progress() float64 {
	return math.Float64frombits(c.percent.Load())
}

// Status returns the lifecycle state.
func (c *inputConnection) Status() hyperstream.ConnectionStatus {
	//nolint:gosec // only ConnectionStatus values are stored.
	return hyperstream.ConnectionStatus(c.status.Load())
}

// Init stores the schema, resolves its layout, and announces the connection to the plugin.
func (c *inputConnection) Init(schema string) bool {
	if !c.init(schema) {
		return false
	}

	c.pc.fire(&hyperstream.Event{
		Kind:         hyperstream.EventConnectionOpened,
		Anchor:       c.anchor,
		ConnectionID: c.id,
	})

	return true
}

func (c *inputConnection) init(schema string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() != hyperstream.StatusCreated {
		c.logger.WithField("status", c.Status().String()).Warn("init on a connection that is not new")

		return false
	}

	layout, err := c.pc.resolver.ResolveLayout(schema)
	if err != nil {
		c.logger.WithError(err).Warn("cannot resolve record layout from schema")

		return false
	}

	c.schema = schema
	c.layout = layout
	c.status.Store(uint32(hyperstream.StatusInitialized))

	err = c.pc.plugin.OnInputConnectionOpened(c)
	if err != nil {
		c.logger.WithError(err).Warn("plugin rejected input connection")
		c.status.Store(uint32(hyperstream.StatusCreated))

		return false
	}

	return true
}

// PushRecord queues rec for the plugin. It returns false when the connection is not accepting
// records or when rec is not exactly one well-formed record; neither closes the connection.
func (c *inputConnection) PushRecord(rec []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.Status()
	if status != hyperstream.StatusInitialized && status != hyperstream.StatusReceiving {
		c.logger.WithField("status", status.String()).Warn("record pushed to a connection that is not receiving")

		return false
	}

	err := c.layout.Check(rec)
	if err != nil {
		c.logger.WithError(err).Warn("dropping malformed record")

		return false
	}

	err = c.ingest.push(rec)
	if err != nil {
		c.logger.WithError(err).Error("cannot buffer record")
		c.pc.io.Error("input " + c.anchor + ": " + err.Error())

		return false
	}

	c.records.Add(1)
	c.status.Store(uint32(hyperstream.StatusReceiving))

	return true
}

// UpdateProgress records the producer's progress.
func (c *inputConnection) UpdateProgress(percent float64) {
	c.percent.Store(math.Float64bits(percent))
}

// Close flushes what is buffered, closes the connection, and counts it toward completion.
// Closing twice is a no-op.
func (c *inputConnection) Close() {
	c.mu.Lock()

	if c.Status() == hyperstream.StatusClosed {
		c.mu.Unlock()

		return
	}

	c.ingest.flush()
	c.status.Store(uint32(hyperstream.StatusClosed))
	c.ingest.release()
	c.mu.Unlock()

	records := c.records.Load()
	c.logger.WithField(constants.RecordsKey, records).Debug("incoming connection closed")

	c.pc.fire(&hyperstream.Event{
		Kind:         hyperstream.EventConnectionClosed,
		Anchor:       c.anchor,
		ConnectionID: c.id,
		Records:      records,
	})

	c.pc.inputClosed()
}

// Free releases the connection's buffer.
func (c *inputConnection) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ingest.release()
}

// release is called by the completion cascade. It closes the connection without counting it.
func (c *inputConnection) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Store(uint32(hyperstream.StatusClosed))
	c.ingest.release()
}

// deliver hands one batch to the plugin.
func (c *inputConnection) deliver(batch []byte) {
	c.pc.plugin.OnRecordPacket(c, record.NewPacket(batch, c.layout))
}
