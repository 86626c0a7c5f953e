// Package sink provides downstream connections for output anchors: an in-memory Collector,
// sinks that write framed records to a writer or to rotating files, and a gRPC sink that
// streams records to a remote process.
package sink

import (
	"bytes"
	"slices"
	"sync"

	"github.com/hyp3rd/hyperstream"
)

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithRejectInit makes the collector refuse every schema.
func WithRejectInit() CollectorOption {
	return func(c *Collector) {
		c.rejectInit = true
	}
}

// WithRejectAt makes the collector refuse its n-th push (1-based).
func WithRejectAt(n int) CollectorOption {
	return func(c *Collector) {
		c.rejectAt = n
	}
}

// Collector keeps every record it receives in memory. It is safe for concurrent use.
type Collector struct {
	name string

	mu         sync.Mutex
	schema     string
	records    [][]byte
	progress   float64
	inits      int
	pushes     int
	closes     int
	frees      int
	rejectInit bool
	rejectAt   int
}

// NewCollector creates a named collector.
func NewCollector(name string, opts ...CollectorOption) *Collector {
	c := &Collector{name: name}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ hyperstream.IncomingConnection = (*Collector)(nil)

// Name returns the collector name.
func (c *Collector) Name() string { return c.name }

// Init stores the schema.
func (c *Collector) Init(schema string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inits++
	if c.rejectInit {
		return false
	}

	c.schema = schema

	return true
}

// PushRecord keeps a copy of rec.
func (c *Collector) PushRecord(rec []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pushes++
	if c.closes > 0 || (c.rejectAt > 0 && c.pushes == c.rejectAt) {
		return false
	}

	c.records = append(c.records, bytes.Clone(rec))

	return true
}

// UpdateProgress stores the latest progress.
func (c *Collector) UpdateProgress(percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.progress = percent
}

// Close counts the close.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closes++
}

// Free counts the release.
func (c *Collector) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frees++
}

// Schema returns the schema received by Init.
func (c *Collector) Schema() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.schema
}

// Records returns the accepted records in arrival order.
func (c *Collector) Records() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.records)
}

// Count returns the number of accepted records.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.records)
}

// Progress returns the latest progress.
func (c *Collector) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.progress
}

// Inits returns how many times Init was called.
func (c *Collector) Inits() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inits
}

// Closes returns how many times Close was called.
func (c *Collector) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closes
}

// Frees returns how many times Free was called.
func (c *Collector) Frees() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.frees
}
