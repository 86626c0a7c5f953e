package hyperstream

import (
	"context"
	"sync"

	"github.com/hyp3rd/hyperstream/internal/constants"
)

// AnchorMetrics is a snapshot of an output anchor's counters.
type AnchorMetrics struct {
	ToolID int
	Anchor string
	// Records is the number of records accepted by at least one downstream connection.
	Records uint64
	// Bytes is the total size of those records.
	Bytes uint64
	// Batches is the number of buffer flushes.
	Batches uint64
	// Connections is the number of attached downstream connections.
	Connections int
	// OpenConnections is the number of those still open.
	OpenConnections int
	// Rejected counts downstream connections closed after refusing a record or the schema.
	Rejected uint64
}

// AnchorMetricsHandler receives anchor metrics snapshots. Handlers run synchronously after the
// anchor lock is released; they may read the plugin context but must not write records.
type AnchorMetricsHandler func(context.Context, AnchorMetrics)

//nolint:gochecknoglobals // anchor metrics use a package-level registry for global handlers.
var anchorMetricsRegistryOnce = sync.OnceValue(func() *anchorMetricsHandlerRegistry {
	return &anchorMetricsHandlerRegistry{}
})

// RegisterAnchorMetricsHandler adds a global handler invoked whenever an anchor reports metrics.
func RegisterAnchorMetricsHandler(handler AnchorMetricsHandler) {
	if handler == nil {
		return
	}

	anchorMetricsRegistryOnce().register(handler)
}

// ClearAnchorMetricsHandlers removes all registered anchor metrics handlers.
func ClearAnchorMetricsHandlers() {
	anchorMetricsRegistryOnce().reset()
}

// EmitAnchorMetrics notifies global handlers with the provided snapshot.
func EmitAnchorMetrics(ctx context.Context, metrics AnchorMetrics) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	anchorMetricsRegistryOnce().emit(ctx, metrics)
}

type anchorMetricsHandlerRegistry struct {
	mu       sync.RWMutex
	handlers []AnchorMetricsHandler
}

func (r *anchorMetricsHandlerRegistry) register(handler AnchorMetricsHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
}

func (r *anchorMetricsHandlerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = nil
}

func (r *anchorMetricsHandlerRegistry) emit(ctx context.Context, metrics AnchorMetrics) {
	for _, handler := range r.snapshot() {
		handler(ctx, metrics)
	}
}

func (r *anchorMetricsHandlerRegistry) snapshot() []AnchorMetricsHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.handlers) == 0 {
		return nil
	}

	clone := make([]AnchorMetricsHandler, len(r.handlers))
	copy(clone, r.handlers)

	return clone
}
