// Package metrics exports output anchor counters to Prometheus.
//
// An Exporter keeps the latest AnchorMetrics snapshot of every (tool, anchor) pair and
// reports them as Prometheus metrics on each scrape:
//
//	exporter := metrics.NewExporter()
//	hyperstream.RegisterAnchorMetricsHandler(exporter.Observe)
//	http.Handle("/metrics", exporter.Handler())
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/hyp3rd/ewrap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/constants"
)

const subsystem = "anchor"

type anchorKey struct {
	toolID int
	anchor string
}

// Exporter is a prometheus.Collector over anchor snapshots.
type Exporter struct {
	registry *prometheus.Registry

	records         *prometheus.Desc
	bytes           *prometheus.Desc
	batches         *prometheus.Desc
	rejected        *prometheus.Desc
	connections     *prometheus.Desc
	openConnections *prometheus.Desc

	mu        sync.RWMutex
	snapshots map[anchorKey]hyperstream.AnchorMetrics
}

// NewExporter creates an exporter registered on its own registry.
func NewExporter() *Exporter {
	labels := []string{"tool_id", "anchor"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(constants.MetricsNamespace, subsystem, name), help, labels, nil)
	}

	exporter := &Exporter{
		registry:        prometheus.NewRegistry(),
		records:         desc("records_total", "Records accepted by at least one downstream connection."),
		bytes:           desc("bytes_total", "Bytes of the accepted records."),
		batches:         desc("batches_total", "Record buffer flushes."),
		rejected:        desc("rejected_connections_total", "Downstream connections closed after a rejection."),
		connections:     desc("connections", "Attached downstream connections."),
		openConnections: desc("open_connections", "Downstream connections still open."),
		snapshots:       make(map[anchorKey]hyperstream.AnchorMetrics),
	}

	exporter.registry.MustRegister(exporter)

	return exporter
}

// Observe stores a snapshot. Its signature matches hyperstream.AnchorMetricsHandler.
func (e *Exporter) Observe(_ context.Context, metrics hyperstream.AnchorMetrics) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.snapshots[anchorKey{toolID: metrics.ToolID, anchor: metrics.Anchor}] = metrics
}

// Reset forgets every snapshot.
func (e *Exporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.snapshots)
}

// Register adds the exporter to another registerer, such as prometheus.DefaultRegisterer.
func (e *Exporter) Register(registerer prometheus.Registerer) error {
	err := registerer.Register(e)
	if err != nil {
		return ewrap.Wrap(err, "registering anchor metrics")
	}

	return nil
}

// Registry returns the exporter's own registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the exporter's registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.records
	ch <- e.bytes
	ch <- e.batches
	ch <- e.rejected
	ch <- e.connections
	ch <- e.openConnections
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for key, snapshot := range e.snapshots {
		toolID := strconv.Itoa(key.toolID)

		ch <- prometheus.MustNewConstMetric(e.records, prometheus.CounterValue, float64(snapshot.Records), toolID, key.anchor)
		ch <- prometheus.MustNewConstMetric(e.bytes, prometheus.CounterValue, float64(snapshot.Bytes), toolID, key.anchor)
		ch <- prometheus.MustNewConstMetric(e.batches, prometheus.CounterValue, float64(snapshot.Batches), toolID, key.anchor)
		ch <- prometheus.MustNewConstMetric(e.rejected, prometheus.CounterValue, float64(snapshot.Rejected), toolID, key.anchor)
		ch <- prometheus.MustNewConstMetric(e.connections, prometheus.GaugeValue, float64(snapshot.Connections), toolID, key.anchor)
		ch <- prometheus.MustNewConstMetric(e.openConnections, prometheus.GaugeValue, float64(snapshot.OpenConnections), toolID, key.anchor)
	}
}
