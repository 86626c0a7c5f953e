package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperstream"
)

func TestExporter_KeepsLatestSnapshot(t *testing.T) {
	exporter := NewExporter()

	exporter.Observe(context.Background(), hyperstream.AnchorMetrics{ToolID: 1, Anchor: "Output", Records: 2, Bytes: 8})
	exporter.Observe(context.Background(), hyperstream.AnchorMetrics{
		ToolID: 1, Anchor: "Output", Records: 5, Bytes: 20, Batches: 1, Connections: 2, OpenConnections: 1, Rejected: 1,
	})

	expected := `
# HELP hyperstream_anchor_records_total Records accepted by at least one downstream connection.
# TYPE hyperstream_anchor_records_total counter
hyperstream_anchor_records_total{anchor="Output",tool_id="1"} 5
# HELP hyperstream_anchor_open_connections Downstream connections still open.
# TYPE hyperstream_anchor_open_connections gauge
hyperstream_anchor_open_connections{anchor="Output",tool_id="1"} 1
`

	err := testutil.CollectAndCompare(exporter, strings.NewReader(expected),
		"hyperstream_anchor_records_total", "hyperstream_anchor_open_connections")
	require.NoError(t, err)
	assert.Equal(t, 6, testutil.CollectAndCount(exporter))
}

func TestExporter_SeparatesAnchors(t *testing.T) {
	exporter := NewExporter()

	exporter.Observe(context.Background(), hyperstream.AnchorMetrics{ToolID: 1, Anchor: "True"})
	exporter.Observe(context.Background(), hyperstream.AnchorMetrics{ToolID: 1, Anchor: "False"})
	exporter.Observe(context.Background(), hyperstream.AnchorMetrics{ToolID: 2, Anchor: "True"})

	assert.Equal(t, 3, testutil.CollectAndCount(exporter, "hyperstream_anchor_records_total"))

	exporter.Reset()
	assert.Zero(t, testutil.CollectAndCount(exporter))
}

func TestExporter_Register(t *testing.T) {
	exporter := NewExporter()
	registry := prometheus.NewRegistry()

	require.NoError(t, exporter.Register(registry))
	require.Error(t, exporter.Register(registry))
}

func TestExporter_Handler(t *testing.T) {
	exporter := NewExporter()
	exporter.Observe(context.Background(), hyperstream.AnchorMetrics{ToolID: 3, Anchor: "Output", Records: 7})

	server := httptest.NewServer(exporter.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hyperstream_anchor_records_total{anchor="Output",tool_id="3"} 7`)
}

func TestExporter_AsGlobalHandler(t *testing.T) {
	t.Cleanup(hyperstream.ClearAnchorMetricsHandlers)

	exporter := NewExporter()
	hyperstream.RegisterAnchorMetricsHandler(exporter.Observe)

	hyperstream.EmitAnchorMetrics(context.Background(), hyperstream.AnchorMetrics{ToolID: 9, Anchor: "Output", Bytes: 4})

	assert.Equal(t, 6, testutil.CollectAndCount(exporter))
}
