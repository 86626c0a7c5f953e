package hyperstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAnchorMetricsHandler(t *testing.T) {
	ClearAnchorMetricsHandlers()
	t.Cleanup(ClearAnchorMetricsHandlers)

	var got AnchorMetrics

	RegisterAnchorMetricsHandler(nil)
	RegisterAnchorMetricsHandler(func(ctx context.Context, metrics AnchorMetrics) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)

		got = metrics
	})

	EmitAnchorMetrics(context.Background(), AnchorMetrics{Anchor: "Output", Records: 3, Bytes: 30})

	assert.Equal(t, "Output", got.Anchor)
	assert.Equal(t, uint64(3), got.Records)
	assert.Equal(t, uint64(30), got.Bytes)

	ClearAnchorMetricsHandlers()

	got = AnchorMetrics{}
	EmitAnchorMetrics(context.Background(), AnchorMetrics{Anchor: "ignored"})
	assert.Empty(t, got.Anchor)
}
