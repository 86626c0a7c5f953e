package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/pkg/adapter"
)

func newLogEngine(t *testing.T, level hyperstream.Level) (*LogEngine, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer

	logger, err := adapter.NewAdapter(context.Background(), hyperstream.LogConfig{
		Level:            level,
		Output:           &buf,
		DisableTimestamp: true,
	})
	require.NoError(t, err)

	return NewLogEngine(logger), &buf
}

func TestLogEngine_Levels(t *testing.T) {
	e, buf := newLogEngine(t, hyperstream.DebugLevel)

	e.OutputMessage(7, hyperstream.StatusError, "boom")
	e.OutputMessage(7, hyperstream.StatusTransientWarning, "slow")
	e.OutputMessage(7, hyperstream.StatusComplete, "")
	e.OutputMessage(7, hyperstream.StatusRecordCount, "Output|1|4")

	assert.Equal(t,
		"[ERROR] boom {tool_id=7, status=error}\n"+
			"[ WARN] slow {tool_id=7, status=transient_warning}\n"+
			"[ INFO]  {tool_id=7, status=complete}\n"+
			"[DEBUG] Output|1|4 {tool_id=7, status=record_count}\n",
		buf.String())
}

func TestLogEngine_ProgressAtDebug(t *testing.T) {
	e, buf := newLogEngine(t, hyperstream.InfoLevel)

	e.OutputToolProgress(7, 0.5)
	assert.Empty(t, buf.String())

	e, buf = newLogEngine(t, hyperstream.DebugLevel)

	e.OutputToolProgress(7, 0.5)
	assert.Equal(t, "[DEBUG] tool progress {tool_id=7, progress=0.5}\n", buf.String())
}

func TestLogEngine_NoBrowseEverywhere(t *testing.T) {
	e := NewLogEngine(nil)

	assert.Zero(t, e.BrowseEverywhereReserveAnchor(1))
	assert.Nil(t, e.BrowseEverywhereGetConnection(1, 1, "Output"))

	require.NotPanics(t, func() {
		e.OutputMessage(1, hyperstream.StatusInfo, "discarded")
	})
}
