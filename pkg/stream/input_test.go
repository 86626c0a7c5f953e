package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/pkg/record"
)

func TestInputConnection_StateMachine(t *testing.T) {
	pc, _, _ := newRecorded(t)

	incoming, err := pc.AddIncomingConnection("Input")
	require.NoError(t, err)

	conn, ok := incoming.(hyperstream.InputConnection)
	require.True(t, ok)

	assert.Equal(t, hyperstream.StatusCreated, conn.Status())
	assert.False(t, incoming.PushRecord(rec4(1)), "push before init")

	require.True(t, incoming.Init(fixed4.String()))
	assert.Equal(t, hyperstream.StatusInitialized, conn.Status())
	assert.False(t, incoming.Init(fixed4.String()), "second init")

	require.True(t, incoming.PushRecord(rec4(1)))
	assert.Equal(t, hyperstream.StatusReceiving, conn.Status())
	assert.Equal(t, fixed4, conn.Layout())
	assert.Equal(t, "Input", conn.Name())

	incoming.UpdateProgress(0.4)
	assert.InDelta(t, 0.4, conn.Progress(), 0)

	incoming.Close()
	assert.Equal(t, hyperstream.StatusClosed, conn.Status())
	assert.False(t, incoming.PushRecord(rec4(2)), "push after close")
}

func TestInputConnection_UnresolvableSchema(t *testing.T) {
	pc, _, _ := newRecorded(t)

	conn, err := pc.AddIncomingConnection("Input")
	require.NoError(t, err)

	assert.False(t, conn.Init("<RecordInfo/>"))
	assert.True(t, conn.Init(fixed4.String()), "a failed init leaves the connection new")
}

func TestInputConnection_PluginRejects(t *testing.T) {
	plugin := &passthrough{openErr: errors.New("unsupported schema")}
	pc := newContext(t, plugin)

	incoming, err := pc.AddIncomingConnection("Input")
	require.NoError(t, err)

	assert.False(t, incoming.Init(fixed4.String()))
	assert.Equal(t, hyperstream.StatusCreated, incoming.(hyperstream.InputConnection).Status())
}

func TestInputConnection_StaticResolver(t *testing.T) {
	plugin := &passthrough{}
	pc := newContext(t, plugin, WithLayoutResolver(hyperstream.StaticResolver(fixed4)))

	conn, err := pc.AddIncomingConnection("Input")
	require.NoError(t, err)

	require.True(t, conn.Init("<RecordInfo><Field name=\"id\" type=\"Int32\"/></RecordInfo>"))
	assert.True(t, conn.PushRecord(rec4(1)))
}

func TestInputConnection_MalformedRecordKeepsConnectionOpen(t *testing.T) {
	layout := record.Layout{FixedSize: 2, HasVarFields: true}
	pc, plugin, _ := newRecorded(t)

	conn, err := pc.AddIncomingConnection("Input")
	require.NoError(t, err)
	require.True(t, conn.Init(layout.String()))

	// fixed prefix, then a var length of 100 with only 1 byte following.
	assert.False(t, conn.PushRecord([]byte{1, 2, 100, 0, 0, 0, 9}))
	assert.False(t, conn.PushRecord([]byte{1}))

	valid, err := layout.Build([]byte{1, 2}, []byte("hello"))
	require.NoError(t, err)
	assert.True(t, conn.PushRecord(valid))

	conn.Close()
	assert.Equal(t, 1, plugin.Records())
}

func TestInputConnection_TrailingBytesRefused(t *testing.T) {
	layout := record.Layout{FixedSize: 2, HasVarFields: true}
	pc, plugin, _ := newRecorded(t)

	conn, err := pc.AddIncomingConnection("Input")
	require.NoError(t, err)
	require.True(t, conn.Init(layout.String()))

	valid, err := layout.Build([]byte{1, 2}, []byte("hi"))
	require.NoError(t, err)

	trailing := append(append([]byte{}, valid...), 0xFF, 0xFF)
	assert.False(t, conn.PushRecord(trailing))
	assert.False(t, conn.PushRecord(rec4(1)), "a fixed-only record is not a var-field frame")
	assert.True(t, conn.PushRecord(valid))

	conn.Close()
	assert.Equal(t, 1, plugin.Records())
}

func TestInputConnection_BuffersUntilFull(t *testing.T) {
	config := hyperstream.DefaultConfig()
	config.CacheSize = 8

	pc, plugin, _ := newRecorded(t, WithConfig(config))

	conn := openInput(t, pc, "Input")
	pushN(t, conn, 5)

	assert.Equal(t, 2, plugin.Packets(), "two full batches of two records")

	conn.Close()
	assert.Equal(t, 3, plugin.Packets())
	assert.Equal(t, 5, plugin.Records())
}

func TestInputConnection_NoCacheDeliversEachRecord(t *testing.T) {
	config := hyperstream.DefaultConfig()
	config.NoCache = true

	pc, plugin, _ := newRecorded(t, WithConfig(config))

	conn := openInput(t, pc, "Input")
	pushN(t, conn, 3)

	assert.Equal(t, 3, plugin.Packets())

	conn.Close()
	assert.Equal(t, 3, plugin.Packets())
}

func TestInputConnection_OversizedRecordGrowsBuffer(t *testing.T) {
	layout := record.Layout{FixedSize: 1, HasVarFields: true}
	config := hyperstream.DefaultConfig()
	config.CacheSize = 16

	pc, plugin, _ := newRecorded(t, WithConfig(config))

	conn, err := pc.AddIncomingConnection("Input")
	require.NoError(t, err)
	require.True(t, conn.Init(layout.String()))

	small, err := layout.Build([]byte{1}, []byte("ab"))
	require.NoError(t, err)

	big, err := layout.Build([]byte{2}, make([]byte, 64))
	require.NoError(t, err)

	require.True(t, conn.PushRecord(small))
	require.True(t, conn.PushRecord(big))
	conn.Close()

	assert.Equal(t, 2, plugin.Records())
}
