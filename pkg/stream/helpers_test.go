package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/pkg/engine"
	"github.com/hyp3rd/hyperstream/pkg/record"
)

const outputName = "Output"

var fixed4 = record.Layout{FixedSize: 4}

// passthrough copies every input record to the "Output" anchor.
type passthrough struct {
	provider hyperstream.Provider
	openErr  error
	initErr  error

	mu        sync.Mutex
	packets   int
	records   int
	opened    []string
	completes atomic.Int32
}

func (p *passthrough) Init(provider hyperstream.Provider) error {
	p.provider = provider

	return p.initErr
}

func (p *passthrough) OnInputConnectionOpened(conn hyperstream.InputConnection) error {
	if p.openErr != nil {
		return p.openErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.opened = append(p.opened, conn.ID())

	anchor := p.provider.GetOutputAnchor(outputName)
	if anchor.IsOpen() {
		return nil
	}

	return anchor.Open(conn.Schema(), conn.Layout())
}

func (p *passthrough) OnRecordPacket(_ hyperstream.InputConnection, packet hyperstream.RecordPacket) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.packets++

	anchor := p.provider.GetOutputAnchor(outputName)
	for packet.Next() {
		if anchor.Write(packet.Record()) == nil {
			p.records++
		}
	}
}

func (p *passthrough) OnComplete() {
	p.completes.Add(1)
}

func (p *passthrough) Packets() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.packets
}

func (p *passthrough) Records() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.records
}

func newContext(t *testing.T, plugin hyperstream.Plugin, opts ...Option) *PluginContext {
	t.Helper()

	pc, err := New(context.Background(), 1, plugin, opts...)
	require.NoError(t, err)

	return pc
}

func newRecorded(t *testing.T, opts ...Option) (*PluginContext, *passthrough, *engine.Recorder) {
	t.Helper()

	recorder := engine.NewRecorder()
	plugin := &passthrough{}
	pc := newContext(t, plugin, append([]Option{WithEngine(recorder)}, opts...)...)

	return pc, plugin, recorder
}

func rec4(i int) []byte {
	return []byte{byte(i), byte(i >> 8), 0, 0}
}

func openInput(t *testing.T, pc *PluginContext, name string) hyperstream.IncomingConnection {
	t.Helper()

	conn, err := pc.AddIncomingConnection(name)
	require.NoError(t, err)
	require.True(t, conn.Init(fixed4.String()))

	return conn
}

func pushN(t *testing.T, conn hyperstream.IncomingConnection, n int) {
	t.Helper()

	for i := range n {
		require.True(t, conn.PushRecord(rec4(i)))
	}
}
