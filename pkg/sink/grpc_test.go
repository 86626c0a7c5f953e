package sink

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hyp3rd/hyperstream"
)

type remote struct {
	mu       sync.Mutex
	anchors  []string
	toolIDs  []int
	targets  []*Collector
	collOpts []CollectorOption
}

func (r *remote) open(_ context.Context, anchor string, toolID int) (hyperstream.IncomingConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := NewCollector(anchor, r.collOpts...)
	r.anchors = append(r.anchors, anchor)
	r.toolIDs = append(r.toolIDs, toolID)
	r.targets = append(r.targets, target)

	return target, nil
}

func (r *remote) target(t *testing.T) *Collector {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	require.Len(t, r.targets, 1)

	return r.targets[0]
}

func startRemote(t *testing.T, opts ...CollectorOption) (*remote, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	r := &remote{collOpts: opts}

	RegisterRecordSinkServer(server, r.open)

	go func() {
		_ = server.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()

		server.Stop()
	})

	return r, conn
}

func TestGRPCSink_StreamsRecords(t *testing.T) {
	r, conn := startRemote(t)

	s := NewGRPCSink(context.Background(), conn, "Output", WithToolID(7))

	require.True(t, s.Init("fixed_size=1"))
	require.True(t, s.PushRecord([]byte{1}))
	require.True(t, s.PushRecord([]byte{2}))
	require.True(t, s.PushRecord([]byte{3}))
	s.UpdateProgress(0.75)
	s.Close()
	s.Free()

	require.NoError(t, s.Err())
	assert.Equal(t, uint64(3), s.Accepted())

	target := r.target(t)
	assert.Equal(t, "fixed_size=1", target.Schema())
	assert.Equal(t, [][]byte{{1}, {2}, {3}}, target.Records())
	assert.InDelta(t, 0.75, target.Progress(), 0)
	assert.Equal(t, 1, target.Closes())
	assert.Equal(t, 1, target.Frees())

	r.mu.Lock()
	defer r.mu.Unlock()

	assert.Equal(t, []string{"Output"}, r.anchors)
	assert.Equal(t, []int{7}, r.toolIDs)
}

func TestGRPCSink_RemoteRejection(t *testing.T) {
	r, conn := startRemote(t, WithRejectAt(2))

	s := NewGRPCSink(context.Background(), conn, "Output")

	require.True(t, s.Init("fixed_size=1"))
	s.PushRecord([]byte{1})
	s.PushRecord([]byte{2})
	s.PushRecord([]byte{3})
	s.Close()

	require.Error(t, s.Err())
	assert.Equal(t, [][]byte{{1}}, r.target(t).Records())
	assert.False(t, s.PushRecord([]byte{4}))
}

func TestGRPCSink_CloseWithoutInit(t *testing.T) {
	_, conn := startRemote(t)

	s := NewGRPCSink(context.Background(), conn, "Output")
	s.Close()

	require.NoError(t, s.Err())
	assert.False(t, s.Init("s"))
}
