package record

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchCollector struct {
	batches [][]byte
}

func (c *batchCollector) consume(batch []byte) {
	c.batches = append(c.batches, bytes.Clone(batch))
}

func TestBuffer_LazyAllocation(t *testing.T) {
	buf := NewBuffer(0, nil)
	assert.Equal(t, 0, buf.Capacity())

	require.NoError(t, buf.Append([]byte{1, 2, 3}))
	assert.Equal(t, DefaultCapacity, buf.Capacity())
	assert.Equal(t, 3, buf.Len())
}

func TestBuffer_NoSplitRecords(t *testing.T) {
	layout := Layout{FixedSize: 6, HasVarFields: true}
	rng := rand.New(rand.NewPCG(7, 11))
	collector := &batchCollector{}
	buf := NewBuffer(64, collector.consume)

	var records [][]byte

	for range 500 {
		rec := buildVarRecord(layout.FixedSize, rng.IntN(40))
		records = append(records, rec)
		require.NoError(t, buf.Append(rec))
	}

	buf.Flush()

	var (
		joined   []byte
		replayed [][]byte
	)

	for _, batch := range collector.batches {
		assert.LessOrEqual(t, len(batch), 64)

		joined = append(joined, batch...)

		packet := NewPacket(batch, layout)
		for packet.Next() {
			replayed = append(replayed, bytes.Clone(packet.Record()))
		}

		require.NoError(t, packet.Err(), "batch boundary fell inside a record")
	}

	assert.Equal(t, bytes.Join(records, nil), joined)
	assert.Equal(t, records, replayed)
	assert.Equal(t, uint64(len(collector.batches)), buf.Flushes())
}

func TestBuffer_GrowOnOversize(t *testing.T) {
	collector := &batchCollector{}
	buf := NewBuffer(16, collector.consume)

	small := bytes.Repeat([]byte{1}, 10)
	large := bytes.Repeat([]byte{2}, 40)

	require.NoError(t, buf.Append(small))
	assert.Equal(t, 16, buf.Capacity())

	require.NoError(t, buf.Append(large))
	assert.Equal(t, 40, buf.Capacity(), "buffer grows to exactly the oversized record")
	require.Len(t, collector.batches, 1, "buffered bytes are flushed before reallocation")
	assert.Equal(t, small, collector.batches[0])

	buf.Flush()
	require.Len(t, collector.batches, 2)
	assert.Equal(t, large, collector.batches[1])
}

func TestBuffer_FlushOnFull(t *testing.T) {
	collector := &batchCollector{}
	buf := NewBuffer(10, collector.consume)

	require.NoError(t, buf.Append([]byte{1, 2, 3, 4}))
	require.NoError(t, buf.Append([]byte{5, 6, 7, 8}))
	assert.Empty(t, collector.batches)

	require.NoError(t, buf.Append([]byte{9, 10, 11}))
	require.Len(t, collector.batches, 1)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, collector.batches[0])
	assert.Equal(t, 3, buf.Len())
}

func TestBuffer_ExactFillDoesNotFlush(t *testing.T) {
	collector := &batchCollector{}
	buf := NewBuffer(8, collector.consume)

	require.NoError(t, buf.Append([]byte{1, 2, 3}))
	require.NoError(t, buf.Append([]byte{4, 5, 6, 7, 8}))

	assert.Empty(t, collector.batches, "a record ending exactly at capacity stays buffered")
	assert.Equal(t, 8, buf.Len())
	assert.Equal(t, 8, buf.Capacity())

	require.NoError(t, buf.Append([]byte{9}))
	require.Len(t, collector.batches, 1)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, collector.batches[0])
	assert.Equal(t, 1, buf.Len())
}

func TestBuffer_FlushEmptyIsNoop(t *testing.T) {
	calls := 0
	buf := NewBuffer(8, func([]byte) { calls++ })

	buf.Flush()
	require.NoError(t, buf.Append([]byte{1}))
	buf.Flush()
	buf.Flush()

	assert.Equal(t, 1, calls)
}

func TestBuffer_Release(t *testing.T) {
	calls := 0
	buf := NewBuffer(8, func([]byte) { calls++ })

	require.NoError(t, buf.Append([]byte{1, 2}))
	buf.Release()

	assert.Equal(t, 0, buf.Capacity())
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 0, calls)
}

func TestBuffer_ResourceExhausted(t *testing.T) {
	original := totalMemory
	totalMemory = func() uint64 { return 8 }

	t.Cleanup(func() { totalMemory = original })

	buf := NewBuffer(4, nil)
	err := buf.Append(make([]byte, 16))
	require.ErrorIs(t, err, ErrResourceExhausted)
}

func TestPacket_StopsOnCorruptFrame(t *testing.T) {
	layout := Layout{FixedSize: 2, HasVarFields: true}
	good := buildVarRecord(2, 3)
	corrupt := buildVarRecord(2, 3)
	corrupt[2] = 0xFF // var length now points far past the batch

	packet := NewPacket(append(append([]byte{}, good...), corrupt...), layout)

	require.True(t, packet.Next())
	assert.Equal(t, good, packet.Record())
	assert.False(t, packet.Next())
	require.ErrorIs(t, packet.Err(), ErrFrameOverrun)
	assert.Equal(t, 1, packet.Count())
	assert.Nil(t, packet.Record())
}

func TestPacket_Empty(t *testing.T) {
	packet := NewPacket(nil, Layout{FixedSize: 1})
	assert.False(t, packet.Next())
	require.NoError(t, packet.Err())
}
