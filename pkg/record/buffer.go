package record

import (
	"github.com/hyp3rd/ewrap"
	"github.com/pbnjay/memory"
)

// DefaultCapacity is the default size of a record buffer (4MB).
const DefaultCapacity = 4 * 1024 * 1024

//nolint:gochecknoglobals // overridden in tests.
var totalMemory = memory.TotalMemory

// BatchFunc consumes one flushed batch. The slice aliases the buffer's storage and is only
// valid for the duration of the call.
type BatchFunc func(batch []byte)

// Buffer accumulates framed records until they no longer fit, then hands the accumulated
// bytes to its BatchFunc as one batch. Batch boundaries always fall on record boundaries.
//
// A Buffer is owned by a single connection or anchor and is not safe for concurrent use.
type Buffer struct {
	data        []byte
	position    int
	defaultSize int
	onFlush     BatchFunc
	flushes     uint64
}

// NewBuffer creates a buffer that flushes into onFlush. Storage is allocated lazily on the
// first Append; defaultSize <= 0 selects DefaultCapacity.
func NewBuffer(defaultSize int, onFlush BatchFunc) *Buffer {
	if defaultSize <= 0 {
		defaultSize = DefaultCapacity
	}

	return &Buffer{
		defaultSize: defaultSize,
		onFlush:     onFlush,
	}
}

// Append copies rec into the buffer.
//
// If rec does not fit in the remaining space the buffered records are flushed first. A record
// larger than the current capacity reallocates the storage to max(defaultSize, len(rec));
// anything buffered before the reallocation is flushed, never discarded.
func (b *Buffer) Append(rec []byte) error {
	size := len(rec)

	if size > len(b.data) {
		b.Flush()

		err := b.grow(max(b.defaultSize, size))
		if err != nil {
			return err
		}
	}

	if b.position+size > len(b.data) {
		b.Flush()
	}

	copy(b.data[b.position:], rec)
	b.position += size

	return nil
}

// Flush hands the buffered bytes to the consumer and resets the position.
// It is a no-op when nothing is buffered.
func (b *Buffer) Flush() {
	if b.position == 0 {
		return
	}

	batch := b.data[:b.position]
	b.position = 0
	b.flushes++

	if b.onFlush != nil {
		b.onFlush(batch)
	}
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return b.position
}

// Capacity returns the size of the current storage (0 before the first Append).
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Flushes returns how many batches have been handed to the consumer.
func (b *Buffer) Flushes() uint64 {
	return b.flushes
}

// Release drops the storage without flushing.
func (b *Buffer) Release() {
	b.data = nil
	b.position = 0
}

// grow is the single reallocation point of the buffer.
func (b *Buffer) grow(size int) error {
	data, err := allocate(size)
	if err != nil {
		return err
	}

	b.data = data

	return nil
}

func allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, ewrap.Wrap(ErrResourceExhausted, "negative buffer size").
			WithMetadata("size", size)
	}

	if total := totalMemory(); total > 0 && uint64(size) > total {
		return nil, ewrap.Wrap(ErrResourceExhausted, "record buffer larger than system memory").
			WithMetadata("size", size).
			WithMetadata("total_memory", total)
	}

	return make([]byte, size), nil
}
