package sink

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/output"
	"github.com/hyp3rd/hyperstream/pkg/record"
)

// streamMagic opens every stream written by a WriterSink.
var streamMagic = []byte("HSR1")

const headerLengthSize = 4

// WriterSink writes a stream header followed by the raw framed records to a writer.
// The header is the magic "HSR1", the schema length as uint32 LE, and the schema bytes.
type WriterSink struct {
	name string

	mu     sync.Mutex
	out    output.Writer
	open   func(schema string) (output.Writer, error)
	onErr  func(error)
	closed bool
	count  uint64
	bytes  uint64
}

// WriterOption configures a WriterSink.
type WriterOption func(*WriterSink)

// WithErrorHandler is called with every write failure.
func WithErrorHandler(handler func(error)) WriterOption {
	return func(s *WriterSink) {
		s.onErr = handler
	}
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(name string, w io.Writer, opts ...WriterOption) *WriterSink {
	s := &WriterSink{name: name, out: output.NewWriterAdapter(w)}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var _ hyperstream.IncomingConnection = (*WriterSink)(nil)

// Name returns the sink name.
func (s *WriterSink) Name() string { return s.name }

// Count returns the number of records written.
func (s *WriterSink) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.count
}

// Bytes returns the number of record bytes written, header excluded.
func (s *WriterSink) Bytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bytes
}

// Init writes the stream header.
func (s *WriterSink) Init(schema string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.fail(ErrSinkClosed)

		return false
	}

	if s.out == nil && s.open != nil {
		out, err := s.open(schema)
		if err != nil {
			s.fail(err)

			return false
		}

		s.out = out
	}

	header := make([]byte, 0, len(streamMagic)+headerLengthSize+len(schema))
	header = append(header, streamMagic...)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(schema))) //nolint:gosec // schemas are far below 4GiB.
	header = append(header, schema...)

	return s.write(header)
}

// PushRecord writes rec. A write error rejects the record.
func (s *WriterSink) PushRecord(rec []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if s.out == nil {
		s.fail(ErrNotInitialized)

		return false
	}

	if !s.write(rec) {
		return false
	}

	s.count++
	s.bytes += uint64(len(rec))

	return true
}

// UpdateProgress is ignored.
func (*WriterSink) UpdateProgress(float64) {}

// Close syncs and closes the writer.
func (s *WriterSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true

	if s.out == nil {
		return
	}

	err := s.out.Sync()
	if err != nil {
		s.fail(ewrap.Wrap(err, "syncing sink output"))
	}

	err = s.out.Close()
	if err != nil {
		s.fail(ewrap.Wrap(err, "closing sink output"))
	}
}

// Free drops the writer.
func (s *WriterSink) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out = nil
}

func (s *WriterSink) write(data []byte) bool {
	_, err := s.out.Write(data)
	if err != nil {
		s.fail(ewrap.Wrap(err, "writing to sink output").WithMetadata("sink", s.name))

		return false
	}

	return true
}

func (s *WriterSink) fail(err error) {
	if s.onErr != nil {
		s.onErr(err)
	}
}

// ReadStream parses a stream written by a WriterSink and returns its schema and records.
func ReadStream(r io.Reader, layout record.Layout) (string, [][]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, ewrap.Wrap(err, "reading stream")
	}

	if !bytes.HasPrefix(data, streamMagic) || len(data) < len(streamMagic)+headerLengthSize {
		return "", nil, ewrap.New("not a record stream")
	}

	data = data[len(streamMagic):]
	schemaLen := int(binary.LittleEndian.Uint32(data))
	data = data[headerLengthSize:]

	if schemaLen > len(data) {
		return "", nil, ewrap.New("truncated stream header").WithMetadata("schema_length", schemaLen)
	}

	schema := string(data[:schemaLen])

	var records [][]byte

	packet := record.NewPacket(data[schemaLen:], layout)
	for packet.Next() {
		records = append(records, bytes.Clone(packet.Record()))
	}

	err = packet.Err()
	if err != nil {
		return schema, records, ewrap.Wrap(err, "reading records")
	}

	return schema, records, nil
}
