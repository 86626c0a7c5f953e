package engine

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"

	"github.com/hyp3rd/ewrap"
	"golang.org/x/text/encoding/unicode"

	"github.com/hyp3rd/hyperstream"
)

// FrameType tags a wire frame.
type FrameType byte

const (
	// MessageFrame carries a status message.
	MessageFrame FrameType = 'M'
	// ProgressFrame carries tool progress.
	ProgressFrame FrameType = 'P'

	// type, tool id, status or progress bits, payload length.
	wireHeaderSize = 1 + 4 + 8 + 4
	maxWirePayload = 1 << 24
)

var (
	// ErrFrameTooLarge is returned for payloads above the wire limit.
	ErrFrameTooLarge = ewrap.New("wire frame payload too large")
	// ErrUnknownFrame is returned by ReadFrame for an unknown frame type.
	ErrUnknownFrame = ewrap.New("unknown wire frame type")
)

// utf16le is the text encoding of message payloads.
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// WireFrame is one decoded frame.
type WireFrame struct {
	Type     FrameType
	ToolID   int
	Status   hyperstream.MessageStatus
	Progress float64
	Text     string
}

// WireEngine writes every message and progress update as a binary frame:
//
//	type      (1 byte, 'M' or 'P')
//	toolID    (int32 LE)
//	value     (8 bytes: int64 LE status for 'M', float64 LE bits for 'P')
//	length    (uint32 LE byte length of the payload)
//	payload   (message text as UTF-16LE, empty for 'P')
//
// Writes are serialized; the first write error is kept and later frames are dropped.
type WireEngine struct {
	mu  sync.Mutex
	out io.Writer
	err error
}

// NewWireEngine creates an engine writing frames to out.
func NewWireEngine(out io.Writer) *WireEngine {
	return &WireEngine{out: out}
}

var _ hyperstream.Engine = (*WireEngine)(nil)

// Err returns the first write error.
func (e *WireEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.err
}

// OutputMessage writes a message frame.
func (e *WireEngine) OutputMessage(toolID int, status hyperstream.MessageStatus, message string) {
	payload, err := utf16le.NewEncoder().Bytes([]byte(message))
	if err != nil {
		e.fail(ewrap.Wrap(err, "encoding message"))

		return
	}

	e.write(MessageFrame, toolID, uint64(int64(status)), payload) //nolint:gosec // status round-trips through int64.
}

// OutputToolProgress writes a progress frame.
func (e *WireEngine) OutputToolProgress(toolID int, progress float64) {
	e.write(ProgressFrame, toolID, math.Float64bits(progress), nil)
}

// BrowseEverywhereReserveAnchor reserves nothing.
func (*WireEngine) BrowseEverywhereReserveAnchor(int) uint32 { return 0 }

// BrowseEverywhereGetConnection returns nil.
func (*WireEngine) BrowseEverywhereGetConnection(uint32, int, string) hyperstream.IncomingConnection {
	return nil
}

func (e *WireEngine) write(frameType FrameType, toolID int, value uint64, payload []byte) {
	if len(payload) > maxWirePayload {
		e.fail(ewrap.Wrap(ErrFrameTooLarge, "writing frame").WithMetadata("size", len(payload)))

		return
	}

	frame := make([]byte, 0, wireHeaderSize+len(payload))
	frame = append(frame, byte(frameType))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(int32(toolID))) //nolint:gosec // tool ids fit in int32.
	frame = binary.LittleEndian.AppendUint64(frame, value)
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(payload))) //nolint:gosec // bounded by maxWirePayload.
	frame = append(frame, payload...)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return
	}

	_, err := e.out.Write(frame)
	if err != nil {
		e.err = ewrap.Wrap(err, "writing frame")
	}
}

func (e *WireEngine) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err == nil {
		e.err = err
	}
}

// ReadFrame decodes the next frame from r. It returns io.EOF at a clean end of stream.
func ReadFrame(r io.Reader) (WireFrame, error) {
	header := make([]byte, wireHeaderSize)

	_, err := io.ReadFull(r, header)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return WireFrame{}, ewrap.Wrap(err, "reading frame header")
		}

		return WireFrame{}, err //nolint:wrapcheck // io.EOF is returned as is.
	}

	frame := WireFrame{
		Type:   FrameType(header[0]),
		ToolID: int(int32(binary.LittleEndian.Uint32(header[1:5]))), //nolint:gosec // written from an int32.
	}
	value := binary.LittleEndian.Uint64(header[5:13])
	size := binary.LittleEndian.Uint32(header[13:17])

	if size > maxWirePayload {
		return WireFrame{}, ewrap.Wrap(ErrFrameTooLarge, "reading frame").WithMetadata("size", size)
	}

	payload := make([]byte, size)

	_, err = io.ReadFull(r, payload)
	if err != nil {
		return WireFrame{}, ewrap.Wrap(err, "reading frame payload")
	}

	switch frame.Type {
	case MessageFrame:
		frame.Status = hyperstream.MessageStatus(int64(value)) //nolint:gosec // written from an int64.

		text, err := utf16le.NewDecoder().Bytes(payload)
		if err != nil {
			return WireFrame{}, ewrap.Wrap(err, "decoding message")
		}

		frame.Text = string(text)
	case ProgressFrame:
		frame.Progress = math.Float64frombits(value)
	default:
		return WireFrame{}, ewrap.Wrap(ErrUnknownFrame, "reading frame").WithMetadata("type", header[0])
	}

	return frame, nil
}
