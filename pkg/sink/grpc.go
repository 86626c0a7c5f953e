package sink

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/hyp3rd/ewrap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hyp3rd/hyperstream"
)

const (
	// AnchorMetadataKey carries the output anchor name on a push stream.
	AnchorMetadataKey = "x-hyperstream-anchor"
	// ToolIDMetadataKey carries the producing tool id on a push stream.
	ToolIDMetadataKey = "x-hyperstream-tool-id"

	recordSinkService = "hyperstream.sink.v1.RecordSink"
	pushMethod        = "/" + recordSinkService + "/Push"
	codecName         = "hyperstream-frame"
)

// FrameKind tags each message of a push stream.
type FrameKind byte

const (
	// FrameInit carries the schema.
	FrameInit FrameKind = iota + 1
	// FrameRecord carries one framed record.
	FrameRecord
	// FrameProgress carries a float64 progress as LE bits.
	FrameProgress
	// FrameClose ends the stream.
	FrameClose
	// FrameAck is the server reply with the accepted record count as uint64 LE.
	FrameAck
)

// Frame is one message of a push stream. On the wire it is the kind byte followed by the payload.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// frameCodec moves Frames without any protobuf dependency.
type frameCodec struct{}

func (frameCodec) Marshal(v any) ([]byte, error) {
	frame, ok := v.(*Frame)
	if !ok {
		return nil, ewrap.Newf("cannot marshal %T as a frame", v)
	}

	data := make([]byte, 0, 1+len(frame.Payload))
	data = append(data, byte(frame.Kind))

	return append(data, frame.Payload...), nil
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	frame, ok := v.(*Frame)
	if !ok {
		return ewrap.Newf("cannot unmarshal a frame into %T", v)
	}

	if len(data) == 0 {
		return ewrap.New("empty frame")
	}

	frame.Kind = FrameKind(data[0])
	frame.Payload = bytes.Clone(data[1:])

	return nil
}

func (frameCodec) Name() string { return codecName }

//nolint:gochecknoinits
func init() {
	encoding.RegisterCodec(frameCodec{})
}

// GRPCSink streams an anchor's records to a remote RecordSink server over one client stream.
//
// Sends are asynchronous: a record refused by the server surfaces as a failed push on a later
// record or as the error returned by Err after Close.
//
//nolint:containedctx
type GRPCSink struct {
	name   string
	anchor string
	toolID int
	conn   grpc.ClientConnInterface

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stream   grpc.ClientStream
	closed   bool
	accepted uint64
	err      error
}

// GRPCOption configures a GRPCSink.
type GRPCOption func(*GRPCSink)

// WithToolID sets the tool id sent in the stream metadata.
func WithToolID(toolID int) GRPCOption {
	return func(s *GRPCSink) {
		s.toolID = toolID
	}
}

// WithSinkName overrides the sink name, which defaults to the anchor.
func WithSinkName(name string) GRPCOption {
	return func(s *GRPCSink) {
		s.name = name
	}
}

// NewGRPCSink creates a sink streaming to conn. The stream is opened by Init.
func NewGRPCSink(ctx context.Context, conn grpc.ClientConnInterface, anchor string, opts ...GRPCOption) *GRPCSink {
	s := &GRPCSink{name: anchor, anchor: anchor, conn: conn}

	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	return s
}

var _ hyperstream.IncomingConnection = (*GRPCSink)(nil)

// Name returns the sink name.
func (s *GRPCSink) Name() string { return s.name }

// Accepted returns the record count acknowledged by the server. It is set by Close.
func (s *GRPCSink) Accepted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accepted
}

// Err returns the first stream failure.
func (s *GRPCSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Init opens the push stream and sends the schema.
func (s *GRPCSink) Init(schema string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.stream != nil {
		return false
	}

	ctx := metadata.AppendToOutgoingContext(s.ctx,
		AnchorMetadataKey, s.anchor,
		ToolIDMetadataKey, strconv.Itoa(s.toolID),
	)

	stream, err := s.conn.NewStream(ctx,
		&grpc.StreamDesc{StreamName: "Push", ClientStreams: true},
		pushMethod,
		grpc.CallContentSubtype(codecName),
	)
	if err != nil {
		s.setErr(ewrap.Wrap(err, "opening push stream").WithMetadata("anchor", s.anchor))

		return false
	}

	s.stream = stream

	return s.send(FrameInit, []byte(schema))
}

// PushRecord sends rec.
func (s *GRPCSink) PushRecord(rec []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.stream == nil || s.err != nil {
		return false
	}

	return s.send(FrameRecord, rec)
}

// UpdateProgress sends the progress.
func (s *GRPCSink) UpdateProgress(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.stream == nil || s.err != nil {
		return
	}

	s.send(FrameProgress, binary.LittleEndian.AppendUint64(nil, math.Float64bits(percent)))
}

// Close ends the stream and waits for the server acknowledgement.
func (s *GRPCSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true

	if s.stream == nil {
		return
	}

	if s.err == nil {
		s.send(FrameClose, nil)
	}

	err := s.stream.CloseSend()
	if err != nil {
		s.setErr(ewrap.Wrap(err, "closing push stream"))
	}

	var ack Frame

	err = s.stream.RecvMsg(&ack)
	if err != nil {
		s.setErr(ewrap.Wrap(err, "receiving push acknowledgement").WithMetadata("anchor", s.anchor))

		return
	}

	if ack.Kind == FrameAck && len(ack.Payload) >= 8 {
		s.accepted = binary.LittleEndian.Uint64(ack.Payload)
	}
}

// Free cancels the stream context.
func (s *GRPCSink) Free() {
	s.cancel()
}

func (s *GRPCSink) send(kind FrameKind, payload []byte) bool {
	err := s.stream.SendMsg(&Frame{Kind: kind, Payload: payload})
	if err != nil {
		// io.EOF means the server ended the stream; the real status comes from RecvMsg.
		if !errors.Is(err, io.EOF) {
			s.setErr(ewrap.Wrap(err, "sending frame").WithMetadata("anchor", s.anchor))
		} else {
			s.setErr(ErrRejected)
		}

		return false
	}

	return true
}

func (s *GRPCSink) setErr(err error) {
	if s.err == nil || errors.Is(s.err, ErrRejected) {
		s.err = err
	}
}

// ConnectionFactory returns the endpoint that receives a remote push stream.
type ConnectionFactory func(ctx context.Context, anchor string, toolID int) (hyperstream.IncomingConnection, error)

// RecordSinkServer receives push streams and replays them into local connections.
type RecordSinkServer struct {
	open ConnectionFactory
}

// RecordSinkService is implemented by RecordSinkServer.
type RecordSinkService interface {
	Push(stream grpc.ServerStream) error
}

var recordSinkServiceDesc = grpc.ServiceDesc{
	ServiceName: recordSinkService,
	HandlerType: (*RecordSinkService)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Push",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(RecordSinkService).Push(stream) //nolint:forcetypeassert
			},
		},
	},
}

// RegisterRecordSinkServer registers a RecordSink service on registrar. Each push stream is
// replayed into the connection returned by open.
func RegisterRecordSinkServer(registrar grpc.ServiceRegistrar, open ConnectionFactory) *RecordSinkServer {
	server := &RecordSinkServer{open: open}
	registrar.RegisterService(&recordSinkServiceDesc, server)

	return server
}

// Push handles one stream. A schema or record refused by the target ends the stream with
// FailedPrecondition or Aborted.
func (s *RecordSinkServer) Push(stream grpc.ServerStream) error {
	ctx := stream.Context()
	anchor, toolID := streamIdentity(ctx)

	target, err := s.open(ctx, anchor, toolID)
	if err != nil {
		return status.Errorf(codes.Unavailable, "no connection for anchor %q: %v", anchor, err)
	}

	closed := false

	defer func() {
		if !closed {
			target.Close()
		}

		target.Free()
	}()

	var accepted uint64

	for {
		var frame Frame

		err = stream.RecvMsg(&frame)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err //nolint:wrapcheck
		}

		switch frame.Kind {
		case FrameInit:
			if !target.Init(string(frame.Payload)) {
				return status.Errorf(codes.FailedPrecondition, "schema refused for anchor %q", anchor)
			}
		case FrameRecord:
			if !target.PushRecord(frame.Payload) {
				return status.Errorf(codes.Aborted, "record %d refused for anchor %q", accepted+1, anchor)
			}

			accepted++
		case FrameProgress:
			if len(frame.Payload) >= 8 {
				target.UpdateProgress(math.Float64frombits(binary.LittleEndian.Uint64(frame.Payload)))
			}
		case FrameClose:
			target.Close()

			closed = true
		default:
			return status.Errorf(codes.InvalidArgument, "unknown frame kind %d", frame.Kind)
		}
	}

	return stream.SendMsg(&Frame{Kind: FrameAck, Payload: binary.LittleEndian.AppendUint64(nil, accepted)}) //nolint:wrapcheck
}

func streamIdentity(ctx context.Context) (string, int) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", 0
	}

	var anchor string
	if values := md.Get(AnchorMetadataKey); len(values) > 0 {
		anchor = values[0]
	}

	var toolID int
	if values := md.Get(ToolIDMetadataKey); len(values) > 0 {
		toolID, _ = strconv.Atoi(values[0])
	}

	return anchor, toolID
}
