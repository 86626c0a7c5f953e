package engine

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperstream"
)

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestWireEngine_Frames(t *testing.T) {
	var buf bytes.Buffer

	e := NewWireEngine(&buf)
	e.OutputMessage(12, hyperstream.StatusRecordCount, "Output|3|42")
	e.OutputMessage(12, hyperstream.StatusTransientWarning, "héllo wörld")
	e.OutputToolProgress(12, 0.25)
	require.NoError(t, e.Err())

	frame, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, WireFrame{Type: MessageFrame, ToolID: 12, Status: hyperstream.StatusRecordCount, Text: "Output|3|42"}, frame)

	frame, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, hyperstream.StatusTransientWarning, frame.Status)
	assert.Equal(t, "héllo wörld", frame.Text)

	frame, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, ProgressFrame, frame.Type)
	assert.InDelta(t, 0.25, frame.Progress, 0)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWireEngine_PayloadIsUTF16(t *testing.T) {
	var buf bytes.Buffer

	NewWireEngine(&buf).OutputMessage(1, hyperstream.StatusInfo, "ab")

	assert.Equal(t, []byte{'a', 0, 'b', 0}, buf.Bytes()[wireHeaderSize:])
}

func TestWireEngine_KeepsFirstError(t *testing.T) {
	e := NewWireEngine(brokenWriter{})

	e.OutputMessage(1, hyperstream.StatusInfo, "a")
	e.OutputToolProgress(1, 1)

	require.Error(t, e.Err())
	assert.Contains(t, e.Err().Error(), "writing frame")
}

func TestReadFrame_Errors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{'M', 0, 0}))
	require.Error(t, err)

	header := make([]byte, wireHeaderSize)
	header[0] = 'X'

	_, err = ReadFrame(bytes.NewReader(header))
	require.ErrorIs(t, err, ErrUnknownFrame)
}
