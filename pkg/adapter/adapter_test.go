package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperstream"
)

func newTestLogger(t *testing.T, jsonOutput bool) (*Adapter, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer

	logger, err := NewAdapter(context.Background(), hyperstream.LogConfig{
		Level:            hyperstream.DebugLevel,
		Output:           &buf,
		EnableJSON:       jsonOutput,
		DisableTimestamp: true,
	})
	require.NoError(t, err)

	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any

	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)

		entries = append(entries, entry)
	}

	return entries
}

func TestAdapter_TextFormat(t *testing.T) {
	logger, buf := newTestLogger(t, false)

	logger.WithFields(hyperstream.Str("anchor", "Output"), hyperstream.Uint64("records", 3)).Info("anchor closed")

	assert.Equal(t, "[ INFO] anchor closed {anchor=Output, records=3}\n", buf.String())
}

func TestAdapter_JSONFormat(t *testing.T) {
	logger, buf := newTestLogger(t, true)

	logger.WithField("sink", "a\"b\n").WithError(errors.New("boom")).Warn("sink refused a record")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["severity"])
	assert.Equal(t, "sink refused a record", entries[0]["message"])
	assert.Equal(t, "a\"b\n", entries[0]["sink"])
	assert.Equal(t, "boom", entries[0]["error"])
}

func TestAdapter_LevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(t, true)

	logger.SetLevel(hyperstream.WarnLevel)
	logger.Debug("hidden")
	logger.Infof("hidden %d", 1)
	logger.Warnf("shown %d", 2)
	logger.SetLevel(hyperstream.Level(99))

	assert.Equal(t, hyperstream.WarnLevel, logger.GetLevel())

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown 2", entries[0]["message"])
}

func TestAdapter_DerivedLoggersShareLevel(t *testing.T) {
	logger, buf := newTestLogger(t, true)

	child := logger.WithField("k", "v")
	logger.SetLevel(hyperstream.ErrorLevel)
	child.Warn("hidden")

	assert.Empty(t, buf.String())
	assert.Equal(t, hyperstream.ErrorLevel, child.GetLevel())
}

func TestAdapter_WithFieldsDoesNotMutateParent(t *testing.T) {
	logger, buf := newTestLogger(t, true)

	parent := logger.WithField("a", 1)
	_ = parent.WithField("b", 2)
	parent.WithField("a", 3).Info("override")
	parent.Info("parent")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.InDelta(t, 3, entries[0]["a"], 0)
	assert.InDelta(t, 1, entries[1]["a"], 0)
	assert.NotContains(t, entries[1], "b")
}

func TestAdapter_ContextFields(t *testing.T) {
	logger, buf := newTestLogger(t, true)

	ctx := ContextWithFields(context.Background(), hyperstream.Str("run", "r1"))
	ctx = ContextWithFields(ctx, hyperstream.Int("tool_id", 4))

	logger.WithContext(ctx).Info("with context")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0]["run"])
	assert.InDelta(t, 4, entries[0]["tool_id"], 0)
	assert.Nil(t, FieldsFromContext(context.Background()))
}

func TestAdapter_AdditionalFields(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewAdapter(context.Background(), hyperstream.LogConfig{
		Level:            hyperstream.InfoLevel,
		Output:           &buf,
		EnableJSON:       true,
		DisableTimestamp: true,
		AdditionalFields: []hyperstream.Field{hyperstream.Str("service", "stream")},
	})
	require.NoError(t, err)

	logger.Info("hello")

	assert.Contains(t, buf.String(), `"service":"stream"`)
}

func TestAdapter_InvalidLevel(t *testing.T) {
	_, err := NewAdapter(context.Background(), hyperstream.LogConfig{Level: hyperstream.Level(42)})
	require.ErrorIs(t, err, ErrInvalidLevel)
}

func TestAdapter_ForceColor(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewAdapter(context.Background(), hyperstream.LogConfig{
		Level:            hyperstream.InfoLevel,
		Output:           &buf,
		ForceColor:       true,
		DisableTimestamp: true,
	})
	require.NoError(t, err)

	logger.Error("red")

	assert.True(t, strings.HasPrefix(buf.String(), "\x1b["))
	assert.Contains(t, buf.String(), "[ERROR] red")
}

func TestAdapter_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.log")

	logger, err := NewAdapter(context.Background(), hyperstream.LogConfig{
		Level:      hyperstream.InfoLevel,
		EnableJSON: true,
		File:       hyperstream.FileConfig{Path: path, CompressionAlgorithm: "zstd"},
	})
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, logger.Sync())
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestAdapter_Sampling(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewAdapter(context.Background(), hyperstream.LogConfig{
		Level:            hyperstream.DebugLevel,
		Output:           &buf,
		EnableJSON:       true,
		DisableTimestamp: true,
		Sampling:         hyperstream.SamplingConfig{Enabled: true, Initial: 2, Thereafter: 3},
	})
	require.NoError(t, err)

	for range 8 {
		logger.Debug("noisy")
	}

	for range 3 {
		logger.Warn("kept")
	}

	assert.Equal(t, 4, strings.Count(buf.String(), "noisy"))
	assert.Equal(t, 3, strings.Count(buf.String(), "kept"))
}

func TestAdapter_ConcurrentWrites(t *testing.T) {
	logger, buf := newTestLogger(t, true)

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Go(func() {
			logger.WithField("worker", i).Info("line")
		})
	}

	wg.Wait()

	assert.Len(t, decodeLines(t, buf), 8)
}

func TestWriteJSONString(t *testing.T) {
	var buf bytes.Buffer

	writeJSONString(&buf, "tab\there \x01 ünï")

	var decoded string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "tab\there \x01 ünï", decoded)
}
