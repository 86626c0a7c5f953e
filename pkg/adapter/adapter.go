// Package adapter provides the concrete structured logger used by stream components.
//
// The Adapter formats entries as text or JSON and writes them to the configured output:
// any io.Writer, a colored console, or a rotating (and optionally compressed) file.
package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/output"
)

const (
	initialBufferSize = 512
	maxPooledBuffer   = 32 * 1024
)

// ErrInvalidLevel is returned for a level outside Trace..Fatal.
var ErrInvalidLevel = ewrap.New("invalid log level")

type fieldsKey struct{}

// ContextWithFields returns a context carrying fields. A logger bound to the context with
// WithContext adds them to every entry.
func ContextWithFields(ctx context.Context, fields ...hyperstream.Field) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	existing := FieldsFromContext(ctx)
	merged := make([]hyperstream.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)

	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFromContext returns the fields stored by ContextWithFields.
func FieldsFromContext(ctx context.Context) []hyperstream.Field {
	if ctx == nil {
		return nil
	}

	fields, _ := ctx.Value(fieldsKey{}).([]hyperstream.Field)

	return fields
}

// shared is the state common to an adapter and every logger derived from it.
type shared struct {
	config  hyperstream.LogConfig
	out     output.Writer
	encoder encoder
	sampler *logSampler
	level   atomic.Uint32
	mu      sync.Mutex
	buffers sync.Pool
}

// Adapter implements hyperstream.Logger.
//
//nolint:containedctx
type Adapter struct {
	*shared

	ctx    context.Context
	fields []hyperstream.Field
}

// NewAdapter creates a logger for config.
func NewAdapter(ctx context.Context, config hyperstream.LogConfig) (*Adapter, error) {
	if !config.Level.IsValid() {
		return nil, ewrap.Wrap(ErrInvalidLevel, "creating logger").WithMetadata("level", int(config.Level))
	}

	if config.TimeFormat == "" {
		config.TimeFormat = hyperstream.DefaultTimeFormat
	}

	out, err := buildOutput(&config)
	if err != nil {
		return nil, err
	}

	state := &shared{
		config:  config,
		out:     out,
		encoder: newEncoder(config.EnableJSON),
		sampler: newLogSampler(config.Sampling),
	}
	state.level.Store(uint32(config.Level))
	state.buffers.New = func() any {
		return bytes.NewBuffer(make([]byte, 0, initialBufferSize))
	}

	if ctx == nil {
		ctx = context.Background()
	}

	return &Adapter{
		shared: state,
		ctx:    ctx,
		fields: append([]hyperstream.Field(nil), config.AdditionalFields...),
	}, nil
}

var _ hyperstream.Logger = (*Adapter)(nil)

// buildOutput resolves the destination: a rotating file when a path is set, otherwise the
// configured writer, colored when text output asks for it.
func buildOutput(config *hyperstream.LogConfig) (output.Writer, error) {
	if config.File.Path != "" {
		algorithm, err := output.ParseCompressionAlgorithm(config.File.CompressionAlgorithm)
		if err != nil {
			return nil, err
		}

		writer, err := output.NewFileWriter(output.FileConfig{
			Path:      config.File.Path,
			BaseDir:   baseDir(config.File.Path),
			MaxSize:   config.File.MaxSizeBytes,
			Compress:  config.File.Compress,
			Algorithm: algorithm,
			FileMode:  config.File.FileMode,
			ErrorHandler: func(err error) {
				fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
			},
		})
		if err != nil {
			return nil, ewrap.Wrap(err, "opening log file")
		}

		return writer, nil
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	if config.EnableJSON || (!config.EnableColor && !config.ForceColor) {
		return output.NewWriterAdapter(out), nil
	}

	mode := output.ColorModeAuto
	if config.ForceColor {
		mode = output.ColorModeAlways
	}

	return output.NewConsoleWriter(out, mode), nil
}

// baseDir lets absolute log paths live where they are; relative ones stay in the temp dir.
func baseDir(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Dir(path)
	}

	return ""
}

// Trace logs a message at trace level.
func (a *Adapter) Trace(msg string) { a.log(hyperstream.TraceLevel, msg) }

// Debug logs a message at debug level.
func (a *Adapter) Debug(msg string) { a.log(hyperstream.DebugLevel, msg) }

// Info logs a message at info level.
func (a *Adapter) Info(msg string) { a.log(hyperstream.InfoLevel, msg) }

// Warn logs a message at warn level.
func (a *Adapter) Warn(msg string) { a.log(hyperstream.WarnLevel, msg) }

// Error logs a message at error level.
func (a *Adapter) Error(msg string) { a.log(hyperstream.ErrorLevel, msg) }

// Debugf logs a formatted message at debug level.
func (a *Adapter) Debugf(format string, args ...any) {
	if a.enabled(hyperstream.DebugLevel) {
		a.log(hyperstream.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// Infof logs a formatted message at info level.
func (a *Adapter) Infof(format string, args ...any) {
	if a.enabled(hyperstream.InfoLevel) {
		a.log(hyperstream.InfoLevel, fmt.Sprintf(format, args...))
	}
}

// Warnf logs a formatted message at warn level.
func (a *Adapter) Warnf(format string, args ...any) {
	a.log(hyperstream.WarnLevel, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func (a *Adapter) Errorf(format string, args ...any) {
	a.log(hyperstream.ErrorLevel, fmt.Sprintf(format, args...))
}

// WithContext returns a logger that adds the fields carried by ctx to every entry.
func (a *Adapter) WithContext(ctx context.Context) hyperstream.Logger {
	if ctx == nil {
		ctx = context.Background()
	}

	return &Adapter{shared: a.shared, ctx: ctx, fields: a.fields}
}

// WithField adds a field to the logger.
func (a *Adapter) WithField(key string, value any) hyperstream.Logger {
	return a.WithFields(hyperstream.Field{Key: key, Value: value})
}

// WithFields returns a logger with fields appended. A key that is already present is replaced.
func (a *Adapter) WithFields(fields ...hyperstream.Field) hyperstream.Logger {
	if len(fields) == 0 {
		return a
	}

	return &Adapter{shared: a.shared, ctx: a.ctx, fields: mergeFields(a.fields, fields)}
}

// WithError adds an error field to the logger.
func (a *Adapter) WithError(err error) hyperstream.Logger {
	if err == nil {
		return a
	}

	return a.WithField("error", err.Error())
}

// GetLevel returns the current logging level.
func (a *Adapter) GetLevel() hyperstream.Level {
	//nolint:gosec // only valid levels are stored.
	return hyperstream.Level(a.level.Load())
}

// SetLevel sets the logging level of this logger and every logger derived from it.
func (a *Adapter) SetLevel(level hyperstream.Level) {
	if level.IsValid() {
		a.level.Store(uint32(level))
	}
}

// GetConfig returns the configuration the logger was created with.
func (a *Adapter) GetConfig() hyperstream.LogConfig {
	return a.config
}

// Sync flushes the output.
func (a *Adapter) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.out.Sync()
	if err != nil {
		return ewrap.Wrap(err, "syncing log output")
	}

	return nil
}

// Close syncs and closes the output. Standard streams are left open.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.out.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing log output")
	}

	return nil
}

func (a *Adapter) enabled(level hyperstream.Level) bool {
	return level >= a.GetLevel()
}

func (a *Adapter) log(level hyperstream.Level, msg string) {
	if !a.enabled(level) || !a.sampler.Allow(level) {
		return
	}

	entry := &entry{
		level:   level,
		message: msg,
		fields:  mergeFields(FieldsFromContext(a.ctx), a.fields),
	}

	buf, _ := a.buffers.Get().(*bytes.Buffer)
	buf.Reset()

	a.encoder.encode(buf, entry, &a.config)

	a.mu.Lock()
	_, err := a.out.Write(buf.Bytes())
	a.mu.Unlock()

	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log: %v\n", err)
	}

	if buf.Cap() <= maxPooledBuffer {
		a.buffers.Put(buf)
	}
}

// mergeFields appends extra to base, replacing base entries with the same key.
func mergeFields(base, extra []hyperstream.Field) []hyperstream.Field {
	merged := make([]hyperstream.Field, 0, len(base)+len(extra))
	merged = append(merged, base...)

	for _, field := range extra {
		replaced := false

		for i := range merged {
			if merged[i].Key == field.Key {
				merged[i] = field
				replaced = true

				break
			}
		}

		if !replaced {
			merged = append(merged, field)
		}
	}

	return merged
}
