package hyperstream

import (
	"context"
	"sync/atomic"
)

// NoopLogger discards everything. It is the logger used by stream components
// when none is configured.
type NoopLogger struct {
	level atomic.Uint32
}

// NewNoop creates a new NoopLogger.
func NewNoop() Logger {
	logger := &NoopLogger{}
	logger.level.Store(uint32(InfoLevel))

	return logger
}

var _ Logger = (*NoopLogger)(nil)

// Trace discards the message.
func (*NoopLogger) Trace(_ string) {}

// Debug discards the message.
func (*NoopLogger) Debug(_ string) {}

// Info discards the message.
func (*NoopLogger) Info(_ string) {}

// Warn discards the message.
func (*NoopLogger) Warn(_ string) {}

// Error discards the message.
func (*NoopLogger) Error(_ string) {}

// Debugf discards the message.
func (*NoopLogger) Debugf(_ string, _ ...any) {}

// Infof discards the message.
func (*NoopLogger) Infof(_ string, _ ...any) {}

// Warnf discards the message.
func (*NoopLogger) Warnf(_ string, _ ...any) {}

// Errorf discards the message.
func (*NoopLogger) Errorf(_ string, _ ...any) {}

// WithContext returns the same logger.
func (l *NoopLogger) WithContext(_ context.Context) Logger { return l }

// WithFields returns the same logger.
func (l *NoopLogger) WithFields(_ ...Field) Logger { return l }

// WithField returns the same logger.
func (l *NoopLogger) WithField(_ string, _ any) Logger { return l }

// WithError returns the same logger.
func (l *NoopLogger) WithError(_ error) Logger { return l }

// GetLevel returns the stored level.
func (l *NoopLogger) GetLevel() Level {
	//nolint:gosec // only valid levels are stored.
	return Level(l.level.Load())
}

// SetLevel stores the level; it has no other effect.
func (l *NoopLogger) SetLevel(level Level) {
	if level.IsValid() {
		l.level.Store(uint32(level))
	}
}

// Sync is a no-op operation.
func (*NoopLogger) Sync() error { return nil }
