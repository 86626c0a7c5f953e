package engine

import (
	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/internal/constants"
)

// LogEngine writes every status message to a logger. It never supplies browse-everywhere sinks.
type LogEngine struct {
	logger hyperstream.Logger
}

// NewLogEngine creates a LogEngine. A nil logger discards everything.
func NewLogEngine(logger hyperstream.Logger) *LogEngine {
	if logger == nil {
		logger = hyperstream.NewNoop()
	}

	return &LogEngine{logger: logger}
}

var _ hyperstream.Engine = (*LogEngine)(nil)

// OutputMessage logs message at the level matching status.
func (e *LogEngine) OutputMessage(toolID int, status hyperstream.MessageStatus, message string) {
	logger := e.logger.WithFields(
		hyperstream.Int(constants.ToolIDKey, toolID),
		hyperstream.Str("status", status.String()),
	)

	switch status {
	case hyperstream.StatusError:
		logger.Error(message)
	case hyperstream.StatusWarning, hyperstream.StatusTransientWarning,
		hyperstream.StatusFieldConversionError, hyperstream.StatusTransientFieldConversionError:
		logger.Warn(message)
	case hyperstream.StatusInfo, hyperstream.StatusTransientInfo, hyperstream.StatusComplete:
		logger.Info(message)
	default:
		logger.Debug(message)
	}
}

// OutputToolProgress logs the progress at debug level.
func (e *LogEngine) OutputToolProgress(toolID int, progress float64) {
	e.logger.WithFields(
		hyperstream.Int(constants.ToolIDKey, toolID),
		hyperstream.Field{Key: "progress", Value: progress},
	).Debug("tool progress")
}

// BrowseEverywhereReserveAnchor reserves nothing.
func (*LogEngine) BrowseEverywhereReserveAnchor(int) uint32 { return 0 }

// BrowseEverywhereGetConnection returns nil.
func (*LogEngine) BrowseEverywhereGetConnection(uint32, int, string) hyperstream.IncomingConnection {
	return nil
}
