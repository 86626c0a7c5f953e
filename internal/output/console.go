package output

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream"
)

const maxLookupBytes = 48

// ColorMode determines how colors are handled.
type ColorMode int

const (
	// ColorModeAuto detects if the output supports colors.
	ColorModeAuto ColorMode = iota
	// ColorModeAlways forces color output.
	ColorModeAlways
	// ColorModeNever disables color output.
	ColorModeNever
)

type levelStyle struct {
	color ColorCode
	style Style
}

// ConsoleWriter writes text log lines to a console, coloring each line by the level it carries.
type ConsoleWriter struct {
	mu         sync.Mutex
	out        io.Writer
	mode       ColorMode
	isTerminal bool
	buffer     bytes.Buffer
	styles     map[hyperstream.Level]levelStyle
}

// NewConsoleWriter creates a ConsoleWriter. A nil out defaults to os.Stdout.
func NewConsoleWriter(out io.Writer, mode ColorMode) *ConsoleWriter {
	if out == nil {
		out = os.Stdout
	}

	return &ConsoleWriter{
		out:        out,
		mode:       mode,
		isTerminal: IsTerminal(out),
		styles: map[hyperstream.Level]levelStyle{
			hyperstream.TraceLevel: {ColorWhite, StyleDim},
			hyperstream.DebugLevel: {ColorCyan, StyleNormal},
			hyperstream.InfoLevel:  {ColorGreen, StyleNormal},
			hyperstream.WarnLevel:  {ColorYellow, StyleBold},
			hyperstream.ErrorLevel: {ColorRed, StyleBold},
			hyperstream.FatalLevel: {ColorMagenta, StyleBold},
		},
	}
}

// Write writes one log line, wrapped in the color of its level when colors are enabled.
func (w *ConsoleWriter) Write(payload []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.shouldUseColors() {
		n, err := w.out.Write(payload)
		if err != nil {
			return n, ewrap.Wrap(err, "failed writing to console output")
		}

		return n, nil
	}

	style := w.styles[detectLevel(payload)]

	w.buffer.Reset()
	w.buffer.WriteString(style.color.WithStyle(style.style))
	w.buffer.Write(bytes.TrimRight(payload, "\n"))
	w.buffer.WriteString(ColorReset.Start())

	if bytes.HasSuffix(payload, []byte("\n")) {
		w.buffer.WriteByte('\n')
	}

	_, err := w.out.Write(w.buffer.Bytes())
	if err != nil {
		return 0, ewrap.Wrap(err, "failed writing to console output")
	}

	return len(payload), nil
}

// Sync synchronizes the underlying writer when it supports it. Standard streams are skipped.
func (w *ConsoleWriter) Sync() error {
	return NewWriterAdapter(w.out).Sync()
}

// Close closes the underlying writer when it supports it. Standard streams are never closed.
func (w *ConsoleWriter) Close() error {
	return NewWriterAdapter(w.out).Close()
}

//nolint:exhaustive // ColorModeAuto is handled as default.
func (w *ConsoleWriter) shouldUseColors() bool {
	switch w.mode {
	case ColorModeAlways:
		return true
	case ColorModeNever:
		return false
	default:
		return w.isTerminal
	}
}

// detectLevel looks for a level name in the head of a text log line.
func detectLevel(p []byte) hyperstream.Level {
	head := p
	if len(p) > maxLookupBytes {
		head = p[:maxLookupBytes]
	}

	switch {
	case bytes.Contains(head, []byte("TRACE")):
		return hyperstream.TraceLevel
	case bytes.Contains(head, []byte("DEBUG")):
		return hyperstream.DebugLevel
	case bytes.Contains(head, []byte("WARN")):
		return hyperstream.WarnLevel
	case bytes.Contains(head, []byte("ERROR")):
		return hyperstream.ErrorLevel
	case bytes.Contains(head, []byte("FATAL")):
		return hyperstream.FatalLevel
	default:
		return hyperstream.InfoLevel
	}
}
