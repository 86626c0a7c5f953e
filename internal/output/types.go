// Package output provides the byte destinations used by the logger and the file sinks.
//
// Each writer implements the Writer interface, which extends io.Writer with methods
// for synchronization and cleanup:
//
//	type Writer interface {
//	    io.Writer
//	    Sync() error  // Ensures all data is written
//	    Close() error // Releases resources
//	}
//
// FileWriter rotates its file by size and can compress rotated files with gzip or zstd.
// ConsoleWriter colors log lines by level when attached to a terminal.
package output

import (
	"io"
	"os"
	"strconv"

	"github.com/hyp3rd/ewrap"
	"github.com/mattn/go-isatty"
)

// Writer is an interface for output writers.
type Writer interface {
	// Write writes the given bytes to the underlying output.
	Write(p []byte) (n int, err error)
	// Sync ensures that all data has been written.
	Sync() error
	// Close closes the writer and releases any resources.
	Close() error
}

type writerAdapter struct {
	writer io.Writer
}

// NewWriterAdapter wraps a basic io.Writer into a Writer interface implementation used by the output package.
func NewWriterAdapter(w io.Writer) Writer {
	if ow, ok := w.(Writer); ok {
		return ow
	}

	return &writerAdapter{writer: w}
}

func (w *writerAdapter) Write(p []byte) (int, error) {
	bytes, err := w.writer.Write(p)
	if err != nil {
		return bytes, ewrap.Wrap(err, "failed to write to writer")
	}

	return bytes, nil
}

func (w *writerAdapter) Sync() error {
	if f, ok := w.writer.(*os.File); ok && isStandardStream(f) {
		return nil
	}

	if syncer, ok := w.writer.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}

	return nil
}

func (w *writerAdapter) Close() error {
	if f, ok := w.writer.(*os.File); ok && isStandardStream(f) {
		return nil
	}

	if closer, ok := w.writer.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return ewrap.Wrap(err, "failed to close writer")
		}
	}

	return nil
}

func isStandardStream(f *os.File) bool {
	return f == os.Stdout || f == os.Stderr
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorCode represents ANSI color codes for terminal output.
type ColorCode int

const (
	// ColorReset removes any color or style formatting.
	ColorReset ColorCode = 0
	// ColorRed is the ANSI code for red text.
	ColorRed ColorCode = 31
	// ColorGreen is the ANSI code for green text.
	ColorGreen ColorCode = 32
	// ColorYellow is the ANSI code for yellow text.
	ColorYellow ColorCode = 33
	// ColorMagenta is the ANSI code for magenta text.
	ColorMagenta ColorCode = 35
	// ColorCyan is the ANSI code for cyan text.
	ColorCyan ColorCode = 36
	// ColorWhite is the ANSI code for white text.
	ColorWhite ColorCode = 37
)

// Style represents text style formatting codes for terminal output.
type Style int

const (
	// StyleBold enables bold text.
	StyleBold Style = 1
	// StyleDim enables dimmed text.
	StyleDim Style = 2
	// StyleNormal resets all formatting.
	StyleNormal Style = 22
)

// Start returns the ANSI escape sequence to start this color.
func (c ColorCode) Start() string {
	return "\033[" + strconv.Itoa(int(c)) + "m"
}

// WithStyle returns the ANSI escape sequence for this color with the given style applied.
func (c ColorCode) WithStyle(style Style) string {
	if style == StyleNormal {
		return c.Start()
	}

	return "\033[" + strconv.Itoa(int(style)) + ";" + strconv.Itoa(int(c)) + "m"
}
