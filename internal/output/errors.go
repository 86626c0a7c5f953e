package output

import "github.com/hyp3rd/ewrap"

var (
	// ErrWriterClosed is returned by a FileWriter after Close, including writes that arrive
	// once a record sink has been closed.
	ErrWriterClosed = ewrap.New("file writer is closed")
	// ErrInvalidCompression is returned for a rotation compression other than gzip or zstd.
	ErrInvalidCompression = ewrap.New("unsupported compression algorithm")
	// ErrCompressionFailed wraps a failure while compressing a rotated file.
	ErrCompressionFailed = ewrap.New("compressing rotated file failed")
)
