package sink

import (
	"github.com/hyp3rd/hyperstream/internal/output"
)

// FileOption configures a file sink.
type FileOption func(*output.FileConfig)

// WithBaseDir confines the sink path to dir.
func WithBaseDir(dir string) FileOption {
	return func(c *output.FileConfig) {
		c.BaseDir = dir
	}
}

// WithRotation rotates the file once it would exceed maxSize bytes. Records are never split
// across files; only the first file carries the stream header.
func WithRotation(maxSize int64) FileOption {
	return func(c *output.FileConfig) {
		c.MaxSize = maxSize
	}
}

// WithCompression compresses rotated files with the named algorithm ("gzip" or "zstd").
func WithCompression(algorithm string) FileOption {
	return func(c *output.FileConfig) {
		c.Compress = true
		c.Algorithm = output.CompressionAlgorithm(algorithm)
	}
}

// WithRotationCallback is called with the path of every rotated file.
func WithRotationCallback(callback func(path string)) FileOption {
	return func(c *output.FileConfig) {
		c.RotationCallback = callback
	}
}

// NewFileSink creates a sink that writes to a rotating file. The file is created by Init, so a
// sink whose path is invalid refuses the schema.
func NewFileSink(name, path string, opts ...FileOption) *WriterSink {
	config := output.FileConfig{Path: path}

	for _, opt := range opts {
		opt(&config)
	}

	s := &WriterSink{name: name}
	s.open = func(string) (output.Writer, error) {
		if config.Compress {
			algorithm, err := output.ParseCompressionAlgorithm(string(config.Algorithm))
			if err != nil {
				return nil, err
			}

			config.Algorithm = algorithm
		}

		config.ErrorHandler = s.fail

		return output.NewFileWriter(config)
	}

	return s
}
