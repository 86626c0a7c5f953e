package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionAlgorithm represents a compression algorithm.
type CompressionAlgorithm string

const (
	// NoCompression represents no compression.
	NoCompression CompressionAlgorithm = "none"
	// GzipCompression represents gzip compression.
	GzipCompression CompressionAlgorithm = "gzip"
	// ZstdCompression represents zstandard compression.
	ZstdCompression CompressionAlgorithm = "zstd"
)

// ParseCompressionAlgorithm maps a configuration value to an algorithm. An empty value means gzip.
func ParseCompressionAlgorithm(name string) (CompressionAlgorithm, error) {
	switch CompressionAlgorithm(strings.ToLower(name)) {
	case "", GzipCompression:
		return GzipCompression, nil
	case ZstdCompression:
		return ZstdCompression, nil
	case NoCompression:
		return NoCompression, nil
	default:
		return "", ewrap.Wrap(ErrInvalidCompression, "parsing compression algorithm").
			WithMetadata("algorithm", name)
	}
}

// Extension returns the file suffix used for the algorithm.
func (a CompressionAlgorithm) Extension() string {
	switch a {
	case GzipCompression:
		return ".gz"
	case ZstdCompression:
		return ".zst"
	default:
		return ""
	}
}

// CompressFile compresses the file at path next to itself and removes the original.
// It returns the path of the compressed file.
func CompressFile(path string, algorithm CompressionAlgorithm) (string, error) {
	if algorithm == NoCompression {
		return path, nil
	}

	if algorithm != GzipCompression && algorithm != ZstdCompression {
		return "", ErrInvalidCompression
	}

	//nolint:gosec // G304: the path comes from a writer that already validated it.
	source, err := os.Open(path)
	if err != nil {
		return "", ewrap.Wrap(err, "opening source file").WithMetadata("path", path)
	}

	defer func() {
		err := source.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to close source file: %v\n", err)
		}
	}()

	dstPath := path + algorithm.Extension()

	//nolint:gosec // G304: derived from a validated path.
	destination, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", ewrap.Wrap(err, "creating compressed file").WithMetadata("path", dstPath)
	}

	err = compressInto(destination, source, algorithm)

	closeErr := destination.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		removeErr := os.Remove(dstPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			fmt.Fprintf(os.Stderr, "failed to clean up compressed file %s: %v\n", dstPath, removeErr)
		}

		return "", ewrap.Wrap(ErrCompressionFailed, err.Error()).WithMetadata("path", path)
	}

	err = os.Remove(path)
	if err != nil {
		return dstPath, ewrap.Wrap(err, "removing original file").WithMetadata("path", path)
	}

	return dstPath, nil
}

func compressInto(dst io.Writer, src io.Reader, algorithm CompressionAlgorithm) error {
	var encoder io.WriteCloser

	switch algorithm {
	case GzipCompression:
		gz, err := gzip.NewWriterLevel(dst, gzip.DefaultCompression)
		if err != nil {
			return ewrap.Wrap(err, "creating gzip writer")
		}

		encoder = gz
	case ZstdCompression:
		zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return ewrap.Wrap(err, "creating zstd writer")
		}

		encoder = zw
	default:
		return ErrInvalidCompression
	}

	_, err := io.Copy(encoder, src)
	if err != nil {
		_ = encoder.Close()

		return ewrap.Wrap(err, "copying data to compressor")
	}

	err = encoder.Close()
	if err != nil {
		return ewrap.Wrap(err, "flushing compressor")
	}

	return nil
}

// NewDecompressor opens a reader that undoes CompressFile for the given algorithm.
func NewDecompressor(src io.Reader, algorithm CompressionAlgorithm) (io.ReadCloser, error) {
	switch algorithm {
	case GzipCompression:
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, ewrap.Wrap(err, "creating gzip reader")
		}

		return gz, nil
	case ZstdCompression:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, ewrap.Wrap(err, "creating zstd reader")
		}

		return zr.IOReadCloser(), nil
	case NoCompression:
		return io.NopCloser(src), nil
	default:
		return nil, ErrInvalidCompression
	}
}
