package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream/internal/utils"
)

const (
	defaultMaxSizeMB = 100
	bytesPerMB       = 1024 * 1024
	defaultFileMode  = 0o644
)

// FileWriter implements Writer on top of a file. It rotates the file when a write would push
// it past MaxSize, and optionally compresses rotated files.
type FileWriter struct {
	mu               sync.Mutex
	file             *os.File
	path             string
	maxSize          int64
	size             int64
	fileMode         os.FileMode
	compression      CompressionAlgorithm
	rotationCallback func(string)
	errorHandler     func(error)
}

// FileConfig holds configuration for file output.
type FileConfig struct {
	// Path is the file path. Relative paths are resolved inside BaseDir.
	Path string
	// BaseDir confines Path; empty means the system temporary directory.
	BaseDir string
	// MaxSize is the maximum size in bytes before rotation.
	MaxSize int64
	// Compress determines if rotated files should be compressed.
	Compress bool
	// Algorithm selects the compression of rotated files (default gzip).
	Algorithm CompressionAlgorithm
	// FileMode sets the permissions for new files.
	FileMode os.FileMode
	// RotationCallback is called after rotation with the path of the rotated (and possibly compressed) file.
	RotationCallback func(string)
	// ErrorHandler is called when errors occur during file operations.
	ErrorHandler func(error)
}

// NewFileWriter creates the file (and its directory) described by config.
func NewFileWriter(config FileConfig) (*FileWriter, error) {
	if config.Path == "" {
		return nil, ewrap.New("file path is required")
	}

	securePath, err := utils.SecurePath(config.BaseDir, config.Path)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid file path")
	}

	if config.MaxSize <= 0 {
		config.MaxSize = defaultMaxSizeMB * bytesPerMB
	}

	if config.FileMode == 0 {
		config.FileMode = defaultFileMode
	}

	algorithm := NoCompression
	if config.Compress {
		algorithm = config.Algorithm
		if algorithm == "" {
			algorithm = GzipCompression
		}
	}

	dir := filepath.Dir(securePath)

	err = os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, ewrap.Wrapf(err, "creating directory").WithMetadata("path", dir)
	}

	//nolint:gosec // G304: validated by SecurePath.
	file, err := os.OpenFile(securePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, config.FileMode)
	if err != nil {
		return nil, ewrap.Wrapf(err, "opening file").WithMetadata("path", securePath)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, ewrap.Wrapf(err, "getting file stats").WithMetadata("path", securePath)
	}

	return &FileWriter{
		file:             file,
		path:             securePath,
		maxSize:          config.MaxSize,
		size:             info.Size(),
		fileMode:         config.FileMode,
		compression:      algorithm,
		rotationCallback: config.RotationCallback,
		errorHandler:     config.ErrorHandler,
	}, nil
}

// Path returns the resolved path of the active file.
func (w *FileWriter) Path() string {
	return w.path
}

// Write implements io.Writer, rotating first when the data would exceed the maximum size.
// A single write larger than the maximum goes to a fresh file on its own.
func (w *FileWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, ErrWriterClosed
	}

	if w.size > 0 && w.size+int64(len(data)) > w.maxSize {
		err := w.rotate()
		if err != nil {
			w.handleError(err)

			return 0, ewrap.Wrapf(err, "rotating file")
		}
	}

	bytesWritten, err := w.file.Write(data)
	w.size += int64(bytesWritten)

	if err != nil {
		w.handleError(err)

		return bytesWritten, ewrap.Wrap(err, "failed writing to file")
	}

	return bytesWritten, nil
}

// Sync flushes the file. It is a no-op once closed.
func (w *FileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Sync()
	if err != nil {
		return ewrap.Wrapf(err, "syncing file")
	}

	return nil
}

// Close syncs and closes the file. Closing twice is not an error.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Sync()
	if err != nil {
		return ewrap.Wrapf(err, "final sync before close")
	}

	err = w.file.Close()
	if err != nil {
		return ewrap.Wrapf(err, "closing file")
	}

	w.file = nil

	return nil
}

// rotate moves the current file to a timestamped backup and opens a new one.
func (w *FileWriter) rotate() error {
	err := w.file.Close()
	if err != nil {
		return ewrap.Wrapf(err, "closing current file")
	}

	timestamp := time.Now().Format("2006-01-02T15-04-05.000000000")
	backupPath := filepath.Join(
		filepath.Dir(w.path),
		fmt.Sprintf("%s.%s", filepath.Base(w.path), timestamp),
	)

	err = os.Rename(w.path, backupPath)
	if err != nil {
		return ewrap.Wrapf(err, "renaming file").
			WithMetadata("from", w.path).
			WithMetadata("to", backupPath)
	}

	rotated := backupPath

	if w.compression != NoCompression {
		compressed, compressErr := CompressFile(backupPath, w.compression)
		if compressErr != nil {
			w.handleError(compressErr)
		} else {
			rotated = compressed
		}
	}

	//nolint:gosec // G304: validated at construction.
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, w.fileMode)
	if err != nil {
		return ewrap.Wrapf(err, "creating new file")
	}

	w.file = file
	w.size = 0

	if w.rotationCallback != nil {
		w.rotationCallback(rotated)
	}

	return nil
}

func (w *FileWriter) handleError(err error) {
	if w.errorHandler != nil {
		w.errorHandler(err)
	}
}
