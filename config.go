package hyperstream

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream/internal/utils"
	"github.com/hyp3rd/hyperstream/pkg/record"
)

const (
	// DefaultCacheSize is the default capacity of every record buffer.
	DefaultCacheSize = record.DefaultCapacity
	// DefaultStatusInterval is the number of fanned-out records between interim record-count
	// messages. Record counts are always reported at flush boundaries as well.
	DefaultStatusInterval = 10000
	// DefaultProgressRate caps tool progress updates sent to the engine, per second.
	DefaultProgressRate = 10.0
	// DefaultTimeFormat is the default time format for log entries.
	DefaultTimeFormat = time.RFC3339
	// DefaultLevel is the default logging level.
	DefaultLevel = InfoLevel
	// LogFilePermissions are the default permissions for log and record files.
	LogFilePermissions = 0o644
	// DefaultMaxFileSizeMB is the default maximum size in MB of a file before rotation.
	DefaultMaxFileSizeMB = 100
	// DefaultSamplingInitial is the number of entries per level logged before sampling starts.
	DefaultSamplingInitial = 100
	// DefaultSamplingThereafter keeps one entry in N once sampling has started.
	DefaultSamplingThereafter = 10
)

// SamplingConfig thins out high-volume logging. Warnings and errors are never sampled.
type SamplingConfig struct {
	// Enabled turns sampling on.
	Enabled bool
	// Initial is the number of entries per level logged before sampling starts.
	Initial int
	// Thereafter keeps one entry in Thereafter after Initial.
	Thereafter int
}

// FileConfig holds configuration for file-based log output.
type FileConfig struct {
	// Path is the log file path.
	Path string
	// MaxSizeBytes is the max size in bytes before rotation (0 = default).
	MaxSizeBytes int64
	// Compress determines if rotated files are compressed.
	Compress bool
	// CompressionAlgorithm is "gzip" or "zstd".
	CompressionAlgorithm string
	// FileMode sets the permissions for new files.
	FileMode os.FileMode
}

// LogConfig holds configuration for the logger used by stream components.
type LogConfig struct {
	// Level is the minimum level to log.
	Level Level
	// Output is where the logs will be written.
	Output io.Writer
	// EnableJSON enables JSON output format.
	EnableJSON bool
	// TimeFormat specifies the format for timestamps.
	TimeFormat string
	// DisableTimestamp disables timestamp in log entries.
	DisableTimestamp bool
	// EnableColor colors text output when the output is a terminal.
	EnableColor bool
	// ForceColor colors text output even when the output is not a terminal.
	ForceColor bool
	// AdditionalFields adds these fields to all log entries.
	AdditionalFields []Field
	// Sampling configures log sampling below warning level.
	Sampling SamplingConfig
	// File configures rotating file output; used when Path is set.
	File FileConfig
}

// Config holds configuration for a plugin context.
type Config struct {
	// CacheSize is the default capacity in bytes of every record buffer.
	CacheSize int
	// NoCache selects unbuffered connections: every record is delivered on its own.
	NoCache bool
	// StatusInterval is the number of records between interim record-count messages (0 disables them).
	StatusInterval uint64
	// ProgressRate caps tool progress updates per second (0 = unlimited).
	ProgressRate float64
	// Log configures logging.
	Log LogConfig
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheSize:      DefaultCacheSize,
		NoCache:        false,
		StatusInterval: DefaultStatusInterval,
		ProgressRate:   DefaultProgressRate,
		Log: LogConfig{
			Level:            DefaultLevel,
			Output:           os.Stdout,
			EnableJSON:       true,
			TimeFormat:       DefaultTimeFormat,
			EnableColor:      true,
			AdditionalFields: make([]Field, 0),
			Sampling: SamplingConfig{
				Initial:    DefaultSamplingInitial,
				Thereafter: DefaultSamplingThereafter,
			},
			File: FileConfig{
				MaxSizeBytes:         DefaultMaxFileSizeMB * 1024 * 1024,
				Compress:             false,
				CompressionAlgorithm: "gzip",
				FileMode:             LogFilePermissions,
			},
		},
	}
}

// DevelopmentConfig returns a configuration with verbose, human-readable logging.
func DevelopmentConfig() Config {
	config := DefaultConfig()
	config.Log.Level = DebugLevel
	config.Log.EnableJSON = false

	return config
}

// Validate checks the configuration and fills in zero values with defaults.
func (c *Config) Validate() error {
	if c.CacheSize < 0 {
		return ewrap.New("cache size cannot be negative").WithMetadata("cache_size", c.CacheSize)
	}

	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}

	if c.ProgressRate < 0 {
		return ewrap.New("progress rate cannot be negative").WithMetadata("progress_rate", c.ProgressRate)
	}

	if !c.Log.Level.IsValid() {
		return ewrap.New("invalid log level").WithMetadata("level", int(c.Log.Level))
	}

	if c.Log.TimeFormat == "" {
		c.Log.TimeFormat = DefaultTimeFormat
	}

	if c.Log.Output == nil {
		c.Log.Output = os.Stdout
	}

	if c.Log.Sampling.Initial <= 0 {
		c.Log.Sampling.Initial = DefaultSamplingInitial
	}

	if c.Log.Sampling.Thereafter <= 0 {
		c.Log.Sampling.Thereafter = DefaultSamplingThereafter
	}

	switch strings.ToLower(c.Log.File.CompressionAlgorithm) {
	case "":
		c.Log.File.CompressionAlgorithm = "gzip"
	case "gzip", "zstd":
	default:
		return ewrap.New("unsupported compression algorithm").
			WithMetadata("algorithm", c.Log.File.CompressionAlgorithm)
	}

	return nil
}

// OpenOutput resolves an output name to a writer. It accepts "stdout", "stderr", or a file
// path; relative paths are confined to the system temporary directory.
func OpenOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if strings.TrimSpace(output) == "" {
		return nil, ewrap.New("output path cannot be empty")
	}

	path := filepath.Clean(output)

	if !filepath.IsAbs(path) {
		securePath, err := utils.SecurePath(os.TempDir(), path)
		if err != nil {
			return nil, ewrap.Wrap(err, "invalid output path")
		}

		path = securePath
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to open output file %s", path)
	}

	return file, nil
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, ewrap.New("invalid log level").WithMetadata("level", level)
	}
}
