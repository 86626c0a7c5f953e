package hyperstream

import (
	"io"
	"os"
)

// ConfigBuilder provides a fluent API for constructing configurations.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new builder seeded with DefaultConfig.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig()}
}

// WithCacheSize sets the default record buffer capacity.
func (b *ConfigBuilder) WithCacheSize(size int) *ConfigBuilder {
	b.config.CacheSize = size

	return b
}

// WithNoCache selects unbuffered connections.
func (b *ConfigBuilder) WithNoCache(enable bool) *ConfigBuilder {
	b.config.NoCache = enable

	return b
}

// WithStatusInterval sets the number of records between interim record-count messages.
func (b *ConfigBuilder) WithStatusInterval(records uint64) *ConfigBuilder {
	b.config.StatusInterval = records

	return b
}

// WithProgressRate caps tool progress updates per second.
func (b *ConfigBuilder) WithProgressRate(perSecond float64) *ConfigBuilder {
	b.config.ProgressRate = perSecond

	return b
}

// WithLevel sets the minimum log level.
func (b *ConfigBuilder) WithLevel(level Level) *ConfigBuilder {
	b.config.Log.Level = level

	return b
}

// WithDebugLevel is a shortcut for WithLevel(DebugLevel).
func (b *ConfigBuilder) WithDebugLevel() *ConfigBuilder {
	return b.WithLevel(DebugLevel)
}

// WithJSONFormat toggles JSON log output.
func (b *ConfigBuilder) WithJSONFormat(enable bool) *ConfigBuilder {
	b.config.Log.EnableJSON = enable

	return b
}

// WithOutput sets the log output destination.
func (b *ConfigBuilder) WithOutput(output io.Writer) *ConfigBuilder {
	b.config.Log.Output = output

	return b
}

// WithConsoleOutput logs to stdout.
func (b *ConfigBuilder) WithConsoleOutput() *ConfigBuilder {
	return b.WithOutput(os.Stdout)
}

// WithFileOutput logs to a rotating file.
func (b *ConfigBuilder) WithFileOutput(path string) *ConfigBuilder {
	b.config.Log.File.Path = path

	return b
}

// WithFileRotation configures rotation of the log file.
func (b *ConfigBuilder) WithFileRotation(maxSizeBytes int64, compress bool) *ConfigBuilder {
	b.config.Log.File.MaxSizeBytes = maxSizeBytes
	b.config.Log.File.Compress = compress

	return b
}

// WithSampling enables log sampling below warning level.
func (b *ConfigBuilder) WithSampling(initial, thereafter int) *ConfigBuilder {
	b.config.Log.Sampling = SamplingConfig{Enabled: true, Initial: initial, Thereafter: thereafter}

	return b
}

// WithField adds a static field to every log entry.
func (b *ConfigBuilder) WithField(key string, value any) *ConfigBuilder {
	b.config.Log.AdditionalFields = append(b.config.Log.AdditionalFields, Field{Key: key, Value: value})

	return b
}

// Build validates and returns the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	config.Log.AdditionalFields = append([]Field(nil), b.config.Log.AdditionalFields...)

	err := config.Validate()
	if err != nil {
		return Config{}, err
	}

	return config, nil
}
