package configloader

import (
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperstream"
)

type rawConfig struct {
	CacheSize      *int     `mapstructure:"cache_size"      yaml:"cache_size"`
	NoCache        *bool    `mapstructure:"no_cache"        yaml:"no_cache"`
	StatusInterval *uint64  `mapstructure:"status_interval" yaml:"status_interval"`
	ProgressRate   *float64 `mapstructure:"progress_rate"   yaml:"progress_rate"`
	Log            rawLog   `mapstructure:"log"             yaml:"log"`
}

type rawLog struct {
	Level            string `mapstructure:"level"             yaml:"level"`
	Output           string `mapstructure:"output"            yaml:"output"`
	EnableJSON       *bool  `mapstructure:"enable_json"       yaml:"enable_json"`
	TimeFormat       string `mapstructure:"time_format"       yaml:"time_format"`
	DisableTimestamp *bool  `mapstructure:"disable_timestamp" yaml:"disable_timestamp"`
	EnableColor      *bool  `mapstructure:"enable_color"      yaml:"enable_color"`
	ForceColor       *bool  `mapstructure:"force_color"       yaml:"force_color"`
	Sampling         struct {
		Enabled    *bool `mapstructure:"enabled"    yaml:"enabled"`
		Initial    *int  `mapstructure:"initial"    yaml:"initial"`
		Thereafter *int  `mapstructure:"thereafter" yaml:"thereafter"`
	} `mapstructure:"sampling" yaml:"sampling"`
	File struct {
		Path        string `mapstructure:"path"        yaml:"path"`
		MaxSize     *int64 `mapstructure:"max_size"    yaml:"max_size"`
		Compress    *bool  `mapstructure:"compress"    yaml:"compress"`
		Compression string `mapstructure:"compression" yaml:"compression"`
	} `mapstructure:"file" yaml:"file"`
}

func applyRaw(raw rawConfig) (*hyperstream.Config, error) {
	cfg := hyperstream.DefaultConfig()

	setIf(&cfg.CacheSize, raw.CacheSize)
	setIf(&cfg.NoCache, raw.NoCache)
	setIf(&cfg.StatusInterval, raw.StatusInterval)
	setIf(&cfg.ProgressRate, raw.ProgressRate)

	err := applyLog(&cfg.Log, raw.Log)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

func applyLog(cfg *hyperstream.LogConfig, raw rawLog) error {
	if raw.Level != "" {
		level, err := hyperstream.ParseLevel(raw.Level)
		if err != nil {
			return err
		}

		cfg.Level = level
	}

	if raw.Output != "" {
		writer, err := hyperstream.OpenOutput(raw.Output)
		if err != nil {
			return err
		}

		cfg.Output = writer
	}

	if raw.TimeFormat != "" {
		cfg.TimeFormat = raw.TimeFormat
	}

	setIf(&cfg.EnableJSON, raw.EnableJSON)
	setIf(&cfg.DisableTimestamp, raw.DisableTimestamp)
	setIf(&cfg.EnableColor, raw.EnableColor)
	setIf(&cfg.ForceColor, raw.ForceColor)

	setIf(&cfg.Sampling.Enabled, raw.Sampling.Enabled)
	setIf(&cfg.Sampling.Initial, raw.Sampling.Initial)
	setIf(&cfg.Sampling.Thereafter, raw.Sampling.Thereafter)

	if raw.File.Path != "" {
		cfg.File.Path = raw.File.Path
	}

	if raw.File.Compression != "" {
		cfg.File.CompressionAlgorithm = raw.File.Compression
	}

	setIf(&cfg.File.MaxSizeBytes, raw.File.MaxSize)
	setIf(&cfg.File.Compress, raw.File.Compress)

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func allKeys() []string {
	return []string{
		"cache_size",
		"no_cache",
		"status_interval",
		"progress_rate",
		"log.level",
		"log.output",
		"log.enable_json",
		"log.time_format",
		"log.disable_timestamp",
		"log.enable_color",
		"log.force_color",
		"log.sampling.enabled",
		"log.sampling.initial",
		"log.sampling.thereafter",
		"log.file.path",
		"log.file.max_size",
		"log.file.compress",
		"log.file.compression",
	}
}
