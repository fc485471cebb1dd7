package config

import (
	"strings"

	"github.com/calvinalkan/blockrev/internal/bytesize"
)

// ApplyDefaults replaces zero values with defaults and normalizes the log
// level to uppercase. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyPipelineDefaults(&cfg.Pipeline)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}

	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}

	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyPipelineDefaults(cfg *PipelineConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "async"
	}

	cfg.Mode = strings.ToLower(cfg.Mode)

	if cfg.Workers == 0 {
		cfg.Workers = 2
	}

	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 3
	}

	if cfg.MaxBlockSize == 0 {
		cfg.MaxBlockSize = 256 * bytesize.MiB
	}
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)

	return cfg
}
