// Package config loads the blockrev command line configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/calvinalkan/blockrev/internal/bytesize"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
// Example: BLOCKREV_PIPELINE_MODE=sync
const EnvPrefix = "BLOCKREV"

// Config represents the blockrev configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (BLOCKREV_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Pipeline tunes the rewrite pipeline
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`

	// Metrics controls metrics export
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// PipelineConfig tunes the rewrite pipeline.
type PipelineConfig struct {
	// Mode selects overlapped ("async") or inline ("sync") I/O
	// Default: async
	Mode string `mapstructure:"mode" validate:"required,oneof=async sync" yaml:"mode"`

	// Workers is the number of I/O goroutines in async mode
	// Default: 2
	Workers int `mapstructure:"workers" validate:"min=1,max=64" yaml:"workers"`

	// QueueDepth is the capacity of the submission queue
	// Default: 3 (one entry per buffer)
	QueueDepth int `mapstructure:"queue_depth" validate:"min=3" yaml:"queue_depth"`

	// MaxBlockSize limits the size of each of the three buffers
	// Supports human-readable formats: "256Mi", "1GB"
	// Default: 256Mi
	MaxBlockSize bytesize.ByteSize `mapstructure:"max_block_size" validate:"gt=0" yaml:"max_block_size"`

	// Binary splits the whole file instead of keeping the trailing byte
	// Default: false
	Binary bool `mapstructure:"binary" yaml:"binary"`

	// Seed makes block selection reproducible; unset means random
	Seed *uint64 `mapstructure:"seed" yaml:"seed,omitempty"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile is a path the Prometheus text exposition is written to after a
	// run. Empty disables export.
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location; a missing default file is
// not an error. An explicit configPath must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	err := readConfigFile(v, configPath != "")
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks()))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	err = Validate(&cfg)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against the field constraints.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}

	return errors.New(strings.Join(msgs, "; "))
}

// setupViper registers defaults, environment bindings and the config file
// location.
func setupViper(v *viper.Viper, configPath string) {
	def := Default()

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)
	v.SetDefault("pipeline.mode", def.Pipeline.Mode)
	v.SetDefault("pipeline.workers", def.Pipeline.Workers)
	v.SetDefault("pipeline.queue_depth", def.Pipeline.QueueDepth)
	v.SetDefault("pipeline.max_block_size", def.Pipeline.MaxBlockSize.Int())
	v.SetDefault("pipeline.binary", def.Pipeline.Binary)
	v.SetDefault("metrics.textfile", def.Metrics.Textfile)

	// No default: AutomaticEnv only resolves keys viper already knows.
	_ = v.BindEnv("pipeline.seed")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)

		return
	}

	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	if os.IsNotExist(err) && !explicit {
		return nil
	}

	return fmt.Errorf("failed to read config file: %w", err)
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can use sizes like "256Mi" or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeFor[bytesize.ByteSize]() {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %d", v)
			}

			return bytesize.ByteSize(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %d", v)
			}

			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML may decode numbers as float64
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %v", v)
			}

			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/blockrev, ~/.config/blockrev, or "." if
// the home directory cannot be determined.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "blockrev")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "blockrev")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
