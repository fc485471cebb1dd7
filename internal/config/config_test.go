package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/blockrev/internal/bytesize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "async", cfg.Pipeline.Mode)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.QueueDepth)
	assert.Equal(t, 256*bytesize.MiB, cfg.Pipeline.MaxBlockSize)
	assert.Nil(t, cfg.Pipeline.Seed)
	require.NoError(t, Validate(cfg))
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
pipeline:
  mode: sync
  workers: 1
  max_block_size: 64Mi
  binary: true
  seed: 42
metrics:
  textfile: /tmp/blockrev.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "sync", cfg.Pipeline.Mode)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.QueueDepth)
	assert.Equal(t, 64*bytesize.MiB, cfg.Pipeline.MaxBlockSize)
	assert.True(t, cfg.Pipeline.Binary)
	require.NotNil(t, cfg.Pipeline.Seed)
	assert.Equal(t, uint64(42), *cfg.Pipeline.Seed)
	assert.Equal(t, "/tmp/blockrev.prom", cfg.Metrics.Textfile)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  mode: sync\n")

	t.Setenv("BLOCKREV_PIPELINE_MODE", "async")
	t.Setenv("BLOCKREV_PIPELINE_MAX_BLOCK_SIZE", "4Ki")
	t.Setenv("BLOCKREV_PIPELINE_SEED", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "async", cfg.Pipeline.Mode)
	assert.Equal(t, 4*bytesize.KiB, cfg.Pipeline.MaxBlockSize)
	require.NotNil(t, cfg.Pipeline.Seed)
	assert.Equal(t, uint64(7), *cfg.Pipeline.Seed)
}

func TestLoad_UsesDefaultsWhenDefaultFileIsMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FailsWhenExplicitFileIsMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"mode", "pipeline:\n  mode: uring\n"},
		{"workers", "pipeline:\n  workers: 500\n"},
		{"queue depth", "pipeline:\n  queue_depth: 1\n"},
		{"log format", "logging:\n  format: xml\n"},
		{"byte size", "pipeline:\n  max_block_size: lots\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestSave_RoundTrips(t *testing.T) {
	seed := uint64(99)

	cfg := Default()
	cfg.Pipeline.Mode = "sync"
	cfg.Pipeline.MaxBlockSize = 8 * bytesize.MiB
	cfg.Pipeline.Seed = &seed

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_block_size: 8Mi")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
