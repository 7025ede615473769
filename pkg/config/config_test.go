package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
max_limit = 32

[search]
max_results = 8
bigram_multiplier_max = 2.5

[decay]
halflife_hours = 100
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Server.MaxLimit)
	assert.Equal(t, 8, cfg.Search.MaxResults)
	assert.Equal(t, 2.5, cfg.Search.MultiplierMax)
	assert.Equal(t, 100, cfg.Decay.HalflifeHours)

	// untouched sections keep their defaults
	def := DefaultConfig()
	assert.Equal(t, def.Dynamic.GCEntryThreshold, cfg.Dynamic.GCEntryThreshold)
	assert.Equal(t, def.Dict.QueryTimeoutMs, cfg.Dict.QueryTimeoutMs)
}

func TestPartialParseRecovery(t *testing.T) {
	// query_timeout_ms has the wrong type; [search] should still land
	path := writeConfig(t, `
[search]
max_results = 4

[dict]
query_timeout_ms = "fast"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Search.MaxResults)
	assert.Equal(t, DefaultConfig().Dict.QueryTimeoutMs, cfg.Dict.QueryTimeoutMs)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// InitConfig also wrote the file for next time
	assert.FileExists(t, path)
}

func TestFacilitatorOptionsMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dict.DataDir = "/tmp/lexidict-test"
	cfg.Dict.QueryTimeoutMs = 250
	cfg.Decay.HalflifeHours = 10

	opts := cfg.FacilitatorOptions()
	assert.Equal(t, "/tmp/lexidict-test", opts.DataDir)
	assert.Equal(t, 250*time.Millisecond, opts.QueryTimeout)
	assert.Equal(t, 10*time.Hour, opts.Dynamic.Decay.Halflife)
	assert.Equal(t, cfg.Search.MaxResults, opts.Search.MaxResults)
}
