/*
Package config manages TOML config for lexidict services.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/lexidict/internal/utils"
	"github.com/bastiangx/lexidict/pkg/decay"
	"github.com/bastiangx/lexidict/pkg/dict"
	"github.com/bastiangx/lexidict/pkg/dynamic"
	"github.com/bastiangx/lexidict/pkg/search"
)

// Config holds the entire config structure
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Dict    DictConfig    `toml:"dict"`
	Dynamic DynamicConfig `toml:"dynamic"`
	Search  SearchConfig  `toml:"search"`
	Decay   DecayConfig   `toml:"decay"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxLimit     int  `toml:"max_limit"`
	MinPrefix    int  `toml:"min_prefix"`
	MaxPrefix    int  `toml:"max_prefix"`
	EnableFilter bool `toml:"enable_filter"`
}

// DictConfig holds facilitator options.
type DictConfig struct {
	DataDir         string `toml:"data_dir"`
	QueryTimeoutMs  int    `toml:"query_timeout_ms"`
	HistoryCapacity int    `toml:"history_capacity"`
}

// DynamicConfig tunes the update engine.
type DynamicConfig struct {
	GCEntryThreshold int `toml:"gc_entry_threshold"`
}

// SearchConfig tunes traversal and ranking.
type SearchConfig struct {
	MaxResults     int     `toml:"max_results"`
	MaxInputLength int     `toml:"max_input_length"`
	CostProximity  int     `toml:"cost_proximity"`
	CostCompletion int     `toml:"cost_completion"`
	CostInsertion  int     `toml:"cost_insertion"`
	MultiplierMin  float64 `toml:"bigram_multiplier_min"`
	MultiplierMax  float64 `toml:"bigram_multiplier_max"`
}

// DecayConfig tunes the forgetting curve.
type DecayConfig struct {
	HalflifeHours  int `toml:"halflife_hours"`
	MaxLevel       int `toml:"max_level"`
	CountsPerLevel int `toml:"counts_per_level"`
	InvalidDivisor int `toml:"invalid_divisor"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "lexidict")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	// Not conventional, fallback from ~/.config if not writable
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "lexidict")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/lexidict/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	var config *Config
	var err error

	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err = LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err = InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	searchDefaults := search.DefaultParams()
	return &Config{
		Server: ServerConfig{
			MaxLimit:     64,
			MinPrefix:    1,
			MaxPrefix:    60,
			EnableFilter: true,
		},
		Dict: DictConfig{
			DataDir:         "",
			QueryTimeoutMs:  100,
			HistoryCapacity: 64,
		},
		Dynamic: DynamicConfig{
			GCEntryThreshold: 16384,
		},
		Search: SearchConfig{
			MaxResults:     searchDefaults.MaxResults,
			MaxInputLength: searchDefaults.MaxInputLength,
			CostProximity:  searchDefaults.CostProximity,
			CostCompletion: searchDefaults.CostCompletion,
			CostInsertion:  searchDefaults.CostInsertion,
			MultiplierMin:  searchDefaults.MultiplierMin,
			MultiplierMax:  searchDefaults.MultiplierMax,
		},
		Decay: DecayConfig{
			HalflifeHours:  int(decay.DefaultHalflife / time.Hour),
			MaxLevel:       decay.MaxLevel,
			CountsPerLevel: decay.CountsPerLevel,
			InvalidDivisor: decay.InvalidDivisor,
		},
	}
}

// FacilitatorOptions maps the config onto dict.Options. An empty data_dir
// falls back to a "data" directory next to the config file.
func (c *Config) FacilitatorOptions() dict.Options {
	dataDir := c.Dict.DataDir
	if dataDir == "" {
		if configDir, err := GetConfigDir(); err == nil {
			dataDir = filepath.Join(configDir, "data")
		} else {
			dataDir = "data"
		}
	}
	return dict.Options{
		DataDir:         dataDir,
		QueryTimeout:    time.Duration(c.Dict.QueryTimeoutMs) * time.Millisecond,
		HistoryCapacity: c.Dict.HistoryCapacity,
		Search: search.Params{
			MaxResults:     c.Search.MaxResults,
			MaxInputLength: c.Search.MaxInputLength,
			CostProximity:  c.Search.CostProximity,
			CostCompletion: c.Search.CostCompletion,
			CostInsertion:  c.Search.CostInsertion,
			MultiplierMin:  c.Search.MultiplierMin,
			MultiplierMax:  c.Search.MultiplierMax,
		},
		Dynamic: dynamic.Options{
			GCEntryThreshold: c.Dynamic.GCEntryThreshold,
			Decay: decay.Params{
				Halflife:       time.Duration(c.Decay.HalflifeHours) * time.Hour,
				MaxLevel:       c.Decay.MaxLevel,
				CountsPerLevel: c.Decay.CountsPerLevel,
				InvalidDivisor: c.Decay.InvalidDivisor,
			},
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if serverSection, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(serverSection, &config.Server)
	}
	if dictSection, ok := utils.ExtractSection(tempConfig, "dict"); ok {
		extractDictConfig(dictSection, &config.Dict)
	}
	if dynSection, ok := utils.ExtractSection(tempConfig, "dynamic"); ok {
		if val, ok := utils.ExtractInt64(dynSection, "gc_entry_threshold"); ok {
			config.Dynamic.GCEntryThreshold = val
		}
	}
	if searchSection, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(searchSection, &config.Search)
	}
	if decaySection, ok := utils.ExtractSection(tempConfig, "decay"); ok {
		extractDecayConfig(decaySection, &config.Decay)
	}
	return config, nil
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		server.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		server.MaxPrefix = val
	}
	if val, ok := utils.ExtractBool(data, "enable_filter"); ok {
		server.EnableFilter = val
	}
}

// extractDictConfig extracts facilitator configuration from a map
func extractDictConfig(data map[string]any, dictConf *DictConfig) {
	if val, ok := data["data_dir"].(string); ok {
		dictConf.DataDir = val
	}
	if val, ok := utils.ExtractInt64(data, "query_timeout_ms"); ok {
		dictConf.QueryTimeoutMs = val
	}
	if val, ok := utils.ExtractInt64(data, "history_capacity"); ok {
		dictConf.HistoryCapacity = val
	}
}

func extractSearchConfig(data map[string]any, searchConf *SearchConfig) {
	if val, ok := utils.ExtractInt64(data, "max_results"); ok {
		searchConf.MaxResults = val
	}
	if val, ok := utils.ExtractInt64(data, "max_input_length"); ok {
		searchConf.MaxInputLength = val
	}
	if val, ok := utils.ExtractInt64(data, "cost_proximity"); ok {
		searchConf.CostProximity = val
	}
	if val, ok := utils.ExtractInt64(data, "cost_completion"); ok {
		searchConf.CostCompletion = val
	}
	if val, ok := utils.ExtractInt64(data, "cost_insertion"); ok {
		searchConf.CostInsertion = val
	}
	if val, ok := utils.ExtractFloat64(data, "bigram_multiplier_min"); ok {
		searchConf.MultiplierMin = val
	}
	if val, ok := utils.ExtractFloat64(data, "bigram_multiplier_max"); ok {
		searchConf.MultiplierMax = val
	}
}

func extractDecayConfig(data map[string]any, decayConf *DecayConfig) {
	if val, ok := utils.ExtractInt64(data, "halflife_hours"); ok {
		decayConf.HalflifeHours = val
	}
	if val, ok := utils.ExtractInt64(data, "max_level"); ok {
		decayConf.MaxLevel = val
	}
	if val, ok := utils.ExtractInt64(data, "counts_per_level"); ok {
		decayConf.CountsPerLevel = val
	}
	if val, ok := utils.ExtractInt64(data, "invalid_divisor"); ok {
		decayConf.InvalidDivisor = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(defaultPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return err
	}
	config := DefaultConfig()
	return utils.SaveTOMLFile(config, defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
