package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvDBPath names the environment variable that overrides DBPath.
const EnvDBPath = "HIZTERY_DB"

// DefaultDBName is the database file name inside the base directory.
const DefaultDBName = "history.db"

// configNames are tried in order; the first one present wins.
var configNames = []string{"config.yaml", "config.yml", "config.json"}

// Config holds application configuration.
type Config struct {
	// DBPath is the history database file. Empty means baseDir/history.db.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`

	// SQLLogMode is the SQL statement log mode: disabled, profile, or trace.
	// Only an explicit value here or on the command line enables logging.
	SQLLogMode string `json:"sql_log_mode,omitempty" yaml:"sql_log_mode,omitempty"`

	// SessionID is stamped on new records that do not carry one.
	// 0 means use the process id.
	SessionID int64 `json:"session_id,omitempty" yaml:"session_id,omitempty"`

	// BusyTimeoutMS is how long a writer waits for the database lock.
	BusyTimeoutMS int `json:"busy_timeout_ms,omitempty" yaml:"busy_timeout_ms,omitempty"`

	// PageSize only takes effect when the database file is created.
	PageSize int `json:"page_size,omitempty" yaml:"page_size,omitempty"`

	// WALAutocheckpoint is the WAL frame count that triggers a checkpoint.
	WALAutocheckpoint int `json:"wal_autocheckpoint,omitempty" yaml:"wal_autocheckpoint,omitempty"`

	// JournalSizeLimit caps the WAL file size in bytes.
	JournalSizeLimit int64 `json:"journal_size_limit,omitempty" yaml:"journal_size_limit,omitempty"`

	// DefaultSearchLimit caps tool-server search and list results when the
	// caller gives no limit.
	DefaultSearchLimit int `json:"default_search_limit,omitempty" yaml:"default_search_limit,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration. Database tuning fields
// stay zero so the store applies its own defaults.
func DefaultConfig() *Config {
	return &Config{
		SQLLogMode:         "disabled",
		DefaultSearchLimit: 50,
	}
}

// Load loads configuration from baseDir/config.yaml (or .yml, or .json),
// applies defaults, and resolves DBPath against baseDir.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.hiztery.
func Load(baseDir string) (*Config, error) {
	raw, err := loadDirRaw(baseDir)
	if err != nil {
		return nil, err
	}
	cfg := Merge(DefaultConfig(), raw)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(baseDir, DefaultDBName)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) *Config {
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		cfg.DBPath = v
	}
	return cfg
}

func loadDirRaw(baseDir string) (*Config, error) {
	for _, name := range configNames {
		path := filepath.Join(baseDir, name)
		cfg, err := loadFileRaw(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		return cfg, nil
	}
	return &Config{}, nil
}

// loadFileRaw loads configuration from a specific file path, choosing the
// decoder by extension. A missing file is returned as os.ErrNotExist.
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DBPath = pick(overlay.DBPath, base.DBPath)
	result.SQLLogMode = pick(overlay.SQLLogMode, base.SQLLogMode)
	result.SessionID = pick(overlay.SessionID, base.SessionID)
	result.BusyTimeoutMS = pick(overlay.BusyTimeoutMS, base.BusyTimeoutMS)
	result.PageSize = pick(overlay.PageSize, base.PageSize)
	result.WALAutocheckpoint = pick(overlay.WALAutocheckpoint, base.WALAutocheckpoint)
	result.JournalSizeLimit = pick(overlay.JournalSizeLimit, base.JournalSizeLimit)
	result.DefaultSearchLimit = pick(overlay.DefaultSearchLimit, base.DefaultSearchLimit)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
