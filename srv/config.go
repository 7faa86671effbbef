package srv

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration. Values come from flags and
// WORDCLASH_* env vars, optionally overlaid by a YAML file (see
// yamlConfig).
type Config struct {
	// Network
	Bind string
	Port int

	// PublicURL is the externally reachable base URL, used for join
	// links in the room QR codes.
	PublicURL string

	// Storage
	DBPath        string
	ForcedWordLog string

	// Logging
	LogLevel string // debug, info, warn, error

	// Game timing
	CountdownSeconds int
	SelectionTimeout time.Duration
	GracePeriod      time.Duration

	// TestMode allows client-supplied test word seeds to override
	// target selection. Never enable in production.
	TestMode bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Bind:             "0.0.0.0",
		Port:             8080,
		PublicURL:        "http://localhost:8080",
		DBPath:           "wordclash.db",
		ForcedWordLog:    "forced_words.jsonl",
		LogLevel:         "info",
		CountdownSeconds: 3,
		SelectionTimeout: 30 * time.Second,
		GracePeriod:      120 * time.Second,
	}
}

// yamlConfig mirrors Config for file parsing. Durations are strings in
// the file ("45s", "2m") and parsed below; pointers distinguish absent
// keys from zero values.
type yamlConfig struct {
	Bind             *string `yaml:"bind"`
	Port             *int    `yaml:"port"`
	PublicURL        *string `yaml:"public_url"`
	DBPath           *string `yaml:"db_path"`
	ForcedWordLog    *string `yaml:"forced_word_log"`
	LogLevel         *string `yaml:"log_level"`
	CountdownSeconds *int    `yaml:"countdown_seconds"`
	SelectionTimeout *string `yaml:"selection_timeout"`
	GracePeriod      *string `yaml:"grace_period"`
	TestMode         *bool   `yaml:"test_mode"`
}

// LoadConfig overlays a YAML file onto cfg. A missing file leaves cfg
// untouched; keys absent from the file keep their current values.
func LoadConfig(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if yc.Bind != nil {
		cfg.Bind = *yc.Bind
	}
	if yc.Port != nil {
		cfg.Port = *yc.Port
	}
	if yc.PublicURL != nil {
		cfg.PublicURL = *yc.PublicURL
	}
	if yc.DBPath != nil {
		cfg.DBPath = *yc.DBPath
	}
	if yc.ForcedWordLog != nil {
		cfg.ForcedWordLog = *yc.ForcedWordLog
	}
	if yc.LogLevel != nil {
		cfg.LogLevel = *yc.LogLevel
	}
	if yc.CountdownSeconds != nil {
		cfg.CountdownSeconds = *yc.CountdownSeconds
	}
	if yc.SelectionTimeout != nil {
		d, err := time.ParseDuration(*yc.SelectionTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing selection_timeout in %s: %w", path, err)
		}
		cfg.SelectionTimeout = d
	}
	if yc.GracePeriod != nil {
		d, err := time.ParseDuration(*yc.GracePeriod)
		if err != nil {
			return cfg, fmt.Errorf("parsing grace_period in %s: %w", path, err)
		}
		cfg.GracePeriod = d
	}
	if yc.TestMode != nil {
		cfg.TestMode = *yc.TestMode
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.CountdownSeconds < 1 {
		return fmt.Errorf("countdown must be at least 1 second")
	}
	if c.SelectionTimeout <= 0 {
		return fmt.Errorf("selection timeout must be positive")
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive")
	}
	return nil
}
