package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Search   SearchConfig
	UI       UIConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// SearchConfig tunes fuzzy name lookup.
type SearchConfig struct {
	Threshold float64
	Limit     int
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Accent string
}

// Load reads configuration from file and env. Env var overrides use prefix UNIAPP_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "uniapp", "uniapp.db"))
	v.SetDefault("search.threshold", 0.6)
	v.SetDefault("search.limit", 10)
	v.SetDefault("ui.accent", "#89b4fa")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("UNIAPP_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "uniapp"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("UNIAPP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("UNIAPP_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "uniapp", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("search.threshold", cfg.Search.Threshold)
	v.Set("search.limit", cfg.Search.Limit)
	v.Set("ui.accent", cfg.UI.Accent)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
