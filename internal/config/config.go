// Package config loads the command-line client's settings from a TOML
// file, falling back to defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the client settings. Zero values fall back to defaults
// at load time, so a partial file is fine.
type Config struct {
	LogLevel  string   `toml:"log_level"`
	Platform  string   `toml:"platform"`
	CacheDir  string   `toml:"cache_dir"`
	OutputDir string   `toml:"output_dir"`
	HistoryDB string   `toml:"history_db"`
	Timeout   duration `toml:"timeout"`
}

// duration lets TOML carry values like "90s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:  "info",
		Platform:  "android",
		CacheDir:  filepath.Join(os.TempDir(), "ytsource"),
		OutputDir: ".",
		HistoryDB: defaultHistoryPath(),
		Timeout:   duration{3 * time.Minute},
	}
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ytsource.db"
	}
	return filepath.Join(dir, "ytsource", "history.db")
}

// Load reads a config file and merges it over the defaults. An empty
// path or a missing file yields the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	var loaded Config
	if _, err := toml.DecodeFile(path, &loaded); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.merge(loaded)
	return cfg, nil
}

func (c *Config) merge(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Platform != "" {
		c.Platform = other.Platform
	}
	if other.CacheDir != "" {
		c.CacheDir = other.CacheDir
	}
	if other.OutputDir != "" {
		c.OutputDir = other.OutputDir
	}
	if other.HistoryDB != "" {
		c.HistoryDB = other.HistoryDB
	}
	if other.Timeout.Duration != 0 {
		c.Timeout = other.Timeout
	}
}
