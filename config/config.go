// Package config loads engine configuration from YAML.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TickRate  int    `yaml:"tick_rate"`
	ScriptDir string `yaml:"script_dir"`
	HotReload bool   `yaml:"hot_reload"`
	Log       Log    `yaml:"log"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		TickRate:  60,
		ScriptDir: "scripts",
		HotReload: true,
		Log:       Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if cfg.TickRate <= 0 {
		return cfg, fmt.Errorf("config: tick_rate must be positive, got %d", cfg.TickRate)
	}
	return cfg, nil
}

// BuildLogger constructs the engine logger from the log section.
func (c Config) BuildLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("config: log level %q: %w", c.Log.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}
