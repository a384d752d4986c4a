package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SocketPath        string
	DBPath            string
	TickInterval      time.Duration
	IdleCheckInterval time.Duration
	IdleThreshold     time.Duration
	RecentDecisions   int
	LogLevel          string
	LogFormat         string
}

func DefaultConfig() Config {
	return Config{
		SocketPath:        defaultSocketPath(),
		DBPath:            defaultDBPath(),
		TickInterval:      time.Second,
		IdleCheckInterval: time.Second,
		IdleThreshold:     5 * time.Second,
		RecentDecisions:   20,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// fileConfig is the on-disk shape. Durations are written as strings
// like "5s" and parsed explicitly.
type fileConfig struct {
	SocketPath        string `yaml:"socket_path"`
	DBPath            string `yaml:"db_path"`
	TickInterval      string `yaml:"tick_interval"`
	IdleCheckInterval string `yaml:"idle_check_interval"`
	IdleThreshold     string `yaml:"idle_threshold"`
	RecentDecisions   int    `yaml:"recent_decisions"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
}

// Load overlays the YAML file at path onto the defaults. A missing file
// is not an error; partial files override only the fields they set.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = defaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if file.SocketPath != "" {
		cfg.SocketPath = file.SocketPath
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
	if err := overlayDuration(&cfg.TickInterval, file.TickInterval, "tick_interval"); err != nil {
		return cfg, err
	}
	if err := overlayDuration(&cfg.IdleCheckInterval, file.IdleCheckInterval, "idle_check_interval"); err != nil {
		return cfg, err
	}
	if err := overlayDuration(&cfg.IdleThreshold, file.IdleThreshold, "idle_threshold"); err != nil {
		return cfg, err
	}
	if file.RecentDecisions > 0 {
		cfg.RecentDecisions = file.RecentDecisions
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
	}
	return cfg, nil
}

func overlayDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, raw)
	}
	*dst = d
	return nil
}

func defaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "worktimer", "worktimerd.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".worktimerd.sock"
	}
	return filepath.Join(home, ".local", "state", "worktimer", "worktimerd.sock")
}

func defaultDBPath() string {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "worktimer", "worktimer.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "worktimer.db"
	}
	return filepath.Join(home, ".local", "state", "worktimer", "worktimer.db")
}

func defaultConfigPath() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "worktimer", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "worktimer", "config.yaml")
}
