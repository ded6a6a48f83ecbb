package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/loykin/devboxd/internal/logger"
)

// Config is the top-level TOML structure for the devboxd agent.
//
// Example:
//
//	workspace = "/workspace"
//
//	[server]
//	listen = ":8080"
//	base_path = "/api"
//
//	[log]
//	level = "info"
//	file = "/var/log/devboxd/devboxd.log"
//
//	[history]
//	enabled = true
//	dsn = "sqlite:///var/lib/devboxd/history.db"
//
//	[metrics]
//	enabled = true
//
//	[broadcast]
//	enabled = true
type Config struct {
	Workspace string          `toml:"workspace" mapstructure:"workspace"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Broadcast BroadcastConfig `toml:"broadcast" mapstructure:"broadcast"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

type BroadcastConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workspace: "/workspace",
		Server:    ServerConfig{Listen: ":8080", BasePath: "/api"},
		Log:       logger.Config{Level: "info"},
		Metrics:   MetricsConfig{Enabled: true},
		Broadcast: BroadcastConfig{Enabled: true},
	}
}

// Load reads a TOML config file and applies defaults for unset fields.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "/workspace"
	}
	if !filepath.IsAbs(cfg.Workspace) {
		cfg.Workspace = filepath.Join(filepath.Dir(path), cfg.Workspace)
	}
	if cfg.History.Enabled && cfg.History.DSN == "" {
		return nil, fmt.Errorf("history.dsn must be set when history is enabled")
	}
	return cfg, nil
}
