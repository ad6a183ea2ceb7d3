// Package config defines the Taskboard watcher configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskboard/taskboard/task"
)

// Config is the top-level configuration.
type Config struct {
	API      APIConfig    `json:"api" yaml:"api"`
	Stream   StreamConfig `json:"stream" yaml:"stream"`
	Cache    CacheConfig  `json:"cache" yaml:"cache"`
	View     ViewConfig   `json:"view" yaml:"view"`
	LogLevel string       `json:"log_level" yaml:"log_level"`
}

// APIConfig controls the remote task API client.
type APIConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Token   string `json:"token,omitempty" yaml:"token"` // overridden by TASKBOARD_TOKEN
}

// StreamConfig controls the push-notification channel.
type StreamConfig struct {
	URL string `json:"url" yaml:"url"` // e.g., "ws://localhost:8080/events"
}

// CacheConfig controls the local snapshot cache. An empty path disables it.
type CacheConfig struct {
	Path string `json:"path,omitempty" yaml:"path"`
}

// ViewConfig is the default view filter applied at startup.
type ViewConfig struct {
	Status           string `json:"status,omitempty" yaml:"status"`
	Priority         string `json:"priority,omitempty" yaml:"priority"`
	Search           string `json:"search,omitempty" yaml:"search"`
	UserID           string `json:"user_id,omitempty" yaml:"user_id"`
	ExcludeCompleted bool   `json:"exclude_completed,omitempty" yaml:"exclude_completed"`
}

// Filter converts the configured view into filter criteria.
func (v ViewConfig) Filter() task.Filter {
	return task.Filter{
		Status:           task.Status(v.Status),
		Priority:         task.Priority(v.Priority),
		SearchText:       v.Search,
		AssignedUserID:   v.UserID,
		ExcludeCompleted: v.ExcludeCompleted,
	}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
		},
		Stream: StreamConfig{
			URL: "ws://localhost:8080/events",
		},
		Cache: CacheConfig{
			Path: "./taskboard.db",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration. The
// TASKBOARD_TOKEN environment variable, when set, overrides the file token
// so credentials can stay out of config files.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if tok := os.Getenv("TASKBOARD_TOKEN"); tok != "" {
		cfg.API.Token = tok
	}
	return cfg, nil
}
