package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the mirrorctl configuration file.
type Config struct {
	ServerURL  string        `yaml:"server_url"`
	Token      string        `yaml:"token"`
	DebugOwner string        `yaml:"debug_owner"` // dev-mode identity; ignored when token is set
	OwnerID    string        `yaml:"owner_id"`
	MirrorPath string        `yaml:"mirror_path"`
	Interval   time.Duration `yaml:"-"`
}

// rawConfig carries the interval as a string since yaml.v3 has no native
// duration support.
type rawConfig struct {
	Config   `yaml:",inline"`
	Interval string `yaml:"interval"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg := raw.Config
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse interval: %w", err)
		}
		cfg.Interval = d
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is required")
	}
	if cfg.OwnerID == "" {
		return nil, fmt.Errorf("owner_id is required")
	}
	if cfg.MirrorPath == "" {
		return nil, fmt.Errorf("mirror_path is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &cfg, nil
}
