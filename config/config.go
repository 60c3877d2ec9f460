// Package config loads the monitoring configuration from a TOML file.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables the monitor and bot depend on.
type Config struct {
	PollInterval     time.Duration
	PacingDelay      time.Duration
	RestockThreshold int
	FetchTimeout     time.Duration
	RenderTimeout    time.Duration
	ScoredStores     []string
	AdminChatIDs     []int64
	HealthAddress    string
}

type tomlConfig struct {
	PollInterval     string   `toml:"poll_interval"`
	PacingDelay      string   `toml:"pacing_delay"`
	RestockThreshold int      `toml:"restock_threshold"`
	FetchTimeout     string   `toml:"fetch_timeout"`
	RenderTimeout    string   `toml:"render_timeout"`
	ScoredStores     []string `toml:"scored_stores"`
	AdminChatIDs     []int64  `toml:"admin_chat_ids"`
	HealthAddress    string   `toml:"health_address"`
}

// GetConfig reads and validates the configuration at path. Missing fields
// take defaults; an implausibly aggressive poll interval is rejected outright
// to protect the monitored sites.
func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromTOML(tc)
}

func fromTOML(tc tomlConfig) (*Config, error) {
	cfg := &Config{
		PollInterval:     5 * time.Minute,
		PacingDelay:      5 * time.Second,
		RestockThreshold: 2,
		FetchTimeout:     30 * time.Second,
		RenderTimeout:    60 * time.Second,
		ScoredStores:     []string{"target"},
		AdminChatIDs:     tc.AdminChatIDs,
		HealthAddress:    ":8080",
	}

	if tc.PollInterval != "" {
		d, err := time.ParseDuration(tc.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("parse poll_interval: %w", err)
		}
		if d < 15*time.Second {
			return nil, fmt.Errorf("poll_interval too short (%v), minimum: 15s", d)
		}
		cfg.PollInterval = d
	}

	if tc.PacingDelay != "" {
		d, err := time.ParseDuration(tc.PacingDelay)
		if err != nil {
			return nil, fmt.Errorf("parse pacing_delay: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("pacing_delay must not be negative, got %v", d)
		}
		cfg.PacingDelay = d
	}

	if tc.RestockThreshold != 0 {
		if tc.RestockThreshold < 1 {
			return nil, fmt.Errorf("restock_threshold must be at least 1, got %d", tc.RestockThreshold)
		}
		cfg.RestockThreshold = tc.RestockThreshold
	}

	if tc.FetchTimeout != "" {
		d, err := time.ParseDuration(tc.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse fetch_timeout: %w", err)
		}
		cfg.FetchTimeout = d
	}

	if tc.RenderTimeout != "" {
		d, err := time.ParseDuration(tc.RenderTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse render_timeout: %w", err)
		}
		cfg.RenderTimeout = d
	}

	if tc.ScoredStores != nil {
		cfg.ScoredStores = tc.ScoredStores
	}

	if tc.HealthAddress != "" {
		cfg.HealthAddress = tc.HealthAddress
	}

	return cfg, nil
}

// IsAdmin reports whether chatID is on the admin allowlist.
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
