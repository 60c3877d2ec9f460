package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetConfigDefaults(t *testing.T) {
	cfg, err := GetConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("GetConfig() error: %v", err)
	}

	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("poll interval = %v, want 5m", cfg.PollInterval)
	}
	if cfg.PacingDelay != 5*time.Second {
		t.Errorf("pacing delay = %v, want 5s", cfg.PacingDelay)
	}
	if cfg.RestockThreshold != 2 {
		t.Errorf("threshold = %d, want 2", cfg.RestockThreshold)
	}
	if len(cfg.ScoredStores) != 1 || cfg.ScoredStores[0] != "target" {
		t.Errorf("scored stores = %v, want [target]", cfg.ScoredStores)
	}
	if cfg.HealthAddress != ":8080" {
		t.Errorf("health address = %q, want :8080", cfg.HealthAddress)
	}
}

func TestGetConfigOverrides(t *testing.T) {
	cfg, err := GetConfig(writeConfig(t, `
poll_interval = "2m"
pacing_delay = "1s"
restock_threshold = 3
fetch_timeout = "20s"
render_timeout = "90s"
scored_stores = ["target", "bestbuy"]
admin_chat_ids = [123, 456]
health_address = ":9090"
`))
	if err != nil {
		t.Fatalf("GetConfig() error: %v", err)
	}

	if cfg.PollInterval != 2*time.Minute {
		t.Errorf("poll interval = %v, want 2m", cfg.PollInterval)
	}
	if cfg.PacingDelay != time.Second {
		t.Errorf("pacing delay = %v, want 1s", cfg.PacingDelay)
	}
	if cfg.RestockThreshold != 3 {
		t.Errorf("threshold = %d, want 3", cfg.RestockThreshold)
	}
	if cfg.FetchTimeout != 20*time.Second || cfg.RenderTimeout != 90*time.Second {
		t.Errorf("timeouts = %v/%v, want 20s/90s", cfg.FetchTimeout, cfg.RenderTimeout)
	}
	if len(cfg.ScoredStores) != 2 {
		t.Errorf("scored stores = %v", cfg.ScoredStores)
	}
	if !cfg.IsAdmin(123) || !cfg.IsAdmin(456) || cfg.IsAdmin(789) {
		t.Errorf("admin allowlist misread: %v", cfg.AdminChatIDs)
	}
}

func TestGetConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"poll interval too short", `poll_interval = "5s"`},
		{"unparseable poll interval", `poll_interval = "soon"`},
		{"negative pacing", `pacing_delay = "-2s"`},
		{"negative threshold", `restock_threshold = -1`},
		{"unparseable fetch timeout", `fetch_timeout = "fast"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := GetConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("GetConfig() accepted invalid configuration")
			}
		})
	}
}

func TestGetConfigMissingFile(t *testing.T) {
	if _, err := GetConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("GetConfig() should fail for a missing file")
	}
}
