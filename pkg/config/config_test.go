package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateConfigFillsDefaults(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateConfig(); err != nil {
		t.Fatal(err)
	}
	if cfg.API.Timeout.Duration() != 30*time.Second {
		t.Errorf("timeout default = %v", cfg.API.Timeout.Duration())
	}
	if cfg.API.Channel != "web" {
		t.Errorf("channel default = %q", cfg.API.Channel)
	}
	if cfg.API.HistoryLimit != 200 {
		t.Errorf("history limit default = %d", cfg.API.HistoryLimit)
	}
	if cfg.Storage.DBPath == "" {
		t.Errorf("db path default missing")
	}
	if cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0 {
		t.Errorf("rate limit defaults missing: %+v", cfg.RateLimit)
	}
	if cfg.Retention.Cron == "" || cfg.Retention.Period == "" {
		t.Errorf("retention defaults missing: %+v", cfg.Retention)
	}
}

func TestValidateConfigKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.API.Timeout = Duration(5 * time.Second)
	cfg.API.Channel = "widget"
	cfg.API.HistoryLimit = 50
	if err := cfg.ValidateConfig(); err != nil {
		t.Fatal(err)
	}
	if cfg.API.Timeout.Duration() != 5*time.Second || cfg.API.Channel != "widget" || cfg.API.HistoryLimit != 50 {
		t.Errorf("explicit values overwritten: %+v", cfg.API)
	}
}

func TestValidateConfigRejectsBadCron(t *testing.T) {
	cfg := &Config{}
	cfg.Retention.Cron = "not a cron"
	if err := cfg.ValidateConfig(); err == nil {
		t.Fatal("invalid cron accepted")
	}
}

func TestValidateConfigMetricsAddrDefault(t *testing.T) {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	if err := cfg.ValidateConfig(); err != nil {
		t.Fatal(err)
	}
	if cfg.Metrics.Addr == "" {
		t.Errorf("metrics addr default missing")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
api:
  base_url: "https://chat.example.com"
  timeout: "10s"
  channel: "widget"
  history_limit: 100
storage:
  db_path: "/tmp/chatsync-test"
logging:
  level: "debug"
rate_limit:
  rps: 2
  burst: 5
retention:
  enabled: true
  cron: "0 4 * * *"
  period: "7d"
metrics:
  enabled: true
  addr: ":9200"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://chat.example.com" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout.Duration() != 10*time.Second {
		t.Errorf("timeout = %v", cfg.API.Timeout.Duration())
	}
	if cfg.API.HistoryLimit != 100 {
		t.Errorf("history limit = %d", cfg.API.HistoryLimit)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Period != "7d" {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9200" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("CHATSYNC_CONFIG", "/env/config.yaml")
	if got := ResolveConfigPath("/flag/config.yaml", true); got != "/flag/config.yaml" {
		t.Errorf("flag-set path = %q", got)
	}
	if got := ResolveConfigPath("/flag/config.yaml", false); got != "/env/config.yaml" {
		t.Errorf("env path = %q", got)
	}
	t.Setenv("CHATSYNC_CONFIG", "")
	if got := ResolveConfigPath("/flag/config.yaml", false); got != "/flag/config.yaml" {
		t.Errorf("fallback path = %q", got)
	}
}
