package config

import (
	"testing"
	"time"
)

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("CHATSYNC_API_BASE_URL", "https://chat.example.com")
	t.Setenv("CHATSYNC_API_TIMEOUT", "15s")
	t.Setenv("CHATSYNC_DB_PATH", "/var/lib/chatsync")
	t.Setenv("CHATSYNC_RATE_RPS", "2.5")
	t.Setenv("CHATSYNC_RATE_BURST", "10")
	t.Setenv("CHATSYNC_RETENTION_ENABLED", "true")
	t.Setenv("CHATSYNC_RETENTION_PERIOD", "7d")
	t.Setenv("CHATSYNC_METRICS_ENABLED", "yes")
	t.Setenv("CHATSYNC_LOG_LEVEL", "debug")

	cfg, used := ParseConfigEnvs()
	if !used {
		t.Fatal("env not detected")
	}
	if cfg.API.BaseURL != "https://chat.example.com" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout.Duration() != 15*time.Second {
		t.Errorf("timeout = %v", cfg.API.Timeout.Duration())
	}
	if cfg.Storage.DBPath != "/var/lib/chatsync" {
		t.Errorf("db path = %q", cfg.Storage.DBPath)
	}
	if cfg.RateLimit.RPS != 2.5 || cfg.RateLimit.Burst != 10 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Period != "7d" {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if !cfg.Metrics.Enabled {
		t.Errorf("metrics not enabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadEffectiveConfigSources(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.API.BaseURL = "https://file.example.com"
	fileCfg.Storage.DBPath = "/file/db"

	envCfg := &Config{}
	envCfg.API.BaseURL = "https://env.example.com"
	envCfg.Storage.DBPath = "/env/db"

	t.Run("explicit config flag wins", func(t *testing.T) {
		flags := Flags{Config: "c.yaml", Set: map[string]bool{"config": true}}
		eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg)
		if err != nil {
			t.Fatal(err)
		}
		if eff.Source != "config" || eff.APIBase != "https://file.example.com" {
			t.Errorf("eff = %+v", eff)
		}
	})

	t.Run("explicit config flag without file fails", func(t *testing.T) {
		flags := Flags{Config: "c.yaml", Set: map[string]bool{"config": true}}
		if _, err := LoadEffectiveConfig(flags, &Config{}, false, envCfg); err == nil {
			t.Fatal("missing explicit config accepted")
		}
	})

	t.Run("api flag wins over file and env", func(t *testing.T) {
		flags := Flags{API: "https://flag.example.com", Set: map[string]bool{"api": true}}
		eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg)
		if err != nil {
			t.Fatal(err)
		}
		if eff.Source != "flags" || eff.APIBase != "https://flag.example.com" {
			t.Errorf("eff = %+v", eff)
		}
		// unset db falls through to env, then file
		if eff.DBPath != "/env/db" {
			t.Errorf("db path = %q", eff.DBPath)
		}
	})

	t.Run("file beats env when no flags", func(t *testing.T) {
		flags := Flags{Set: map[string]bool{}}
		eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg)
		if err != nil {
			t.Fatal(err)
		}
		if eff.Source != "config" || eff.APIBase != "https://file.example.com" {
			t.Errorf("eff = %+v", eff)
		}
	})

	t.Run("env is the fallback", func(t *testing.T) {
		flags := Flags{Set: map[string]bool{}}
		eff, err := LoadEffectiveConfig(flags, &Config{}, false, envCfg)
		if err != nil {
			t.Fatal(err)
		}
		if eff.Source != "env" || eff.APIBase != "https://env.example.com" {
			t.Errorf("eff = %+v", eff)
		}
	})
}
