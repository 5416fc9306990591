package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	API    string
	DB     string
	Config string
	Set    map[string]bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config  *Config
	APIBase string
	DBPath  string
	Source  string // "flags", "config", or "env"
}

// parses command-line flags and returns them as a Flags struct
// you can only pass 3 config values
func ParseConfigFlags() Flags {
	// parse any flags with defaults
	apiPtr := flag.String("api", "http://localhost:8000", "Chat backend base URL")
	dbPtr := flag.String("db", defaultDBPath, "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()

	// record which flags were set explicitly
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{API: *apiPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// loads environment variables into a new Config and returns it with a flag
// reporting whether any CHATSYNC_* variable was set; caller config is unchanged
func ParseConfigEnvs() (*Config, bool) {
	envs := map[string]string{
		"API_BASE_URL":      os.Getenv("CHATSYNC_API_BASE_URL"),
		"API_TIMEOUT":       os.Getenv("CHATSYNC_API_TIMEOUT"),
		"API_CHANNEL":       os.Getenv("CHATSYNC_API_CHANNEL"),
		"API_HISTORY_LIMIT": os.Getenv("CHATSYNC_API_HISTORY_LIMIT"),

		"DB_PATH": os.Getenv("CHATSYNC_DB_PATH"),

		"RATE_RPS":   os.Getenv("CHATSYNC_RATE_RPS"),
		"RATE_BURST": os.Getenv("CHATSYNC_RATE_BURST"),

		"RETENTION_ENABLED": os.Getenv("CHATSYNC_RETENTION_ENABLED"),
		"RETENTION_CRON":    os.Getenv("CHATSYNC_RETENTION_CRON"),
		"RETENTION_PERIOD":  os.Getenv("CHATSYNC_RETENTION_PERIOD"),
		"RETENTION_DRY_RUN": os.Getenv("CHATSYNC_RETENTION_DRY_RUN"),

		"METRICS_ENABLED": os.Getenv("CHATSYNC_METRICS_ENABLED"),
		"METRICS_ADDR":    os.Getenv("CHATSYNC_METRICS_ADDR"),

		"LOG_LEVEL": os.Getenv("CHATSYNC_LOG_LEVEL"),
	}

	envUsed := false
	for _, v := range envs {
		if v != "" {
			envUsed = true
			break
		}
	}
	envCfg := &Config{}

	parseBool := func(v string) bool {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	}

	parseDuration := func(v string) Duration {
		if strings.TrimSpace(v) == "" {
			return Duration(0)
		}
		if td, err := time.ParseDuration(v); err == nil {
			return Duration(td)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return Duration(time.Duration(f * float64(time.Second)))
		}
		return Duration(0)
	}

	if v := envs["API_BASE_URL"]; v != "" {
		envCfg.API.BaseURL = strings.TrimSpace(v)
	}
	if v := envs["API_TIMEOUT"]; v != "" {
		envCfg.API.Timeout = parseDuration(v)
	}
	if v := envs["API_CHANNEL"]; v != "" {
		envCfg.API.Channel = strings.TrimSpace(v)
	}
	if v := envs["API_HISTORY_LIMIT"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envCfg.API.HistoryLimit = n
		}
	}

	if v := envs["DB_PATH"]; v != "" {
		envCfg.Storage.DBPath = v
	}

	if v := envs["RATE_RPS"]; v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envCfg.RateLimit.RPS = f
		}
	}
	if v := envs["RATE_BURST"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envCfg.RateLimit.Burst = n
		}
	}

	if v := envs["RETENTION_ENABLED"]; v != "" {
		envCfg.Retention.Enabled = parseBool(v)
	}
	if v := envs["RETENTION_CRON"]; v != "" {
		envCfg.Retention.Cron = v
	}
	if v := envs["RETENTION_PERIOD"]; v != "" {
		envCfg.Retention.Period = v
	}
	if v := envs["RETENTION_DRY_RUN"]; v != "" {
		envCfg.Retention.DryRun = parseBool(v)
	}

	if v := envs["METRICS_ENABLED"]; v != "" {
		envCfg.Metrics.Enabled = parseBool(v)
	}
	if v := envs["METRICS_ADDR"]; v != "" {
		envCfg.Metrics.Addr = strings.TrimSpace(v)
	}

	if v := envs["LOG_LEVEL"]; v != "" {
		envCfg.Logging.Level = strings.TrimSpace(v)
	}

	return envCfg, envUsed
}

// decides which single source to use (flags, config file, or env) and returns
// the effective config plus resolved api base and dbPath. if --config is set,
// only the config file is used; otherwise flags if set; else config file if
// present; else env
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.APIBase = fileCfg.API.BaseURL
		res.DBPath = fileCfg.Storage.DBPath
		res.Source = "config"
		return res, nil
	}

	if flags.Set["api"] || flags.Set["db"] {
		api := flags.API
		if !flags.Set["api"] {
			if b := strings.TrimSpace(envCfg.API.BaseURL); b != "" {
				api = b
			} else if b := strings.TrimSpace(fileCfg.API.BaseURL); b != "" {
				api = b
			}
		}
		dbPath := flags.DB
		if !flags.Set["db"] {
			if p := strings.TrimSpace(envCfg.Storage.DBPath); p != "" {
				dbPath = p
			} else if p := strings.TrimSpace(fileCfg.Storage.DBPath); p != "" {
				dbPath = p
			}
		}
		out := &Config{}
		out.API.BaseURL = api
		out.Storage.DBPath = dbPath
		res.Config = out
		res.APIBase = api
		res.DBPath = dbPath
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		res.Config = fileCfg
		res.APIBase = fileCfg.API.BaseURL
		res.DBPath = fileCfg.Storage.DBPath
		res.Source = "config"
		return res, nil
	}
	res.Config = envCfg
	res.APIBase = envCfg.API.BaseURL
	res.DBPath = envCfg.Storage.DBPath
	res.Source = "env"
	return res, nil
}
