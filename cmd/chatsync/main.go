package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chatsync/internal/app"
	"chatsync/pkg/config"
	"chatsync/pkg/logger"
)

// set build metadata
var version = "dev"

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	// parse config flags
	flags := config.ParseConfigFlags()

	// parse config file
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		abort("failed to load config file", err)
	}

	// parse config env variables
	envCfg, _ := config.ParseConfigEnvs()

	// load effective config
	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg)
	if err != nil {
		abort("failed to build effective config", err)
	}

	// validate config
	if err := eff.Config.ValidateConfig(); err != nil {
		abort("invalid configuration", err)
	}
	if eff.DBPath == "" {
		eff.DBPath = eff.Config.Storage.DBPath
	}
	if eff.APIBase == "" {
		eff.APIBase = eff.Config.API.BaseURL
	}
	// flag defaults are the last resort for the two required settings
	if eff.APIBase == "" {
		eff.APIBase = flags.API
	}
	if eff.DBPath == "" {
		eff.DBPath = flags.DB
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level)

	logger.Info("effective_config_loaded", "source", eff.Source, "api", eff.APIBase, "db_path", eff.DBPath)

	// initialize app
	a, err := app.New(eff, version)
	if err != nil {
		abort("failed to initialize app", err)
	}

	// set up context and signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// run the app
	if err := a.Run(ctx); err != nil {
		abort("app run failed", err)
	}

	// shutdown with a bounded timeout so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	_ = a.Shutdown(shutdownCtx)
}

func abort(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
