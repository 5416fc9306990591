package banner

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"chatsync/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗███████╗██╗   ██╗███╗   ██╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██║     ███████║███████║   ██║   ███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║     ██╔══██║██╔══██║   ██║   ╚════██║  ╚██╔╝  ██║╚██╗██║██║
╚██████╗██║  ██║██║  ██║   ██║   ███████║   ██║   ██║ ╚████║╚██████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, api base, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	var api = eff.APIBase
	if api == "" && eff.Config != nil {
		api = eff.Config.API.BaseURL
	}
	var dbPath = eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Storage.DBPath
	}
	var src = eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Backend:  %s\n", api)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Ready? ======================================================")
	if api != "" {
		fmt.Printf("- Chat backend: %s\n", api)
	} else {
		fmt.Println("- Chat backend: not set (use --api or CHATSYNC_API_BASE_URL)")
	}
	if dbPath != "" {
		fmt.Printf("- DB Path: %s\n", dbPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or CHATSYNC_DB_PATH)")
	}

	if eff.Config != nil {
		fmt.Printf("- History limit: %s messages\n", humanize.Comma(int64(eff.Config.API.HistoryLimit)))
		if eff.Config.RateLimit.RPS > 0 {
			fmt.Printf("- Send rate: %.2g/s (burst %d)\n", eff.Config.RateLimit.RPS, eff.Config.RateLimit.Burst)
		}
		if eff.Config.Retention.Enabled {
			fmt.Printf("- Retention: enabled (cron=%s period=%s)\n", eff.Config.Retention.Cron, eff.Config.Retention.Period)
		} else {
			fmt.Println("- Retention: disabled")
		}
		if eff.Config.Metrics.Enabled {
			fmt.Printf("- Metrics: %s/metrics\n", eff.Config.Metrics.Addr)
		} else {
			fmt.Println("- Metrics: disabled")
		}
	}
	fmt.Println()
}
