package app

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"chatsync/internal/retention"
	"chatsync/pkg/authsync"
	"chatsync/pkg/chatclient"
	"chatsync/pkg/config"
	"chatsync/pkg/config/banner"
	"chatsync/pkg/dispatch"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/session"
	"chatsync/pkg/store"
)

// App groups the engine's components behind one lifecycle.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	kv       *store.Pebble
	conv     *store.Conversation
	resolver *session.Resolver
	bus      *authsync.Bus
	client   *chatclient.Client
	flow     *dispatch.Flow

	detachReconciler func()
	retentionCancel  context.CancelFunc
	metricsSrv       *http.Server
}

// New sets up resources that don't need a running context: durable storage,
// identity resolution, the conversation store and its initial rehydration,
// the backend client and the reconciler. Call Run to start schedulers and
// the interactive loop.
func New(eff config.EffectiveConfigResult, version string) (*App, error) {
	kv, err := store.Open(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{eff: eff, version: version, kv: kv}
	a.resolver = session.NewResolver(kv)
	a.conv = store.NewConversation(kv)
	a.bus = authsync.NewBus(models.AuthState{})

	a.client = chatclient.New(eff.APIBase,
		chatclient.WithTimeout(eff.Config.API.Timeout.Duration()),
		chatclient.WithAuthExpiredHook(a.bus.PublishExpired),
	)

	// seed the store with the guest identity before first rehydration
	ident := a.resolver.Resolve(a.bus.Current())
	a.conv.SetSessionID(ident.SessionID)
	a.conv.SetOwnerKey(ident.OwnerKey)
	a.conv.LoadPersisted("startup")

	limiter := rate.NewLimiter(rate.Limit(eff.Config.RateLimit.RPS), eff.Config.RateLimit.Burst)
	a.flow = dispatch.NewFlow(a.conv, a.client, a.resolver, limiter)

	logger.LogConfigSummary("config_engine_summary", []string{
		fmt.Sprintf("api_base: %s", eff.APIBase),
		fmt.Sprintf("api_timeout: %s", eff.Config.API.Timeout.Duration()),
		fmt.Sprintf("history_limit: %s", humanize.Comma(int64(eff.Config.API.HistoryLimit))),
		fmt.Sprintf("owner: %s", ident.OwnerKey),
		fmt.Sprintf("send_rate_rps: %g", eff.Config.RateLimit.RPS),
		fmt.Sprintf("send_rate_burst: %d", eff.Config.RateLimit.Burst),
	})

	return a, nil
}

// Run starts retention and metrics, attaches the reconciler, and blocks on
// the interactive loop until EOF or context cancellation.
func (a *App) Run(ctx context.Context) error {
	banner.PrintWithEff(a.eff, a.version)

	reconciler := authsync.NewReconciler(a.conv, a.client, a.resolver, a.bus.Current())
	a.detachReconciler = reconciler.Attach(ctx, a.bus)

	_, cancel := retention.Start(ctx, a.eff.Config.Retention, a.kv)
	a.retentionCancel = cancel

	if a.eff.Config.Metrics.Enabled {
		a.startMetrics()
	}

	a.repl(ctx)
	return nil
}

// Shutdown tears components down in reverse dependency order.
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutdown_requested")
	if a.detachReconciler != nil {
		a.detachReconciler()
	}
	if a.retentionCancel != nil {
		a.retentionCancel()
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("metrics_shutdown_error", "error", err)
		}
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			logger.Error("pebble_close_error", "error", err)
			return err
		}
	}
	logger.Info("shutdown_complete")
	return nil
}

func (a *App) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.eff.Config.Metrics.Addr, Handler: mux}
	a.metricsSrv = srv
	go func() {
		logger.Info("metrics_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
}

// repl runs the interactive conversation loop. Every surface (this loop, the
// transcript renderer, the reconciler) shares the single conversation store.
func (a *App) repl(ctx context.Context) {
	var renderMu sync.Mutex
	rendered := 0
	unsub := a.conv.Subscribe(func(st store.State) {
		renderMu.Lock()
		defer renderMu.Unlock()
		if len(st.Messages) < rendered {
			fmt.Println("-- conversation updated --")
			rendered = 0
		}
		for _, m := range st.Messages[rendered:] {
			printMessage(m)
		}
		rendered = len(st.Messages)
	})
	defer unsub()

	fmt.Println(`Type a message, or /login <user> <token>, /logout, /clear, /open, /close, /quit.`)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if done := a.handleLine(ctx, line); done {
				return
			}
		}
	}
}

// handleLine executes one REPL line; returns true on /quit.
func (a *App) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		sendCtx, cancel := context.WithTimeout(ctx, 2*a.eff.Config.API.Timeout.Duration())
		defer cancel()
		a.flow.Send(sendCtx, line, "cli", a.bus.Current())
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/login":
		if len(fields) < 3 {
			fmt.Println("usage: /login <user> <token>")
			return false
		}
		a.bus.Publish(models.AuthState{UserID: fields[1], Token: fields[2], Authenticated: true})
	case "/logout":
		a.bus.Publish(models.AuthState{})
	case "/clear":
		a.conv.ClearMessages("user-request")
	case "/open":
		a.conv.OpenAssistant()
	case "/close":
		a.conv.CloseAssistant()
	case "/quit", "/exit":
		return true
	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}
	return false
}

func printMessage(m models.Message) {
	label := m.Role
	if m.Role == models.RoleAssistant && m.Agent != "" {
		label = m.Role + "/" + m.Agent
	}
	ts := m.Timestamp
	if t, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
		ts = t.Local().Format("15:04:05")
	}
	fmt.Printf("[%s] %s: %s\n", ts, label, m.Content)
	for _, act := range m.Actions {
		fmt.Printf("          action: %s\n", act.Type)
	}
}
