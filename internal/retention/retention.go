package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"chatsync/pkg/config"
	"chatsync/pkg/logger"
	"chatsync/pkg/store"
	"chatsync/pkg/store/keys"
)

// Manager purges persisted conversations that have gone stale. The payload
// belonging to the current owner is never touched regardless of age; only
// abandoned namespaces (e.g. guests that never returned) are eligible.
type Manager struct {
	cfg     config.RetentionConfig
	kv      store.KV
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	mutex   sync.Mutex
}

// Start launches the cron-scheduled sweep loop when retention is enabled.
// The returned cancel stops the loop.
func Start(ctx context.Context, cfg config.RetentionConfig, kv store.KV) (*Manager, context.CancelFunc) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return nil, func() {}
	}
	ctx2, cancel := context.WithCancel(ctx)
	m := &Manager{cfg: cfg, kv: kv, ctx: ctx2, cancel: cancel}
	logger.Info("retention_enabled", "cron", cfg.Cron, "period", cfg.Period, "dry_run", cfg.DryRun)
	go m.scheduleLoop()
	return m, cancel
}

func (m *Manager) scheduleLoop() {
	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(m.cfg.Cron, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", m.cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-m.ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			m.runJob()
			select {
			case <-time.After(time.Second):
			case <-m.ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			m.runJob()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) runJob() {
	m.mutex.Lock()
	if m.running {
		m.mutex.Unlock()
		return
	}
	m.running = true
	m.mutex.Unlock()

	defer func() {
		m.mutex.Lock()
		m.running = false
		m.mutex.Unlock()
	}()

	if err := m.RunSweep(); err != nil {
		logger.Error("retention_run_error", "error", err)
	}
}

// RunSweep executes a single purge pass over all persisted conversation
// payloads.
func (m *Manager) RunSweep() error {
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	logger.Info("retention_run_start", "run_id", runID, "dry_run", m.cfg.DryRun)

	pd, err := ParsePeriod(m.cfg.Period)
	if err != nil {
		logger.Error("retention_invalid_period", "period", m.cfg.Period, "error", err)
		return fmt.Errorf("invalid retention period: %w", err)
	}
	cutoff := time.Now().Add(-pd)

	// the live owner's payload is exempt from purging
	var currentOwner string
	if raw, err := m.kv.Get(keys.CurrentOwnerKey); err == nil {
		currentOwner = string(raw)
	} else if !m.kv.IsNotFound(err) {
		return fmt.Errorf("read current owner: %w", err)
	}

	payloadKeys, err := m.kv.ListPrefix(keys.ConversationPrefix)
	if err != nil {
		return fmt.Errorf("scan conversation payloads: %w", err)
	}
	logger.Info("retention_scan_keys", "count", len(payloadKeys))

	var scanned, purged int
	for _, pk := range payloadKeys {
		scanned++
		owner, err := keys.ParseConversationKey(pk)
		if err != nil {
			logger.Error("retention_invalid_payload_key", "key", pk, "error", err)
			continue
		}
		if owner == currentOwner {
			logger.Debug("retention_skip_current_owner", "key", pk)
			continue
		}

		raw, err := m.kv.Get(pk)
		if err != nil {
			logger.Info("retention_payload_not_found", "key", pk, "error", err)
			continue
		}
		p, ok := store.DecodePayload(raw)
		if !ok {
			// undecodable payloads are dead weight; purge them too
			logger.Warn("retention_invalid_payload_json", "key", pk)
			if m.purge(pk) {
				purged++
			}
			continue
		}

		savedAt := time.Unix(0, p.SavedTS)
		if !savedAt.Before(cutoff) {
			continue
		}
		age := time.Since(savedAt)
		if m.cfg.DryRun {
			logger.Info("retention_would_purge", "key", pk, "owner", owner, "age", age)
			continue
		}
		if m.purge(pk) {
			purged++
			logger.Info("retention_purged", "key", pk, "owner", owner, "age", age)
		}
	}

	logger.Info("retention_run_done", "run_id", runID, "scanned", scanned, "purged", purged)
	return nil
}

func (m *Manager) purge(key string) bool {
	if err := m.kv.Delete(key); err != nil {
		logger.Error("retention_purge_failed", "key", key, "error", err)
		return false
	}
	return true
}

// ParsePeriod parses a retention period. Supports 30d, 24h, etc.; empty
// defaults to 30d.
func ParsePeriod(s string) (time.Duration, error) {
	if s == "" {
		return 30 * 24 * time.Hour, nil
	}
	if s[len(s)-1] == 'd' {
		n := 0
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid days retention: %w", err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d, nil
}
