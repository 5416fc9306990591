package authsync

import (
	"context"
	"sync"

	"chatsync/pkg/chatclient"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/session"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// HistoryFetcher is the slice of the chat service the reconciler needs.
type HistoryFetcher interface {
	History(ctx context.Context, sessionID string, limit int, token string) ([]models.Message, error)
}

// DefaultHistoryLimit bounds how much server history a reconciliation pulls.
const DefaultHistoryLimit = store.MaxMessages

// Reconciler resolves local cached conversation state against server history
// whenever the identity changes. There is no hard cancellation: a fetch whose
// identity moved on mid-flight discards its own result.
type Reconciler struct {
	store        *store.Conversation
	svc          HistoryFetcher
	resolver     *session.Resolver
	historyLimit int

	mu   sync.Mutex
	prev models.AuthState
}

// NewReconciler builds a reconciler seeded with the current auth state so a
// startup notification for the same state is a no-op.
func NewReconciler(st *store.Conversation, svc HistoryFetcher, res *session.Resolver, initial models.AuthState) *Reconciler {
	return &Reconciler{
		store:        st,
		svc:          svc,
		resolver:     res,
		historyLimit: DefaultHistoryLimit,
		prev:         initial,
	}
}

// Attach subscribes the reconciler to both bus signals. Each event is applied
// on its own goroutine; interleavings are resolved by identity staleness
// checks, not by ordering assumptions. The returned function detaches.
func (r *Reconciler) Attach(ctx context.Context, bus *Bus) func() {
	offChange := bus.OnChange(func(st models.AuthState) {
		go r.HandleChange(ctx, st)
	})
	offExpired := bus.OnExpired(func() {
		go r.HandleExpired(ctx)
	})
	return func() {
		offChange()
		offExpired()
	}
}

// HandleChange applies one auth state transition.
func (r *Reconciler) HandleChange(ctx context.Context, next models.AuthState) {
	r.mu.Lock()
	prev := r.prev
	r.prev = next
	r.mu.Unlock()

	switch {
	case next.Authenticated && !prev.Authenticated:
		r.login(ctx, next)
	case !next.Authenticated && prev.Authenticated:
		r.logout("auth-logout", "logout")
	default:
		logger.Debug("auth_transition_noop", "authenticated", next.Authenticated)
	}
}

// HandleExpired treats token expiry as a forced transition to anonymous.
// Only a previously-authenticated session reacts; guests have nothing to lose.
func (r *Reconciler) HandleExpired(ctx context.Context) {
	r.mu.Lock()
	prev := r.prev
	r.prev = models.AuthState{}
	r.mu.Unlock()

	if !prev.Authenticated {
		return
	}
	r.logout("auth-expired", "expired")
}

// login points the store at the user's identity, drops whatever the guest
// left behind, and replaces it with server truth.
func (r *Reconciler) login(ctx context.Context, st models.AuthState) {
	ident := r.resolver.Resolve(st)
	// clear under the old identity first; ClearMessages also blanks the
	// session id, so the new one must be set after it
	r.store.ClearMessages("auth-login")
	r.store.SetSessionID(ident.SessionID)
	r.store.SetOwnerKey(ident.OwnerKey)
	telemetry.Reconciliations.WithLabelValues("login").Inc()
	logger.Info("reconcile_login", "session_id", ident.SessionID, "owner", ident.OwnerKey)

	msgs, err := r.svc.History(ctx, ident.SessionID, r.historyLimit, st.Token)

	cur := r.store.GetState()
	if cur.SessionID != ident.SessionID || cur.OwnerKey != ident.OwnerKey {
		telemetry.StaleResults.Inc()
		logger.Debug("reconcile_result_stale", "expected_owner", ident.OwnerKey, "current_owner", cur.OwnerKey)
		return
	}
	if err != nil {
		if chatclient.IsUnauthorized(err) {
			// session invalidation; the client's 401 hook has already broadcast
			logger.Warn("login_history_unauthorized", "session_id", ident.SessionID)
		} else {
			logger.Warn("login_history_failed", "session_id", ident.SessionID, "error", err)
		}
		// leave the cleared local state in place; the user's next send retries
		return
	}
	r.store.SetMessages(msgs, true, "auth-login")
}

// logout clears user state, recomputes the guest identity, and rehydrates
// from the guest namespace's own durable storage, never the user's.
func (r *Reconciler) logout(reason, transition string) {
	r.store.ClearMessages(reason)
	ident := r.resolver.Resolve(models.AuthState{})
	r.store.SetSessionID(ident.SessionID)
	r.store.SetOwnerKey(ident.OwnerKey)
	telemetry.Reconciliations.WithLabelValues(transition).Inc()
	logger.Info("reconcile_logout", "reason", reason, "owner", ident.OwnerKey)
	r.store.LoadPersisted(reason)
}
