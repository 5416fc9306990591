package dispatch

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"chatsync/pkg/chatclient"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/session"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// ChatService is the slice of the remote chat backend the flow needs.
type ChatService interface {
	Send(ctx context.Context, sr models.SendRequest, token string) (*models.ChatReply, error)
	History(ctx context.Context, sessionID string, limit int, token string) ([]models.Message, error)
}

// DefaultChannel tags outbound messages with their origin surface.
const DefaultChannel = "web"

// Flow runs the send pipeline: optimistic local append, request lifecycle
// guard, remote call, then staleness-checked result application. A result
// whose conversation identity moved while the call was in flight is dropped
// rather than applied to the wrong owner.
type Flow struct {
	store    *store.Conversation
	svc      ChatService
	resolver *session.Resolver
	limiter  *rate.Limiter
	channel  string
}

// NewFlow wires a dispatch flow. limiter may be nil to disable local
// rate limiting.
func NewFlow(st *store.Conversation, svc ChatService, res *session.Resolver, limiter *rate.Limiter) *Flow {
	return &Flow{
		store:    st,
		svc:      svc,
		resolver: res,
		limiter:  limiter,
		channel:  DefaultChannel,
	}
}

// Send dispatches one user message. Blank input is ignored. The user's
// message always lands in the transcript immediately; whatever the backend
// does, some assistant message follows it unless the result went stale.
func (f *Flow) Send(ctx context.Context, text, source string, auth models.AuthState) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	f.store.AddMessage(models.Message{
		Role:    models.RoleUser,
		Content: text,
		Source:  source,
	})

	reqID := f.store.StartRequest()
	defer f.store.FinishRequest(reqID)

	// Re-derive identity before the call. The store may have been created
	// before auth settled; this keeps session and owner in step with auth.
	ident := f.resolver.Resolve(auth)
	f.store.SetSessionID(ident.SessionID)
	f.store.SetOwnerKey(ident.OwnerKey)

	if f.limiter != nil && !f.limiter.Allow() {
		telemetry.Dispatches.WithLabelValues("rate_limited").Inc()
		logger.Warn("dispatch_local_rate_limited", "session_id", ident.SessionID)
		f.store.AddMessage(models.Message{
			Role:    models.RoleAssistant,
			Content: msgRateLimited,
		})
		return
	}

	reply, err := f.svc.Send(ctx, models.SendRequest{
		UserID:    f.resolver.ChatUserID(auth),
		SessionID: ident.SessionID,
		Message:   text,
		Channel:   f.channel,
	}, auth.Token)

	if !f.fresh(ident) {
		telemetry.StaleResults.Inc()
		telemetry.Dispatches.WithLabelValues("stale").Inc()
		logger.Debug("dispatch_result_stale", "session_id", ident.SessionID)
		return
	}

	if err != nil {
		f.applyError(ident, err)
		return
	}
	if reply == nil || strings.TrimSpace(reply.Reply) == "" {
		f.applyEmptyReply(ctx, ident, auth)
		return
	}

	telemetry.Dispatches.WithLabelValues("reply").Inc()
	f.store.AddMessage(models.Message{
		Role:    models.RoleAssistant,
		Content: reply.Reply,
		Agent:   reply.AgentUsed,
		Actions: reply.Actions,
	})
}

// applyError classifies the failure and appends the matching assistant text.
func (f *Flow) applyError(ident models.Identity, err error) {
	status := chatclient.StatusOf(err)
	switch {
	case chatclient.IsRateLimited(err):
		telemetry.Dispatches.WithLabelValues("rate_limited").Inc()
	case chatclient.IsUnauthorized(err):
		telemetry.Dispatches.WithLabelValues("unauthorized").Inc()
	default:
		telemetry.Dispatches.WithLabelValues("failed").Inc()
	}
	logger.Warn("dispatch_failed", "session_id", ident.SessionID, "status", status, "error", err)
	f.store.AddMessage(models.Message{
		Role:    models.RoleAssistant,
		Content: ErrorText(status),
	})
}

// applyEmptyReply handles a 2xx with no reply text: the backend may have
// persisted the turn server-side, so the authoritative history replaces the
// local transcript. If even that fails, a canned apology keeps the
// conversation coherent.
func (f *Flow) applyEmptyReply(ctx context.Context, ident models.Identity, auth models.AuthState) {
	logger.Warn("dispatch_empty_reply", "session_id", ident.SessionID)
	msgs, err := f.svc.History(ctx, ident.SessionID, store.MaxMessages, auth.Token)
	if !f.fresh(ident) {
		telemetry.StaleResults.Inc()
		telemetry.Dispatches.WithLabelValues("stale").Inc()
		return
	}
	if err != nil || len(msgs) == 0 {
		telemetry.Dispatches.WithLabelValues("failed").Inc()
		logger.Warn("dispatch_history_fallback_failed", "session_id", ident.SessionID, "error", err)
		f.store.AddMessage(models.Message{
			Role:    models.RoleAssistant,
			Content: msgNoReply,
		})
		return
	}
	telemetry.Dispatches.WithLabelValues("history_fallback").Inc()
	f.store.SetMessages(msgs, true, "chat-sync")
}

// fresh reports whether the store still points at the identity this dispatch
// started under.
func (f *Flow) fresh(ident models.Identity) bool {
	cur := f.store.GetState()
	return cur.SessionID == ident.SessionID && cur.OwnerKey == ident.OwnerKey
}
