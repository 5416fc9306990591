package session

import (
	"sync"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/store"
	"chatsync/pkg/store/keys"
	"chatsync/pkg/utils"
)

// Resolver derives the active conversation identity from auth state. Guest
// session ids live in durable storage under a fixed key so repeat visits
// reuse the same guest identity.
type Resolver struct {
	kv store.KV

	mu     sync.Mutex
	cached string // guest session id once read or created
}

// NewResolver builds a resolver reading/creating the guest session through kv.
func NewResolver(kv store.KV) *Resolver {
	return &Resolver{kv: kv}
}

// Resolve maps auth state to a conversation identity. Authenticated users get
// "user_<id>"/"user:<id>"; everyone else shares the durable guest session.
func (r *Resolver) Resolve(auth models.AuthState) models.Identity {
	if auth.Authenticated && auth.UserID != "" {
		return models.Identity{
			SessionID: keys.GenUserSessionID(auth.UserID),
			OwnerKey:  keys.GenUserOwnerKey(auth.UserID),
		}
	}
	sid := r.GuestSessionID()
	return models.Identity{
		SessionID: sid,
		OwnerKey:  keys.GenGuestOwnerKey(sid),
	}
}

// GuestSessionID returns the durable guest session id, creating and storing
// one on first use.
func (r *Resolver) GuestSessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != "" {
		return r.cached
	}
	if r.kv != nil {
		if v, err := r.kv.Get(keys.GuestSessionKey); err == nil && len(v) > 0 {
			r.cached = string(v)
			return r.cached
		} else if err != nil && !r.kv.IsNotFound(err) {
			logger.Warn("guest_session_read_failed", "error", err)
		}
	}
	sid := utils.GenSessionID()
	if r.kv != nil {
		if err := r.kv.Set(keys.GuestSessionKey, []byte(sid)); err != nil {
			logger.Warn("guest_session_write_failed", "error", err)
		}
	}
	r.cached = sid
	logger.Info("guest_session_created", "session_id", sid)
	return sid
}

// ChatUserID is the user_id sent to the chat backend: the real user id when
// authenticated, otherwise "guest_<session>".
func (r *Resolver) ChatUserID(auth models.AuthState) string {
	if auth.Authenticated && auth.UserID != "" {
		return auth.UserID
	}
	return "guest_" + r.GuestSessionID()
}
