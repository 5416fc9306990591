package store

import (
	"sync"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/telemetry"
	"chatsync/pkg/utils"
)

// MaxMessages is the retained transcript length; the oldest messages are
// evicted first once the cap is reached.
const MaxMessages = 200

// State is an observable snapshot of one conversation.
type State struct {
	Messages  []models.Message
	SessionID string
	OwnerKey  string
	// IsLoading is true while a dispatch is outstanding under the current
	// request generation.
	IsLoading bool
	// ActiveRequestID is the monotonically increasing request generation.
	ActiveRequestID uint64
	// IsAssistantOpen is UI visibility only and is never persisted.
	IsAssistantOpen bool
}

// Conversation is the shared conversation state container. All mutation goes
// through its operations; consumers observe via Subscribe/GetState. One
// instance is constructed per application root and shared by every surface.
type Conversation struct {
	mu      sync.Mutex
	st      State
	kv      KV // nil means in-memory only
	subs    map[uint64]func(State)
	nextSub uint64
}

// NewConversation builds a conversation store persisting through kv.
func NewConversation(kv KV) *Conversation {
	return &Conversation{kv: kv, subs: make(map[uint64]func(State))}
}

// GetState returns a snapshot of the current state.
func (c *Conversation) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers a listener invoked with a state snapshot after every
// mutation. The returned function cancels the subscription.
func (c *Conversation) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// AddMessage appends a message, assigning id and timestamp when absent, and
// returns the fully-formed message. The transcript is capped at MaxMessages.
func (c *Conversation) AddMessage(m models.Message) models.Message {
	if m.ID == "" {
		m.ID = utils.GenID()
	}
	if m.Timestamp == "" {
		m.Timestamp = utils.NowISO()
	}
	c.mu.Lock()
	c.st.Messages = Truncate(append(c.st.Messages, m))
	c.persistMergedLocked()
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
	return m
}

// StartRequest advances the request generation and raises the loading flag.
// Call exactly once per user-initiated dispatch, before any async work.
func (c *Conversation) StartRequest() uint64 {
	c.mu.Lock()
	c.st.ActiveRequestID++
	id := c.st.ActiveRequestID
	c.st.IsLoading = true
	telemetry.Loading.Set(1)
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
	return id
}

// FinishRequest lowers the loading flag only when requestID is still the
// active generation. A stale id means a newer request owns the flag now.
func (c *Conversation) FinishRequest(requestID uint64) {
	c.mu.Lock()
	if requestID != c.st.ActiveRequestID {
		logger.Debug("finish_request_stale", "request_id", requestID, "active", c.st.ActiveRequestID)
		c.mu.Unlock()
		return
	}
	c.st.IsLoading = false
	telemetry.Loading.Set(0)
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

// SetSessionID updates the backend session correlation id. No payload write
// happens here; the id lands durably with the next message mutation.
func (c *Conversation) SetSessionID(sessionID string) {
	c.mu.Lock()
	if c.st.SessionID == sessionID {
		c.mu.Unlock()
		return
	}
	c.st.SessionID = sessionID
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

// SetOwnerKey switches the persistence namespace. Messages are not cleared
// here; identity transitions are the reconciler's job. Only the owner pointer
// is written: the new owner's payload must survive until LoadPersisted reads
// it, so payload writes are left to the message mutations that follow.
func (c *Conversation) SetOwnerKey(ownerKey string) {
	c.mu.Lock()
	if c.st.OwnerKey == ownerKey {
		c.mu.Unlock()
		return
	}
	c.st.OwnerKey = ownerKey
	c.persistOwnerPointerLocked()
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

// ClearMessages resets the transcript and session id, preserving the owner.
func (c *Conversation) ClearMessages(reason string) {
	c.mu.Lock()
	logger.Info("conversation_cleared", "reason", reason, "owner", c.st.OwnerKey, "dropped", len(c.st.Messages))
	c.st.Messages = nil
	c.st.SessionID = ""
	c.persistLocked()
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

// SetMessages replaces the transcript. Without force, an empty incoming list
// never overwrites a non-empty one: a zero-length response may mean "fetch
// failed silently" rather than "no history".
func (c *Conversation) SetMessages(msgs []models.Message, force bool, source string) {
	c.mu.Lock()
	if !force && len(msgs) == 0 && len(c.st.Messages) > 0 {
		logger.Warn("set_messages_empty_ignored", "source", source, "kept", len(c.st.Messages))
		c.mu.Unlock()
		return
	}
	c.st.Messages = Truncate(append([]models.Message(nil), msgs...))
	logger.Info("messages_replaced", "source", source, "count", len(c.st.Messages), "force", force)
	c.persistLocked()
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

// HydrateMessages merges msgs into the transcript by dedup key; existing
// messages win on collisions. Used for persistence-layer rehydration as
// opposed to server-driven replacement.
func (c *Conversation) HydrateMessages(msgs []models.Message, source string) {
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	before := len(c.st.Messages)
	c.st.Messages = MergeByKey(c.st.Messages, msgs)
	logger.Info("messages_hydrated", "source", source, "before", before, "after", len(c.st.Messages))
	c.persistMergedLocked()
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

// OpenAssistant shows the assistant surface.
func (c *Conversation) OpenAssistant() { c.setAssistantOpen(true) }

// CloseAssistant hides the assistant surface.
func (c *Conversation) CloseAssistant() { c.setAssistantOpen(false) }

// ToggleAssistant flips assistant visibility.
func (c *Conversation) ToggleAssistant() {
	c.mu.Lock()
	c.st.IsAssistantOpen = !c.st.IsAssistantOpen
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

func (c *Conversation) setAssistantOpen(open bool) {
	c.mu.Lock()
	if c.st.IsAssistantOpen == open {
		c.mu.Unlock()
		return
	}
	c.st.IsAssistantOpen = open
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
}

// snapshotLocked copies state so callers can't alias the live message slice.
func (c *Conversation) snapshotLocked() State {
	st := c.st
	st.Messages = append([]models.Message(nil), c.st.Messages...)
	return st
}

// deliverLocked captures the subscriber list and a snapshot; the caller runs
// the returned closure after releasing the mutex so listeners may re-enter
// the store.
func (c *Conversation) deliverLocked() func() {
	if len(c.subs) == 0 {
		return func() {}
	}
	st := c.snapshotLocked()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(st)
		}
	}
}
