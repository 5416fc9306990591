package store

import (
	"encoding/json"
	"time"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/store/keys"
	"chatsync/pkg/telemetry"
)

// persistOwnerPointerLocked records which owner's payload is current without
// touching the payload itself. Identity setters use only this: pointing the
// store at an owner must never overwrite that owner's durable payload before
// LoadPersisted has had a chance to read it. Caller holds c.mu.
func (c *Conversation) persistOwnerPointerLocked() {
	if c.kv == nil || c.st.OwnerKey == "" {
		return
	}
	if err := c.kv.Set(keys.CurrentOwnerKey, []byte(c.st.OwnerKey)); err != nil {
		logger.Warn("persist_owner_pointer_failed", "owner", c.st.OwnerKey, "error", err)
	}
}

// persistLocked serializes the in-memory transcript verbatim under the current
// owner's derived key. Replacement mutations (SetMessages, ClearMessages) use
// this; the snapshot they just installed is the whole truth. Persistence
// failures are logged, never propagated; the in-memory state stays
// authoritative. Caller holds c.mu.
func (c *Conversation) persistLocked() {
	c.writePayloadLocked(c.st.Messages)
}

// persistMergedLocked serializes the transcript for an append-type mutation
// (AddMessage, HydrateMessages). The durable payload may still hold messages
// this store has not rehydrated, so the write merges with what is on disk
// instead of replacing it; in-memory messages win on collisions.
// Caller holds c.mu.
func (c *Conversation) persistMergedLocked() {
	if c.kv == nil || c.st.OwnerKey == "" {
		return
	}
	ck, err := keys.GenConversationKey(c.st.OwnerKey)
	if err != nil {
		logger.Warn("persist_invalid_owner", "owner", c.st.OwnerKey, "error", err)
		return
	}
	msgs := c.st.Messages
	if raw, err := c.kv.Get(ck); err == nil {
		if p, ok := DecodePayload(raw); ok && p.OwnerKey == c.st.OwnerKey {
			msgs = MergeByKey(c.st.Messages, p.Messages)
		}
	}
	c.writePayloadLocked(msgs)
}

func (c *Conversation) writePayloadLocked(msgs []models.Message) {
	if c.kv == nil || c.st.OwnerKey == "" {
		return
	}
	ck, err := keys.GenConversationKey(c.st.OwnerKey)
	if err != nil {
		logger.Warn("persist_invalid_owner", "owner", c.st.OwnerKey, "error", err)
		return
	}
	p := Payload{
		Version:   keys.PayloadVersion,
		OwnerKey:  c.st.OwnerKey,
		SessionID: c.st.SessionID,
		Messages:  msgs,
		SavedTS:   time.Now().UTC().UnixNano(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		logger.Error("persist_marshal_failed", "owner", c.st.OwnerKey, "error", err)
		return
	}
	if err := c.kv.Set(keys.CurrentOwnerKey, []byte(c.st.OwnerKey)); err != nil {
		logger.Warn("persist_owner_pointer_failed", "owner", c.st.OwnerKey, "error", err)
	}
	if err := c.kv.Set(ck, b); err != nil {
		logger.Warn("persist_write_failed", "owner", c.st.OwnerKey, "error", err)
		return
	}
	logger.Debug("conversation_persisted", "owner", c.st.OwnerKey, "messages", len(p.Messages))
}

// LoadPersisted rehydrates the conversation from the current owner's durable
// payload, merging by message key (existing messages win). Returns true when
// a payload was found, trusted and applied.
func (c *Conversation) LoadPersisted(source string) bool {
	c.mu.Lock()
	if c.kv == nil || c.st.OwnerKey == "" {
		c.mu.Unlock()
		return false
	}
	ck, err := keys.GenConversationKey(c.st.OwnerKey)
	if err != nil {
		c.mu.Unlock()
		return false
	}
	raw, err := c.kv.Get(ck)
	if err != nil {
		if c.kv.IsNotFound(err) {
			telemetry.PersistLoads.WithLabelValues("miss").Inc()
		} else {
			telemetry.PersistLoads.WithLabelValues("error").Inc()
			logger.Warn("rehydrate_read_failed", "owner", c.st.OwnerKey, "error", err)
		}
		c.mu.Unlock()
		return false
	}
	p, ok := DecodePayload(raw)
	if !ok {
		// corrupt or versioned-out payload; treat as absent
		telemetry.PersistLoads.WithLabelValues("corrupt").Inc()
		logger.Warn("rehydrate_payload_discarded", "owner", c.st.OwnerKey, "source", source)
		c.mu.Unlock()
		return false
	}
	next, applied := ApplyPersisted(p, c.st)
	if !applied {
		// foreign owner state leaked into this namespace; never import it
		telemetry.PersistLoads.WithLabelValues("owner_mismatch").Inc()
		logger.Warn("rehydrate_owner_mismatch", "live", c.st.OwnerKey, "persisted", p.OwnerKey, "source", source)
		c.mu.Unlock()
		return false
	}
	c.st = next
	telemetry.PersistLoads.WithLabelValues("ok").Inc()
	logger.Info("conversation_rehydrated", "owner", c.st.OwnerKey, "source", source, "messages", len(c.st.Messages))
	notify := c.deliverLocked()
	c.mu.Unlock()
	notify()
	return true
}
