package store

import (
	"encoding/json"

	"chatsync/pkg/models"
	"chatsync/pkg/store/keys"
)

// Payload is the durable conversation snapshot serialized per owner.
type Payload struct {
	Version   int              `json:"version"`
	OwnerKey  string           `json:"owner_key"`
	SessionID string           `json:"session_id"`
	Messages  []models.Message `json:"messages"`
	// SavedTS is the unix-nano write time, used by retention sweeps.
	SavedTS int64 `json:"saved_ts"`
}

// DecodePayload parses a persisted conversation payload. Malformed JSON and
// version mismatches both degrade to "no persisted state".
func DecodePayload(raw []byte) (Payload, bool) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, false
	}
	if p.Version != keys.PayloadVersion {
		return Payload{}, false
	}
	return p, true
}

// MergeByKey merges incoming messages into existing ones by dedup key.
// Existing messages win on collisions; new ones are appended in arrival
// order. The result is capped at MaxMessages (oldest evicted first).
func MergeByKey(existing, incoming []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.DedupKey()] = struct{}{}
	}
	merged := append([]models.Message(nil), existing...)
	for _, m := range incoming {
		k := m.DedupKey()
		if _, ok := seen[k]; ok {
			continue
		}
		merged = append(merged, m)
		seen[k] = struct{}{}
	}
	return Truncate(merged)
}

// ApplyPersisted is the pure load policy: given a decoded payload and the
// live state, it returns the state after rehydration. A payload whose owner
// does not match the live owner is foreign state and is discarded outright.
func ApplyPersisted(p Payload, cur State) (State, bool) {
	if p.OwnerKey != cur.OwnerKey {
		return cur, false
	}
	next := cur
	if next.SessionID == "" {
		next.SessionID = p.SessionID
	}
	next.Messages = MergeByKey(cur.Messages, p.Messages)
	return next, true
}

// Truncate drops the oldest messages beyond the retained cap.
func Truncate(msgs []models.Message) []models.Message {
	if len(msgs) <= MaxMessages {
		return msgs
	}
	return msgs[len(msgs)-MaxMessages:]
}
