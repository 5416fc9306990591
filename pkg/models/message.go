package models

import "encoding/json"

// Role values carried on messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Action is a side-channel directive attached to assistant messages,
// e.g. {"type": "show_products", "data": [...]}. Data is kept opaque;
// its shape is owned by whichever surface renders the action.
type Action struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	// Agent is the label of the backend agent that produced an assistant reply.
	Agent   string   `json:"agent,omitempty"`
	Actions []Action `json:"actions,omitempty"`
	// Source is a provenance tag (e.g. "chat-page", "floating-widget"),
	// never semantically load-bearing.
	Source string `json:"source,omitempty"`
	// Timestamp is ISO-8601, defaulted at append time when absent.
	Timestamp string `json:"timestamp"`
}

// DedupKey returns the identity key used when merging message lists.
// Server-assigned ids win; the timestamp+role+content composite is a
// documented approximation for messages that never got an id.
func (m Message) DedupKey() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Timestamp + "-" + m.Role + "-" + m.Content
}
