package models

// AuthState is the boundary with the auth/session collaborator. The engine
// never refreshes or validates tokens; it only reacts to state it is handed.
type AuthState struct {
	UserID        string
	Token         string
	Authenticated bool
}

// Identity is the conversation identity derived from an AuthState.
// SessionID correlates client and backend conversation context; OwnerKey
// additionally namespaces persisted storage ("user:<id>" or "guest:<session>").
type Identity struct {
	SessionID string
	OwnerKey  string
}

// SendRequest is the wire body for POST /chat.
type SendRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Channel   string `json:"channel"`
}

// ChatReply is the wire response for POST /chat. An empty Reply with a nil
// error means the backend acknowledged the message without a direct answer;
// callers then treat server history as the source of truth.
type ChatReply struct {
	Reply     string   `json:"reply"`
	AgentUsed string   `json:"agent_used"`
	Actions   []Action `json:"actions,omitempty"`
}

// HistoryResponse is the wire response for GET /chat/history.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}
