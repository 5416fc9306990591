package authsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"chatsync/pkg/chatclient"
	"chatsync/pkg/models"
	"chatsync/pkg/session"
	"chatsync/pkg/store"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

var errNotFound = fmt.Errorf("key not found")

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) ListPrefix(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memKV) IsNotFound(err error) bool { return err == errNotFound }

// fakeHistory is a scripted HistoryFetcher.
type fakeHistory struct {
	mu    sync.Mutex
	calls int
	fn    func(sessionID, token string) ([]models.Message, error)
}

func (f *fakeHistory) History(ctx context.Context, sessionID string, limit int, token string) ([]models.Message, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(sessionID, token)
}

func (f *fakeHistory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var authAlice = models.AuthState{UserID: "alice", Token: "tok", Authenticated: true}

func newFixture(svc *fakeHistory) (*store.Conversation, *Reconciler) {
	kv := newMemKV()
	conv := store.NewConversation(kv)
	res := session.NewResolver(kv)
	ident := res.Resolve(models.AuthState{})
	conv.SetSessionID(ident.SessionID)
	conv.SetOwnerKey(ident.OwnerKey)
	r := NewReconciler(conv, svc, res, models.AuthState{})
	return conv, r
}

func TestLoginReplacesWithServerHistory(t *testing.T) {
	svc := &fakeHistory{fn: func(sessionID, token string) ([]models.Message, error) {
		if sessionID != "user_alice" {
			t.Errorf("history fetched for %q, want user_alice", sessionID)
		}
		if token != "tok" {
			t.Errorf("history fetched with token %q", token)
		}
		return []models.Message{
			{ID: "h1", Role: models.RoleUser, Content: "earlier question"},
			{ID: "h2", Role: models.RoleAssistant, Content: "earlier answer"},
		}, nil
	}}
	conv, r := newFixture(svc)
	conv.AddMessage(models.Message{Role: models.RoleUser, Content: "guest chatter"})

	r.HandleChange(context.Background(), authAlice)

	st := conv.GetState()
	if st.SessionID != "user_alice" || st.OwnerKey != "user:alice" {
		t.Fatalf("identity not switched: %q / %q", st.SessionID, st.OwnerKey)
	}
	if len(st.Messages) != 2 || st.Messages[0].ID != "h1" {
		t.Fatalf("server history not applied: %+v", st.Messages)
	}
}

func TestLoginHistoryFailureLeavesEmpty(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unauthorized", err: &chatclient.APIError{Status: 401, Message: "expired"}},
		{name: "server error", err: &chatclient.APIError{Status: 500, Message: "boom"}},
		{name: "network error", err: &chatclient.APIError{Message: "connection refused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeHistory{fn: func(string, string) ([]models.Message, error) {
				return nil, tt.err
			}}
			conv, r := newFixture(svc)
			conv.AddMessage(models.Message{Role: models.RoleUser, Content: "guest chatter"})

			r.HandleChange(context.Background(), authAlice)

			st := conv.GetState()
			if len(st.Messages) != 0 {
				t.Fatalf("expected empty transcript after failed fetch, got %+v", st.Messages)
			}
			if st.OwnerKey != "user:alice" {
				t.Fatalf("identity rolled back: %q", st.OwnerKey)
			}
			if st.SessionID != "user_alice" {
				t.Fatalf("session id lost after failed fetch: %q", st.SessionID)
			}
			// one attempt only; failures are not retried
			if svc.callCount() != 1 {
				t.Fatalf("history called %d times", svc.callCount())
			}
		})
	}
}

func TestLoginStaleResultDiscarded(t *testing.T) {
	var conv *store.Conversation
	svc := &fakeHistory{}
	svc.fn = func(string, string) ([]models.Message, error) {
		// identity moves on while the fetch is in flight
		conv.SetOwnerKey("guest:session_9_zzzz1111")
		conv.SetSessionID("session_9_zzzz1111")
		return []models.Message{{ID: "h1", Role: models.RoleUser, Content: "old"}}, nil
	}
	conv2, r := newFixture(svc)
	conv = conv2

	r.HandleChange(context.Background(), authAlice)

	st := conv.GetState()
	if len(st.Messages) != 0 {
		t.Fatalf("stale history applied: %+v", st.Messages)
	}
}

func TestLogoutRehydratesGuestNamespace(t *testing.T) {
	kv := newMemKV()
	res := session.NewResolver(kv)
	guest := res.Resolve(models.AuthState{})

	// guest leaves persisted state behind
	seed := store.NewConversation(kv)
	seed.SetSessionID(guest.SessionID)
	seed.SetOwnerKey(guest.OwnerKey)
	seed.AddMessage(models.Message{ID: "g1", Role: models.RoleUser, Content: "guest history"})

	conv := store.NewConversation(kv)
	conv.SetSessionID("user_alice")
	conv.SetOwnerKey("user:alice")
	conv.AddMessage(models.Message{ID: "u1", Role: models.RoleUser, Content: "private"})

	r := NewReconciler(conv, &fakeHistory{}, res, authAlice)
	r.HandleChange(context.Background(), models.AuthState{})

	st := conv.GetState()
	if st.OwnerKey != guest.OwnerKey || st.SessionID != guest.SessionID {
		t.Fatalf("guest identity not restored: %q / %q", st.SessionID, st.OwnerKey)
	}
	if len(st.Messages) != 1 || st.Messages[0].ID != "g1" {
		t.Fatalf("guest history not rehydrated: %+v", st.Messages)
	}
}

func TestSameStateIsNoop(t *testing.T) {
	svc := &fakeHistory{}
	conv, r := newFixture(svc)
	conv.AddMessage(models.Message{Role: models.RoleUser, Content: "keep me"})
	before := conv.GetState()

	r.HandleChange(context.Background(), models.AuthState{})

	after := conv.GetState()
	if len(after.Messages) != len(before.Messages) {
		t.Fatalf("no-op transition mutated transcript")
	}
	if svc.callCount() != 0 {
		t.Fatalf("no-op transition fetched history")
	}
}

func TestHandleExpired(t *testing.T) {
	t.Run("authenticated session is cleared", func(t *testing.T) {
		kv := newMemKV()
		res := session.NewResolver(kv)
		conv := store.NewConversation(kv)
		conv.SetSessionID("user_alice")
		conv.SetOwnerKey("user:alice")
		conv.AddMessage(models.Message{ID: "u1", Role: models.RoleUser, Content: "private"})

		r := NewReconciler(conv, &fakeHistory{}, res, authAlice)
		r.HandleExpired(context.Background())

		st := conv.GetState()
		if len(st.Messages) != 0 {
			t.Fatalf("transcript survived expiry: %+v", st.Messages)
		}
		if !strings.HasPrefix(st.OwnerKey, "guest:") {
			t.Fatalf("owner not reset to guest: %q", st.OwnerKey)
		}
	})

	t.Run("guest session is untouched", func(t *testing.T) {
		conv, r := newFixture(&fakeHistory{})
		conv.AddMessage(models.Message{Role: models.RoleUser, Content: "keep me"})

		r.HandleExpired(context.Background())

		if got := len(conv.GetState().Messages); got != 1 {
			t.Fatalf("guest transcript mutated on expiry, %d messages", got)
		}
	})
}
