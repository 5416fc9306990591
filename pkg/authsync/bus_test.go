package authsync

import (
	"testing"

	"chatsync/pkg/models"
)

func TestBusPublishNotifiesSubscribers(t *testing.T) {
	b := NewBus(models.AuthState{})

	var got []models.AuthState
	cancel := b.OnChange(func(st models.AuthState) { got = append(got, st) })

	next := models.AuthState{UserID: "alice", Authenticated: true}
	b.Publish(next)
	if b.Current() != next {
		t.Fatalf("Current() = %+v, want %+v", b.Current(), next)
	}
	if len(got) != 1 || got[0] != next {
		t.Fatalf("subscriber saw %+v", got)
	}

	cancel()
	b.Publish(models.AuthState{})
	if len(got) != 1 {
		t.Fatalf("cancelled subscriber still notified")
	}
}

func TestBusExpiredBroadcast(t *testing.T) {
	b := NewBus(models.AuthState{UserID: "alice", Authenticated: true})

	fired := 0
	cancel := b.OnExpired(func() { fired++ })
	defer cancel()

	b.PublishExpired()
	b.PublishExpired()
	if fired != 2 {
		t.Fatalf("expired fired %d times, want 2", fired)
	}
	// expiry does not rewrite the published auth state by itself
	if !b.Current().Authenticated {
		t.Fatalf("PublishExpired mutated auth state")
	}
}
