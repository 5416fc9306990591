package utils

import (
	"strings"
	"testing"
	"time"
)

func TestGenIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenID()
		if !strings.HasPrefix(id, "msg-") {
			t.Fatalf("id %q missing prefix", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenSessionIDShape(t *testing.T) {
	a := GenSessionID()
	b := GenSessionID()
	if a == b {
		t.Fatalf("session ids collide: %q", a)
	}
	for _, id := range []string{a, b} {
		parts := strings.SplitN(id, "_", 3)
		if len(parts) != 3 || parts[0] != "session" {
			t.Fatalf("session id shape wrong: %q", id)
		}
		if parts[1] == "" || parts[2] == "" {
			t.Fatalf("session id has empty segment: %q", id)
		}
	}
}

func TestNowISO(t *testing.T) {
	got := NowISO()
	ts, err := time.Parse(time.RFC3339, got)
	if err != nil {
		t.Fatalf("NowISO() = %q: %v", got, err)
	}
	if d := time.Since(ts); d < 0 || d > time.Minute {
		t.Fatalf("NowISO() drifted: %v", d)
	}
}
