package authsync

import (
	"sync"

	"chatsync/pkg/models"
)

// Bus carries the two auth signals this engine reacts to: auth state changes
// (login/logout, including ones observed from another tab/process) and the
// process-wide auth-expired broadcast emitted when an authenticated call
// returns 401.
type Bus struct {
	mu         sync.Mutex
	cur        models.AuthState
	changeSubs map[uint64]func(models.AuthState)
	expireSubs map[uint64]func()
	next       uint64
}

// NewBus builds a bus seeded with the current auth state.
func NewBus(initial models.AuthState) *Bus {
	return &Bus{
		cur:        initial,
		changeSubs: make(map[uint64]func(models.AuthState)),
		expireSubs: make(map[uint64]func()),
	}
}

// Current returns the last published auth state.
func (b *Bus) Current() models.AuthState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

// Publish records a new auth state and notifies change subscribers.
func (b *Bus) Publish(st models.AuthState) {
	b.mu.Lock()
	b.cur = st
	fns := make([]func(models.AuthState), 0, len(b.changeSubs))
	for _, fn := range b.changeSubs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// PublishExpired fires the auth-expired broadcast.
func (b *Bus) PublishExpired() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.expireSubs))
	for _, fn := range b.expireSubs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// OnChange subscribes to auth state changes; the returned function cancels.
func (b *Bus) OnChange(fn func(models.AuthState)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.changeSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.changeSubs, id)
		b.mu.Unlock()
	}
}

// OnExpired subscribes to the auth-expired broadcast.
func (b *Bus) OnExpired(fn func()) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.expireSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.expireSubs, id)
		b.mu.Unlock()
	}
}
