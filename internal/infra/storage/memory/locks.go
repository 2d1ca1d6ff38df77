package memory

import (
	"context"
	"sync"
	"time"

	"staybook/internal/app/policies"
)

// StayLocks is an in-process keyed mutex. Waiters honour context
// cancellation and the optional Wait bound.
type StayLocks struct {
	Wait time.Duration

	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewStayLocks(wait time.Duration) *StayLocks {
	return &StayLocks{Wait: wait, slots: make(map[string]*lockSlot)}
}

func (l *StayLocks) Lock(ctx context.Context, stayID string) (func(), error) {
	slot := l.acquireSlot(stayID)

	var timeout <-chan time.Time
	if l.Wait > 0 {
		timer := time.NewTimer(l.Wait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(stayID)
		return nil, ctx.Err()
	case <-timeout:
		l.releaseSlot(stayID)
		return nil, policies.ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.releaseSlot(stayID)
		})
	}, nil
}

func (l *StayLocks) acquireSlot(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*lockSlot)
	}
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *StayLocks) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

var _ policies.StayLocker = (*StayLocks)(nil)
