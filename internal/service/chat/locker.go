package chat

import (
	"context"
	"sync"
)

// Locker serializes work per conversation id. A waiting Acquire gives up when
// its context is done.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Acquire blocks until conversationID is free. The returned release func must
// be called exactly once.
func (l *Locker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[conversationID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[conversationID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(conversationID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(conversationID, s)
		})
	}, nil
}

func (l *Locker) unref(conversationID string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, conversationID)
	}
	l.mu.Unlock()
}

// size is the number of ids currently held or awaited.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
