// Package lock provides the keyed mutual exclusion used by the ledger and
// invoice payments.
package lock

import (
	"context"
	"slices"
	"sync"
)

// normalize sorts and de-duplicates keys so every caller acquires them in
// the same order.
func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

// Local is an in-process keyed locker. A key's slot lives only while some
// caller holds or waits for it.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) retain(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Acquire blocks until every key is held or ctx is done.
func (l *Local) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	slots := make(map[string]*slot, len(keys))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-slots[held[i]].ch
			l.drop(held[i])
		}
	}

	for _, key := range keys {
		s := l.retain(key)
		select {
		case s.ch <- struct{}{}:
			slots[key] = s
			held = append(held, key)
		case <-ctx.Done():
			l.drop(key)
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
