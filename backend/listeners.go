package backend

import "sync"

// Listeners is a concurrency-safe identity-change listener registry shared
// by the backend implementations. Notify calls listeners synchronously in
// registration order; unsubscribing during a notification is safe.
type Listeners struct {
	mu   sync.Mutex
	next uint64
	fns  map[uint64]func(Change)
	ord  []uint64
}

// Subscribe registers fn and returns its unsubscribe function. The
// unsubscribe function is idempotent.
func (l *Listeners) Subscribe(fn func(Change)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[uint64]func(Change))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	l.ord = append(l.ord, id)

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// Notify delivers ch to every registered listener.
func (l *Listeners) Notify(ch Change) {
	l.mu.Lock()
	fns := make([]func(Change), 0, len(l.fns))
	for _, id := range l.ord {
		if fn, ok := l.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
