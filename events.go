package sessionkit

import (
	"sync"
	"sync/atomic"
)

// eventDispatcher delivers session-changed events to subscribers in publish
// order. Delivery runs on a single goroutine, so a listener always observes
// the same sequence of states the manager committed; events are never
// reordered or dropped, publishers block when the buffer is full.
type eventDispatcher struct {
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once

	mu   sync.Mutex
	next uint64
	subs map[uint64]func(Event)
	ord  []uint64
}

func newEventDispatcher(buffer int) *eventDispatcher {
	if buffer <= 0 {
		buffer = 1
	}

	d := &eventDispatcher{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
		subs: make(map[uint64]func(Event)),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *eventDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *eventDispatcher) deliver(event Event) {
	d.mu.Lock()
	fns := make([]func(Event), 0, len(d.subs))
	for _, id := range d.ord {
		if fn, ok := d.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (d *eventDispatcher) subscribe(fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.next
	d.next++
	d.subs[id] = fn
	d.ord = append(d.ord, id)

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

func (d *eventDispatcher) publish(event Event) {
	if d.closed.Load() {
		return
	}
	select {
	case d.ch <- event:
	case <-d.done:
	}
}

func (d *eventDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
