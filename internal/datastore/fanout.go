package datastore

import (
	"context"
	"sync"
)

// watchBuffer is the per-watcher channel depth. The subscriber drains
// promptly; the buffer only absorbs short bursts of operator writes.
const watchBuffer = 64

// Fanout delivers config-change events to any number of watchers in
// write order. Each watcher's sends and channel close are serialized by
// a per-watcher mutex, so a store shutting down concurrently with a
// write can never send on a closed channel.
type Fanout struct {
	mu     sync.Mutex
	subs   []*fanoutSub
	closed bool
}

type fanoutSub struct {
	mu     sync.Mutex
	ch     chan ChangeEvent
	closed bool
}

func (s *fanoutSub) send(evt ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ch <- evt
	}
}

func (s *fanoutSub) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
}

// Watch registers a new watcher. The returned channel is closed when ctx
// is canceled or the fanout shuts down. Returns ErrClosed after Close.
func (f *Fanout) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &fanoutSub{ch: make(chan ChangeEvent, watchBuffer)}
	f.subs = append(f.subs, sub)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(sub)
	}()

	return sub.ch, nil
}

func (f *Fanout) remove(sub *fanoutSub) {
	f.mu.Lock()
	for i, s := range f.subs {
		if s == sub {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	sub.close()
}

// Broadcast delivers evt to every current watcher in registration order.
func (f *Fanout) Broadcast(evt ChangeEvent) {
	f.mu.Lock()
	subs := append([]*fanoutSub(nil), f.subs...)
	f.mu.Unlock()

	for _, s := range subs {
		s.send(evt)
	}
}

// Close closes every watcher channel and refuses new watchers.
// Idempotent.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}
