// Package subscriber consumes config-change events from the datastore and
// feeds them to the reconciler as per-entity work items. Bursts of writes
// to one entity coalesce into a single latest-wins delta while queued, so
// redundant hardware writes never happen. Delivery is FIFO by first
// enqueue; per-entity ordering (create before modify before delete) is
// preserved.
package subscriber

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Item is one unit of reconciliation work.
type Item struct {
	Ref   transponder.Ref
	Op    datastore.Op
	Delta transponder.ConfigDelta
}

// Queue is a per-entity coalescing FIFO. Concurrency-safe.
type Queue struct {
	mu        sync.Mutex
	pending   map[transponder.Ref][]Item
	order     []transponder.Ref
	signal    chan struct{}
	coalesced atomic.Uint64
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[transponder.Ref][]Item),
		signal:  make(chan struct{}, 1),
	}
}

// Push enqueues an event, coalescing it with the entity's queued tail
// when possible:
//
//   - modify merges into a queued create or modify, latest-wins
//   - delete absorbs a queued create or modify
//   - create after a queued delete stays a separate item
func (q *Queue) Push(evt datastore.ChangeEvent) {
	item := Item{Ref: evt.Ref, Op: evt.Op, Delta: evt.Delta}

	q.mu.Lock()
	items, queued := q.pending[evt.Ref]
	switch {
	case !queued || len(items) == 0:
		q.pending[evt.Ref] = []Item{item}
		if !queued {
			q.order = append(q.order, evt.Ref)
		}
	default:
		tail := &items[len(items)-1]
		switch {
		case evt.Op == datastore.OpModify && tail.Op != datastore.OpDelete:
			tail.Delta = tail.Delta.Merge(evt.Delta)
			q.coalesced.Add(1)
		case evt.Op == datastore.OpDelete && tail.Op != datastore.OpDelete:
			*tail = Item{Ref: evt.Ref, Op: datastore.OpDelete}
			q.coalesced.Add(1)
		default:
			q.pending[evt.Ref] = append(items, item)
		}
	}
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop blocks until an item is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	for {
		q.mu.Lock()
		if len(q.order) > 0 {
			ref := q.order[0]
			items := q.pending[ref]
			item := items[0]
			if len(items) == 1 {
				delete(q.pending, ref)
				q.order = q.order[1:]
			} else {
				q.pending[ref] = items[1:]
				// Entity moves to the back so one chatty entity
				// cannot starve the others.
				q.order = append(q.order[1:], ref)
			}
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of entities with queued work.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// CoalescedTotal returns how many events were merged into queued items.
func (q *Queue) CoalescedTotal() uint64 {
	return q.coalesced.Load()
}
