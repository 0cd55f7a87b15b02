package datastore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Memstore is an in-process Store used by tests and as the fallback when
// no persistent datastore module is configured. Config writes arrive
// through SetConfig/DeleteConfig and fan out to all watchers.
type Memstore struct {
	fanout Fanout

	mu       sync.Mutex
	config   map[transponder.Ref]map[string]string
	state    map[transponder.Ref]map[string]string
	rejected []Rejection
	events   []transponder.Notification
	closed   bool

	// failCommits makes the next N CommitState calls fail, for tests.
	failCommits int
}

// Rejection records a permanently rejected config application.
type Rejection struct {
	Ref   transponder.Ref
	Delta transponder.ConfigDelta
	Cause string
}

// Compile-time interface guard.
var _ Store = (*Memstore)(nil)

// NewMemstore creates an empty in-memory store.
func NewMemstore() *Memstore {
	return &Memstore{
		config: make(map[transponder.Ref]map[string]string),
		state:  make(map[transponder.Ref]map[string]string),
	}
}

// SetConfig applies a config delta for ref, creating the entity if it does
// not exist, and emits the corresponding create/modify event to watchers.
func (m *Memstore) SetConfig(ref transponder.Ref, delta transponder.ConfigDelta) {
	m.mu.Lock()
	op := OpModify
	cur, ok := m.config[ref]
	if !ok {
		op = OpCreate
		cur = make(map[string]string)
	}
	m.config[ref] = delta.Apply(cur)
	m.mu.Unlock()

	m.broadcast(ChangeEvent{Ref: ref, Op: op, Delta: delta})
}

// DeleteConfig removes the entity's config entry and emits a delete event.
func (m *Memstore) DeleteConfig(ref transponder.Ref) {
	m.mu.Lock()
	delete(m.config, ref)
	m.mu.Unlock()

	m.broadcast(ChangeEvent{Ref: ref, Op: OpDelete})
}

func (m *Memstore) broadcast(evt ChangeEvent) {
	m.fanout.Broadcast(evt)
}

// Config implements Store.
func (m *Memstore) Config(_ context.Context) ([]ConfigEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	entries := make([]ConfigEntry, 0, len(m.config))
	for ref, cfg := range m.config {
		cp := make(map[string]string, len(cfg))
		maps.Copy(cp, cfg)
		entries = append(entries, ConfigEntry{Ref: ref, Config: cp})
	}
	return entries, nil
}

// Watch implements Store. Each watcher gets its own buffered channel;
// events are delivered in write order.
func (m *Memstore) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	return m.fanout.Watch(ctx)
}

// CommitState implements Store.
func (m *Memstore) CommitState(_ context.Context, ref transponder.Ref, leaves map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.failCommits > 0 {
		m.failCommits--
		return fmt.Errorf("%w: injected failure", ErrCommitFailed)
	}
	cp := make(map[string]string, len(leaves))
	maps.Copy(cp, leaves)
	m.state[ref] = cp
	return nil
}

// DeleteState implements Store.
func (m *Memstore) DeleteState(_ context.Context, ref transponder.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, ref)
	return nil
}

// RejectConfig implements Store.
func (m *Memstore) RejectConfig(_ context.Context, ref transponder.Ref, delta transponder.ConfigDelta, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, Rejection{Ref: ref, Delta: delta, Cause: cause.Error()})
	return nil
}

// Publish implements Store.
func (m *Memstore) Publish(_ context.Context, n transponder.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.events = append(m.events, n)
	return nil
}

// State returns a copy of the published state leaves for ref.
func (m *Memstore) State(ref transponder.Ref) (map[string]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaves, ok := m.state[ref]
	if !ok {
		return nil, false
	}
	cp := make(map[string]string, len(leaves))
	maps.Copy(cp, leaves)
	return cp, true
}

// Notifications returns a copy of all published notifications.
func (m *Memstore) Notifications() []transponder.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transponder.Notification(nil), m.events...)
}

// Rejections returns a copy of all recorded config rejections.
func (m *Memstore) Rejections() []Rejection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Rejection(nil), m.rejected...)
}

// FailCommits makes the next n CommitState calls fail with ErrCommitFailed.
func (m *Memstore) FailCommits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCommits = n
}

// Close shuts the store down and closes all watcher channels.
func (m *Memstore) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.fanout.Close()
}
