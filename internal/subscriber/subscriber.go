package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("subscriber: already started")

// Subscriber pumps the datastore's change stream into a Queue.
type Subscriber struct {
	store  datastore.Store
	queue  *Queue
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Subscriber feeding queue from store.
func New(store datastore.Store, queue *Queue, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		store:  store,
		queue:  queue,
		logger: logger.With("component", "subscriber"),
	}
}

// Replay pushes the current config subtree as synthetic create events.
// Called once at startup, before Start, so entities that existed before
// this process are provisioned exactly like freshly created ones.
func (s *Subscriber) Replay(ctx context.Context) error {
	entries, err := s.store.Config(ctx)
	if err != nil {
		return fmt.Errorf("subscriber: reading config subtree: %w", err)
	}
	for _, e := range entries {
		s.queue.Push(datastore.ChangeEvent{
			Ref:   e.Ref,
			Op:    datastore.OpCreate,
			Delta: transponderDelta(e.Config),
		})
	}
	s.logger.Info("replayed config subtree", "entities", len(entries))
	return nil
}

// Start subscribes to the change stream and forwards events until ctx is
// canceled or the stream closes.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	ch, err := s.store.Watch(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscriber: watch: %w", err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	go s.pump(ch)
	return nil
}

// Stop cancels the subscription and waits for the pump to drain.
func (s *Subscriber) Stop(_ context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// transponderDelta turns a full desired-config map into a create delta.
func transponderDelta(cfg map[string]string) transponder.ConfigDelta {
	return transponder.ConfigDelta{Set: cfg}
}

func (s *Subscriber) pump(ch <-chan datastore.ChangeEvent) {
	defer close(s.done)
	for evt := range ch {
		s.logger.Debug("config change", "entity", evt.Ref.String(), "op", string(evt.Op))
		s.queue.Push(evt)
	}
}
