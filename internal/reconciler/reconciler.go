// Package reconciler keeps hardware-backed operational state consistent
// with hardware reality and applies operator-intended configuration to
// hardware. Each entity (module, host interface, network interface) gets
// its own worker goroutine running an independent state machine
// (unbound → provisioning → steady ⇄ degraded), so a stalled driver for
// one entity never blocks polling of the others.
package reconciler

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/goldstone-mgmt/southd/internal/cache"
	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/internal/driver"
	"github.com/goldstone-mgmt/southd/internal/notify"
	"github.com/goldstone-mgmt/southd/internal/subscriber"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Sentinel errors for manager lifecycle.
var (
	ErrAlreadyStarted = errors.New("reconciler: already started")
	ErrMissingDep     = errors.New("reconciler: missing collaborator")
)

// Config holds the per-entity reconciliation knobs.
type Config struct {
	// PollInterval is the steady-state hardware poll cadence.
	PollInterval time.Duration

	// OpTimeout bounds every single hardware or datastore operation.
	OpTimeout time.Duration

	// BackoffInitial and BackoffMax bound the retry delay in Degraded.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// FaultThreshold is the number of consecutive read failures after
	// which the entity publishes oper-status=fault and one alarm.
	FaultThreshold int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 5 * time.Second
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.FaultThreshold <= 0 {
		c.FaultThreshold = 3
	}
	return c
}

// managerDeps bundles the collaborators shared by all workers.
type managerDeps struct {
	binder  driver.Provider
	cache   *cache.Cache
	store   datastore.Store
	emitter *notify.Emitter
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Manager owns the per-entity workers and the dispatch loop draining the
// change queue.
type Manager struct {
	cfg   Config
	deps  managerDeps
	queue *subscriber.Queue

	mu      sync.Mutex
	workers map[transponder.Ref]*worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Params configures a Manager.
type Params struct {
	Config  Config
	Binder  driver.Provider
	Cache   *cache.Cache
	Store   datastore.Store
	Emitter *notify.Emitter
	Queue   *subscriber.Queue
	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// New creates a Manager. Binder, Store, Emitter and Queue are required.
func New(p Params) (*Manager, error) {
	if p.Binder == nil || p.Store == nil || p.Emitter == nil || p.Queue == nil {
		return nil, ErrMissingDep
	}
	if p.Cache == nil {
		p.Cache = cache.New()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Metrics == nil {
		p.Metrics = NewMetrics(nil)
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer("southd/reconciler")
	}

	return &Manager{
		cfg: p.Config.withDefaults(),
		deps: managerDeps{
			binder:  p.Binder,
			cache:   p.Cache,
			store:   p.Store,
			emitter: p.Emitter,
			logger:  p.Logger.With("component", "reconciler"),
			metrics: p.Metrics,
			tracer:  p.Tracer,
		},
		queue:   p.Queue,
		workers: make(map[transponder.Ref]*worker),
	}, nil
}

// Start launches the dispatch loop. Returns ErrAlreadyStarted on a second
// call.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.dispatch(ctx)
	return nil
}

// Stop cancels all workers and waits for them to exit, bounded by ctx.
// In-flight hardware writes complete or fail cleanly before exit.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch drains the change queue and routes items to workers, spawning
// one per entity on first sight. submit never blocks, so one stalled
// entity cannot delay the others.
func (m *Manager) dispatch(ctx context.Context) {
	defer m.wg.Done()

	for {
		item, err := m.queue.Pop(ctx)
		if err != nil {
			return
		}
		m.route(ctx, item)
	}
}

// route delivers one change to its entity worker, spawning one on first
// sight. Lookup and submit happen under the manager lock, so a worker can
// never retire between the two; retire checks the pending slot under the
// same lock.
func (m *Manager) route(ctx context.Context, item subscriber.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[item.Ref]
	if item.Op == datastore.OpDelete {
		if !ok {
			m.deps.logger.Debug("delete for unknown entity", "entity", item.Ref.String())
			return
		}
		w.submit(workItem{del: true})
		return
	}
	if !ok {
		w = m.spawn(ctx, item.Ref)
	}
	w.submit(workItem{delta: item.Delta})
}

// spawn creates and starts the worker for ref. Caller holds m.mu.
func (m *Manager) spawn(ctx context.Context, ref transponder.Ref) *worker {
	w := newWorker(ref, m.cfg, m.deps)
	w.retire = func() bool { return m.retireWorker(ref, w) }
	m.workers[ref] = w
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.run(ctx)
	}()
	m.deps.logger.Info("entity worker started", "entity", ref.String())
	return w
}

// retireWorker removes a worker whose entity was deleted, so /status and
// the state gauges stop reporting it. Returns false when new work raced
// in; the worker then stays mapped and handles it.
func (m *Manager) retireWorker(ref transponder.Ref, w *worker) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.pendMu.Lock()
	idle := w.pendingDelta == nil && !w.pendingDel && !w.forcePoll
	w.pendMu.Unlock()
	if !idle {
		return false
	}

	if m.workers[ref] == w {
		delete(m.workers, ref)
	}
	m.deps.metrics.workerRetired(StateUnbound)
	m.deps.logger.Info("entity worker retired", "entity", ref.String())
	return true
}

// ResyncAll forces a fresh hardware poll on every bound entity. Used by
// the scheduled resync job; entities with a cycle in flight simply fold
// the request into their next pass.
func (m *Manager) ResyncAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.workers {
		w.submit(workItem{poll: true})
	}
	return len(m.workers)
}

// Status reports the state of every known entity, sorted by ref path.
func (m *Manager) Status() []EntityStatus {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	statuses := make([]EntityStatus, 0, len(workers))
	for _, w := range workers {
		statuses = append(statuses, w.status())
	}
	sortStatuses(statuses)
	return statuses
}

// Degraded reports whether any entity is currently degraded or faulted.
func (m *Manager) Degraded() bool {
	for _, st := range m.Status() {
		if st.State == StateDegraded || st.Fault {
			return true
		}
	}
	return false
}

func sortStatuses(statuses []EntityStatus) {
	slices.SortFunc(statuses, func(a, b EntityStatus) int {
		return cmp.Compare(a.Ref.String(), b.Ref.String())
	})
}
