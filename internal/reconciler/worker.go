package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goldstone-mgmt/southd/internal/cache"
	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/internal/driver"
	"github.com/goldstone-mgmt/southd/internal/notify"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// State is the per-entity reconciliation state.
type State string

// Per-entity states.
const (
	StateUnbound      State = "unbound"
	StateProvisioning State = "provisioning"
	StateSteady       State = "steady"
	StateDegraded     State = "degraded"
)

// EntityStatus is a point-in-time view of one entity's worker, exposed by
// the admin server.
type EntityStatus struct {
	Ref          transponder.Ref `json:"ref"`
	State        State           `json:"state"`
	CacheVersion uint64          `json:"cache_version"`
	ReadFailures int             `json:"read_failures"`
	Fault        bool            `json:"fault"`
	LastError    string          `json:"last_error,omitempty"`
}

// workItem is one coalescable trigger for a worker.
type workItem struct {
	delta transponder.ConfigDelta
	del   bool
	poll  bool
}

// worker reconciles a single entity. All hardware access happens on the
// worker's own goroutine, which serializes config application and polling
// for the entity: there is never more than one in-flight hardware
// operation per entity.
type worker struct {
	ref     transponder.Ref
	binder  driver.Provider
	cache   *cache.Cache
	store   datastore.Store
	emitter *notify.Emitter
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	// Inbound coalescing slot, written by the manager's dispatch loop
	// and drained by the worker goroutine.
	pendMu       sync.Mutex
	pendingDelta *transponder.ConfigDelta
	pendingDel   bool
	forcePoll    bool
	kick         chan struct{}

	// retire is set by the manager; called by the worker goroutine when
	// the entity was deleted and no new work is pending. Returning true
	// means the worker was removed from the manager and must exit.
	retire func() bool

	// Reconciliation state, owned by the worker goroutine.
	state       State
	binding     driver.Binding
	desired     map[string]string
	retryDelta  *transponder.ConfigDelta
	uncommitted *transponder.Snapshot
	backoff     Backoff
	readFails   int
	fault       bool
	lastErr     error

	// Status mirror for other goroutines.
	statMu sync.Mutex
	stat   EntityStatus

	done chan struct{}
}

func newWorker(ref transponder.Ref, cfg Config, deps managerDeps) *worker {
	w := &worker{
		ref:     ref,
		binder:  deps.binder,
		cache:   deps.cache,
		store:   deps.store,
		emitter: deps.emitter,
		cfg:     cfg,
		logger:  deps.logger.With("entity", ref.String()),
		metrics: deps.metrics,
		tracer:  deps.tracer,
		kick:    make(chan struct{}, 1),
		state:   StateUnbound,
		backoff: Backoff{Initial: cfg.BackoffInitial, Max: cfg.BackoffMax},
		done:    make(chan struct{}),
	}
	w.stat = EntityStatus{Ref: ref, State: StateUnbound}
	w.metrics.stateTransition("", StateUnbound)
	return w
}

// submit hands a work item to the worker without blocking the caller.
// Bursts coalesce latest-wins in the pending slot, so a stalled driver
// never backs pressure up into the manager's dispatch loop.
func (w *worker) submit(item workItem) {
	w.pendMu.Lock()
	switch {
	case item.del:
		w.pendingDel = true
		w.pendingDelta = nil
	case item.poll:
		w.forcePoll = true
	default:
		if w.pendingDelta == nil {
			d := item.delta
			w.pendingDelta = &d
		} else {
			merged := w.pendingDelta.Merge(item.delta)
			w.pendingDelta = &merged
		}
	}
	w.pendMu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// run is the worker event loop. A single timer drives both the steady
// poll cadence and degraded-state backoff; config changes arrive via kick.
// Entity deletion lands as a kick, so it interrupts a pending backoff
// timer immediately.
func (w *worker) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case <-w.kick:
		case <-timer.C:
			armed = false
		}

		delay := w.process(ctx)

		if armed && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		armed = false
		if delay > 0 {
			timer.Reset(delay)
			armed = true
			continue
		}

		// Idle and unbound: the entity was deleted. Hand the slot back to
		// the manager unless new work raced in.
		if w.state == StateUnbound && w.retire != nil && w.retire() {
			return
		}
	}
}

// process runs one reconciliation pass and returns the delay until the
// next self-scheduled wakeup. Zero disarms the timer; the worker then
// sleeps until an inbound trigger arrives.
func (w *worker) process(ctx context.Context) (delay time.Duration) {
	w.pendMu.Lock()
	delta, del, force := w.pendingDelta, w.pendingDel, w.forcePoll
	w.pendingDelta, w.pendingDel, w.forcePoll = nil, false, false
	w.pendMu.Unlock()

	defer w.syncStatus()

	ctx, span := w.tracer.Start(ctx, "reconcile.cycle",
		trace.WithAttributes(attribute.String("entity", w.ref.String())))
	defer span.End()

	if del {
		w.teardown(ctx)
		if delta == nil {
			return 0
		}
		// Entity recreated right after deletion; fall through and
		// provision it from scratch.
	}

	if delta != nil {
		w.desired = delta.Apply(w.desired)
		if w.retryDelta == nil {
			w.retryDelta = delta
		} else {
			merged := w.retryDelta.Merge(*delta)
			w.retryDelta = &merged
		}
	}

	// Nothing to do for an unbound entity with no pending config.
	if w.state == StateUnbound && w.retryDelta == nil {
		return 0
	}

	if w.binding == nil {
		if d := w.bind(ctx); d > 0 {
			return d
		}
	}

	// Retry an unpublished commit before anything else: hardware state is
	// already known, so no driver call is needed. A forced resync skips
	// this shortcut and reads hardware fresh.
	if w.uncommitted != nil && delta == nil && !del && !force {
		if err := w.publish(ctx, *w.uncommitted); err != nil {
			return w.degrade(err)
		}
		w.setState(StateSteady)
		w.metrics.Cycles.WithLabelValues("success").Inc()
		return w.cfg.PollInterval
	}

	if w.retryDelta != nil {
		if d := w.apply(ctx); d > 0 {
			return d
		}
	}

	return w.poll(ctx)
}

// bind provisions the driver binding. Returns a backoff delay on failure.
func (w *worker) bind(ctx context.Context) time.Duration {
	opCtx, cancel := context.WithTimeout(ctx, w.cfg.OpTimeout)
	b, err := w.binder.Bind(opCtx, w.ref)
	cancel()
	if err != nil {
		w.lastErr = err
		w.logger.Warn("driver bind failed", "error", err)
		return w.degrade(err)
	}
	w.binding = b
	w.setState(StateProvisioning)
	return 0
}

// apply writes the accumulated config delta to hardware. Returns a
// backoff delay when the write must be retried.
func (w *worker) apply(ctx context.Context) time.Duration {
	w.setState(StateProvisioning)
	delta := *w.retryDelta

	// Let an in-flight write finish cleanly even during shutdown; a
	// half-applied hardware write is worse than a late one.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.OpTimeout)
	err := w.binding.Write(opCtx, delta)
	cancel()

	switch {
	case err == nil:
		w.retryDelta = nil
		w.lastErr = nil
		w.backoff.Reset()
	case driver.Permanent(err):
		// Rejected for good: surface to the operator, do not retry.
		w.metrics.RejectedConfigs.Inc()
		w.logger.Error("config rejected by hardware", "error", err)
		if rerr := w.store.RejectConfig(ctx, w.ref, delta, err); rerr != nil {
			w.logger.Warn("recording config rejection failed", "error", rerr)
		}
		w.retryDelta = nil
		w.lastErr = err
	default:
		w.metrics.HardwareErrors.WithLabelValues("write").Inc()
		w.logger.Warn("config write failed, will retry", "error", err)
		w.lastErr = err
		return w.degrade(err)
	}
	return 0
}

// poll reads hardware, diffs against the cache, commits and emits.
func (w *worker) poll(ctx context.Context) time.Duration {
	opCtx, cancel := context.WithTimeout(ctx, w.cfg.OpTimeout)
	snap, err := w.binding.Read(opCtx)
	cancel()
	if err != nil {
		return w.readFailed(ctx, err)
	}

	w.readFails = 0
	w.lastErr = nil
	if w.fault {
		w.fault = false
		w.logger.Info("fault cleared")
	}

	if err := w.publish(ctx, snap); err != nil {
		return w.degrade(err)
	}

	w.setState(StateSteady)
	w.backoff.Reset()
	w.metrics.Cycles.WithLabelValues("success").Inc()
	return w.cfg.PollInterval
}

// readFailed applies the transient-failure policy: backoff, and after
// FaultThreshold consecutive failures publish oper-status=fault with a
// single alarm. Polling continues at the backoff cap so a recovered
// device is picked up again.
func (w *worker) readFailed(ctx context.Context, err error) time.Duration {
	w.metrics.HardwareErrors.WithLabelValues("read").Inc()
	w.readFails++
	w.lastErr = err
	w.logger.Warn("hardware read failed", "error", err, "consecutive", w.readFails)

	if w.readFails >= w.cfg.FaultThreshold && !w.fault {
		w.fault = true
		w.publishFault(ctx)
	}
	return w.degrade(err)
}

// publishFault commits oper-status=fault on top of the last published
// snapshot. The resulting diff carries the fault transition, which
// emitChanges turns into exactly one alarm notification.
func (w *worker) publishFault(ctx context.Context) {
	leaves := map[string]string{}
	if entry, ok := w.cache.Get(w.ref); ok {
		for k, v := range entry.Snapshot.Leaves {
			leaves[k] = v
		}
	}
	leaves[transponder.LeafOperStatus] = string(transponder.NetOperFault)

	snap := transponder.NewSnapshot(w.ref, leaves)
	if err := w.publish(ctx, snap); err != nil {
		w.logger.Warn("fault state commit failed", "error", err)
	}
}

// publish commits a snapshot to the datastore state subtree and, on
// success, advances the cache and emits notifications for the changed
// leaves. Commit and cache update are one unit: a failed commit leaves
// the cache version untouched so the next diff runs against the last
// durably published state.
func (w *worker) publish(ctx context.Context, snap transponder.Snapshot) error {
	var old transponder.Snapshot
	if entry, ok := w.cache.Get(w.ref); ok {
		old = entry.Snapshot
	}

	changes := cache.Diff(old, snap)
	if len(changes) == 0 {
		w.uncommitted = nil
		return nil
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.OpTimeout)
	err := w.store.CommitState(commitCtx, w.ref, snap.Leaves)
	cancel()
	if err != nil {
		w.metrics.CommitFailures.Inc()
		w.logger.Warn("state commit failed", "error", err)
		s := snap.Clone()
		w.uncommitted = &s
		w.lastErr = err
		return datastore.ErrCommitFailed
	}

	w.cache.Update(w.ref, snap)
	w.uncommitted = nil
	w.emitChanges(ctx, changes, snap)
	return nil
}

// emitChanges emits at most one notify and one alarm event per change
// set. Regular notifications are gated on enable-notify (default off);
// alarm notifications on enable-alarm-notification (default on). Modules
// have no alarm grouping, so only the notify path applies to them.
func (w *worker) emitChanges(ctx context.Context, changes []cache.Change, snap transponder.Snapshot) {
	keys := cache.Keys(changes)

	var alarmKeys []string
	if w.ref.Kind != transponder.KindModule {
		for _, ch := range changes {
			if ch.Leaf == transponder.LeafAlarmInfo ||
				(ch.Leaf == transponder.LeafOperStatus && ch.New == string(transponder.NetOperFault)) {
				alarmKeys = append(alarmKeys, ch.Leaf)
			}
		}
	}

	body := make(map[string]string, len(snap.Leaves)+len(w.desired))
	for k, v := range w.desired {
		body[k] = v
	}
	for k, v := range snap.Leaves {
		body[k] = v
	}

	if len(alarmKeys) > 0 && w.desired[transponder.LeafEnableAlarmNotification] != "false" {
		n := w.emitter.Emit(ctx, w.ref, true, alarmKeys, body)
		w.metrics.Notifications.WithLabelValues(n.Event).Inc()
	}

	if w.desired[transponder.LeafEnableNotify] == "true" {
		n := w.emitter.Emit(ctx, w.ref, false, keys, body)
		w.metrics.Notifications.WithLabelValues(n.Event).Inc()
	}
}

// degrade enters the Degraded state and returns the next retry delay.
func (w *worker) degrade(err error) time.Duration {
	switch {
	case errors.Is(err, datastore.ErrCommitFailed):
		w.metrics.Cycles.WithLabelValues("commit-failed").Inc()
	case driver.Transient(err):
		w.metrics.Cycles.WithLabelValues("transient").Inc()
	default:
		w.metrics.Cycles.WithLabelValues("error").Inc()
	}
	w.setState(StateDegraded)
	return w.backoff.Next()
}

// teardown releases the binding and discards all published and cached
// state for the entity. The caller disarms the timer afterwards, which
// cancels any pending retry.
func (w *worker) teardown(ctx context.Context) {
	if w.binding != nil {
		if err := w.binding.Close(); err != nil {
			w.logger.Warn("binding close failed", "error", err)
		}
		w.binding = nil
	}

	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.OpTimeout)
	if err := w.store.DeleteState(delCtx, w.ref); err != nil {
		w.logger.Warn("state delete failed", "error", err)
	}
	cancel()

	w.cache.Drop(w.ref)
	w.desired = nil
	w.retryDelta = nil
	w.uncommitted = nil
	w.readFails = 0
	w.fault = false
	w.lastErr = nil
	w.backoff.Reset()
	w.setState(StateUnbound)
	w.logger.Info("entity unbound")
}

// shutdown releases the binding on process exit without touching the
// datastore: the entity still exists, this process just stops managing it.
func (w *worker) shutdown() {
	if w.binding != nil {
		_ = w.binding.Close()
		w.binding = nil
	}
}

func (w *worker) setState(s State) {
	if w.state == s {
		return
	}
	w.metrics.stateTransition(w.state, s)
	w.logger.Debug("state transition", "from", string(w.state), "to", string(s))
	w.state = s
}

// syncStatus refreshes the mirror other goroutines read via status().
func (w *worker) syncStatus() {
	st := EntityStatus{
		Ref:          w.ref,
		State:        w.state,
		ReadFailures: w.readFails,
		Fault:        w.fault,
	}
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
	}
	if entry, ok := w.cache.Get(w.ref); ok {
		st.CacheVersion = entry.Version
	}

	w.statMu.Lock()
	w.stat = st
	w.statMu.Unlock()
}

// status returns the last synced view of the worker.
func (w *worker) status() EntityStatus {
	w.statMu.Lock()
	defer w.statMu.Unlock()
	return w.stat
}
