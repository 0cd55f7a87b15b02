package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/internal/driver"
	"github.com/goldstone-mgmt/southd/internal/notify"
	"github.com/goldstone-mgmt/southd/internal/subscriber"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

type harness struct {
	store *datastore.Memstore
	queue *subscriber.Queue
	drv   *fakeDriver
	mgr   *Manager
}

// newHarness wires a full reconciliation stack over the in-memory store
// and the fake driver, with aggressive timings for tests.
func newHarness(t *testing.T, start bool) *harness {
	t.Helper()

	store := datastore.NewMemstore()
	queue := subscriber.NewQueue()
	drv := newFakeDriver(t)

	sel := driver.NewSelector()
	if err := sel.Register("fake", drv); err != nil {
		t.Fatalf("Register: %v", err)
	}

	mgr, err := New(Params{
		Config: Config{
			PollInterval:   10 * time.Millisecond,
			OpTimeout:      500 * time.Millisecond,
			BackoffInitial: 2 * time.Millisecond,
			BackoffMax:     10 * time.Millisecond,
			FaultThreshold: 3,
		},
		Binder:  sel,
		Store:   store,
		Emitter: notify.NewEmitter(store, nil, nil),
		Queue:   queue,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub := subscriber.New(store, queue, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("subscriber Start: %v", err)
	}
	if start {
		if err := mgr.Start(ctx); err != nil {
			t.Fatalf("manager Start: %v", err)
		}
	}

	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = mgr.Stop(stopCtx)
		_ = sub.Stop(stopCtx)
		cancel()
		store.Close()
	})

	return &harness{store: store, queue: queue, drv: drv, mgr: mgr}
}

func (h *harness) startManager(t *testing.T) {
	t.Helper()
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("manager Start: %v", err)
	}
}

func (h *harness) notifications(event string) []transponder.Notification {
	var out []transponder.Notification
	for _, n := range h.store.Notifications() {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

func (h *harness) entityState(ref transponder.Ref) EntityStatus {
	for _, st := range h.mgr.Status() {
		if st.Ref == ref {
			return st
		}
	}
	return EntityStatus{}
}

func TestReconcile_CreateReachesSteadyWithoutNotify(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.NetworkInterfaceRef("piu1", "0")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{
		"admin-status":  "up",
		"fec-type":      "ofec",
		"enable-notify": "false",
	}})

	waitFor(t, "published ready state", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["oper-status"] == "ready"
	})
	waitFor(t, "steady state", func() bool {
		return h.entityState(ref).State == StateSteady
	})

	if got := h.notifications(transponder.EventNetIfNotify); len(got) != 0 {
		t.Errorf("notifications with enable-notify=false: %d, want 0", len(got))
	}

	leaves, _ := h.store.State(ref)
	if leaves["fec-type"] != "ofec" {
		t.Errorf("fec-type = %q, want %q", leaves["fec-type"], "ofec")
	}
}

func TestReconcile_NoSpuriousNotifications(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.ModuleRef("piu1")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{
		"admin-status":  "up",
		"enable-notify": "true",
	}})

	waitFor(t, "first notification", func() bool {
		return len(h.notifications(transponder.EventModuleNotify)) == 1
	})

	// Several quiescent poll cycles: the diff must stay empty.
	first := h.drv.readCount(ref)
	waitFor(t, "three more polls", func() bool {
		return h.drv.readCount(ref) >= first+3
	})

	if got := len(h.notifications(transponder.EventModuleNotify)); got != 1 {
		t.Errorf("notifications after quiescent polls: %d, want 1", got)
	}

	// A real hardware change produces exactly one more.
	h.drv.setLeaf(ref, "temp", "41.0")
	waitFor(t, "change notification", func() bool {
		return len(h.notifications(transponder.EventModuleNotify)) == 2
	})
}

func TestReconcile_RapidDeltasCoalesceToOneWrite(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false) // manager not started: events pile into the queue
	ref := transponder.HostInterfaceRef("piu1", "0")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"loopback-type": "none"}})
	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"loopback-type": "shallow"}})
	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"loopback-type": "deep"}})

	waitFor(t, "queue coalescing", func() bool {
		return h.queue.CoalescedTotal() == 2 && h.queue.Len() == 1
	})
	h.startManager(t)

	waitFor(t, "published state", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["loopback-type"] == "deep"
	})

	writes := h.drv.writeLog(ref)
	if len(writes) != 1 {
		t.Fatalf("hardware writes = %d, want 1 (coalesced)", len(writes))
	}
	if got := writes[0].Set["loopback-type"]; got != "deep" {
		t.Errorf("applied loopback-type = %q, want %q", got, "deep")
	}
}

func TestReconcile_FaultAfterConsecutiveReadFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.NetworkInterfaceRef("piu1", "0")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	waitFor(t, "steady", func() bool { return h.entityState(ref).State == StateSteady })

	h.drv.failReads(ref, -1) // fail until further notice

	waitFor(t, "fault published", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["oper-status"] == "fault"
	})
	waitFor(t, "more failed polls after fault", func() bool {
		return h.entityState(ref).ReadFailures >= 5
	})

	if got := len(h.notifications(transponder.EventNetIfAlarmNotify)); got != 1 {
		t.Errorf("alarm notifications = %d, want exactly 1", got)
	}

	// Recovery clears the fault and resumes steady polling.
	h.drv.failReads(ref, 0)
	waitFor(t, "fault cleared", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["oper-status"] == "ready"
	})
	waitFor(t, "steady after recovery", func() bool {
		st := h.entityState(ref)
		return st.State == StateSteady && !st.Fault
	})
}

func TestReconcile_DeleteWhileDegradedCancelsRetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.ModuleRef("piu1")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	waitFor(t, "steady", func() bool { return h.entityState(ref).State == StateSteady })

	h.drv.failReads(ref, -1)
	waitFor(t, "degraded", func() bool { return h.entityState(ref).State == StateDegraded })

	h.store.DeleteConfig(ref)
	waitFor(t, "worker retired", func() bool { return len(h.mgr.Status()) == 0 })

	if h.drv.closeCount(ref) != 1 {
		t.Errorf("binding closes = %d, want 1", h.drv.closeCount(ref))
	}
	if _, ok := h.store.State(ref); ok {
		t.Error("state subtree still present after deletion")
	}

	// No further driver calls after the entity is unbound.
	calls := h.drv.readCount(ref)
	time.Sleep(100 * time.Millisecond)
	if got := h.drv.readCount(ref); got != calls {
		t.Errorf("driver reads after deletion: %d, want %d", got, calls)
	}
}

func TestReconcile_CommitFailureDoesNotAdvanceCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.ModuleRef("piu1")

	h.store.FailCommits(1)
	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{
		"admin-status":  "up",
		"enable-notify": "true",
	}})

	waitFor(t, "state published after commit retry", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["oper-status"] == "ready"
	})

	// The failed commit must not have produced a cache version or a
	// notification; the retry publishes exactly once.
	st := h.entityState(ref)
	if st.CacheVersion != 1 {
		t.Errorf("cache version = %d, want 1", st.CacheVersion)
	}
	if got := len(h.notifications(transponder.EventModuleNotify)); got != 1 {
		t.Errorf("notifications = %d, want 1", got)
	}
}

func TestReconcile_PermanentRejectionIsNotRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.NetworkInterfaceRef("piu1", "0")

	h.drv.failWrite(ref, driver.ErrInvalidParameter)
	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"modulation-format": "dp-qpsk"}})

	waitFor(t, "rejection recorded", func() bool {
		return len(h.store.Rejections()) == 1
	})
	waitFor(t, "steady despite rejection", func() bool {
		return h.entityState(ref).State == StateSteady
	})

	// Exactly one write attempt; the rejected delta is never retried.
	first := h.drv.readCount(ref)
	waitFor(t, "more polls", func() bool { return h.drv.readCount(ref) >= first+2 })
	if writes := h.drv.writeLog(ref); len(writes) != 1 {
		t.Errorf("hardware writes = %d, want 1", len(writes))
	}
}

func TestReconcile_PerEntitySerialization(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.HostInterfaceRef("piu1", "0")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	waitFor(t, "steady", func() bool { return h.entityState(ref).State == StateSteady })

	// Hammer the entity with config changes while it polls; the fake
	// driver fails the test on any interleaved call.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			value := "none"
			if i%2 == 0 {
				value = "deep"
			}
			h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"loopback-type": value}})
			time.Sleep(time.Millisecond)
		}
	}()
	<-done

	waitFor(t, "final state", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["loopback-type"] != ""
	})
}

func TestReconcile_ResyncAllForcesPoll(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.ModuleRef("piu1")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	waitFor(t, "steady", func() bool { return h.entityState(ref).State == StateSteady })

	before := h.drv.readCount(ref)
	if n := h.mgr.ResyncAll(); n != 1 {
		t.Errorf("ResyncAll = %d entities, want 1", n)
	}
	waitFor(t, "forced poll", func() bool { return h.drv.readCount(ref) > before })
}

func TestReconcile_DeleteRetiresWorker(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.NetworkInterfaceRef("piu1", "0")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	waitFor(t, "steady", func() bool { return h.entityState(ref).State == StateSteady })

	h.store.DeleteConfig(ref)

	// The deleted entity must drop out of the status report entirely, not
	// linger as unbound.
	waitFor(t, "worker retired", func() bool { return len(h.mgr.Status()) == 0 })

	// Recreating the entity spawns a fresh worker that binds and
	// publishes again.
	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	waitFor(t, "steady after recreate", func() bool {
		return h.entityState(ref).State == StateSteady
	})
	waitFor(t, "state republished", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["oper-status"] == "ready"
	})
}

func TestReconcile_ResyncReadsFreshDuringCommitRetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	ref := transponder.ModuleRef("piu1")

	h.store.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	waitFor(t, "steady", func() bool { return h.entityState(ref).State == StateSteady })

	h.store.FailCommits(1 << 20)
	h.drv.setLeaf(ref, "temp", "42.0")
	waitFor(t, "degraded on commit failure", func() bool {
		return h.entityState(ref).State == StateDegraded
	})

	// Commit retries replay the held snapshot without touching hardware.
	reads := h.drv.readCount(ref)
	time.Sleep(50 * time.Millisecond)
	if got := h.drv.readCount(ref); got != reads {
		t.Fatalf("reads during commit retry = %d, want %d", got, reads)
	}

	// A forced resync must not short-circuit into the commit retry: it
	// reads hardware fresh.
	h.mgr.ResyncAll()
	waitFor(t, "fresh hardware read", func() bool { return h.drv.readCount(ref) > reads })

	h.store.FailCommits(0)
	waitFor(t, "changed leaf published after recovery", func() bool {
		leaves, ok := h.store.State(ref)
		return ok && leaves["temp"] == "42.0"
	})
}

func TestManager_StartTwice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	if err := h.mgr.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start: err = %v, want ErrAlreadyStarted", err)
	}
}
