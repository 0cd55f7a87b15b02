package reconciler

import (
	"context"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/goldstone-mgmt/southd/internal/driver"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// fakeDriver simulates one hardware family for tests. Writes echo the
// applied config into state and flip oper-status to ready; reads return a
// complete copy of the entity's leaves. It also asserts the per-entity
// serialization contract: overlapping hardware calls for the same entity
// fail the test.
type fakeDriver struct {
	t *testing.T

	mu        sync.Mutex
	leaves    map[transponder.Ref]map[string]string
	inflight  map[transponder.Ref]int
	reads     map[transponder.Ref]int
	writes    map[transponder.Ref][]transponder.ConfigDelta
	closes    map[transponder.Ref]int
	readErrs  map[transponder.Ref]int // remaining reads that fail
	writeErrs map[transponder.Ref]error
	readErr   error
	bindErr   error
}

func newFakeDriver(t *testing.T) *fakeDriver {
	return &fakeDriver{
		t:         t,
		leaves:    make(map[transponder.Ref]map[string]string),
		inflight:  make(map[transponder.Ref]int),
		reads:     make(map[transponder.Ref]int),
		writes:    make(map[transponder.Ref][]transponder.ConfigDelta),
		closes:    make(map[transponder.Ref]int),
		readErrs:  make(map[transponder.Ref]int),
		writeErrs: make(map[transponder.Ref]error),
		readErr:   driver.ErrUnavailable,
	}
}

func (d *fakeDriver) Bind(_ context.Context, ref transponder.Ref) (driver.Binding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bindErr != nil {
		return nil, d.bindErr
	}
	if _, ok := d.leaves[ref]; !ok {
		d.leaves[ref] = map[string]string{
			"oper-status": "unknown",
		}
	}
	return &fakeDriverBinding{d: d, ref: ref}, nil
}

func (d *fakeDriver) enter(ref transponder.Ref) {
	d.mu.Lock()
	d.inflight[ref]++
	if d.inflight[ref] > 1 {
		d.t.Errorf("interleaved hardware calls for %s", ref)
	}
	d.mu.Unlock()
}

func (d *fakeDriver) leave(ref transponder.Ref) {
	d.mu.Lock()
	d.inflight[ref]--
	d.mu.Unlock()
}

func (d *fakeDriver) setLeaf(ref transponder.Ref, leaf, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaves[ref][leaf] = value
}

func (d *fakeDriver) failReads(ref transponder.Ref, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErrs[ref] = n
}

func (d *fakeDriver) failWrite(ref transponder.Ref, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErrs[ref] = err
}

func (d *fakeDriver) readCount(ref transponder.Ref) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads[ref]
}

func (d *fakeDriver) writeLog(ref transponder.Ref) []transponder.ConfigDelta {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]transponder.ConfigDelta(nil), d.writes[ref]...)
}

func (d *fakeDriver) closeCount(ref transponder.Ref) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes[ref]
}

type fakeDriverBinding struct {
	d   *fakeDriver
	ref transponder.Ref
}

func (b *fakeDriverBinding) Read(context.Context) (transponder.Snapshot, error) {
	b.d.enter(b.ref)
	defer b.d.leave(b.ref)

	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.d.reads[b.ref]++
	if n := b.d.readErrs[b.ref]; n != 0 {
		if n > 0 {
			b.d.readErrs[b.ref] = n - 1
		}
		return transponder.Snapshot{}, b.d.readErr
	}
	cp := make(map[string]string, len(b.d.leaves[b.ref]))
	maps.Copy(cp, b.d.leaves[b.ref])
	return transponder.Snapshot{Ref: b.ref, Leaves: cp}, nil
}

func (b *fakeDriverBinding) Write(_ context.Context, delta transponder.ConfigDelta) error {
	b.d.enter(b.ref)
	defer b.d.leave(b.ref)

	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.d.writes[b.ref] = append(b.d.writes[b.ref], delta)
	if err := b.d.writeErrs[b.ref]; err != nil {
		b.d.writeErrs[b.ref] = nil
		return err
	}
	// Idempotent echo: config leaves become observable state, the
	// entity comes up.
	for leaf, v := range delta.Set {
		b.d.leaves[b.ref][leaf] = v
	}
	for _, leaf := range delta.Unset {
		delete(b.d.leaves[b.ref], leaf)
	}
	b.d.leaves[b.ref]["oper-status"] = "ready"
	return nil
}

func (b *fakeDriverBinding) Close() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.d.closes[b.ref]++
	return nil
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
