package mock

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/goldstone-mgmt/southd/internal/driver"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// device is one simulated hardware entity. Leaves evolve deterministically:
// a write echoes the applied config into observable state and moves
// oper-status according to the entity family and admin-status.
type device struct {
	ref transponder.Ref

	mu        sync.Mutex
	leaves    map[string]string
	readErrs  int // remaining reads that fail; -1 fails until cleared
	writeErr  error
	readCount int
}

func newDevice(ref transponder.Ref, spec ModuleSpec) *device {
	leaves := map[string]string{
		transponder.LeafOperStatus: string(transponder.ModuleOperUnknown),
	}
	if ref.Kind == transponder.KindModule {
		leaves[transponder.LeafOperStatus] = string(transponder.ModuleOperInitialize)
		if spec.Vendor != "" {
			leaves["vendor-name"] = spec.Vendor
		}
		if spec.Model != "" {
			leaves["vendor-part-number"] = spec.Model
		}
	}
	return &device{ref: ref, leaves: leaves}
}

func (d *device) read() (transponder.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.readCount++
	if d.readErrs != 0 {
		if d.readErrs > 0 {
			d.readErrs--
		}
		return transponder.Snapshot{}, driver.ErrUnavailable
	}

	cp := make(map[string]string, len(d.leaves))
	maps.Copy(cp, d.leaves)
	return transponder.Snapshot{Ref: d.ref, Leaves: cp}, nil
}

func (d *device) write(delta transponder.ConfigDelta) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writeErr != nil {
		return d.writeErr
	}

	// One invalid leaf rejects the whole delta before any state changes.
	for leaf, v := range delta.Set {
		if err := transponder.ValidateConfigLeaf(d.ref.Kind, leaf, v); err != nil {
			return fmt.Errorf("%w: %s", driver.ErrInvalidParameter, err)
		}
	}
	for _, leaf := range delta.Unset {
		if !transponder.WritableConfigLeaf(leaf) {
			return fmt.Errorf("%w: %s is state-only", driver.ErrInvalidParameter, leaf)
		}
	}

	for leaf, v := range delta.Set {
		d.leaves[leaf] = v
	}
	for _, leaf := range delta.Unset {
		if def, ok := transponder.LeafDefault(d.ref.Kind, leaf); ok {
			d.leaves[leaf] = def
		} else {
			delete(d.leaves, leaf)
		}
	}
	d.leaves[transponder.LeafOperStatus] = d.operStatus()
	return nil
}

// operStatus derives the post-write operational state. Writes are
// idempotent: the same config always lands on the same state.
func (d *device) operStatus() string {
	down := d.leaves[transponder.LeafAdminStatus] == string(transponder.AdminDown)
	switch d.ref.Kind {
	case transponder.KindModule:
		if down {
			return string(transponder.ModuleOperInitialize)
		}
		return string(transponder.ModuleOperReady)
	case transponder.KindNetworkInterface:
		if down {
			return string(transponder.NetOperLowPower)
		}
		return string(transponder.NetOperReady)
	default:
		if down {
			return "down"
		}
		return "up"
	}
}

// binding implements driver.Binding over one device.
type binding struct {
	dev     *device
	latency time.Duration
	closed  chan struct{}
	once    sync.Once
}

func (b *binding) Read(ctx context.Context) (transponder.Snapshot, error) {
	if err := b.wait(ctx); err != nil {
		return transponder.Snapshot{}, err
	}
	return b.dev.read()
}

func (b *binding) Write(ctx context.Context, delta transponder.ConfigDelta) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	return b.dev.write(delta)
}

func (b *binding) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// wait simulates hardware access latency, honoring cancellation.
func (b *binding) wait(ctx context.Context) error {
	select {
	case <-b.closed:
		return driver.ErrUnavailable
	default:
	}

	if b.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return driver.ErrTimeout
	case <-b.closed:
		return driver.ErrUnavailable
	case <-timer.C:
		return nil
	}
}
