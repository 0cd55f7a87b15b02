// Package mock implements a simulated transponder driver. It serves a
// configurable inventory of modules and interfaces with deterministic
// behavior, used for development, demos, and integration tests where no
// real hardware is attached.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/goldstone-mgmt/southd/internal/core"
	"github.com/goldstone-mgmt/southd/internal/driver"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ driver.Provider   = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module is the mock driver module. It implements driver.Provider for
// every entity in its inventory and declines the rest, so it composes
// with real drivers behind the selector.
type Module struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	devices map[transponder.Ref]*device
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "driver.mock",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mock: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The inventory is expanded into
// one simulated device per entity.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.loadInventory(); err != nil {
		return err
	}

	m.devices = make(map[transponder.Ref]*device)
	for _, spec := range m.config.Modules {
		m.devices[transponder.ModuleRef(spec.Name)] = newDevice(transponder.ModuleRef(spec.Name), spec)
		for _, name := range spec.HostInterfaces {
			ref := transponder.HostInterfaceRef(spec.Name, name)
			m.devices[ref] = newDevice(ref, spec)
		}
		for _, name := range spec.NetworkInterfaces {
			ref := transponder.NetworkInterfaceRef(spec.Name, name)
			m.devices[ref] = newDevice(ref, spec)
		}
	}

	ctx.RegisterService("driver.mock", driver.Provider(m))

	m.logger.Info("mock driver provisioned",
		"modules", len(m.config.Modules),
		"entities", len(m.devices),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Bind implements driver.Provider. Entities outside the inventory fall
// through to the next provider.
func (m *Module) Bind(_ context.Context, ref transponder.Ref) (driver.Binding, error) {
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", driver.ErrInvalidParameter, err)
	}

	m.mu.Lock()
	dev, ok := m.devices[ref]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s not in mock inventory", driver.ErrUnsupported, ref)
	}

	return &binding{dev: dev, latency: m.config.Latency, closed: make(chan struct{})}, nil
}

// SetLeaf overwrites one observable leaf on a simulated device, modeling
// hardware-side drift between polls.
func (m *Module) SetLeaf(ref transponder.Ref, leaf, value string) bool {
	m.mu.Lock()
	dev, ok := m.devices[ref]
	m.mu.Unlock()
	if !ok {
		return false
	}
	dev.mu.Lock()
	dev.leaves[leaf] = value
	dev.mu.Unlock()
	return true
}

// FailReads makes the next n reads of ref fail with ErrUnavailable;
// n < 0 fails until cleared with FailReads(ref, 0).
func (m *Module) FailReads(ref transponder.Ref, n int) bool {
	m.mu.Lock()
	dev, ok := m.devices[ref]
	m.mu.Unlock()
	if !ok {
		return false
	}
	dev.mu.Lock()
	dev.readErrs = n
	dev.mu.Unlock()
	return true
}

// FailWrites makes writes to ref fail with err until cleared with nil.
func (m *Module) FailWrites(ref transponder.Ref, err error) bool {
	m.mu.Lock()
	dev, ok := m.devices[ref]
	m.mu.Unlock()
	if !ok {
		return false
	}
	dev.mu.Lock()
	dev.writeErr = err
	dev.mu.Unlock()
	return true
}
