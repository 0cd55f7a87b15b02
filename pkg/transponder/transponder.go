// Package transponder defines the data model shared by the southbound
// reconciliation core and its collaborators: entity references, the
// enumerations of the goldstone-transponder YANG module, state snapshots,
// config deltas, and notification records.
//
// All enumeration values and leaf names are preserved verbatim from the
// YANG module. Northbound consumers match on the exact strings, so these
// constants are the public data contract of the daemon.
package transponder

import "fmt"

// EntityKind identifies the family an entity belongs to.
type EntityKind string

// Entity families, matching the YANG list names.
const (
	KindModule           EntityKind = "module"
	KindHostInterface    EntityKind = "host-interface"
	KindNetworkInterface EntityKind = "network-interface"
)

// Ref identifies a single entity. For KindModule, Name equals Module.
// Refs are comparable and used as map keys throughout the core.
type Ref struct {
	Module string
	Kind   EntityKind
	Name   string
}

// ModuleRef returns a Ref for a transponder module.
func ModuleRef(name string) Ref {
	return Ref{Module: name, Kind: KindModule, Name: name}
}

// HostInterfaceRef returns a Ref for a host interface of the given module.
func HostInterfaceRef(module, name string) Ref {
	return Ref{Module: module, Kind: KindHostInterface, Name: name}
}

// NetworkInterfaceRef returns a Ref for a network interface of the given module.
func NetworkInterfaceRef(module, name string) Ref {
	return Ref{Module: module, Kind: KindNetworkInterface, Name: name}
}

// Parent returns the module Ref owning this entity. For a module it
// returns the Ref itself.
func (r Ref) Parent() Ref {
	if r.Kind == KindModule {
		return r
	}
	return ModuleRef(r.Module)
}

// String renders the Ref in path form, e.g.
// "module[piu1]/network-interface[0]".
func (r Ref) String() string {
	if r.Kind == KindModule {
		return fmt.Sprintf("module[%s]", r.Name)
	}
	return fmt.Sprintf("module[%s]/%s[%s]", r.Module, r.Kind, r.Name)
}

// Validate reports whether the Ref is structurally complete.
func (r Ref) Validate() error {
	switch r.Kind {
	case KindModule:
		if r.Name == "" || r.Module != r.Name {
			return fmt.Errorf("transponder: malformed module ref %q", r.Name)
		}
	case KindHostInterface, KindNetworkInterface:
		if r.Module == "" || r.Name == "" {
			return fmt.Errorf("transponder: malformed %s ref %q/%q", r.Kind, r.Module, r.Name)
		}
	default:
		return fmt.Errorf("transponder: unknown entity kind %q", r.Kind)
	}
	return nil
}
