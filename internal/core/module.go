package core

// ModuleID uniquely identifies a module, namespaced by dots
// (e.g., "driver.mock", "datastore.sqlite", "admin.http").
type ModuleID string

// Module is the minimal interface every module implements. All other
// behavior is opt-in via the lifecycle interfaces.
type Module interface {
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique, dot-namespaced module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}
