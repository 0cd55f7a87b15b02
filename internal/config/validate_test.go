package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goldstone-mgmt/southd/internal/core"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

func registerStub(t *testing.T, id string) {
	t.Helper()
	core.RegisterModule(&stubModule{id: id})
}

func TestValidate_Valid(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	cfg := &Config{
		Modules: map[string]yaml.Node{id: {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error should mention version: %v", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	cfg := &Config{
		Version: "99",
		Modules: map[string]yaml.Node{id: {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error should mention unsupported: %v", err)
	}
}

func TestValidate_EmptyModules(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty modules")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error should mention at least one module: %v", err)
	}
}

func TestValidate_UnknownModule(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{"unknown.mod": {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	if !strings.Contains(err.Error(), "unknown.mod") {
		t.Errorf("error should mention module ID: %v", err)
	}
}

func TestValidate_MultipleUnknown(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{
			"bad.one": {},
			"bad.two": {},
		},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown modules")
	}
	if !strings.Contains(err.Error(), "bad.one") || !strings.Contains(err.Error(), "bad.two") {
		t.Errorf("error should mention both modules: %v", err)
	}
}

func TestValidate_ReconcileBounds(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)

	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
		Reconcile: ReconcileConfig{
			BackoffInitial: time.Minute,
			BackoffMax:     time.Second,
		},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for backoff_initial > backoff_max")
	}
	if !strings.Contains(err.Error(), "backoff_initial") {
		t.Errorf("error should mention backoff_initial: %v", err)
	}
}

func TestValidate_NegativeReconcileDurations(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)

	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
		Reconcile: ReconcileConfig{
			PollInterval: -time.Second,
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative poll_interval")
	}
}

func TestValidate_ResyncSchedule(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)

	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
		Resync:  ResyncConfig{Enabled: true, Schedule: "not a cron expr"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid resync schedule")
	}
	if !strings.Contains(err.Error(), "resync.schedule") {
		t.Errorf("error should mention resync.schedule: %v", err)
	}

	cfg.Resync.Schedule = "*/30 * * * *"
	if err := Validate(cfg); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
}

func TestValidate_ResyncDisabledSkipsSchedule(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)

	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
		Resync:  ResyncConfig{Enabled: false, Schedule: "garbage"},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled resync should not validate schedule: %v", err)
	}
}
