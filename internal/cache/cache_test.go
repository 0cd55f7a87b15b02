package cache

import (
	"testing"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

func snap(ref transponder.Ref, leaves map[string]string) transponder.Snapshot {
	return transponder.NewSnapshot(ref, leaves)
}

func TestCacheUpdate_VersionIncrements(t *testing.T) {
	t.Parallel()

	c := New()
	ref := transponder.ModuleRef("piu1")

	e1 := c.Update(ref, snap(ref, map[string]string{"oper-status": "initialize"}))
	if e1.Version != 1 {
		t.Errorf("first Version = %d, want 1", e1.Version)
	}

	e2 := c.Update(ref, snap(ref, map[string]string{"oper-status": "ready"}))
	if e2.Version != 2 {
		t.Errorf("second Version = %d, want 2", e2.Version)
	}

	got, ok := c.Get(ref)
	if !ok {
		t.Fatal("Get: entry missing")
	}
	if got.Snapshot.Leaves["oper-status"] != "ready" {
		t.Errorf("oper-status = %q, want %q", got.Snapshot.Leaves["oper-status"], "ready")
	}
}

func TestCacheUpdate_ReplacesWhole(t *testing.T) {
	t.Parallel()

	c := New()
	ref := transponder.ModuleRef("piu1")

	c.Update(ref, snap(ref, map[string]string{"oper-status": "ready", "temp": "36.5"}))
	c.Update(ref, snap(ref, map[string]string{"oper-status": "ready"}))

	got, _ := c.Get(ref)
	if _, ok := got.Snapshot.Leaves["temp"]; ok {
		t.Error("stale leaf survived a replacing update")
	}
}

func TestCacheDrop(t *testing.T) {
	t.Parallel()

	c := New()
	ref := transponder.ModuleRef("piu1")
	c.Update(ref, snap(ref, map[string]string{"oper-status": "ready"}))
	c.Drop(ref)

	if _, ok := c.Get(ref); ok {
		t.Error("entry present after Drop")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestDiff_Deterministic(t *testing.T) {
	t.Parallel()

	ref := transponder.NetworkInterfaceRef("piu1", "0")
	old := snap(ref, map[string]string{
		"oper-status":          "tx-turn-on",
		"current-output-power": "-2.1",
		"fec-type":             "ofec",
	})
	new := snap(ref, map[string]string{
		"oper-status":          "ready",
		"current-output-power": "-1.0",
		"fec-type":             "ofec",
		"tx-laser-freq":        "193500000000000",
	})

	first := Diff(old, new)
	second := Diff(old, new)

	want := []Change{
		{Leaf: "current-output-power", Old: "-2.1", New: "-1.0"},
		{Leaf: "oper-status", Old: "tx-turn-on", New: "ready"},
		{Leaf: "tx-laser-freq", Old: "", New: "193500000000000"},
	}
	if len(first) != len(want) {
		t.Fatalf("Diff returned %d changes, want %d: %v", len(first), len(want), first)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("change[%d] = %+v, want %+v", i, first[i], want[i])
		}
		if first[i] != second[i] {
			t.Errorf("Diff not deterministic at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDiff_EqualSnapshotsEmpty(t *testing.T) {
	t.Parallel()

	ref := transponder.ModuleRef("piu1")
	a := snap(ref, map[string]string{"oper-status": "ready", "temp": "36.5"})
	b := snap(ref, map[string]string{"oper-status": "ready", "temp": "36.5"})

	if got := Diff(a, b); len(got) != 0 {
		t.Errorf("Diff of equal snapshots = %v, want empty", got)
	}
}

func TestDiff_RemovedLeaf(t *testing.T) {
	t.Parallel()

	ref := transponder.ModuleRef("piu1")
	old := snap(ref, map[string]string{"alarm-info": "los", "oper-status": "ready"})
	new := snap(ref, map[string]string{"oper-status": "ready"})

	got := Diff(old, new)
	if len(got) != 1 || got[0].Leaf != "alarm-info" || got[0].New != "" {
		t.Errorf("Diff = %v, want removed alarm-info", got)
	}
	if keys := Keys(got); len(keys) != 1 || keys[0] != "alarm-info" {
		t.Errorf("Keys = %v, want [alarm-info]", keys)
	}
}
