package datastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

func TestMemstoreWatch_DeliversInOrder(t *testing.T) {
	t.Parallel()

	m := NewMemstore()
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ref := transponder.ModuleRef("piu1")
	m.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}})
	m.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"admin-status": "down"}})
	m.DeleteConfig(ref)

	wantOps := []Op{OpCreate, OpModify, OpDelete}
	for i, want := range wantOps {
		select {
		case evt := <-ch:
			if evt.Op != want {
				t.Errorf("event[%d].Op = %s, want %s", i, evt.Op, want)
			}
			if evt.Ref != ref {
				t.Errorf("event[%d].Ref = %v, want %v", i, evt.Ref, ref)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestMemstoreConfig_ReflectsWrites(t *testing.T) {
	t.Parallel()

	m := NewMemstore()
	defer m.Close()

	ref := transponder.NetworkInterfaceRef("piu1", "0")
	m.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"fec-type": "ofec"}})
	m.SetConfig(ref, transponder.ConfigDelta{Set: map[string]string{"loopback-type": "deep"}})

	entries, err := m.Config(context.Background())
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	cfg := entries[0].Config
	if cfg["fec-type"] != "ofec" || cfg["loopback-type"] != "deep" {
		t.Errorf("config = %v", cfg)
	}
}

func TestMemstoreCommitState_FailureInjection(t *testing.T) {
	t.Parallel()

	m := NewMemstore()
	defer m.Close()

	ref := transponder.ModuleRef("piu1")
	m.FailCommits(1)

	err := m.CommitState(context.Background(), ref, map[string]string{"oper-status": "ready"})
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("err = %v, want ErrCommitFailed", err)
	}
	if _, ok := m.State(ref); ok {
		t.Error("state present after failed commit")
	}

	if err := m.CommitState(context.Background(), ref, map[string]string{"oper-status": "ready"}); err != nil {
		t.Fatalf("second CommitState: %v", err)
	}
	got, ok := m.State(ref)
	if !ok || got["oper-status"] != "ready" {
		t.Errorf("state = %v, want oper-status=ready", got)
	}
}

func TestMemstoreClose_RejectsAndClosesWatchers(t *testing.T) {
	t.Parallel()

	m := NewMemstore()
	ch, err := m.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	m.Close()

	if _, ok := <-ch; ok {
		t.Error("watcher channel not closed")
	}
	if _, err := m.Config(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Config after close: err = %v, want ErrClosed", err)
	}
}
