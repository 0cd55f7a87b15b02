package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

func mustPop(t *testing.T, q *Queue) Item {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	return item
}

func TestQueueCoalesce_LatestWins(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ref := transponder.HostInterfaceRef("piu1", "0")

	for _, loopback := range []string{"none", "shallow", "deep"} {
		q.Push(datastore.ChangeEvent{
			Ref:   ref,
			Op:    datastore.OpModify,
			Delta: transponder.ConfigDelta{Set: map[string]string{"loopback-type": loopback}},
		})
	}

	item := mustPop(t, q)
	if got := item.Delta.Set["loopback-type"]; got != "deep" {
		t.Errorf("loopback-type = %q, want %q", got, "deep")
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0 (three pushes coalesced into one item)", q.Len())
	}
	if q.CoalescedTotal() != 2 {
		t.Errorf("CoalescedTotal = %d, want 2", q.CoalescedTotal())
	}
}

func TestQueueCoalesce_DeleteAbsorbsPending(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ref := transponder.ModuleRef("piu1")

	q.Push(datastore.ChangeEvent{
		Ref:   ref,
		Op:    datastore.OpModify,
		Delta: transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}},
	})
	q.Push(datastore.ChangeEvent{Ref: ref, Op: datastore.OpDelete})

	item := mustPop(t, q)
	if item.Op != datastore.OpDelete {
		t.Errorf("Op = %s, want delete", item.Op)
	}
	if !item.Delta.Empty() {
		t.Errorf("delete item carries delta %v", item.Delta)
	}
}

func TestQueueCoalesce_CreateAfterDeleteStaysSeparate(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ref := transponder.ModuleRef("piu1")

	q.Push(datastore.ChangeEvent{Ref: ref, Op: datastore.OpDelete})
	q.Push(datastore.ChangeEvent{
		Ref:   ref,
		Op:    datastore.OpCreate,
		Delta: transponder.ConfigDelta{Set: map[string]string{"admin-status": "up"}},
	})

	first := mustPop(t, q)
	second := mustPop(t, q)
	if first.Op != datastore.OpDelete || second.Op != datastore.OpCreate {
		t.Errorf("ops = %s, %s, want delete then create", first.Op, second.Op)
	}
}

func TestQueueFIFO_AcrossEntities(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	refs := []transponder.Ref{
		transponder.ModuleRef("piu1"),
		transponder.ModuleRef("piu2"),
		transponder.ModuleRef("piu3"),
	}
	for _, ref := range refs {
		q.Push(datastore.ChangeEvent{Ref: ref, Op: datastore.OpCreate})
	}

	for i, want := range refs {
		if got := mustPop(t, q); got.Ref != want {
			t.Errorf("item[%d].Ref = %v, want %v", i, got.Ref, want)
		}
	}
}

func TestQueuePop_BlocksUntilPush(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ref := transponder.ModuleRef("piu1")

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(datastore.ChangeEvent{Ref: ref, Op: datastore.OpCreate})
	}()

	item := mustPop(t, q)
	if item.Ref != ref {
		t.Errorf("Ref = %v, want %v", item.Ref, ref)
	}
}

func TestQueuePop_ContextCanceled(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Pop(ctx); err == nil {
		t.Error("Pop on canceled context: expected error")
	}
}
