package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/linnemanlabs/pulse/internal/signal"
	"github.com/linnemanlabs/pulse/internal/trigger"
)

func TestStore_PutAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	tr := &trigger.Trigger{ID: "tr-1", LeadID: "lead-1", Type: signal.TriggerImmediateAlert, Status: trigger.StatusCreated}
	if err := s.Put(ctx, tr); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "tr-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected trigger to be found")
	}
	if got.ID != "tr-1" {
		t.Errorf("ID = %q, want %q", got.ID, "tr-1")
	}
	if got.LeadID != "lead-1" {
		t.Errorf("LeadID = %q, want %q", got.LeadID, "lead-1")
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &trigger.Trigger{ID: "tr-3", LeadID: "lead-3", Status: trigger.StatusQueued})
	_ = s.Put(ctx, &trigger.Trigger{ID: "tr-3", LeadID: "lead-3", Status: trigger.StatusExecuted, Executed: true, ExecutionResult: "success"})

	got, ok, err := s.Get(ctx, "tr-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected trigger to be found")
	}
	if got.Status != trigger.StatusExecuted {
		t.Errorf("Status = %q, want %q", got.Status, trigger.StatusExecuted)
	}
	if got.ExecutionResult != "success" {
		t.Errorf("ExecutionResult = %q, want success", got.ExecutionResult)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &trigger.Trigger{ID: "tr-cp", LeadID: "lead-cp", Status: trigger.StatusCreated})

	first, _, _ := s.Get(ctx, "tr-cp")
	first.Status = trigger.StatusExpired

	second, _, _ := s.Get(ctx, "tr-cp")
	if second.Status != trigger.StatusCreated {
		t.Errorf("Status = %q, mutation of a returned copy leaked into the store", second.Status)
	}
}

func TestStore_ListByLead(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for i := range 5 {
		_ = s.Put(ctx, &trigger.Trigger{ID: fmt.Sprintf("tr-%d", i), LeadID: "lead-l"})
	}
	_ = s.Put(ctx, &trigger.Trigger{ID: "tr-other", LeadID: "lead-other"})

	got, err := s.ListByLead(ctx, "lead-l", 3)
	if err != nil {
		t.Fatalf("ListByLead: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Newest first.
	for i, want := range []string{"tr-4", "tr-3", "tr-2"} {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}

	all, err := s.ListByLead(ctx, "lead-l", 0)
	if err != nil {
		t.Fatalf("ListByLead: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len = %d, want 5 with no limit", len(all))
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	for i := range n {
		id := fmt.Sprintf("id-%d", i)

		go func() {
			defer wg.Done()
			_ = s.Put(ctx, &trigger.Trigger{ID: id, LeadID: "lead-c", Status: trigger.StatusCreated})
		}()

		go func() {
			defer wg.Done()
			_, _, _ = s.Get(ctx, id)
			_, _ = s.ListByLead(ctx, "lead-c", 10)
		}()
	}

	wg.Wait()
}
