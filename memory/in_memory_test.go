package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/encounter/core"
)

// Interface compliance (compile-time assertions)
var _ core.MemoryStore = (*InMemoryStore)(nil)

func record(i int, ids ...string) core.ConversationRecord {
	return core.NewConversationRecord(ids, []core.DialogueTurn{
		{SpeakerID: ids[0], Text: fmt.Sprintf("turn %d", i)},
	}, time.Unix(int64(i), 0), 0)
}

func TestInMemoryStore_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	recs, err := svc.Recent(ctx, core.NewPairKey("a", "b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty memory, got %#v", recs)
	}

	if err := svc.Append(ctx, record(1, "a", "b")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := svc.Append(ctx, record(2, "b", "a")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	recs, _ = svc.Recent(ctx, core.NewPairKey("b", "a"))
	if len(recs) != 2 || recs[0].Turns[0].Text != "turn 1" || recs[1].Turns[0].Text != "turn 2" {
		t.Fatalf("unexpected records: %#v", recs)
	}

	// mutation safety (returned slice is a copy)
	recs[0].Turns[0].Text = "changed"
	again, _ := svc.Recent(ctx, core.NewPairKey("a", "b"))
	if again[0].Turns[0].Text != "turn 1" {
		t.Fatalf("expected copy isolation, got %q", again[0].Turns[0].Text)
	}
}

func TestInMemoryStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore(func(o *Options) { o.Cap = 3 })
	for i := 0; i < 5; i++ {
		_ = svc.Append(ctx, record(i, "a", "b"))
	}
	_ = svc.Append(ctx, record(99, "a", "c"))

	recs, _ := svc.Recent(ctx, core.NewPairKey("a", "b"))
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Turns[0].Text != "turn 2" || recs[2].Turns[0].Text != "turn 4" {
		t.Fatalf("unexpected eviction order: %#v", recs)
	}
	if keys := svc.Keys(); len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}

	svc.Delete(core.NewPairKey("a", "c"))
	if keys := svc.Keys(); len(keys) != 1 {
		t.Fatalf("expected 1 key after delete, got %v", keys)
	}
}

func TestInMemoryStore_DefaultCap(t *testing.T) {
	if got := NewInMemoryStore(func(o *Options) { o.Cap = -1 }).Cap(); got != core.DefaultMemoryCap {
		t.Fatalf("expected default cap, got %d", got)
	}
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = svc.Append(ctx, record(i, "a", "b"))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = svc.Recent(ctx, core.NewPairKey("a", "b"))
		}()
	}
	wg.Wait()
	recs, _ := svc.Recent(ctx, core.NewPairKey("a", "b"))
	if len(recs) != core.DefaultMemoryCap {
		t.Fatalf("expected %d records, got %d", core.DefaultMemoryCap, len(recs))
	}
}
