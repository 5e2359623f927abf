package notify

import (
	"sync"
	"testing"
	"time"
)

type flushRecord struct {
	userID uint64
	typ    Type
	items  []string
}

type flushRecorder struct {
	mu      sync.Mutex
	flushes []flushRecord
}

func (r *flushRecorder) flush(userID uint64, t Type, items []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, flushRecord{userID: userID, typ: t, items: items})
}

func (r *flushRecorder) snapshot() []flushRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flushRecord(nil), r.flushes...)
}

func TestBatcherCoalescesWithinWindow(t *testing.T) {
	sched := NewScheduler()
	defer sched.Stop()
	rec := &flushRecorder{}
	b := NewBatcher[string](40*time.Millisecond, sched, rec.flush)

	for _, id := range []string{"a", "b", "c"} {
		b.Add(1, TypeListingViewed, id)
		time.Sleep(10 * time.Millisecond)
	}
	b.Add(2, TypeListingViewed, "other-user")

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 2 })

	for _, f := range rec.snapshot() {
		switch f.userID {
		case 1:
			if len(f.items) != 3 || f.items[0] != "a" || f.items[2] != "c" {
				t.Errorf("user 1 items = %v", f.items)
			}
		case 2:
			if len(f.items) != 1 {
				t.Errorf("user 2 items = %v", f.items)
			}
		default:
			t.Errorf("unexpected flush for user %d", f.userID)
		}
	}
	if b.Pending() != 0 {
		t.Fatalf("pending = %d after flush", b.Pending())
	}
}

func TestBatcherSeparatesTypes(t *testing.T) {
	sched := NewScheduler()
	defer sched.Stop()
	rec := &flushRecorder{}
	b := NewBatcher[string](20*time.Millisecond, sched, rec.flush)

	b.Add(1, TypeListingViewed, "v")
	b.Add(1, TypeListingLiked, "l")
	if b.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", b.Pending())
	}
	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 2 })
}

func TestBatcherPurge(t *testing.T) {
	sched := NewScheduler()
	defer sched.Stop()
	rec := &flushRecorder{}
	b := NewBatcher[string](time.Hour, sched, rec.flush)

	now := time.Now()
	b.now = func() time.Time { return now.Add(-2 * time.Hour) }
	b.Add(1, TypeProfileViewed, "stale")
	b.now = func() time.Time { return now }
	b.Add(2, TypeProfileViewed, "fresh")

	if purged := b.Purge(time.Hour); purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if b.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", b.Pending())
	}
	if sched.Pending(KindBatch) != 1 {
		t.Fatalf("purged group kept its timer")
	}
}
