package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint(1, TypeListingLiked, "hello")
	if a != Fingerprint(1, TypeListingLiked, "hello") {
		t.Fatalf("fingerprint not stable")
	}
	others := []string{
		Fingerprint(2, TypeListingLiked, "hello"),
		Fingerprint(1, TypeListingViewed, "hello"),
		Fingerprint(1, TypeListingLiked, "hello!"),
	}
	for _, o := range others {
		if o == a {
			t.Fatalf("fingerprint collision for different input")
		}
	}
}

func TestLedgerReserveWithinWindow(t *testing.T) {
	now := time.Now()
	l := NewLedger(5 * time.Minute)
	l.now = func() time.Time { return now }

	fp := Fingerprint(7, TypeNewMessage, "hi")
	if !l.Reserve(fp) {
		t.Fatalf("first reserve rejected")
	}
	if l.Reserve(fp) {
		t.Fatalf("duplicate within window accepted")
	}
	if !l.Seen(fp) {
		t.Fatalf("Seen = false for live entry")
	}

	now = now.Add(5*time.Minute + time.Second)
	if l.Seen(fp) {
		t.Fatalf("entry outside window still seen")
	}
	if !l.Reserve(fp) {
		t.Fatalf("reserve after window rejected")
	}
}

func TestLedgerRelease(t *testing.T) {
	l := NewLedger(time.Minute)
	fp := Fingerprint(1, TypeNewMessage, "x")
	l.Reserve(fp)
	l.Release(fp)
	if !l.Reserve(fp) {
		t.Fatalf("reserve after release rejected")
	}
}

func TestLedgerConcurrentReserve(t *testing.T) {
	l := NewLedger(time.Minute)
	fp := Fingerprint(3, TypeListingPublished, "same")

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Reserve(fp) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if winners.Load() != 1 {
		t.Fatalf("winners = %d, want 1", winners.Load())
	}
}

func TestLedgerPurge(t *testing.T) {
	now := time.Now()
	l := NewLedger(5 * time.Minute)
	l.now = func() time.Time { return now.Add(-2 * time.Hour) }
	l.Reserve("old")
	l.now = func() time.Time { return now }
	l.Reserve("fresh")

	if purged := l.Purge(time.Hour); purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
}
