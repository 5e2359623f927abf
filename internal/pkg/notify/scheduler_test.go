package notify

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestSchedulerFires(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	s.Arm(KindConfirm, "u1:n1", 10*time.Millisecond, func() { fired.Add(1) })
	if !s.Armed(KindConfirm, "u1:n1") {
		t.Fatalf("timer should be armed")
	}

	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })
	if s.Armed(KindConfirm, "u1:n1") {
		t.Fatalf("fired timer still armed")
	}
}

func TestSchedulerRearmReplaces(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var first, second atomic.Int32
	s.Arm(KindBatch, "k", 20*time.Millisecond, func() { first.Add(1) })
	s.Arm(KindBatch, "k", 40*time.Millisecond, func() { second.Add(1) })

	waitFor(t, time.Second, func() bool { return second.Load() == 1 })
	time.Sleep(30 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatalf("replaced timer fired")
	}
	if s.Pending(KindBatch) != 0 {
		t.Fatalf("pending = %d, want 0", s.Pending(KindBatch))
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	s.Arm(KindConfirm, "k", 20*time.Millisecond, func() { fired.Add(1) })
	if !s.Cancel(KindConfirm, "k") {
		t.Fatalf("cancel of armed timer returned false")
	}
	if s.Cancel(KindConfirm, "k") {
		t.Fatalf("second cancel returned true")
	}
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled timer fired")
	}
}

func TestSchedulerKindsAreIndependent(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	s.Arm(KindBatch, "same", time.Minute, func() {})
	s.Arm(KindConfirm, "same", time.Minute, func() {})
	if s.Pending(KindBatch) != 1 || s.Pending(KindConfirm) != 1 {
		t.Fatalf("pending batch=%d confirm=%d", s.Pending(KindBatch), s.Pending(KindConfirm))
	}
	s.Cancel(KindBatch, "same")
	if !s.Armed(KindConfirm, "same") {
		t.Fatalf("cancelling one kind affected the other")
	}
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler()
	var fired atomic.Int32
	s.Arm(KindBatch, "a", 10*time.Millisecond, func() { fired.Add(1) })
	s.Stop()
	s.Arm(KindBatch, "b", time.Millisecond, func() { fired.Add(1) })
	time.Sleep(40 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("timers fired after Stop")
	}
}
