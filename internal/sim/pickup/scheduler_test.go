package pickup

import (
	"testing"
	"time"
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RefreshEvery:  5 * time.Second,
		ClearEvery:    90 * time.Second,
		PerfEvery:     10 * time.Second,
		MinInterval:   100 * time.Millisecond,
		MaxInterval:   10 * time.Second,
		LoadThreshold: 150,
	}
}

func countScans(s *Scheduler, d, step time.Duration, cacheLen int) int {
	n := 0
	for ; d > 0; d -= step {
		if s.Advance(step, cacheLen).Scan {
			n++
		}
	}
	return n
}

func TestScheduler_ScansAtBaseInterval(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), 2*time.Second)
	if got := countScans(s, 9*time.Second, 100*time.Millisecond, 0); got != 4 {
		t.Fatalf("scans got=%d want=4", got)
	}
}

func TestScheduler_LoadDoublesInterval(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), 2*time.Second)
	countScans(s, 10*time.Second, 100*time.Millisecond, 200)
	if got := s.Interval(); got != 4*time.Second {
		t.Fatalf("interval got=%v want=4s", got)
	}
	countScans(s, 10*time.Second, 100*time.Millisecond, 10)
	if got := s.Interval(); got != 2*time.Second {
		t.Fatalf("interval got=%v want=2s", got)
	}
}

func TestScheduler_LoadCappedAtMaxButNeverBelowBase(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), 7*time.Second)
	countScans(s, 10*time.Second, time.Second, 500)
	if got := s.Interval(); got != 10*time.Second {
		t.Fatalf("interval got=%v want=10s", got)
	}

	s = NewScheduler(testSchedulerConfig(), 30*time.Second)
	countScans(s, 10*time.Second, time.Second, 500)
	if got := s.Interval(); got != 30*time.Second {
		t.Fatalf("interval got=%v want=30s", got)
	}
}

func TestScheduler_ClearDue(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), 2*time.Second)
	clears := 0
	for i := 0; i < 180; i++ {
		if s.Advance(time.Second, 0).Clear {
			clears++
		}
	}
	if clears != 2 {
		t.Fatalf("clears got=%d want=2", clears)
	}
}

func TestScheduler_ClampsSmallIntervals(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), -time.Second)
	if s.Base() != 100*time.Millisecond {
		t.Fatalf("base got=%v", s.Base())
	}
	s.SetBase(0)
	if s.Base() != 100*time.Millisecond || s.Interval() != 100*time.Millisecond {
		t.Fatalf("base=%v interval=%v", s.Base(), s.Interval())
	}
	s.SetBase(3 * time.Second)
	if s.Interval() != 3*time.Second {
		t.Fatalf("interval got=%v", s.Interval())
	}
}

func TestScheduler_TakeRefreshAndReset(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), 2*time.Second)
	s.Advance(4*time.Second, 0)
	if s.TakeRefresh() {
		t.Fatalf("refresh due early")
	}
	s.Advance(time.Second, 0)
	if !s.TakeRefresh() || s.TakeRefresh() {
		t.Fatalf("refresh should fire once")
	}

	s = NewScheduler(testSchedulerConfig(), 2*time.Second)
	s.Advance(1900*time.Millisecond, 0)
	s.ResetTimers()
	if s.Advance(100*time.Millisecond, 0).Scan {
		t.Fatalf("scan fired right after reset")
	}
}
