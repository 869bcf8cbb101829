package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

func TestClockScheduler_FireAndCancel(t *testing.T) {
	var mu sync.Mutex
	fired := make(map[timerKey]int)
	done := make(chan struct{}, 4)

	s := NewClockScheduler(func(kind TimerKind, cap capability.Capability) {
		mu.Lock()
		fired[timerKey{kind: kind, cap: cap}]++
		mu.Unlock()
		done <- struct{}{}
	})
	defer s.CancelAll()

	s.Schedule(TimerUnthrottle, capability.LowLatency, 10*time.Millisecond)
	s.Schedule(TimerUserResponse, capability.LowLatency, time.Hour)
	s.Cancel(TimerUserResponse, capability.LowLatency)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled timer never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if fired[timerKey{kind: TimerUnthrottle, cap: capability.LowLatency}] != 1 {
		t.Error("un-throttle timer should have fired exactly once")
	}
	if fired[timerKey{kind: TimerUserResponse, cap: capability.LowLatency}] != 0 {
		t.Error("canceled timer must not fire")
	}
}

func TestClockScheduler_RescheduleReplaces(t *testing.T) {
	var mu sync.Mutex
	count := 0
	done := make(chan struct{}, 2)

	s := NewClockScheduler(func(TimerKind, capability.Capability) {
		mu.Lock()
		count++
		mu.Unlock()
		done <- struct{}{}
	})
	defer s.CancelAll()

	s.Schedule(TimerUnthrottle, capability.LowLatency, time.Hour)
	s.Schedule(TimerUnthrottle, capability.LowLatency, 10*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled timer never fired")
	}

	// Give a replaced timer a moment to misfire if the old one survived.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("timer fired %d times, expected 1", count)
	}
}
