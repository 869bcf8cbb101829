package orchestrator

import (
	"sync"
	"time"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

// TimerKind identifies the delayed events the orchestrator schedules.
type TimerKind int

const (
	TimerUnthrottle TimerKind = iota
	TimerUserResponse
	TimerNetworkSetup
)

func (k TimerKind) String() string {
	switch k {
	case TimerUnthrottle:
		return "unthrottle"
	case TimerUserResponse:
		return "user_response"
	case TimerNetworkSetup:
		return "network_setup"
	default:
		return "unknown"
	}
}

// Scheduler schedules delayed events keyed by (kind, capability) and supports
// cancellation by the same key. A timer that fires concurrently with its
// cancellation may still be delivered; handlers tolerate late fires for
// capabilities no longer tracked.
type Scheduler interface {
	Schedule(kind TimerKind, cap capability.Capability, d time.Duration)
	Cancel(kind TimerKind, cap capability.Capability)
	CancelAll()
}

type timerKey struct {
	kind TimerKind
	cap  capability.Capability
}

// clockScheduler is the wall-clock Scheduler. Fired timers are delivered
// through the fire callback, which posts them back onto the worker queue.
type clockScheduler struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
	fire   func(kind TimerKind, cap capability.Capability)
}

// NewClockScheduler creates a Scheduler backed by time.AfterFunc.
func NewClockScheduler(fire func(kind TimerKind, cap capability.Capability)) Scheduler {
	return &clockScheduler{
		timers: make(map[timerKey]*time.Timer),
		fire:   fire,
	}
}

func (s *clockScheduler) Schedule(kind TimerKind, cap capability.Capability, d time.Duration) {
	key := timerKey{kind: kind, cap: cap}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.timers[key]; exists {
		old.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		s.fire(kind, cap)
	})
}

func (s *clockScheduler) Cancel(kind TimerKind, cap capability.Capability) {
	key := timerKey{kind: kind, cap: cap}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, exists := s.timers[key]; exists {
		t.Stop()
		delete(s.timers, key)
	}
}

func (s *clockScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
