package orchestrator

import (
	"time"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

// throttleCategory selects which configured backoff applies after a terminal
// outcome. User-driven outcomes (cancel, disabled notifications, response
// timeout) use the short backoff; entitlement-side outcomes (check failure,
// carrier error, already purchased/in progress) use the long one.
type throttleCategory int

const (
	throttleNone throttleCategory = iota
	throttleUser
	throttleEntitlement
)

func (c throttleCategory) String() string {
	switch c {
	case throttleUser:
		return "user_backoff"
	case throttleEntitlement:
		return "entitlement_backoff"
	default:
		return "none"
	}
}

func (o *Orchestrator) throttleDuration(category throttleCategory) time.Duration {
	switch category {
	case throttleUser:
		return o.cfg.Throttle.UserBackoff.AsDuration()
	case throttleEntitlement:
		return o.cfg.Throttle.EntitlementBackoff.AsDuration()
	default:
		return 0
	}
}

// throttleLocked registers a cooldown entry for the capability. Caller holds
// o.mu and arms the un-throttle timer after releasing it. A capability is in
// the throttled set if and only if such a timer is pending; returns false
// when the capability is already throttled -- a protocol violation the
// caller reports instead of rescheduling.
func (o *Orchestrator) throttleLocked(cap capability.Capability, d time.Duration) (time.Time, bool) {
	if _, exists := o.throttled[cap]; exists {
		return time.Time{}, false
	}
	until := o.now().Add(d)
	o.throttled[cap] = until
	return until, true
}

// ThrottledUntil returns the un-throttle time for a capability, if throttled.
func (o *Orchestrator) ThrottledUntil(cap capability.Capability) (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	until, ok := o.throttled[cap]
	return until, ok
}
