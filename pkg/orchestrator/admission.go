package orchestrator

import (
	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/metrics"
)

// RequestPurchase asks the orchestrator to purchase a premium capability on
// behalf of the caller. Admission checks run synchronously; a failing check
// fires onComplete immediately with the rejection code and mutates nothing.
// When admitted, the request is promoted to in-progress atomically and the
// flow continues on the worker; onComplete fires exactly once with the
// terminal result.
func (o *Orchestrator) RequestPurchase(cap capability.Capability, onComplete capability.Callback) {
	if onComplete == nil {
		onComplete = func(capability.Result) {}
	}

	o.mu.Lock()
	result, admitted := o.admitLocked(cap)
	if !admitted {
		o.mu.Unlock()
		logrus.Infof("purchase of %s rejected at admission on slot %d: %s", cap, o.slot, result)
		metrics.PurchaseRequestsTotal.WithLabelValues(cap.String(), result.String()).Inc()
		onComplete(result)
		return
	}

	o.inProgress[cap] = &purchaseRequest{
		cap:        cap,
		onComplete: onComplete,
		createdAt:  o.now(),
	}
	o.mu.Unlock()

	logrus.Infof("purchase of %s admitted on slot %d", cap, o.slot)
	o.post(startFlowEvent{cap: cap})
}

// IsAvailableForPurchase reports whether a purchase request for the
// capability would currently pass admission.
func (o *Orchestrator) IsAvailableForPurchase(cap capability.Capability) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, admitted := o.admitLocked(cap)
	return admitted
}

// admitLocked runs the ordered admission checks. Caller holds o.mu. Returns
// the rejection result and false, or admitted == true when every check
// passes.
func (o *Orchestrator) admitLocked(cap capability.Capability) (capability.Result, bool) {
	switch {
	case !o.device.SupportsPremiumCapabilities():
		return capability.ResultFeatureNotSupported, false
	case !o.cfg.Supports(cap):
		return capability.ResultCarrierDisabled, false
	case !o.device.IsDefaultDataSubscription():
		return capability.ResultNotDefaultData, false
	case o.snapshot.IsActive(cap):
		return capability.ResultAlreadyPurchased, false
	}

	if _, pending := o.pendingSetup[cap]; pending {
		return capability.ResultPendingNetworkSetup, false
	}
	if _, throttled := o.throttled[cap]; throttled {
		return capability.ResultThrottled, false
	}
	if !o.device.IsNetworkAvailable() {
		return capability.ResultNetworkNotAvailable, false
	}
	if _, inProgress := o.inProgress[cap]; inProgress {
		return capability.ResultAlreadyInProgress, false
	}

	return capability.ResultUnknown, true
}
