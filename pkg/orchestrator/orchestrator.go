package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/carrier"
	"github.com/carriergate/slicepurchase/pkg/diag"
	"github.com/carriergate/slicepurchase/pkg/entitlement"
	"github.com/carriergate/slicepurchase/pkg/flowchannel"
	"github.com/carriergate/slicepurchase/pkg/metrics"
	"github.com/carriergate/slicepurchase/pkg/quota"
	"github.com/carriergate/slicepurchase/pkg/slice"
)

// DeviceMonitor exposes the device-side admission inputs: whether the device
// can use premium capabilities at all, whether the requesting profile is the
// default data subscription, and whether a usable network path exists.
type DeviceMonitor interface {
	SupportsPremiumCapabilities() bool
	IsDefaultDataSubscription() bool
	IsNetworkAvailable() bool
}

// Deps are the collaborators one orchestrator instance is built from.
// Carrier, Entitlement, Channel, Quota, Device and Diag are required;
// Scheduler and Now default to wall-clock implementations.
type Deps struct {
	Carrier     *carrier.Config
	Entitlement entitlement.Checker
	Channel     flowchannel.Channel
	Quota       quota.Store
	Device      DeviceMonitor
	Diag        diag.Reporter
	Scheduler   Scheduler
	Now         func() time.Time
}

// purchaseRequest tracks one in-flight purchase attempt. The orchestrator
// owns the callback exclusively until it fires, exactly once.
type purchaseRequest struct {
	cap        capability.Capability
	onComplete capability.Callback
	createdAt  time.Time
	flowOpen   bool
	tokens     map[flowchannel.ResponseType]string
}

// Orchestrator coordinates purchasing premium network capabilities for one
// physical radio slot. Admission checks run synchronously on the caller's
// goroutine; everything after admission is serialized onto a single worker
// goroutine, so no two state transitions for the same instance ever execute
// concurrently.
type Orchestrator struct {
	slot           int
	subscriptionID int
	cfg            *carrier.Config
	entitlement    entitlement.Checker
	channel        flowchannel.Channel
	quota          quota.Store
	device         DeviceMonitor
	scheduler      Scheduler
	diag           diag.Reporter
	now            func() time.Time

	mu           sync.Mutex
	inProgress   map[capability.Capability]*purchaseRequest
	throttled    map[capability.Capability]time.Time
	pendingSetup map[capability.Capability]struct{}
	snapshot     *slice.Snapshot

	events    chan event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New creates and starts an orchestrator for one slot.
func New(slot, subscriptionID int, deps Deps) (*Orchestrator, error) {
	if deps.Carrier == nil {
		return nil, fmt.Errorf("carrier config is required")
	}
	if deps.Entitlement == nil {
		return nil, fmt.Errorf("entitlement checker is required")
	}
	if deps.Channel == nil {
		return nil, fmt.Errorf("flow channel is required")
	}
	if deps.Quota == nil {
		return nil, fmt.Errorf("quota store is required")
	}
	if deps.Device == nil {
		return nil, fmt.Errorf("device monitor is required")
	}
	if deps.Diag == nil {
		deps.Diag = diag.NewLogReporter()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		slot:           slot,
		subscriptionID: subscriptionID,
		cfg:            deps.Carrier,
		entitlement:    deps.Entitlement,
		channel:        deps.Channel,
		quota:          deps.Quota,
		device:         deps.Device,
		diag:           deps.Diag,
		now:            deps.Now,
		inProgress:     make(map[capability.Capability]*purchaseRequest),
		throttled:      make(map[capability.Capability]time.Time),
		pendingSetup:   make(map[capability.Capability]struct{}),
		events:         make(chan event, 64),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	o.scheduler = deps.Scheduler
	if o.scheduler == nil {
		o.scheduler = NewClockScheduler(func(kind TimerKind, cap capability.Capability) {
			o.post(timerFiredEvent{kind: kind, cap: cap})
		})
	}

	go o.worker()

	logrus.Infof("purchase orchestrator started for slot %d (subscription %d)", slot, subscriptionID)
	return o, nil
}

// Close stops the worker, cancels all pending timers and fails any in-flight
// requests so their callbacks still fire exactly once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.cancel()
		<-o.done
		o.scheduler.CancelAll()

		o.mu.Lock()
		remaining := make([]*purchaseRequest, 0, len(o.inProgress))
		for cap, req := range o.inProgress {
			remaining = append(remaining, req)
			delete(o.inProgress, cap)
		}
		o.mu.Unlock()

		for _, req := range remaining {
			logrus.Warnf("failing in-flight purchase of %s on shutdown", req.cap)
			req.onComplete(capability.ResultRequestFailed)
		}

		logrus.Infof("purchase orchestrator stopped for slot %d", o.slot)
	})
}

// Slot returns the physical radio slot this orchestrator serves.
func (o *Orchestrator) Slot() int {
	return o.slot
}

// OnChannelResponse delivers one outcome report from the purchase flow
// channel. Safe to call from any goroutine; late or duplicate responses are
// detected and ignored with a diagnostic.
func (o *Orchestrator) OnChannelResponse(cap capability.Capability, resp flowchannel.Response) {
	o.post(channelResponseEvent{cap: cap, resp: resp})
}

// OnSliceConfigChanged delivers the latest network slice snapshot from the
// slice state provider. The orchestrator keeps only the most recent one.
func (o *Orchestrator) OnSliceConfigChanged(snapshot *slice.Snapshot) {
	o.post(sliceChangedEvent{snapshot: snapshot})
}

// IsCapabilityActive reports whether the latest slice snapshot shows the
// capability active on the network side. Pure read, safe at any time.
func (o *Orchestrator) IsCapabilityActive(cap capability.Capability) bool {
	o.mu.Lock()
	snapshot := o.snapshot
	o.mu.Unlock()
	return snapshot.IsActive(cap)
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.ctx.Done():
	}
}

// flush blocks until every event posted before it has been handled.
func (o *Orchestrator) flush() {
	done := make(chan struct{})
	o.post(flushEvent{done: done})
	select {
	case <-done:
	case <-o.ctx.Done():
	}
}

func (o *Orchestrator) worker() {
	defer close(o.done)
	for {
		select {
		case ev := <-o.events:
			o.handle(ev)
		case <-o.ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) handle(ev event) {
	switch e := ev.(type) {
	case startFlowEvent:
		o.handleStartFlow(e.cap)
	case channelResponseEvent:
		o.handleChannelResponse(e.cap, e.resp)
	case timerFiredEvent:
		o.handleTimerFired(e.kind, e.cap)
	case sliceChangedEvent:
		o.handleSliceChanged(e.snapshot)
	case flushEvent:
		close(e.done)
	}
}

// handleStartFlow runs the post-admission sequence for one request: quota
// re-check, entitlement check, purchase URL resolution, then channel open
// with a response timeout.
func (o *Orchestrator) handleStartFlow(cap capability.Capability) {
	o.mu.Lock()
	req, ok := o.inProgress[cap]
	o.mu.Unlock()
	if !ok {
		o.diag.Report("missing_request", fmt.Sprintf("start flow for %s with no in-flight request", cap))
		return
	}

	// Quota gate first: if the device has already shown the user too many
	// purchase notifications, do not even contact the entitlement server.
	// No un-throttle timer here; the quota self-clears at the next reset.
	if o.quotaExceeded() {
		logrus.Infof("notification quota exceeded, rejecting purchase of %s on slot %d", cap, o.slot)
		o.finalize(req, capability.ResultThrottled, throttleNone)
		return
	}

	result, err := o.entitlement.CheckEntitlementStatus(o.ctx, cap)
	if err != nil {
		logrus.Errorf("entitlement check failed for %s: %v", cap, err)
		metrics.EntitlementChecksTotal.WithLabelValues("error").Inc()
		// Surfaced to the caller as a carrier error and throttled, but also
		// reported as an anomaly: repeated failures here usually mean a
		// systemic server or client defect.
		o.diag.Report("entitlement_check_error", err.Error())
		o.finalize(req, capability.ResultCarrierError, throttleEntitlement)
		return
	}
	metrics.EntitlementChecksTotal.WithLabelValues("ok").Inc()

	switch {
	case result.EntitlementStatus == entitlement.StatusIncompatible,
		result.ProvisionStatus == entitlement.ProvisionNotAvailable:
		o.finalize(req, capability.ResultEntitlementCheckFailed, throttleEntitlement)

	case result.EntitlementStatus == entitlement.StatusIncluded,
		result.ProvisionStatus == entitlement.ProvisionProvisioned:
		// The repeated request itself is rate-limited, hence the throttle.
		o.finalize(req, capability.ResultAlreadyPurchased, throttleEntitlement)

	case result.EntitlementStatus == entitlement.StatusProvisioning,
		result.ProvisionStatus == entitlement.ProvisionInProgress:
		o.finalize(req, capability.ResultAlreadyInProgress, throttleEntitlement)

	default:
		o.openFlow(req, result)
	}
}

// openFlow resolves the purchase URL and carrier name, opens the purchase
// flow channel and arms the response timeout.
func (o *Orchestrator) openFlow(req *purchaseRequest, ent *entitlement.Result) {
	cap := req.cap

	var fallback string
	if cc, ok := o.cfg.Lookup(cap); ok {
		fallback = cc.PurchaseURL
	}
	purchaseURL := ResolvePurchaseURL(ent.PurchaseURL, fallback)
	if purchaseURL == "" || o.cfg.CarrierName == "" {
		logrus.Warnf("no usable purchase URL or carrier name for %s, purchases disabled", cap)
		o.finalize(req, capability.ResultCarrierDisabled, throttleNone)
		return
	}

	req.tokens = flowchannel.NewTokens()
	open := flowchannel.OpenRequest{
		Slot:           o.slot,
		SubscriptionID: o.subscriptionID,
		Capability:     cap,
		PurchaseURL:    purchaseURL,
		CarrierName:    o.cfg.CarrierName,
		UserData:       ent.UserData,
		ContentType:    ent.ContentType,
		Tokens:         req.tokens,
	}
	if err := o.channel.Open(o.ctx, open); err != nil {
		logrus.Errorf("failed to open purchase flow for %s: %v", cap, err)
		o.finalize(req, capability.ResultRequestFailed, throttleNone)
		return
	}

	o.mu.Lock()
	req.flowOpen = true
	o.mu.Unlock()

	o.scheduler.Schedule(TimerUserResponse, cap, o.cfg.Timeouts.UserResponse.AsDuration())
	logrus.Infof("purchase flow opened for %s on slot %d (url: %s)", cap, o.slot, purchaseURL)
}

// handleChannelResponse validates and applies one outcome report.
func (o *Orchestrator) handleChannelResponse(cap capability.Capability, resp flowchannel.Response) {
	o.mu.Lock()
	req, ok := o.inProgress[cap]
	flowOpen := ok && req.flowOpen
	o.mu.Unlock()

	if !flowOpen {
		// Late, duplicate, or entirely unsolicited. Never double-fires the
		// caller's callback.
		o.diag.Report("unmatched_channel_response",
			fmt.Sprintf("response %s for %s with no active flow", resp.Type, cap))
		return
	}
	if resp.Capability != cap || resp.Slot != o.slot {
		o.diag.Report("mismatched_channel_response",
			fmt.Sprintf("response for capability %s slot %d on flow for %s slot %d",
				resp.Capability, resp.Slot, cap, o.slot))
		return
	}

	switch resp.Type {
	case flowchannel.ResponseCanceled:
		o.finalize(req, capability.ResultUserCanceled, throttleUser)

	case flowchannel.ResponseCarrierError:
		if resp.FailureCode == flowchannel.FailureUnknown && resp.FailureReason != "" {
			// An unmapped failure code from the purchase application. The
			// outcome is unchanged; this is for offline triage only.
			o.diag.Report("unmapped_failure_code", resp.FailureReason)
		}
		o.finalize(req, capability.ResultCarrierError, throttleEntitlement)

	case flowchannel.ResponseRequestFailed:
		o.finalize(req, capability.ResultRequestFailed, throttleNone)

	case flowchannel.ResponseNotDefaultData:
		o.finalize(req, capability.ResultNotDefaultData, throttleNone)

	case flowchannel.ResponseNotificationsDisabled:
		o.finalize(req, o.cfg.ResultForNotificationsDisabled(), throttleUser)

	case flowchannel.ResponseSuccess:
		logrus.Infof("purchase of %s succeeded on slot %d (duration %dms)", cap, o.slot, resp.DurationMillis)
		// finalize moves the capability into PendingSetup before the SUCCESS
		// callback fires, then the network is watched until it activates the
		// slice.
		o.finalize(req, capability.ResultSuccess, throttleNone)

	case flowchannel.ResponseNotificationShown:
		// Side effect only: bump the persisted quota, no state change and no
		// callback.
		if err := o.quota.Increment(o.ctx); err != nil {
			logrus.Errorf("failed to increment notification quota: %v", err)
		}
		metrics.NotificationsShownTotal.WithLabelValues(cap.String()).Inc()

	default:
		o.diag.Report("unknown_channel_response",
			fmt.Sprintf("unrecognized response type %q for %s", resp.Type, cap))
	}
}

func (o *Orchestrator) handleTimerFired(kind TimerKind, cap capability.Capability) {
	switch kind {
	case TimerUserResponse:
		o.mu.Lock()
		req, ok := o.inProgress[cap]
		flowOpen := ok && req.flowOpen
		o.mu.Unlock()
		if !flowOpen {
			// Fired while the cancellation was in flight.
			logrus.Debugf("late user-response timer for %s ignored", cap)
			return
		}
		logrus.Warnf("purchase flow for %s on slot %d timed out waiting for the user", cap, o.slot)
		if err := o.channel.NotifyTimeout(o.slot, cap); err != nil {
			logrus.Warnf("failed to notify purchase flow of timeout: %v", err)
		}
		o.finalize(req, capability.ResultTimeout, throttleUser)

	case TimerUnthrottle:
		o.mu.Lock()
		_, ok := o.throttled[cap]
		delete(o.throttled, cap)
		o.mu.Unlock()
		if !ok {
			logrus.Debugf("late un-throttle timer for %s ignored", cap)
			return
		}
		logrus.Infof("throttle expired for %s on slot %d", cap, o.slot)

	case TimerNetworkSetup:
		o.mu.Lock()
		_, ok := o.pendingSetup[cap]
		delete(o.pendingSetup, cap)
		o.mu.Unlock()
		if !ok {
			return
		}
		// The SUCCESS callback already fired; nothing is surfaced to the
		// original caller.
		o.diag.Report("network_setup_timeout",
			fmt.Sprintf("network failed to set up %s in time on slot %d", cap, o.slot))
	}
}

func (o *Orchestrator) handleSliceChanged(snapshot *slice.Snapshot) {
	o.mu.Lock()
	o.snapshot = snapshot
	var cleared []capability.Capability
	for cap := range o.pendingSetup {
		if snapshot.IsActive(cap) {
			delete(o.pendingSetup, cap)
			cleared = append(cleared, cap)
		}
	}
	o.mu.Unlock()

	for _, cap := range cleared {
		o.scheduler.Cancel(TimerNetworkSetup, cap)
		logrus.Infof("network activated slice for %s on slot %d", cap, o.slot)
	}
}

// finalize is the shared terminal step: exactly once per request it cancels
// the response timer, deregisters the channel leg, atomically swaps the
// in-progress record for its successor state (the throttle entry, plus
// PendingSetup membership on success), and only then fires the caller's
// callback. Admission runs under the same mutex, so a request issued from
// inside the callback or concurrently with it observes the successor state,
// never the gap between the two.
func (o *Orchestrator) finalize(req *purchaseRequest, result capability.Result, category throttleCategory) {
	cap := req.cap

	o.scheduler.Cancel(TimerUserResponse, cap)
	if req.flowOpen {
		if err := o.channel.Close(o.slot, cap); err != nil {
			logrus.Warnf("failed to close purchase flow channel for %s: %v", cap, err)
		}
	}

	success := result == capability.ResultSuccess
	backoff := o.throttleDuration(category)

	var (
		until          time.Time
		throttled      bool
		doubleThrottle bool
	)

	o.mu.Lock()
	delete(o.inProgress, cap)
	if success {
		o.pendingSetup[cap] = struct{}{}
	}
	if backoff > 0 {
		until, throttled = o.throttleLocked(cap, backoff)
		doubleThrottle = !throttled
	}
	o.mu.Unlock()

	if success {
		o.scheduler.Schedule(TimerNetworkSetup, cap, o.cfg.Timeouts.NetworkSetup.AsDuration())
	}
	if throttled {
		o.scheduler.Schedule(TimerUnthrottle, cap, backoff)
		logrus.Infof("throttled %s on slot %d until %v (%s)", cap, o.slot, until, category)
	}
	if doubleThrottle {
		o.diag.Report("double_throttle",
			fmt.Sprintf("%s on slot %d is already throttled", cap, o.slot))
	}

	metrics.PurchaseRequestsTotal.WithLabelValues(cap.String(), result.String()).Inc()
	logrus.Infof("purchase finalized: slot=%d capability=%s result=%s elapsed=%v",
		o.slot, cap, result, o.now().Sub(req.createdAt))

	req.onComplete(result)
}

// quotaExceeded re-checks the persisted notification quota against the
// configured caps, applying any pending date-based reset first.
func (o *Orchestrator) quotaExceeded() bool {
	now := o.now()
	if err := o.quota.ResetIfStale(o.ctx, now); err != nil {
		logrus.Errorf("failed to reset notification quota: %v", err)
	}

	daily, err := o.quota.DailyCount(o.ctx)
	if err != nil {
		logrus.Errorf("failed to read daily notification count: %v", err)
		return false
	}
	monthly, err := o.quota.MonthlyCount(o.ctx)
	if err != nil {
		logrus.Errorf("failed to read monthly notification count: %v", err)
		return false
	}

	if o.cfg.Quota.DailyMax > 0 && daily >= o.cfg.Quota.DailyMax {
		return true
	}
	if o.cfg.Quota.MonthlyMax > 0 && monthly >= o.cfg.Quota.MonthlyMax {
		return true
	}
	return false
}
