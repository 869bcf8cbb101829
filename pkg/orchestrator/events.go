package orchestrator

import (
	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/flowchannel"
	"github.com/carriergate/slicepurchase/pkg/slice"
)

// event is the closed set of tagged variants processed by the orchestrator
// worker. All state transitions after admission happen by handling events in
// order on a single goroutine.
type event interface {
	isEvent()
}

// startFlowEvent kicks off the purchase flow for an admitted request.
type startFlowEvent struct {
	cap capability.Capability
}

// channelResponseEvent carries one outcome report from the purchase flow
// channel. cap is the routing key the channel delivered the response under;
// the embedded response may disagree and is validated by the handler.
type channelResponseEvent struct {
	cap  capability.Capability
	resp flowchannel.Response
}

// timerFiredEvent is a delayed event re-injected by the scheduler.
type timerFiredEvent struct {
	kind TimerKind
	cap  capability.Capability
}

// sliceChangedEvent carries a fresh network slice snapshot.
type sliceChangedEvent struct {
	snapshot *slice.Snapshot
}

// flushEvent lets a caller wait until every event posted before it has been
// handled.
type flushEvent struct {
	done chan struct{}
}

func (startFlowEvent) isEvent()       {}
func (channelResponseEvent) isEvent() {}
func (timerFiredEvent) isEvent()      {}
func (sliceChangedEvent) isEvent()    {}
func (flushEvent) isEvent()           {}
