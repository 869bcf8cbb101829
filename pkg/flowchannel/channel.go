package flowchannel

import (
	"context"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

// Channel is the asynchronous boundary to the externally hosted purchase
// experience. Opening the channel hands the flow everything it needs to
// render; outcomes come back out-of-band through the orchestrator's
// OnChannelResponse entry point. The channel may report a response late,
// more than once, or never -- the orchestrator owns timeout and duplicate
// handling.
type Channel interface {
	// Open starts the purchase flow for one capability.
	Open(ctx context.Context, req OpenRequest) error
	// NotifyTimeout tells the flow to tear itself down because the internal
	// response timer fired.
	NotifyTimeout(slot int, cap capability.Capability) error
	// Close deregisters the channel leg for a capability after finalization.
	Close(slot int, cap capability.Capability) error
}
