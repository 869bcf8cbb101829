package flowchannel

import (
	"context"
	"fmt"
	"sync"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

type inprocKey struct {
	slot int
	cap  capability.Capability
}

// InProc is an in-process Channel implementation. It records opens and lets
// a co-located purchase flow (or a test) inspect them and deliver outcomes
// straight back to the orchestrator. Single-binary deployments and unit
// tests use it in place of the websocket transport.
type InProc struct {
	mu       sync.Mutex
	open     map[inprocKey]OpenRequest
	timeouts map[inprocKey]int
}

// NewInProc creates an empty in-process channel.
func NewInProc() *InProc {
	return &InProc{
		open:     make(map[inprocKey]OpenRequest),
		timeouts: make(map[inprocKey]int),
	}
}

// Open implements Channel.
func (c *InProc) Open(_ context.Context, req OpenRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := inprocKey{slot: req.Slot, cap: req.Capability}
	if _, exists := c.open[key]; exists {
		return fmt.Errorf("flow already open for %s on slot %d", req.Capability, req.Slot)
	}
	c.open[key] = req
	return nil
}

// NotifyTimeout implements Channel.
func (c *InProc) NotifyTimeout(slot int, cap capability.Capability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts[inprocKey{slot: slot, cap: cap}]++
	return nil
}

// Close implements Channel.
func (c *InProc) Close(slot int, cap capability.Capability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.open, inprocKey{slot: slot, cap: cap})
	return nil
}

// OpenRequestFor returns the recorded open request for a capability, if the
// flow is currently open.
func (c *InProc) OpenRequestFor(slot int, cap capability.Capability) (OpenRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.open[inprocKey{slot: slot, cap: cap}]
	return req, ok
}

// TimeoutCount returns how many response_timeout notifications were sent for
// a capability.
func (c *InProc) TimeoutCount(slot int, cap capability.Capability) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeouts[inprocKey{slot: slot, cap: cap}]
}

// OpenCount returns the number of currently open flows.
func (c *InProc) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}
