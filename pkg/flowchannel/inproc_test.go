package flowchannel

import (
	"context"
	"testing"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

func TestNewTokens(t *testing.T) {
	tokens := NewTokens()

	if len(tokens) != len(ResponseTypes) {
		t.Fatalf("len(tokens) = %d, expected %d", len(tokens), len(ResponseTypes))
	}

	seen := make(map[string]bool)
	for rt, token := range tokens {
		if token == "" {
			t.Errorf("empty token for %s", rt)
		}
		if seen[token] {
			t.Errorf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestInProcOpenClose(t *testing.T) {
	c := NewInProc()
	ctx := context.Background()

	req := OpenRequest{
		Slot:        0,
		Capability:  capability.LowLatency,
		PurchaseURL: "https://carrier.example.com/buy",
		Tokens:      NewTokens(),
	}
	if err := c.Open(ctx, req); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// A second open for the same capability on the same slot is refused.
	if err := c.Open(ctx, req); err == nil {
		t.Error("second Open() should fail while the flow is open")
	}

	// The same capability on another slot is independent.
	other := req
	other.Slot = 1
	if err := c.Open(ctx, other); err != nil {
		t.Errorf("Open() on slot 1 error = %v", err)
	}

	if err := c.Close(0, capability.LowLatency); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := c.OpenRequestFor(0, capability.LowLatency); ok {
		t.Error("flow should be closed on slot 0")
	}
	if _, ok := c.OpenRequestFor(1, capability.LowLatency); !ok {
		t.Error("flow on slot 1 should remain open")
	}
}

func TestInProcNotifyTimeout(t *testing.T) {
	c := NewInProc()

	if err := c.NotifyTimeout(0, capability.LowLatency); err != nil {
		t.Fatalf("NotifyTimeout() error = %v", err)
	}
	if got := c.TimeoutCount(0, capability.LowLatency); got != 1 {
		t.Errorf("TimeoutCount() = %d, expected 1", got)
	}
}
