package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/diag"
	"github.com/carriergate/slicepurchase/pkg/flowchannel"
	"github.com/carriergate/slicepurchase/pkg/slice"
)

func newTestFactory(t *testing.T, created *int) Factory {
	t.Helper()
	return func(slot int) (*Orchestrator, error) {
		*created++
		return New(slot, slot+1, Deps{
			Carrier:     testCarrierConfig(),
			Entitlement: &fakeEntitlement{result: allowedEntitlement()},
			Channel:     flowchannel.NewInProc(),
			Quota:       &memQuota{},
			Device:      &fakeDevice{premium: true, defaultData: true, network: true},
			Diag:        diag.NewCapture(),
			Scheduler:   newManualScheduler(),
		})
	}
}

func TestRegistry_LazyConstruction(t *testing.T) {
	created := 0
	r := NewRegistry(newTestFactory(t, &created))
	defer r.Close()

	if _, ok := r.Lookup(0); ok {
		t.Fatal("no instance should exist before first use")
	}

	o1, err := r.Get(0)
	if err != nil {
		t.Fatalf("Get(0) error = %v", err)
	}
	o2, err := r.Get(0)
	if err != nil {
		t.Fatalf("Get(0) error = %v", err)
	}
	if o1 != o2 {
		t.Error("Get must return the same instance for the same slot")
	}
	if created != 1 {
		t.Errorf("factory called %d times, expected 1", created)
	}

	if _, err := r.Get(1); err != nil {
		t.Fatalf("Get(1) error = %v", err)
	}
	if created != 2 {
		t.Errorf("factory called %d times, expected 2", created)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(func(slot int) (*Orchestrator, error) {
		return nil, boom
	})
	defer r.Close()

	if _, err := r.Get(0); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, expected wrapped factory error", err)
	}
	if _, ok := r.Lookup(0); ok {
		t.Error("failed construction must not be cached")
	}
}

func TestRegistry_BroadcastSliceConfig(t *testing.T) {
	created := 0
	r := NewRegistry(newTestFactory(t, &created))
	defer r.Close()

	o0, _ := r.Get(0)
	o1, _ := r.Get(1)

	r.BroadcastSliceConfig(&slice.Snapshot{
		Slices:    []slice.Info{{Capability: capability.LowLatency, State: slice.StateActive}},
		UpdatedAt: time.Now(),
	})
	o0.flush()
	o1.flush()

	if !o0.IsCapabilityActive(capability.LowLatency) || !o1.IsCapabilityActive(capability.LowLatency) {
		t.Error("broadcast snapshot should reach every constructed instance")
	}
}
