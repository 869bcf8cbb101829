package slice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

// SliceState is the network-side activation state of a slice.
type SliceState int

const (
	StateInactive SliceState = iota
	StateConfigured
	StateActive
)

func (s SliceState) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	default:
		return "inactive"
	}
}

// MarshalJSON encodes the state as its wire name.
func (s SliceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state from its wire name.
func (s *SliceState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "inactive":
		*s = StateInactive
	case "configured":
		*s = StateConfigured
	case "active":
		*s = StateActive
	default:
		return fmt.Errorf("unknown slice state: %q", name)
	}
	return nil
}

// Info describes one network slice known to the device, tagged with the
// premium capability it grants.
type Info struct {
	Capability capability.Capability `json:"capability"`
	State      SliceState            `json:"state"`
	SliceID    string                `json:"sliceId,omitempty"`
}

// Snapshot is the latest known network-side slice configuration. Snapshots
// are pushed by the network slice state provider; consumers only keep the
// most recent one and never mutate it.
type Snapshot struct {
	Slices    []Info    `json:"slices"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsActive reports whether a slice granting the capability is currently
// active. Pure lookup, safe from any goroutine holding the snapshot.
func (s *Snapshot) IsActive(cap capability.Capability) bool {
	if s == nil {
		return false
	}
	for _, info := range s.Slices {
		if info.Capability == cap && info.State == StateActive {
			return true
		}
	}
	return false
}
