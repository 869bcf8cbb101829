package capability

import (
	"encoding/json"
	"fmt"
)

// Capability identifies a carrier-gated premium network capability that a
// subscriber can purchase, such as prioritized low-latency routing.
type Capability int

const (
	None Capability = iota
	LowLatency
	HighBandwidth
)

// String returns the wire/config name of the capability.
func (c Capability) String() string {
	switch c {
	case LowLatency:
		return "low_latency"
	case HighBandwidth:
		return "high_bandwidth"
	default:
		return "none"
	}
}

// MarshalJSON encodes the capability as its wire name.
func (c Capability) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a capability from its wire name.
func (c *Capability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse converts a wire/config name into a Capability.
func Parse(s string) (Capability, error) {
	switch s {
	case "low_latency":
		return LowLatency, nil
	case "high_bandwidth":
		return HighBandwidth, nil
	default:
		return None, fmt.Errorf("unknown capability: %q", s)
	}
}
