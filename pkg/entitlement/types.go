package entitlement

import (
	"context"
	"fmt"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

// Status is the carrier's entitlement verdict for a capability.
type Status int

const (
	StatusDisabled Status = iota
	StatusEnabled
	StatusIncompatible
	StatusProvisioning
	StatusIncluded
)

// ProvisionStatus reports where carrier-side provisioning stands.
type ProvisionStatus int

const (
	ProvisionNone ProvisionStatus = iota
	ProvisionProvisioned
	ProvisionInProgress
	ProvisionNotAvailable
)

// Result is the structured outcome of a successful entitlement check.
type Result struct {
	EntitlementStatus Status
	ProvisionStatus   ProvisionStatus
	// PurchaseURL is the carrier-supplied purchase flow location. May be
	// empty or untrusted; callers must validate before use.
	PurchaseURL string
	// UserData is an opaque payload forwarded verbatim to the purchase flow.
	UserData    string
	ContentType string
}

// Checker performs the remote entitlement check for a capability.
// An unparsable or absent response is reported as an error, identical to a
// transport failure.
type Checker interface {
	CheckEntitlementStatus(ctx context.Context, cap capability.Capability) (*Result, error)
}

func parseStatus(s string) (Status, error) {
	switch s {
	case "DISABLED":
		return StatusDisabled, nil
	case "ENABLED":
		return StatusEnabled, nil
	case "INCOMPATIBLE":
		return StatusIncompatible, nil
	case "PROVISIONING":
		return StatusProvisioning, nil
	case "INCLUDED":
		return StatusIncluded, nil
	default:
		return StatusDisabled, fmt.Errorf("unknown entitlement status: %q", s)
	}
}

func parseProvisionStatus(s string) (ProvisionStatus, error) {
	switch s {
	case "", "NOT_PROVISIONED":
		return ProvisionNone, nil
	case "PROVISIONED":
		return ProvisionProvisioned, nil
	case "IN_PROGRESS":
		return ProvisionInProgress, nil
	case "NOT_AVAILABLE":
		return ProvisionNotAvailable, nil
	default:
		return ProvisionNone, fmt.Errorf("unknown provision status: %q", s)
	}
}
