package orchestrator

import (
	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/pkg/carrier"
)

// ResolvePurchaseURL picks the purchase flow location: the entitlement
// response's URL when it is well-formed and not an untrusted local resource,
// otherwise the carrier-configured fallback. Returns "" when neither is
// usable.
func ResolvePurchaseURL(entitlementURL, carrierURL string) string {
	if carrier.IsTrustedPurchaseURL(entitlementURL) {
		return entitlementURL
	}
	if entitlementURL != "" {
		logrus.Warnf("ignoring untrusted purchase URL from entitlement response: %q", entitlementURL)
	}
	if carrier.IsTrustedPurchaseURL(carrierURL) {
		return carrierURL
	}
	return ""
}
