package capability

// Result is the terminal outcome of a purchase request, delivered to the
// caller's completion callback exactly once.
type Result int

const (
	ResultUnknown Result = iota
	ResultSuccess
	ResultAlreadyPurchased
	ResultAlreadyInProgress
	ResultThrottled
	ResultNetworkNotAvailable
	ResultPendingNetworkSetup
	ResultFeatureNotSupported
	ResultCarrierDisabled
	ResultNotDefaultData
	ResultCarrierError
	ResultEntitlementCheckFailed
	ResultRequestFailed
	ResultUserCanceled
	ResultUserDisabled
	ResultTimeout
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultAlreadyPurchased:
		return "already_purchased"
	case ResultAlreadyInProgress:
		return "already_in_progress"
	case ResultThrottled:
		return "throttled"
	case ResultNetworkNotAvailable:
		return "network_not_available"
	case ResultPendingNetworkSetup:
		return "pending_network_setup"
	case ResultFeatureNotSupported:
		return "feature_not_supported"
	case ResultCarrierDisabled:
		return "carrier_disabled"
	case ResultNotDefaultData:
		return "not_default_data"
	case ResultCarrierError:
		return "carrier_error"
	case ResultEntitlementCheckFailed:
		return "entitlement_check_failed"
	case ResultRequestFailed:
		return "request_failed"
	case ResultUserCanceled:
		return "user_canceled"
	case ResultUserDisabled:
		return "user_disabled"
	case ResultTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Callback receives the terminal result of a purchase request. The
// orchestrator owns the callback until it fires; it fires exactly once.
type Callback func(Result)
