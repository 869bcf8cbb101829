package flowchannel

import (
	"github.com/google/uuid"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

// ResponseType is the closed set of outcomes the external purchase flow can
// report back over the channel.
type ResponseType string

const (
	ResponseCanceled              ResponseType = "canceled"
	ResponseCarrierError          ResponseType = "carrier_error"
	ResponseRequestFailed         ResponseType = "request_failed"
	ResponseNotDefaultData        ResponseType = "not_default_data_subscription"
	ResponseNotificationsDisabled ResponseType = "notifications_disabled"
	ResponseSuccess               ResponseType = "success"
	ResponseNotificationShown     ResponseType = "notification_shown"
)

// ResponseTypes lists every outcome a channel open must mint a correlation
// token for.
var ResponseTypes = []ResponseType{
	ResponseCanceled,
	ResponseCarrierError,
	ResponseRequestFailed,
	ResponseNotDefaultData,
	ResponseNotificationsDisabled,
	ResponseSuccess,
	ResponseNotificationShown,
}

// FailureCode qualifies a carrier_error response.
type FailureCode int

const (
	FailureUnknown FailureCode = iota
	FailureCarrierURLUnavailable
	FailureAuthenticationFailed
	FailurePaymentFailed
)

func (f FailureCode) String() string {
	switch f {
	case FailureCarrierURLUnavailable:
		return "carrier_url_unavailable"
	case FailureAuthenticationFailed:
		return "authentication_failed"
	case FailurePaymentFailed:
		return "payment_failed"
	default:
		return "unknown"
	}
}

// OpenRequest carries everything the external purchase application needs to
// render the flow, plus one correlation token per possible outcome.
type OpenRequest struct {
	Slot           int
	SubscriptionID int
	Capability     capability.Capability
	PurchaseURL    string
	CarrierName    string
	UserData       string
	ContentType    string
	Tokens         map[ResponseType]string
}

// Response is one inbound outcome report from the external purchase flow.
type Response struct {
	Type           ResponseType
	Capability     capability.Capability
	Slot           int
	FailureCode    FailureCode
	FailureReason  string
	DurationMillis int64
}

// NewTokens mints a fresh correlation token for every possible outcome.
func NewTokens() map[ResponseType]string {
	tokens := make(map[ResponseType]string, len(ResponseTypes))
	for _, rt := range ResponseTypes {
		tokens[rt] = uuid.NewString()
	}
	return tokens
}
