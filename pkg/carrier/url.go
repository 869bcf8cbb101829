package carrier

import (
	"net"
	"net/url"
	"strings"
)

// IsTrustedPurchaseURL accepts only well-formed absolute https URLs that do
// not point at a local resource. Both the configured fallback purchase URL
// and the URL carried in an entitlement response are held to the same rules.
func IsTrustedPurchaseURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate()) {
		return false
	}
	return true
}
