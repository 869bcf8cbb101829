package metrics

import "github.com/prometheus/client_golang/prometheus"

// Application metrics exposed on the metrics server. Collectors are created
// here and registered by the server setup so tests can exercise code paths
// that increment them without a registry.
var (
	PurchaseRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicepurchase_requests_total",
			Help: "Total purchase requests by capability and terminal result",
		},
		[]string{"capability", "result"},
	)

	EntitlementChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicepurchase_entitlement_checks_total",
			Help: "Total entitlement checks by outcome",
		},
		[]string{"outcome"},
	)

	AnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicepurchase_anomalies_total",
			Help: "Total diagnostic anomalies by tag",
		},
		[]string{"tag"},
	)

	NotificationsShownTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicepurchase_notifications_shown_total",
			Help: "Total purchase notifications shown by capability",
		},
		[]string{"capability"},
	)
)

// Register registers all application collectors on the given registry.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		PurchaseRequestsTotal,
		EntitlementChecksTotal,
		AnomaliesTotal,
		NotificationsShownTotal,
	)
}
