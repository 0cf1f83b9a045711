package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ListingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_listings_created_total", Help: "Listings accepted for rescue"},
	)
	ListingsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_listings_rejected_total", Help: "Listings rejected by the vision check"},
	)
	Claims = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_claims_total", Help: "Successful NGO claims"},
	)
	ClaimConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_claim_conflicts_total", Help: "Claims or accepts lost to a concurrent writer"},
	)
	Deliveries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_deliveries_total", Help: "Completed deliveries"},
	)
	OtpFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_otp_failures_total", Help: "Pickup code mismatches"},
	)
	Expirations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_expirations_total", Help: "Listings expired past shelf life"},
	)
	Reverts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rescue_reverts_total", Help: "Stalled listings reverted to available"},
	)
)

func Register() {
	prometheus.MustRegister(
		ListingsCreated, ListingsRejected, Claims, ClaimConflicts,
		Deliveries, OtpFailures, Expirations, Reverts,
	)
}
