// Package metrics exposes Prometheus instrumentation for the two core
// engines. Collectors are package-level and registered at init, mirroring
// how the HTTP layer would instrument traffic; label cardinality is kept
// bounded (the decision action is the only label, drawn from a closed set).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SubmittedTotal counts passcodes accepted and forwarded to the channel.
	SubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passcodes_submitted_total",
		Help: "Total number of passcodes forwarded to the broadcast channel.",
	})

	// DuplicateTotal counts submissions that matched an existing passcode.
	DuplicateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passcodes_duplicate_total",
		Help: "Total number of submissions routed to the duplicate/toggle path.",
	})

	// InvalidTotal counts submissions rejected by length or pattern checks.
	InvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passcodes_invalid_total",
		Help: "Total number of submissions rejected by validation.",
	})

	// ToggleTotal counts redemption status flips.
	ToggleTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passcodes_redemption_toggles_total",
		Help: "Total number of fully-redeemed status toggles.",
	})

	// AuthRequestTotal counts authorization requests that passed the flood guard.
	AuthRequestTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_requests_total",
		Help: "Total number of authorization requests processed.",
	})

	// AuthDecisionTotal counts owner decisions by action (grant, deny, revoke).
	AuthDecisionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_decisions_total",
		Help: "Total number of owner authorization decisions.",
	}, []string{"action"})
)

func init() {
	prometheus.MustRegister(
		SubmittedTotal,
		DuplicateTotal,
		InvalidTotal,
		ToggleTotal,
		AuthRequestTotal,
		AuthDecisionTotal,
	)
}
