package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	permissionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_permission_checks_total",
			Help: "Permission decisions by outcome.",
		},
		[]string{"decision"},
	)

	permissionCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rbac_permission_check_duration_seconds",
			Help:    "Latency of permission checks in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	storeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_store_failures_total",
			Help: "Store errors absorbed by fail-closed reads.",
		},
		[]string{"op"},
	)
)

// Init registers the engine metrics with the default registry.
func Init() {
	prometheus.MustRegister(permissionChecksTotal, permissionCheckDuration, storeFailuresTotal)
}

// Handler exposes the default registry for whatever process hosts the engine.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePermissionCheck records one decision and its latency.
func ObservePermissionCheck(allowed bool, seconds float64) {
	permissionChecksTotal.WithLabelValues(DecisionLabel(allowed)).Inc()
	if seconds > 0 {
		permissionCheckDuration.Observe(seconds)
	}
}

// StoreFailure counts a store error absorbed by a decision-time read.
func StoreFailure(op string) {
	storeFailuresTotal.WithLabelValues(op).Inc()
}

// DecisionLabel maps a decision to its metric label.
func DecisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
