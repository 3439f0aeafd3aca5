package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanAttempts counts scan pipeline runs by outcome.
	ScanAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "scan_attempts_total",
		Help:      "Scan attempts grouped by pipeline outcome.",
	}, []string{"outcome"})

	// Verdicts counts classifier answers, including unavailable ones.
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "verdicts_total",
		Help:      "Damage classifier verdicts.",
	}, []string{"verdict"})

	// Acceptances counts successful order acceptances.
	Acceptances = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "order_acceptances_total",
		Help:      "Orders accepted with a freshly issued secret.",
	})

	// Completions counts successful order completions.
	Completions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "order_completions_total",
		Help:      "Orders completed after authenticated scans.",
	})
)
