package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	OutcomeExecuted = "executed"
	OutcomeReplayed = "replayed"
)

var (
	CartMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "mutations_total",
		Help:      "Cart line mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	StockDecrements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "decrements_total",
		Help:      "Conditional stock decrements by outcome.",
	}, []string{"outcome"})

	CheckoutSessions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_created_total",
		Help:      "Checkout sessions opened against the payment gateway.",
	})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "reconciliations_total",
		Help:      "Webhook reconciliations by resulting status, reason and whether they executed or replayed a stored result.",
	}, []string{"status", "reason", "outcome"})

	ExpiredSessions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_expired_total",
		Help:      "Pending sessions rejected by the expiry sweeper.",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache-aside lookups by cache and result.",
	}, []string{"cache", "result"})
)
