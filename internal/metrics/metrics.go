package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	settlementOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_outcomes_total",
			Help: "Reconciliation outcomes by code",
		},
		[]string{"outcome"},
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Gateway callbacks received by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)
)

func init() {
	prometheus.MustRegister(settlementOutcomes)
	prometheus.MustRegister(callbacksTotal)
}

func ObserveOutcome(outcome string) {
	settlementOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveCallback(endpoint, result string) {
	callbacksTotal.WithLabelValues(endpoint, result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
