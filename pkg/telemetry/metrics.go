package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	// Dispatches counts chat sends by outcome: reply, history_fallback,
	// rate_limited, unauthorized, failed, stale.
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_dispatch_total",
			Help: "Chat dispatches by outcome.",
		},
		[]string{"outcome"},
	)

	// StaleResults counts async completions discarded because the identity
	// or request generation moved on while they were in flight.
	StaleResults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_stale_results_total",
			Help: "Async results discarded as stale.",
		},
	)

	// Reconciliations counts identity-transition reconciliations by kind:
	// login, logout, expired.
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_reconciliations_total",
			Help: "Auth transition reconciliations by transition.",
		},
		[]string{"transition"},
	)

	// PersistLoads counts durable payload loads by result: ok, miss,
	// corrupt, owner_mismatch, error.
	PersistLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_persist_loads_total",
			Help: "Conversation rehydration attempts by result.",
		},
		[]string{"result"},
	)

	// Loading mirrors the store's loading flag.
	Loading = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_loading",
			Help: "1 while a dispatch is outstanding under the active generation.",
		},
	)
)

func init() {
	prometheus.MustRegister(Dispatches)
	prometheus.MustRegister(StaleResults)
	prometheus.MustRegister(Reconciliations)
	prometheus.MustRegister(PersistLoads)
	prometheus.MustRegister(Loading)
}
