package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	selectionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lessonbook",
			Name:      "selection_transition_total",
			Help:      "Count of selection state transitions by event.",
		},
		[]string{"event"},
	)

	rejectedTimeSelections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lessonbook",
			Name:      "rejected_time_selection_total",
			Help:      "Count of time selections rejected for not being in the slot list.",
		},
	)

	noticesShown = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lessonbook",
			Name:      "duration_notice_total",
			Help:      "Count of next-date notices raised for unavailable durations.",
		},
	)

	priceFloorViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lessonbook",
			Name:      "price_floor_violation_total",
			Help:      "Count of confirm attempts blocked by the price floor.",
		},
	)

	providerFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lessonbook",
			Name:      "provider_fetch_total",
			Help:      "Count of availability provider fetches by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lessonbook",
			Name:      "http_request_total",
			Help:      "Count of HTTP API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			selectionTransitions,
			rejectedTimeSelections,
			noticesShown,
			priceFloorViolations,
			providerFetches,
			httpRequests,
		)
	})
}

func IncTransition(event string) {
	selectionTransitions.WithLabelValues(event).Inc()
}

func IncRejectedTimeSelection() {
	rejectedTimeSelections.Inc()
}

func IncNoticeShown() {
	noticesShown.Inc()
}

func IncPriceFloorViolation() {
	priceFloorViolations.Inc()
}

func IncProviderFetch(outcome string) {
	providerFetches.WithLabelValues(outcome).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
