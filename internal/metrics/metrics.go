// Package metrics exposes Prometheus instruments for the scheduling core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Booking outcome label values.
const (
	OutcomeBooked        = "booked"
	OutcomeAlreadyBooked = "already_booked"
	OutcomeNotAvailable  = "not_available"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

// SchedulerMetrics counts booking outcomes, transaction retries and
// lifecycle transitions, and times every transaction.  A nil
// *SchedulerMetrics is valid and records nothing.
type SchedulerMetrics struct {
	bookings     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	txLatency    *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduler",
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduler",
			Name:      "tx_retries_total",
			Help:      "Transactions replayed after deadlock or lock wait timeout",
		}, []string{"operation"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduler",
			Name:      "appointment_transitions_total",
			Help:      "Committed appointment status changes",
		}, []string{"status"}),
		txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduler",
			Name:      "tx_duration_seconds",
			Help:      "Wall time of scheduler transactions including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduler",
			Name:      "free_slot_cache_lookups_total",
			Help:      "Free-slot cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.retries, m.transitions, m.txLatency, m.cacheLookups)
	return m
}

func (m *SchedulerMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

func (m *SchedulerMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *SchedulerMetrics) ObserveTx(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.txLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *SchedulerMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
