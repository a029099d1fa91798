package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "reservations_total",
			Help:      "Count of reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	queueRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "queue_registrations_total",
			Help:      "Count of queue registration attempts by outcome.",
		},
		[]string{"outcome"},
	)

	queueTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "queue_transitions_total",
			Help:      "Count of queue entry status transitions.",
		},
		[]string{"to"},
	)

	queueTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "queue_timeouts_total",
			Help:      "Count of called entries canceled by the timeout scan.",
		},
	)

	lockContention = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "lock_contention_total",
			Help:      "Count of lock acquisitions that timed out waiting.",
		},
		[]string{"scope"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, queueRegistrations, queueTransitions, queueTimeouts, lockContention)
	})
}

func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func IncQueueRegistration(outcome string) {
	queueRegistrations.WithLabelValues(outcome).Inc()
}

func IncQueueTransition(to string) {
	queueTransitions.WithLabelValues(to).Inc()
}

func IncQueueTimeout() {
	queueTimeouts.Inc()
}

func IncLockContention(scope string) {
	lockContention.WithLabelValues(scope).Inc()
}
