package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "booking_created_total",
			Help:      "Count of booking attempts by status.",
		},
		[]string{"status"},
	)

	slotRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "slot_selection_rejected_total",
			Help:      "Count of rejected start-time selections by reason.",
		},
		[]string{"reason"},
	)

	serviceToggled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "service_toggle_total",
			Help:      "Count of service selection toggles.",
		},
		[]string{"service"},
	)

	storeFailover = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "store_failover_total",
			Help:      "Count of reads or writes served by the fallback store.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, slotRejected, serviceToggled, storeFailover)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncSlotRejected(reason string) {
	slotRejected.WithLabelValues(reason).Inc()
}

func IncServiceToggled(service string) {
	serviceToggled.WithLabelValues(service).Inc()
}

func IncStoreFailover() {
	storeFailover.Inc()
}
