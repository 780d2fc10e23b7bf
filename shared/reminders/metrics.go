package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder system.
type Metrics struct {
	RemindersSentTotal   *prometheus.CounterVec
	ReminderSendDuration prometheus.Histogram
	ReminderRetries      prometheus.Counter
	RateLimitWaits       prometheus.Counter
	LastRunBookings      prometheus.Gauge
}

// NewMetrics registers reminder metrics with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemindersSentTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_sent_total",
				Help:      "Total number of reminder deliveries by outcome",
			},
			[]string{"outcome"},
		),

		ReminderSendDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reminder_send_duration_seconds",
				Help:      "Time to send a reminder",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
			},
		),

		ReminderRetries: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_retries_total",
				Help:      "Total number of retry attempts",
			},
		),

		RateLimitWaits: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_waits_total",
				Help:      "Total number of Telegram 429 waits",
			},
		),

		LastRunBookings: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reminders_last_run_bookings",
				Help:      "Bookings considered by the last daily run",
			},
		),
	}
}

func (m *Metrics) incOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.RemindersSentTotal.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) observeSend(seconds float64) {
	if m == nil {
		return
	}
	m.ReminderSendDuration.Observe(seconds)
}

func (m *Metrics) incRetries() {
	if m == nil {
		return
	}
	m.ReminderRetries.Inc()
}

func (m *Metrics) incRateLimitWaits() {
	if m == nil {
		return
	}
	m.RateLimitWaits.Inc()
}

func (m *Metrics) setLastRun(n int) {
	if m == nil {
		return
	}
	m.LastRunBookings.Set(float64(n))
}
