package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	CreateTotal *prometheus.CounterVec // result=success|unavailable|not_found|invalid|duplicate|error
	ReturnTotal *prometheus.CounterVec // result=success|not_found|invalid|error

	LateFeeAmount prometheus.Histogram
	OpLatencyMS   *prometheus.HistogramVec // op=create|return

	CompensationFailures prometheus.Counter
	OverdueReservations  prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CreateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_create_total",
				Help: "Total reservation create attempts by result",
			},
			[]string{"result"},
		),
		ReturnTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_return_total",
				Help: "Total reservation return attempts by result",
			},
			[]string{"result"},
		),
		LateFeeAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reservation_late_fee_amount",
			Help:    "Late fees charged on return",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5 .. 256
		}),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reservation_op_latency_ms",
				Help:    "Latency of reservation operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
		CompensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_compensation_failures_total",
			Help: "Inventory compensations that failed after a persistence error",
		}),
		OverdueReservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reservations_overdue",
			Help: "Active reservations past their expected return date at the last sweep",
		}),
	}

	reg.MustRegister(
		m.CreateTotal,
		m.ReturnTotal,
		m.LateFeeAmount,
		m.OpLatencyMS,
		m.CompensationFailures,
		m.OverdueReservations,
	)

	return m
}
