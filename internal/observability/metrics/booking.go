package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
// All methods are safe on a nil receiver so callers can wire metrics
// optionally.
type BookingMetrics struct {
	bookingsTotal   *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	sweptTotal      prometheus.Counter
	commitLatency   prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddc",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddc",
			Subsystem: "booking",
			Name:      "rejections_total",
			Help:      "Structured booking rejections by reason",
		}, []string{"reason"}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddc",
			Subsystem: "booking",
			Name:      "missed_swept_total",
			Help:      "Appointments transitioned to missed by the sweeper",
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ddc",
			Subsystem: "booking",
			Name:      "commit_seconds",
			Help:      "Latency of the locked validate-and-commit section",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.rejectionsTotal, m.sweptTotal, m.commitLatency)
	return m
}

func (m *BookingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *BookingMetrics) ObserveSwept(count int) {
	if m == nil {
		return
	}
	m.sweptTotal.Add(float64(count))
}

func (m *BookingMetrics) ObserveCommitLatency(seconds float64) {
	if m == nil {
		return
	}
	m.commitLatency.Observe(seconds)
}
