package gcra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the limiter's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	TokensGranted prometheus.Counter
	StoreErrors   *prometheus.CounterVec
	ScriptLoads   prometheus.Counter
	AllowDuration prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gcra_decisions_total",
				Help: "Rate limit decisions by outcome (allowed, partial, denied)",
			},
			[]string{"outcome"},
		),
		TokensGranted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gcra_tokens_granted_total",
				Help: "Tokens granted across all keys",
			},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gcra_store_errors_total",
				Help: "Store failures by operation",
			},
			[]string{"op"},
		),
		ScriptLoads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gcra_script_loads_total",
				Help: "SCRIPT LOAD round-trips, including reloads after NOSCRIPT",
			},
		),
		AllowDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gcra_allow_duration_seconds",
				Help:    "Allow latency in seconds, store round-trip included",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(m.Decisions, m.TokensGranted, m.StoreErrors, m.ScriptLoads, m.AllowDuration)
	return m
}

func (m *Metrics) observe(res *Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AllowDuration.Observe(elapsed.Seconds())
	if res == nil {
		return
	}
	outcome := "allowed"
	switch {
	case !res.OK():
		outcome = "denied"
	case res.Partial():
		outcome = "partial"
	}
	m.Decisions.WithLabelValues(outcome).Inc()
	m.TokensGranted.Add(float64(res.Allowed))
}

func (m *Metrics) storeError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) scriptLoaded() {
	if m == nil {
		return
	}
	m.ScriptLoads.Inc()
}
