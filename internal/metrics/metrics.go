package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

// Metrics holds the pass instruments on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	passes        *prometheus.CounterVec
	bidsSubmitted prometheus.Counter
	committed     prometheus.Counter
	balance       prometheus.Gauge
	lastPass      prometheus.Gauge
	passDuration  prometheus.Histogram
	lockContended prometheus.Counter
}

func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Registry: reg,
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoinvestor_passes_total",
			Help: "Bidding passes by outcome.",
		}, []string{"outcome"}),
		bidsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoinvestor_bids_submitted_total",
			Help: "Bids accepted for submission by the marketplace.",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoinvestor_committed_amount_total",
			Help: "Sum of submitted bid amounts in account currency.",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoinvestor_available_balance",
			Help: "Available balance seen by the latest pass.",
		}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoinvestor_last_pass_timestamp_seconds",
			Help: "Unix time the latest pass finished.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoinvestor_pass_duration_seconds",
			Help:    "Wall time of a bidding pass.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		lockContended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoinvestor_pass_lock_contended_total",
			Help: "Pass triggers skipped because another pass held the lock.",
		}),
	}
	reg.MustRegister(m.passes, m.bidsSubmitted, m.committed, m.balance, m.lastPass, m.passDuration, m.lockContended)
	return m
}

// ObservePass records a finished pass. Nil receivers and results are ignored.
func (m *Metrics) ObservePass(res *bidder.PassResult) {
	if m == nil || res == nil {
		return
	}
	m.passes.WithLabelValues(string(res.Outcome)).Inc()
	if !res.Balance.IsZero() || res.Outcome != bidder.OutcomeFailed {
		m.balance.Set(res.Balance.InexactFloat64())
	}
	if res.Outcome == bidder.OutcomeSubmitted {
		m.bidsSubmitted.Add(float64(len(res.Bids)))
		m.committed.Add(res.Committed().InexactFloat64())
	}
	if !res.FinishedAt.IsZero() {
		m.lastPass.Set(float64(res.FinishedAt.Unix()))
		m.passDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	}
}

func (m *Metrics) LockContended() {
	if m == nil {
		return
	}
	m.lockContended.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
