package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stock_sentinel"

var (
	once sync.Once

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Symbol and pool cache lookups by outcome (hit, stale, miss, corrupt)",
		},
		[]string{"kind", "outcome"},
	)

	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Upstream fetch attempts by operation and result",
		},
		[]string{"op", "result"},
	)

	Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screen",
			Name:      "verdicts_total",
			Help:      "Technical verdicts by outcome (pass, fail, invalid)",
		},
		[]string{"outcome"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "screen",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a screening run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	QuotePolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "quote_polls_total",
			Help:      "Real-time quote polls by result",
		},
		[]string{"result"},
	)

	Signals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "signals_total",
			Help:      "Confirmed pullback signals",
		},
	)
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(CacheLookups, FetchAttempts, Verdicts, RunDuration, QuotePolls, Signals)
	})
}
