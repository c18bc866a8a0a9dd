// Package metrics exposes Prometheus collectors for the scrape run.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeAttemptsTotal      *prometheus.CounterVec
	scrapeRoundsTotal        prometheus.Counter
	scrapeActiveWorkers      prometheus.Gauge
	scrapePendingItems       prometheus.Gauge
	scrapeItemDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_attempts_total",
				Help: "Total number of item attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scrapeRoundsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_rounds_total",
				Help: "Total number of dispatch rounds executed.",
			},
		)

		scrapeActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_workers",
				Help: "Number of workers currently processing a shard.",
			},
		)

		scrapePendingItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_pending_items",
				Help: "Number of items awaiting an attempt in the current round.",
			},
		)

		scrapeItemDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_item_duration_seconds",
				Help:    "Histogram of per-item processing latencies, labeled by outcome.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
			},
			[]string{"outcome"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt increments the attempt counter for the given outcome.
func ObserveAttempt(outcome string) {
	if scrapeAttemptsTotal == nil {
		return
	}
	scrapeAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRound increments the round counter.
func ObserveRound() {
	if scrapeRoundsTotal == nil {
		return
	}
	scrapeRoundsTotal.Inc()
}

// SetPendingItems records the size of the current pending set.
func SetPendingItems(n int) {
	if scrapePendingItems == nil {
		return
	}
	scrapePendingItems.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if scrapeActiveWorkers == nil {
		return
	}
	scrapeActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if scrapeActiveWorkers == nil {
		return
	}
	scrapeActiveWorkers.Dec()
}

// ObserveItemDuration records how long one item attempt took.
func ObserveItemDuration(outcome string, duration time.Duration) {
	if scrapeItemDurationSecond == nil {
		return
	}
	scrapeItemDurationSecond.WithLabelValues(outcome).Observe(duration.Seconds())
}
