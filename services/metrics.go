package services

import "github.com/prometheus/client_golang/prometheus"

var (
	revisionsCounter     *prometheus.CounterVec
	citationsCounter     prometheus.Counter
	batchesCounter       *prometheus.CounterVec
	batchDuration        prometheus.Histogram
	remoteFetchesCounter *prometheus.CounterVec
)

func init() {
	revisionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicite_revisions_total",
			Help: "Revisions read from sources, by outcome (processed, filtered, skipped).",
		},
		[]string{"outcome"},
	)
	citationsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wikicite_citations_written_total",
			Help: "Citation occurrences written to the store.",
		},
	)
	batchesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicite_batches_total",
			Help: "Dispatched batches, by status.",
		},
		[]string{"status"},
	)
	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikicite_batch_duration_seconds",
			Help:    "Time to canonicalize, resolve and store one batch.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
	remoteFetchesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicite_remote_fetches_total",
			Help: "Remote revision fetches, by status.",
		},
		[]string{"status"},
	)
	prometheus.MustRegister(revisionsCounter, citationsCounter, batchesCounter, batchDuration, remoteFetchesCounter)
}
