// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "actionlog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "actionlog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route"})

	entriesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "actionlog",
		Name:      "entries_written_total",
		Help:      "Log entries accepted by save and upload",
	})

	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "actionlog",
		Subsystem: "retention",
		Name:      "sweeps_total",
		Help:      "Retention sweeps by trigger",
	}, []string{"trigger"})

	filesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "actionlog",
		Subsystem: "retention",
		Name:      "files_deleted_total",
		Help:      "Log files removed by retention sweeps",
	})

	fileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "actionlog",
		Name:      "file_errors_total",
		Help:      "Per-file failures skipped during sweep or index rebuild",
	}, []string{"stage"})

	indexEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "actionlog",
		Subsystem: "index",
		Name:      "entries",
		Help:      "Entries held by the in-memory index after the last rebuild",
	})

	indexRebuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "actionlog",
		Subsystem: "index",
		Name:      "rebuild_duration_seconds",
		Help:      "Time spent rebuilding the in-memory index",
		Buckets:   histogramBuckets,
	})
)

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, route string, status int, d time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// AddEntriesWritten counts accepted entries.
func AddEntriesWritten(n int) { entriesWritten.Add(float64(n)) }

// ObserveSweep records a finished sweep.
func ObserveSweep(trigger string, deleted int) {
	sweepsTotal.WithLabelValues(trigger).Inc()
	filesDeleted.Add(float64(deleted))
}

// FileError counts a skipped file. stage is "sweep" or "rebuild".
func FileError(stage string) { fileErrors.WithLabelValues(stage).Inc() }

// ObserveRebuild records the size and duration of an index rebuild.
func ObserveRebuild(entries int, d time.Duration) {
	indexEntries.Set(float64(entries))
	indexRebuildSeconds.Observe(d.Seconds())
}
