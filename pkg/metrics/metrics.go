// Package metrics exposes Prometheus collectors for the survey report job.
// The job is a batch run, so the usual sink is a node-exporter textfile.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	recordsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_records_loaded_total",
			Help: "Rows read from each survey dataset.",
		},
		[]string{"dataset"},
	)

	recordsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "survey_records_dropped_total",
			Help: "Participant IDs dropped by the inner join.",
		},
	)

	recordsJoined = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "survey_records_joined",
			Help: "Participants present in all datasets in the last load.",
		},
	)

	analysisDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Wall time spent computing each analysis component.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"component"},
	)

	analysisRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Analysis component runs by outcome.",
		},
		[]string{"component", "status"},
	)

	analysisCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Analysis results served from the result cache.",
		},
		[]string{"component"},
	)

	registered uint32
)

// Register adds the collectors to the package registry once.
func Register() {
	if atomic.CompareAndSwapUint32(&registered, 0, 1) {
		registry.MustRegister(
			recordsLoadedTotal,
			recordsDroppedTotal,
			recordsJoined,
			analysisDurationSeconds,
			analysisRunsTotal,
			analysisCacheHitsTotal,
		)
	}
}

// Registry returns the registry holding the report collectors.
func Registry() *prometheus.Registry {
	Register()
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// RegisterMetrics exposes the collectors on /metrics.
func RegisterMetrics(mux *http.ServeMux) {
	mux.Handle("/metrics", Handler())
}

// WriteTextfile writes the current values for the textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry())
}

// RecordLoaded counts rows read from a dataset.
func RecordLoaded(dataset string, rows int) {
	recordsLoadedTotal.WithLabelValues(dataset).Add(float64(rows))
}

// RecordJoin records the outcome of the inner join.
func RecordJoin(joined, dropped int) {
	recordsJoined.Set(float64(joined))
	recordsDroppedTotal.Add(float64(dropped))
}

// ObserveAnalysis records one component run and its duration.
func ObserveAnalysis(component string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	analysisRunsTotal.WithLabelValues(component, status).Inc()
	analysisDurationSeconds.WithLabelValues(component).Observe(elapsed.Seconds())
}

// RecordCacheHit counts a component served from cache.
func RecordCacheHit(component string) {
	analysisCacheHitsTotal.WithLabelValues(component).Inc()
}
