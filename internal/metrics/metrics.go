// Package metrics owns the process-wide prometheus registry for the
// submission pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// Submissions counts finished submissions by evaluation type and result
	// code ("ok" or an error code).
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defense_submissions_total",
			Help: "Evaluation submissions by evaluation type and result",
		},
		[]string{"evaluation_type", "result"},
	)

	SubmissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "defense_submission_duration_seconds",
			Help:    "Wall time of the submission unit of work",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"evaluation_type"},
	)

	// Completions counts completion transitions by level
	// (defense_object, room, defense).
	Completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defense_completions_total",
			Help: "Completion transitions by level",
		},
		[]string{"level"},
	)

	RevocationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "defense_access_revocation_failures_total",
			Help: "Access revocations that failed and were skipped",
		},
	)

	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "defense_ws_clients",
			Help: "Connected completion-event websocket clients",
		},
	)
)

//nolint:gochecknoinits // collectors are registered once per process
func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Submissions,
		SubmissionDuration,
		Completions,
		RevocationFailures,
		WebsocketClients,
	)
}

func Registry() *prometheus.Registry { return registry }

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
