package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bansu_harness_submissions_total",
		Help: "Total number of job submissions sent",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bansu_harness_runs_total",
		Help: "Total number of runs by outcome and the stage that decided it",
	}, []string{"outcome", "stage"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bansu_harness_notifications_total",
		Help: "Total number of job notifications received by status",
	}, []string{"status"})

	MalformedNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bansu_harness_malformed_notifications_total",
		Help: "Total number of job channel messages that were not valid JSON",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bansu_harness_stage_duration_seconds",
		Help:    "Time spent in each run stage in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bansu_harness_run_duration_seconds",
		Help:    "Time taken by a whole run in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	ArtifactBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bansu_harness_artifact_bytes",
		Help:    "Size of retrieved artifacts in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bansu_harness_active_runs",
		Help: "Current number of runs in flight",
	})
)

// WriteTextfile dumps the default registry in the text exposition format,
// for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
