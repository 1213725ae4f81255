// Package metrics exposes the last run's counts as Prometheus gauges and can push them
// to a Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"kbsync/internal/config"
)

// MetricsNamespace prefixes every metric name.
const MetricsNamespace = "kbsync"

// Run results used as the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// RunStats is what one job run reports.
type RunStats struct {
	Finished time.Time
	Duration time.Duration
	Added    int
	Updated  int
	Skipped  int
	Uploaded int
	Success  bool
}

// Recorder owns a private registry so repeated construction in tests and in
// scheduled mode never collides with the global one.
type Recorder struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	ArticlesAdded   prometheus.Gauge
	ArticlesUpdated prometheus.Gauge
	ArticlesSkipped prometheus.Gauge
	FilesUploaded   prometheus.Gauge
	RunDuration     prometheus.Gauge
	LastSuccess     prometheus.Gauge
	RunsTotal       *prometheus.CounterVec
}

// NewRecorder creates the gauges. When cfg.PushgatewayURL is empty, Push is a no-op.
func NewRecorder(cfg config.MetricsConfig) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		ArticlesAdded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "articles_added",
			Help:      "Articles classified as added in the last run.",
		}),
		ArticlesUpdated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "articles_updated",
			Help:      "Articles classified as updated in the last run.",
		}),
		ArticlesSkipped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "articles_skipped",
			Help:      "Articles unchanged since the previous run.",
		}),
		FilesUploaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "files_uploaded",
			Help:      "Files uploaded to the vector store in the last run.",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run.",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "runs_total",
			Help:      "Runs by result since the process started.",
		}, []string{"result"}),
	}

	if cfg.PushgatewayURL != "" {
		job := cfg.Job
		if job == "" {
			job = MetricsNamespace
		}

		r.pusher = push.New(cfg.PushgatewayURL, job).Gatherer(reg)
	}

	return r
}

// Registry returns the registry holding the run metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Enabled reports whether a Pushgateway is configured.
func (r *Recorder) Enabled() bool {
	return r.pusher != nil
}

// Observe records a finished run. Counts are only updated for successful runs, so a
// failed run leaves the previous values visible.
func (r *Recorder) Observe(stats RunStats) {
	r.RunDuration.Set(stats.Duration.Seconds())

	if !stats.Success {
		r.RunsTotal.WithLabelValues(ResultFailure).Inc()
		return
	}

	r.RunsTotal.WithLabelValues(ResultSuccess).Inc()
	r.ArticlesAdded.Set(float64(stats.Added))
	r.ArticlesUpdated.Set(float64(stats.Updated))
	r.ArticlesSkipped.Set(float64(stats.Skipped))
	r.FilesUploaded.Set(float64(stats.Uploaded))

	finished := stats.Finished
	if finished.IsZero() {
		finished = time.Now()
	}

	r.LastSuccess.Set(float64(finished.Unix()))
}

// Push sends every metric to the Pushgateway, replacing the job's previous group.
func (r *Recorder) Push(ctx context.Context) error {
	if r.pusher == nil {
		return nil
	}

	if err := r.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}

	return nil
}
