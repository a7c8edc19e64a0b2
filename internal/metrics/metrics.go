// Package metrics exposes Prometheus instrumentation for monitor runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsmonitor/internal/domain"
)

const namespace = "newsmonitor"

// Article results.
const (
	ResultProcessed = "processed"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// Recorder holds all monitor metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	ArticlesTotal   *prometheus.CounterVec
	FailuresByStage *prometheus.CounterVec
	SkippedTicks    prometheus.Counter
	RunDuration     prometheus.Histogram
	LastRunUnix     prometheus.Gauge
}

// New creates and registers the monitor metrics.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		ArticlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_total",
				Help:      "Articles seen by the pipeline by result",
			},
			[]string{"result"},
		),
		FailuresByStage: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "article_failures_total",
				Help:      "Per-article failures by pipeline stage",
			},
			[]string{"stage"},
		),
		SkippedTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "skipped_ticks_total",
			Help:      "Scheduled fire times dropped because a run was still executing",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		}),
		LastRunUnix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(report domain.RunReport, outcome string) {
	r.RunsTotal.WithLabelValues(outcome).Inc()
	r.ArticlesTotal.WithLabelValues(ResultProcessed).Add(float64(report.ProcessedOK))
	r.ArticlesTotal.WithLabelValues(ResultSkipped).Add(float64(report.SkippedDuplicate))
	r.ArticlesTotal.WithLabelValues(ResultFailed).Add(float64(report.Failed))
	for _, f := range report.Failures {
		r.FailuresByStage.WithLabelValues(string(f.Stage)).Inc()
	}
	r.RunDuration.Observe(report.Duration().Seconds())
	if !report.FinishedAt.IsZero() {
		r.LastRunUnix.Set(float64(report.FinishedAt.Unix()))
	}
}

// ObserveSkippedTicks counts overrun fire times.
func (r *Recorder) ObserveSkippedTicks(missed int) {
	r.SkippedTicks.Add(float64(missed))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
