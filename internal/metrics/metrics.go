// Package metrics exposes run outcomes as Prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"NewsHarvester/internal/usecase"
)

// Namespace prefixes every series.
const Namespace = "news_harvester"

// Metrics implements usecase.Recorder.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	LastSuccess      prometheus.Gauge
	ArticlesIngested prometheus.Counter
	CellsWritten     prometheus.Counter
	DegradedBodies   prometheus.Counter
	ReviewDecisions  *prometheus.CounterVec
	CrossPosts       prometheus.Counter
	DegradedJudgings prometheus.Counter
}

var _ usecase.Recorder = (*Metrics)(nil)

// New creates and registers all series on reg; nil means the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Trigger invocations by mode and outcome",
		}, []string{"mode", "outcome"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		ArticlesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "articles_ingested_total",
			Help:      "Articles appended to the store",
		}),
		CellsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cells_written_total",
			Help:      "Cells written by ingestion",
		}),
		DegradedBodies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "degraded_bodies_total",
			Help:      "Articles stored with a sentinel body",
		}),
		ReviewDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "review_decisions_total",
			Help:      "Review outcomes by decision",
		}, []string{"decision"}),
		CrossPosts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cross_posts_total",
			Help:      "Published articles flagged for cross-posting",
		}),
		DegradedJudgings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "degraded_judgments_total",
			Help:      "Judge failures degraded to rejection",
		}),
	}
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(mode, outcome string, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(mode, outcome).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if outcome == "success" {
		m.LastSuccess.SetToCurrentTime()
	}
}

// ObserveIngest adds ingestion counts.
func (m *Metrics) ObserveIngest(newCount, cells, degraded int) {
	m.ArticlesIngested.Add(float64(newCount))
	m.CellsWritten.Add(float64(cells))
	m.DegradedBodies.Add(float64(degraded))
}

// ObserveReview adds review counts.
func (m *Metrics) ObserveReview(published, rejected, crossPosted, degraded int) {
	m.ReviewDecisions.WithLabelValues("published").Add(float64(published))
	m.ReviewDecisions.WithLabelValues("rejected").Add(float64(rejected))
	m.CrossPosts.Add(float64(crossPosted))
	m.DegradedJudgings.Add(float64(degraded))
}
