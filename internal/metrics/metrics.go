// Package metrics exports refresh cycle and enrichment queue metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"event-enricher/internal/enrichment"
	"event-enricher/internal/pipeline"
)

const namespace = "event_enricher"

// QueueSource is anything reporting enrichment queue stats
type QueueSource interface {
	Stats() enrichment.Stats
}

// Metrics holds the cycle counters. Queue metrics are collected on scrape.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec // labels: outcome={success,feed_error,timed_out}
	CycleDuration prometheus.Histogram
	FeedEvents    *prometheus.CounterVec // labels: feed, outcome={stored,failed}
	LastSuccess   prometheus.Gauge
	Recalculated  prometheus.Counter
	Purged        prometheus.Counter
}

// New creates the metrics and registers them, together with the queue
// collector and the cycle-in-progress gauge, on reg
func New(reg prometheus.Registerer, state *pipeline.RuntimeState, queues ...QueueSource) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Completed refresh cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Duration of a full refresh cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Feed events processed by feed and outcome.",
		}, []string{"feed", "outcome"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_last_success_timestamp_seconds",
			Help:      "Unix time of the last refresh cycle without feed errors.",
		}),
		Recalculated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distances_recalculated_total",
			Help:      "Stored distances rewritten after a reference change.",
		}),
		Purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_purged_total",
			Help:      "Ended events deleted by the cleanup job.",
		}),
	}

	collectors := []prometheus.Collector{
		m.CyclesTotal,
		m.CycleDuration,
		m.FeedEvents,
		m.LastSuccess,
		m.Recalculated,
		m.Purged,
		newQueueCollector(queues),
	}
	if state != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_in_progress",
			Help:      "1 while a refresh cycle is running.",
		}, func() float64 {
			if state.IsCycleInProgress() {
				return 1
			}
			return 0
		}))
	}
	reg.MustRegister(collectors...)

	return m
}

// CycleFinished records a finished refresh cycle
func (m *Metrics) CycleFinished(report pipeline.CycleReport) {
	outcome := "success"
	switch {
	case report.TimedOut:
		outcome = "timed_out"
	case report.Failed():
		outcome = "feed_error"
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(report.Duration.Seconds())

	for _, feed := range report.Feeds {
		m.FeedEvents.WithLabelValues(string(feed.Feed), "stored").Add(float64(feed.Events - feed.Failed))
		m.FeedEvents.WithLabelValues(string(feed.Feed), "failed").Add(float64(feed.Failed))
	}

	if outcome == "success" {
		m.LastSuccess.Set(float64(report.StartedAt.Add(report.Duration).Unix()))
	}
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// EventsPurged records a cleanup run
func (m *Metrics) EventsPurged(n int64) {
	m.Purged.Add(float64(n))
}

// DistancesRecalculated records the rows rewritten after a reference change
func (m *Metrics) DistancesRecalculated(n int) {
	m.Recalculated.Add(float64(n))
}
