package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// queueCollector reads queue stats at scrape time
type queueCollector struct {
	queues []QueueSource

	depth    *prometheus.Desc
	inFlight *prometheus.Desc
	requests *prometheus.Desc
	breaker  *prometheus.Desc
	trips    *prometheus.Desc
}

func newQueueCollector(queues []QueueSource) *queueCollector {
	labels := []string{"queue"}
	return &queueCollector{
		queues: queues,
		depth: prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "depth"),
			"Pending enrichment requests.", labels, nil),
		inFlight: prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "in_flight"),
			"1 while the queue worker is running a request.", labels, nil),
		requests: prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "requests_total"),
			"Enrichment requests by queue and outcome.", []string{"queue", "outcome"}, nil),
		breaker: prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "breaker_open"),
			"1 while the queue circuit breaker is open.", labels, nil),
		trips: prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "breaker_trips_total"),
			"Times the queue circuit breaker opened.", labels, nil),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
	ch <- c.inFlight
	ch <- c.requests
	ch <- c.breaker
	ch <- c.trips
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	for _, q := range c.queues {
		s := q.Stats()

		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(s.Depth), s.Name)
		ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, boolValue(s.InFlight), s.Name)

		for outcome, n := range map[string]uint64{
			"enqueued":  s.Enqueued,
			"processed": s.Processed,
			"retried":   s.Retried,
			"dropped":   s.Dropped,
			"evicted":   s.Evicted,
		} {
			ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(n), s.Name, outcome)
		}

		if s.Breaker != nil {
			ch <- prometheus.MustNewConstMetric(c.breaker, prometheus.GaugeValue, boolValue(s.Breaker.State == "open"), s.Name)
			ch <- prometheus.MustNewConstMetric(c.trips, prometheus.CounterValue, float64(s.Breaker.Trips), s.Name)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
