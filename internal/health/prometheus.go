package health

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the metrics counters to a Prometheus registry. The
// atomic counters stay the source of truth; Collect reads them and emits
// const metrics.
type Collector struct {
	metrics *Metrics
	monitor *Monitor

	total      *prometheus.Desc
	successful *prometheus.Desc
	failed     *prometheus.Desc
	inProgress *prometheus.Desc
	byCategory *prometheus.Desc
	healthy    *prometheus.Desc
}

// NewCollector creates a collector over the given counters and monitor.
func NewCollector(metrics *Metrics, monitor *Monitor) *Collector {
	return &Collector{
		metrics: metrics,
		monitor: monitor,
		total: prometheus.NewDesc("cheshire_requests_total",
			"Total requests accepted.", nil, nil),
		successful: prometheus.NewDesc("cheshire_requests_successful_total",
			"Requests completed successfully.", nil, nil),
		failed: prometheus.NewDesc("cheshire_requests_failed_total",
			"Requests completed with a failure.", nil, nil),
		inProgress: prometheus.NewDesc("cheshire_requests_in_progress",
			"Requests currently executing.", nil, nil),
		byCategory: prometheus.NewDesc("cheshire_request_failures_total",
			"Failed requests by status category.", []string{"category"}, nil),
		healthy: prometheus.NewDesc("cheshire_healthy",
			"1 when the process is RUNNING, 0 otherwise.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.successful
	ch <- c.failed
	ch <- c.inProgress
	ch <- c.byCategory
	ch <- c.healthy
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(snap.Total))
	ch <- prometheus.MustNewConstMetric(c.successful, prometheus.CounterValue, float64(snap.Successful))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(snap.Failed))
	ch <- prometheus.MustNewConstMetric(c.inProgress, prometheus.GaugeValue, float64(snap.InProgress))

	for category, count := range snap.ErrorCategories {
		ch <- prometheus.MustNewConstMetric(c.byCategory, prometheus.CounterValue, float64(count), category)
	}

	healthy := 0.0
	if c.monitor.Status() == StatusRunning {
		healthy = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthy)
}
