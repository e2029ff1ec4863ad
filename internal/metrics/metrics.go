// Package metrics collects and exposes Prometheus metrics for the passport ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services and the HTTP API report outcomes to.
type Recorder interface {
	RecordScan(outcome string)
	RecordRedemption(outcome string)
	RecordPointsCredited(points int64)
	RecordPointsSpent(points int64)
	RecordStoreError(op string)
	RecordCorruptRecord(record string)
	RecordHTTPRequest(route string, status int, duration time.Duration)
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	scans          *prometheus.CounterVec
	redemptions    *prometheus.CounterVec
	pointsCredited prometheus.Counter
	pointsSpent    prometheus.Counter
	storeErrors    *prometheus.CounterVec
	corruptRecords *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_scans_total",
			Help: "Scans processed, by outcome",
		}, []string{"outcome"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_redemptions_total",
			Help: "Redemption attempts, by outcome",
		}, []string{"outcome"}),
		pointsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passport_points_credited_total",
			Help: "Points earned through newly collected stamps",
		}),
		pointsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passport_points_spent_total",
			Help: "Points spent on redeemed rewards",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_store_errors_total",
			Help: "Persistence failures, by operation",
		}, []string{"op"}),
		corruptRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_corrupt_records_total",
			Help: "Stored records that could not be decoded and were treated as empty",
		}, []string{"record"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_http_requests_total",
			Help: "HTTP API requests, by route and status code",
		}, []string{"route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passport_http_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.scans,
		c.redemptions,
		c.pointsCredited,
		c.pointsSpent,
		c.storeErrors,
		c.corruptRecords,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordScan counts a scan outcome.
func (c *Collector) RecordScan(outcome string) {
	c.scans.WithLabelValues(outcome).Inc()
}

// RecordRedemption counts a redemption outcome.
func (c *Collector) RecordRedemption(outcome string) {
	c.redemptions.WithLabelValues(outcome).Inc()
}

// RecordPointsCredited adds newly earned points.
func (c *Collector) RecordPointsCredited(points int64) {
	if points > 0 {
		c.pointsCredited.Add(float64(points))
	}
}

// RecordPointsSpent adds points spent on a redemption.
func (c *Collector) RecordPointsSpent(points int64) {
	if points > 0 {
		c.pointsSpent.Add(float64(points))
	}
}

// RecordStoreError counts a persistence failure.
func (c *Collector) RecordStoreError(op string) {
	c.storeErrors.WithLabelValues(op).Inc()
}

// RecordCorruptRecord counts a record that failed to decode.
func (c *Collector) RecordCorruptRecord(record string) {
	c.corruptRecords.WithLabelValues(record).Inc()
}

// RecordHTTPRequest records one served API request.
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// Nop discards everything. It is the default Recorder of the services.
type Nop struct{}

func (Nop) RecordScan(string) {}
func (Nop) RecordRedemption(string) {}
func (Nop) RecordPointsCredited(int64) {}
func (Nop) RecordPointsSpent(int64) {}
func (Nop) RecordStoreError(string) {}
func (Nop) RecordCorruptRecord(string) {}
func (Nop) RecordHTTPRequest(string, int, time.Duration) {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
