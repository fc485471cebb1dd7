// Package metrics is the Prometheus implementation of blockrev.Metrics.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/calvinalkan/blockrev"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records pipeline metrics into a Prometheus registry.
type Collector struct {
	operations   *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	opBytes      *prometheus.CounterVec
	cancels      *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastIOCounts *prometheus.GaugeVec
	reversals    prometheus.Counter
}

var _ blockrev.Metrics = (*Collector)(nil)

// New registers the blockrev metrics on reg.
func New(reg prometheus.Registerer) *Collector {
	return &Collector{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockrev_io_operations_total",
				Help: "Total number of completed I/O operations by kind and status",
			},
			[]string{"op", "status"}, // op: read, write, sync; status: ok, error
		),
		opDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "blockrev_io_duration_milliseconds",
				Help: "Duration of I/O operations in milliseconds",
				Buckets: []float64{
					0.01, // 10us - page cache hits
					0.1,  // 100us
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms - typical fdatasync on SSD
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms - large blocks
					1000, // 1s
				},
			},
			[]string{"op"},
		),
		opBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockrev_io_bytes_total",
				Help: "Total bytes transferred by read and write operations",
			},
			[]string{"op"},
		),
		cancels: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockrev_cancel_total",
				Help: "Outcomes of cancelling outstanding operations",
			},
			[]string{"result"}, // all_done, canceled, not_canceled
		),
		runs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockrev_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"}, // completed, cancelled, skipped, failed
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blockrev_run_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		lastIOCounts: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "blockrev_last_run_operations",
				Help: "Operation counts of the most recent run",
			},
			[]string{"op"},
		),
		reversals: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockrev_reversals_total",
				Help: "Total number of fully reversed blocks",
			},
		),
	}
}

// ObserveOperation implements blockrev.Metrics.
func (c *Collector) ObserveOperation(kind blockrev.OpKind, bytes int, d time.Duration, err error) {
	op := kind.String()

	status := "ok"
	if err != nil {
		status = "error"
	}

	c.operations.WithLabelValues(op, status).Inc()
	c.opDuration.WithLabelValues(op).Observe(float64(d) / float64(time.Millisecond))

	if bytes > 0 {
		c.opBytes.WithLabelValues(op).Add(float64(bytes))
	}
}

// ObserveCancel implements blockrev.Metrics.
func (c *Collector) ObserveCancel(res blockrev.CancelResult) {
	c.cancels.WithLabelValues(res.String()).Inc()
}

// ObserveRun implements blockrev.Metrics.
func (c *Collector) ObserveRun(stats blockrev.Stats, d time.Duration, err error) {
	c.runs.WithLabelValues(outcome(stats, err)).Inc()
	c.runDuration.Observe(d.Seconds())
	c.reversals.Add(float64(stats.Reversals))

	c.lastIOCounts.WithLabelValues("read").Set(float64(stats.Reads))
	c.lastIOCounts.WithLabelValues("write").Set(float64(stats.Writes))
	c.lastIOCounts.WithLabelValues("sync").Set(float64(stats.Syncs))
}

func outcome(stats blockrev.Stats, err error) string {
	switch {
	case err != nil:
		return "failed"
	case stats.Skipped:
		return "skipped"
	case stats.Cancelled:
		return "cancelled"
	default:
		return "completed"
	}
}

// WriteTextfile writes the metrics gathered from g to path in the Prometheus
// text format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return errors.New("metrics textfile path is empty")
	}

	err := prometheus.WriteToTextfile(path, g)
	if err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
