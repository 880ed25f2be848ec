// Package metrics provides Prometheus metrics for lock operations.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lock operation metrics
	LockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projlock_lock_operations_total",
			Help: "Total number of lock operations",
		},
		[]string{"operation", "status"}, // operation: "acquire", "release"; status: "success", "timeout", "cancelled", "failure"
	)

	LockContentionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projlock_lock_contentions_total",
			Help: "Total number of acquisitions that had to wait for a held lock",
		},
		[]string{"name"},
	)

	LockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projlock_lock_wait_duration_seconds",
			Help:    "Time spent waiting for a contended lock in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"name"},
	)

	LockHoldDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projlock_lock_hold_duration_seconds",
			Help:    "Time a lock was held by a synchronized section in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name"},
	)

	// Active locks gauge
	ActiveLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "projlock_active_locks",
			Help: "Number of locks currently held by this process",
		},
	)
)

// WriteTextfile writes all registered metrics to path in the text exposition
// format, for pickup by the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
