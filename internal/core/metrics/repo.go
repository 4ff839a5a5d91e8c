package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	repoOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "repo_operations_total", Help: "Count of repository operations by outcome"},
		[]string{"entity", "op", "outcome"},
	)
	repoOpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repo_operation_duration_seconds",
			Help:    "Latency of repository operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity", "op"},
	)
	uowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "unit_of_work_total", Help: "Count of units of work by result"},
		[]string{"result"},
	)
)

func init() { prometheus.MustRegister(repoOpsTotal, repoOpLatency, uowTotal) }

// ObserveRepo records one repository call. outcome is "ok" or an error kind.
func ObserveRepo(entity, op, outcome string, start time.Time) {
	repoOpsTotal.WithLabelValues(entity, op, outcome).Inc()
	repoOpLatency.WithLabelValues(entity, op).Observe(time.Since(start).Seconds())
}

// ObserveUnitOfWork records a commit or rollback.
func ObserveUnitOfWork(result string) {
	uowTotal.WithLabelValues(result).Inc()
}
