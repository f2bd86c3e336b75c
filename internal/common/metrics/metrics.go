// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	SellerApprovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opas_seller_approvals_total",
			Help: "Seller approval calls by result status",
		},
		[]string{"status"},
	)

	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opas_seller_batch_runs_total",
			Help: "Bulk approval runs by outcome",
		},
		[]string{"outcome"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opas_seller_batch_size",
			Help:    "Number of applications per executed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opas_seller_notifications_total",
			Help: "Approval notifications by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	ReportSinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opas_batch_report_sink_failures_total",
			Help: "Failed batch report publications by sink",
		},
		[]string{"sink"},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opas_exports_total",
			Help: "Export requests by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	ExportBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opas_export_size_bytes",
			Help:    "Size of generated export files",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"format"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opas_admin_api_requests_total",
			Help: "Admin API requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)
)

// ObserveJob records the duration of one job since start.
func ObserveJob(taskType string, start time.Time) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
}
