// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocap_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocap_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocap_graph_node_duration_seconds",
			Help:    "Duration of a single graph node in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"node"},
	)

	NodeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocap_graph_node_fallbacks_total",
			Help: "Number of times a node degraded to its fallback output",
		},
		[]string{"node"},
	)

	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocap_workflows_total",
			Help: "Total number of OCAP workflows by outcome and classification",
		},
		[]string{"status", "classification"},
	)

	BackgroundTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocap_background_tasks_total",
			Help: "Background tasks by type and outcome",
		},
		[]string{"task_type", "outcome"},
	)

	BackgroundQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocap_background_queue_depth",
			Help: "Number of tasks waiting in the background queue",
		},
	)

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
)
