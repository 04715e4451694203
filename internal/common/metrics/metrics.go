package metrics

import (
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

	WorkflowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_workflow_runs_total",
			Help: "Orchestrator invocations by outcome",
		},
		[]string{"workflow", "outcome"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_workflow_duration_seconds",
			Help:    "Orchestrator run time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	WorkflowStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_stage_failures_total",
			Help: "Non-fatal stage errors recorded into workflow results",
		},
		[]string{"workflow", "stage"},
	)

	TasksScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_tasks_scheduled_total",
			Help: "Scheduled tasks produced by orchestrators",
		},
		[]string{"task_type"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_deliveries_total",
			Help: "Messages handed to a delivery channel",
		},
		[]string{"channel", "outcome"},
	)

	RunnerTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_runner_tasks_total",
			Help: "Due tasks processed by the runner",
		},
		[]string{"task_type", "outcome"},
	)
)
