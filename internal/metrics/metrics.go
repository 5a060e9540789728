// Package metrics holds the Prometheus collectors of the monitoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Pipeline
// ==============================================================================

var (
	// PipelineRuns counts orchestrator runs by outcome (completed, aborted).
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_pipeline_runs_total",
		Help: "Total pipeline runs by outcome",
	}, []string{"outcome"})

	// ConfigExecutions counts per-configuration results by status.
	ConfigExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_config_executions_total",
		Help: "Per-configuration executions by status",
	}, []string{"status", "index"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitoring_pipeline_duration_seconds",
		Help:    "Pipeline run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	// RecordsCreated counts monitoring records actually inserted (duplicates excluded).
	RecordsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_records_created_total",
		Help: "Monitoring records created by index",
	}, []string{"index"})

	ImagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_images_skipped_total",
		Help: "Images skipped during index calculation by reason",
	}, []string{"reason"})
)

// ==============================================================================
// Alerts
// ==============================================================================

var (
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_alerts_raised_total",
		Help: "Alerts raised by type and severity",
	}, []string{"type", "severity"})

	AlertPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitoring_alert_publish_failures_total",
		Help: "Alert notifications that could not be published",
	})
)

// ==============================================================================
// Gateway
// ==============================================================================

var (
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_gateway_requests_total",
		Help: "Earth observation gateway requests by operation and result",
	}, []string{"operation", "result"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitoring_gateway_request_duration_seconds",
		Help:    "Earth observation gateway request latency",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"operation"})
)

// ==============================================================================
// Jobs
// ==============================================================================

var (
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_jobs_processed_total",
		Help: "Queued jobs processed by type and result",
	}, []string{"type", "result"})

	JobsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_jobs_deduplicated_total",
		Help: "Job submissions dropped because the job id was already queued",
	}, []string{"type"})
)
