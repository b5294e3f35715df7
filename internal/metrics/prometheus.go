/*-------------------------------------------------------------------------
 *
 * prometheus.go
 *    Prometheus instrumentation for the content pipeline
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/metrics/prometheus.go
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	/* Request metrics */
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticallabs_pipeline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticallabs_pipeline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	/* Crew metrics */
	crewInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticallabs_pipeline_crew_invocations_total",
			Help: "Total number of crew invocations",
		},
		[]string{"crew_type", "status"},
	)

	crewInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticallabs_pipeline_crew_invocation_duration_seconds",
			Help:    "Crew invocation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"crew_type"},
	)

	/* LLM metrics */
	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticallabs_pipeline_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"crew_type"},
	)

	llmCostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticallabs_pipeline_llm_cost_usd_total",
			Help: "Total LLM cost in USD",
		},
		[]string{"crew_type"},
	)

	/* Pipeline metrics */
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticallabs_pipeline_runs_total",
			Help: "Total number of full pipeline runs",
		},
		[]string{"status"},
	)

	pipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticallabs_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	/* Workflow metrics */
	workflowTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticallabs_pipeline_workflow_tasks_total",
			Help: "Total number of workflow tasks executed",
		},
		[]string{"task_type", "status"},
	)

	workflowTasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticallabs_pipeline_workflow_tasks_running",
			Help: "Number of workflow tasks currently running",
		},
	)

	/* Results store metrics */
	resultsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticallabs_pipeline_results_stored_total",
			Help: "Total number of results stored",
		},
		[]string{"crew_type"},
	)

	/* Database connection pool metrics */
	dbPoolOpenConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verticallabs_pipeline_db_pool_open_connections",
			Help: "Number of open database connections",
		},
		[]string{"database"},
	)

	dbPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verticallabs_pipeline_db_pool_idle_connections",
			Help: "Number of idle database connections",
		},
		[]string{"database"},
	)

	dbPoolInUseConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verticallabs_pipeline_db_pool_in_use_connections",
			Help: "Number of database connections in use",
		},
		[]string{"database"},
	)
)

/* RecordHTTPRequest records an HTTP request */
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	/* Convert status code to status class for better PromQL queries */
	statusClass := "unknown"
	if status >= 200 && status < 300 {
		statusClass = "2xx"
	} else if status >= 300 && status < 400 {
		statusClass = "3xx"
	} else if status >= 400 && status < 500 {
		statusClass = "4xx"
	} else if status >= 500 {
		statusClass = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, statusClass).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

/* RecordCrewInvocation records a crew invocation */
func RecordCrewInvocation(crewType, status string, duration time.Duration) {
	crewInvocationsTotal.WithLabelValues(crewType, status).Inc()
	crewInvocationDuration.WithLabelValues(crewType).Observe(duration.Seconds())
}

/* RecordLLMUsage records token and cost consumption for a crew */
func RecordLLMUsage(crewType string, tokens int, cost float64) {
	llmTokensTotal.WithLabelValues(crewType).Add(float64(tokens))
	llmCostTotal.WithLabelValues(crewType).Add(cost)
}

/* RecordPipelineRun records a completed full pipeline run */
func RecordPipelineRun(status string) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
}

/* RecordPipelineStage records a pipeline stage duration */
func RecordPipelineStage(stage string, duration time.Duration) {
	pipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

/* RecordWorkflowTaskStarted records a workflow task entering the running state */
func RecordWorkflowTaskStarted() {
	workflowTasksRunning.Inc()
}

/* RecordWorkflowTaskFinished records a workflow task reaching a terminal state */
func RecordWorkflowTaskFinished(taskType, status string) {
	workflowTasksTotal.WithLabelValues(taskType, status).Inc()
	workflowTasksRunning.Dec()
}

/* RecordResultStored records a result being persisted */
func RecordResultStored(crewType string) {
	resultsStoredTotal.WithLabelValues(crewType).Inc()
}

/* RecordDBPoolStats records database connection pool statistics */
func RecordDBPoolStats(database string, openConns, idleConns, inUse int) {
	dbPoolOpenConns.WithLabelValues(database).Set(float64(openConns))
	dbPoolIdleConns.WithLabelValues(database).Set(float64(idleConns))
	dbPoolInUseConns.WithLabelValues(database).Set(float64(inUse))
}

/* Handler returns the Prometheus metrics handler */
func Handler() http.Handler {
	return promhttp.Handler()
}
