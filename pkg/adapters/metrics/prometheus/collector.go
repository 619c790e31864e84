// Package prometheus implements the metrics collector using Prometheus.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus.
type Collector struct {
	executionsStarted  prometheus.Counter
	executionsFinished *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	nodesReady         prometheus.Counter
	nodesSkipped       *prometheus.CounterVec
	nodeRetries        prometheus.Counter
	nodesExecuted      *prometheus.CounterVec
	nodeDuration       prometheus.Histogram
	activeExecutions   prometheus.Gauge
	workerPoolIdle     prometheus.Gauge
	workerPoolBusy     prometheus.Gauge
	workerPoolStopped  prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector() *Collector {
	return &Collector{
		executionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dagrun_executions_started_total",
				Help: "Total number of workflow executions started",
			},
		),
		executionsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_executions_finished_total",
				Help: "Total number of workflow executions reaching a terminal status",
			},
			[]string{"status"},
		),
		executionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagrun_execution_duration_seconds",
				Help:    "Workflow execution duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		nodesReady: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dagrun_nodes_ready_total",
				Help: "Total number of node:ready notifications emitted",
			},
		),
		nodesSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_nodes_skipped_total",
				Help: "Total number of nodes skipped",
			},
			[]string{"reason"},
		),
		nodeRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dagrun_node_retries_total",
				Help: "Total number of node retry attempts scheduled",
			},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_nodes_executed_total",
				Help: "Total number of nodes executed by the local pool",
			},
			[]string{"status"},
		),
		nodeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dagrun_node_execution_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		activeExecutions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_active_executions",
				Help: "Number of currently active executions",
			},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_idle",
				Help: "Number of idle executor workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_busy",
				Help: "Number of busy executor workers",
			},
		),
		workerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_stopped",
				Help: "Number of stopped executor workers",
			},
		),
	}
}

// RecordExecutionStarted records a workflow execution start.
func (c *Collector) RecordExecutionStarted() {
	c.executionsStarted.Inc()
}

// RecordExecutionFinished records a workflow execution reaching a terminal
// status.
func (c *Collector) RecordExecutionFinished(status string, duration time.Duration) {
	c.executionsFinished.WithLabelValues(status).Inc()
	c.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeReady records a node:ready notification.
func (c *Collector) RecordNodeReady() {
	c.nodesReady.Inc()
}

// RecordNodeSkipped records a skipped node.
func (c *Collector) RecordNodeSkipped(reason string) {
	c.nodesSkipped.WithLabelValues(reason).Inc()
}

// RecordNodeRetry records a scheduled retry attempt.
func (c *Collector) RecordNodeRetry() {
	c.nodeRetries.Inc()
}

// RecordNodeExecuted records a node execution performed by the local pool.
func (c *Collector) RecordNodeExecuted(status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(status).Inc()
	c.nodeDuration.Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records executor pool status.
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetActiveExecutions sets the number of currently active executions.
func (c *Collector) SetActiveExecutions(count int) {
	c.activeExecutions.Set(float64(count))
}
