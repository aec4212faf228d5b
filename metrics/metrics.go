// Package metrics exposes Prometheus instrumentation for pipeline
// executions, step durations, and queue depth. Grounded on the teacher's
// module.MetricsCollector (module/metrics.go): a struct of pre-built
// CounterVec/HistogramVec/GaugeVec fields registered against a private
// prometheus.Registry and exposed via promhttp, generalized from
// workflow/module operation labels to pocsync's pipeline/step/queue labels.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector wraps the Prometheus metrics recorded by pocsync. The zero
// value is not usable; construct with New.
type Collector struct {
	registry *prometheus.Registry

	PipelineExecutions *prometheus.CounterVec
	StepDuration       *prometheus.HistogramVec
	PipelineDuration   *prometheus.HistogramVec
	QueueDepth         *prometheus.GaugeVec
	IngressRequests    *prometheus.CounterVec
}

// New creates a Collector with its own Prometheus registry, so that
// pocsync's /metrics endpoint never accidentally exposes process-global
// collectors registered by an imported library.
func New() *Collector {
	reg := prometheus.NewRegistry()

	pipelineExecutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pocsync_pipeline_executions_total",
		Help: "Total number of pipeline executions by terminal status",
	}, []string{"pipeline_name", "status"})

	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pocsync_step_duration_seconds",
		Help:    "Duration of individual step executions in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"integration", "action", "status"})

	pipelineDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pocsync_pipeline_duration_seconds",
		Help:    "Duration of whole pipeline executions in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"pipeline_name", "status"})

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pocsync_queue_depth",
		Help: "Last observed message count for a broker queue",
	}, []string{"queue"})

	ingressRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pocsync_ingress_requests_total",
		Help: "Total number of ingress HTTP requests by mode and status",
	}, []string{"mode", "status_code"})

	reg.MustRegister(pipelineExecutions, stepDuration, pipelineDuration, queueDepth, ingressRequests)

	return &Collector{
		registry:           reg,
		PipelineExecutions: pipelineExecutions,
		StepDuration:       stepDuration,
		PipelineDuration:   pipelineDuration,
		QueueDepth:         queueDepth,
		IngressRequests:    ingressRequests,
	}
}

// Handler returns an http.Handler serving this collector's metrics in the
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordStep records the outcome and duration of a single step execution.
func (c *Collector) RecordStep(integration, action, status string, d time.Duration) {
	c.StepDuration.WithLabelValues(integration, action, status).Observe(d.Seconds())
}

// RecordPipeline records the terminal outcome and duration of a whole
// pipeline execution.
func (c *Collector) RecordPipeline(pipelineName, status string, d time.Duration) {
	c.PipelineExecutions.WithLabelValues(pipelineName, status).Inc()
	c.PipelineDuration.WithLabelValues(pipelineName, status).Observe(d.Seconds())
}

// SetQueueDepth records the last observed depth for a broker queue.
func (c *Collector) SetQueueDepth(queue string, depth float64) {
	c.QueueDepth.WithLabelValues(queue).Set(depth)
}

// RecordIngress records one ingress HTTP request.
func (c *Collector) RecordIngress(mode string, statusCode int) {
	c.IngressRequests.WithLabelValues(mode, strconv.Itoa(statusCode)).Inc()
}
