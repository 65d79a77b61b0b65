package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the podplay service
type Metrics struct {
	// Chat metrics
	ChatRequestsTotal *prometheus.CounterVec
	ChatLatency       *prometheus.HistogramVec
	RoutingDecisions  *prometheus.CounterVec

	// Model metrics
	ModelRequests *prometheus.CounterVec
	ModelTokens   *prometheus.CounterVec
	ModelLatency  *prometheus.HistogramVec

	// Sandbox metrics
	SessionsActive    prometheus.Gauge
	SessionsTotal     *prometheus.CounterVec
	TasksTotal        *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec
	WorkflowRuns      *prometheus.CounterVec

	// Memory metrics
	MemoryRecalls   *prometheus.CounterVec
	MemoryCacheHits prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSRoomMembers *prometheus.GaugeVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			ChatRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_chat_requests_total",
					Help: "Total number of chat requests routed to agent variants",
				},
				[]string{"variant", "success"},
			),
			ChatLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "podplay_chat_duration_seconds",
					Help:    "Chat request duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to 51s
				},
				[]string{"variant"},
			),
			RoutingDecisions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_routing_decisions_total",
					Help: "Routing decisions by target",
				},
				[]string{"target", "matched"}, // matched: "keyword" or "default"
			),

			ModelRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_model_requests_total",
					Help: "Total number of model inference requests",
				},
				[]string{"model", "success"},
			),
			ModelTokens: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_model_tokens_total",
					Help: "Total tokens processed by model inference",
				},
				[]string{"model", "type"}, // type: input, output
			),
			ModelLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "podplay_model_request_duration_seconds",
					Help:    "Model inference request duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.5, 2, 9), // 500ms to 128s
				},
				[]string{"model"},
			),

			SessionsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "podplay_sandbox_sessions_active",
					Help: "Number of active sandbox sessions",
				},
			),
			SessionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_sandbox_sessions_total",
					Help: "Total number of sandbox sessions created",
				},
				[]string{"kind"},
			),
			TasksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_computer_use_tasks_total",
					Help: "Total number of computer-use tasks executed",
				},
				[]string{"success"},
			),
			TaskDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "podplay_computer_use_task_duration_seconds",
					Help:    "Computer-use task duration in seconds",
					Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to 512s
				},
				[]string{"success"},
			),
			WorkflowRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_workflow_runs_total",
					Help: "Total number of predefined workflow executions",
				},
				[]string{"workflow", "success"},
			),

			MemoryRecalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_memory_recalls_total",
					Help: "Memory search operations against the remote memory API",
				},
				[]string{"success"},
			),
			MemoryCacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "podplay_memory_cache_hits_total",
					Help: "Recent-context reads served from the Redis cache",
				},
			),

			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "podplay_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "podplay_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),

			WSConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "podplay_ws_connections",
					Help: "Number of open WebSocket connections",
				},
			),
			WSRoomMembers: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "podplay_ws_room_members",
					Help: "WebSocket clients joined per session room",
				},
				[]string{"session_id"},
			),
		}
	})

	return sharedMetrics
}

// RecordChat records a routed chat request
func (m *Metrics) RecordChat(variant string, success bool, seconds float64) {
	m.ChatRequestsTotal.WithLabelValues(variant, boolLabel(success)).Inc()
	m.ChatLatency.WithLabelValues(variant).Observe(seconds)
}

// RecordModelRequest records a model inference call
func (m *Metrics) RecordModelRequest(model string, success bool, seconds float64, inputTokens, outputTokens int64) {
	m.ModelRequests.WithLabelValues(model, boolLabel(success)).Inc()
	m.ModelLatency.WithLabelValues(model).Observe(seconds)
	if inputTokens > 0 {
		m.ModelTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.ModelTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// RecordTask records a computer-use task execution
func (m *Metrics) RecordTask(success bool, seconds float64) {
	m.TasksTotal.WithLabelValues(boolLabel(success)).Inc()
	m.TaskDuration.WithLabelValues(boolLabel(success)).Observe(seconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
