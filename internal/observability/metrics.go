package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "helpdesk"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errors            *prometheus.CounterVec
	ticketTransitions *prometheus.CounterVec
	assistance        *prometheus.CounterVec
	chatMessages      *prometheus.CounterVec
	sessionConflicts  prometheus.Counter
	botReplies        *prometheus.CounterVec
	maintenanceRuns   *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, labeled by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Requests that ended with a domain error, labeled by error code",
		}, []string{"route", "method", "code"}),
		ticketTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "transitions_total",
			Help:      "Ticket status transitions",
		}, []string{"from", "to"}),
		assistance: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistance",
			Name:      "requests_total",
			Help:      "Assistance request outcomes",
		}, []string{"outcome"}),
		chatMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages appended, labeled by message type",
		}, []string{"type"}),
		sessionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "session_create_conflicts_total",
			Help:      "Session creations that lost a race and reused the existing session",
		}),
		botReplies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "replies_total",
			Help:      "Bot replies, labeled by reply kind",
		}, []string{"kind"}),
		maintenanceRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "runs_total",
			Help:      "Maintenance job executions, labeled by job and result",
		}, []string{"job", "result"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordTicketTransition counts a committed status change.
func (m *Metrics) RecordTicketTransition(from, to string) {
	if m == nil {
		return
	}
	m.ticketTransitions.WithLabelValues(from, to).Inc()
}

// RecordAssistance counts an assistance request outcome (requested, accepted, ...).
func (m *Metrics) RecordAssistance(outcome string) {
	if m == nil {
		return
	}
	m.assistance.WithLabelValues(outcome).Inc()
}

// RecordChatMessage counts an appended message.
func (m *Metrics) RecordChatMessage(messageType string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(messageType).Inc()
}

// RecordSessionConflict counts a lost get-or-create race.
func (m *Metrics) RecordSessionConflict() {
	if m == nil {
		return
	}
	m.sessionConflicts.Inc()
}

// RecordBotReply counts a bot reply by kind.
func (m *Metrics) RecordBotReply(kind string) {
	if m == nil {
		return
	}
	m.botReplies.WithLabelValues(kind).Inc()
}

// RecordMaintenanceRun counts a maintenance job execution.
func (m *Metrics) RecordMaintenanceRun(job string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.maintenanceRuns.WithLabelValues(job, result).Inc()
}
