package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the workflow engine. A nil service disables all recording.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	documentsCreated   prometheus.Counter
	versionsCreated    prometheus.Counter
	approvalsRequested prometheus.Counter
	approvalsDecided   *prometheus.CounterVec
	notificationsSent  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	documentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policy_documents_created_total",
		Help: "Total policy documents created",
	})

	versionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policy_versions_created_total",
		Help: "Total policy versions created, including rollbacks",
	})

	approvalsRequested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policy_approvals_requested_total",
		Help: "Total approval requests created",
	})

	approvalsDecided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_approvals_decided_total",
		Help: "Total approval decisions by outcome",
	}, []string{"status"})

	notificationsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policy_notifications_fanout_total",
		Help: "Total notification rows written by workflow fan-out",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, documentsCreated, versionsCreated,
		approvalsRequested, approvalsDecided, notificationsSent, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		documentsCreated:   documentsCreated,
		versionsCreated:    versionsCreated,
		approvalsRequested: approvalsRequested,
		approvalsDecided:   approvalsDecided,
		notificationsSent:  notificationsSent,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// CountDocumentCreated increments the document counter.
func (m *MetricsService) CountDocumentCreated() {
	if m != nil {
		m.documentsCreated.Inc()
	}
}

// CountVersionCreated increments the version counter.
func (m *MetricsService) CountVersionCreated() {
	if m != nil {
		m.versionsCreated.Inc()
	}
}

// CountApprovalRequested increments the approval request counter.
func (m *MetricsService) CountApprovalRequested() {
	if m != nil {
		m.approvalsRequested.Inc()
	}
}

// CountApprovalDecided increments the decision counter for an outcome.
func (m *MetricsService) CountApprovalDecided(status string) {
	if m != nil {
		m.approvalsDecided.WithLabelValues(status).Inc()
	}
}

// CountNotifications adds to the fan-out counter.
func (m *MetricsService) CountNotifications(n int) {
	if m != nil && n > 0 {
		m.notificationsSent.Add(float64(n))
	}
}
