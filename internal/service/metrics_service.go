package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	otpIssued       prometheus.Counter
	otpVerified     *prometheus.CounterVec
	sessionsOpened  prometheus.Counter
	marksTotal      *prometheus.CounterVec
	notifyFailures  prometheus.Counter
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

	otpIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otp_challenges_issued_total",
		Help: "Total OTP login challenges issued",
	})

	otpVerified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verifications_total",
		Help: "Total OTP verification attempts by outcome",
	}, []string{"outcome"})

	sessionsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_opened_total",
		Help: "Total attendance sessions opened",
	})

	marksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marks_total",
		Help: "Total attendance status transitions by target status",
	}, []string{"status"})

	notifyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total notifications dropped before delivery",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, otpIssued, otpVerified, sessionsOpened, marksTotal, notifyFailures, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		otpIssued:       otpIssued,
		otpVerified:     otpVerified,
		sessionsOpened:  sessionsOpened,
		marksTotal:      marksTotal,
		notifyFailures:  notifyFailures,
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

// OTPIssued counts an issued login challenge.
func (m *MetricsService) OTPIssued() {
	if m != nil {
		m.otpIssued.Inc()
	}
}

// OTPVerified counts a verification attempt by outcome.
func (m *MetricsService) OTPVerified(outcome string) {
	if m != nil {
		m.otpVerified.WithLabelValues(outcome).Inc()
	}
}

// SessionOpened counts an opened attendance session.
func (m *MetricsService) SessionOpened() {
	if m != nil {
		m.sessionsOpened.Inc()
	}
}

// MarkRecorded counts a status transition.
func (m *MetricsService) MarkRecorded(status string) {
	if m != nil {
		m.marksTotal.WithLabelValues(status).Inc()
	}
}

// NotifyFailed counts a notification dropped before delivery.
func (m *MetricsService) NotifyFailed() {
	if m != nil {
		m.notifyFailures.Inc()
	}
}
