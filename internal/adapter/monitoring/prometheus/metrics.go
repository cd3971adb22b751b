// Package prometheus exposes runtime counters for the serve daemon.
package prometheus

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the task manager's counters.
type Metrics struct {
	Executions     *prometheus.CounterVec
	SchedulerScans prometheus.Counter
	ScanErrors     prometheus.Counter
	Notifications  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers the counters on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "microfunc_task_executions_total",
			Help: "Automated task executions by outcome (completed, failed).",
		}, []string{"outcome"}),
		SchedulerScans: factory.NewCounter(prometheus.CounterOpts{
			Name: "microfunc_scheduler_scans_total",
			Help: "Completed scheduler scan iterations.",
		}),
		ScanErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "microfunc_scheduler_scan_errors_total",
			Help: "Scheduler scan iterations that ended in an error.",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "microfunc_notifications_total",
			Help: "Lifecycle notifications emitted by event type.",
		}, []string{"event"}),
		registry: reg,
	}
}

// TaskExecuted implements port.Monitor.
func (m *Metrics) TaskExecuted(outcome string) {
	m.Executions.WithLabelValues(outcome).Inc()
}

// SchedulerScan implements port.Monitor.
func (m *Metrics) SchedulerScan(failed bool) {
	m.SchedulerScans.Inc()
	if failed {
		m.ScanErrors.Inc()
	}
}

// NotificationSent implements port.Monitor.
func (m *Metrics) NotificationSent(event string) {
	m.Notifications.WithLabelValues(event).Inc()
}

// Handler serves /metrics plus a /healthz probe backed by the given check.
func (m *Metrics) Handler(health func(context.Context) error) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Serve exposes the handler on addr until the listener fails. Intended to
// be run on its own goroutine by the serve command.
func (m *Metrics) Serve(addr string, health func(context.Context) error, log *zap.Logger) {
	log.Info("Serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, m.Handler(health)); err != nil {
		log.Error("Metrics listener stopped", zap.Error(err))
	}
}
