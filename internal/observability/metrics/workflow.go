package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

type WorkflowMetrics struct {
	registry *prometheus.Registry
	service  string

	transitions    *prometheus.CounterVec
	dispatchTotal  *prometheus.CounterVec
	sweepTotal     *prometheus.CounterVec
	jobTotal       *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	publishFailure prometheus.Counter
}

// NewWorkflowMetrics registers on registry, or on a fresh one when registry
// is nil.
func NewWorkflowMetrics(service string, registry *prometheus.Registry) *WorkflowMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "events_total",
			Help:      "Invitation lifecycle events by type and target status.",
		},
		[]string{"service", "type", "to"},
	)
	dispatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "queue_dispatch_total",
			Help:      "Queued invitations processed by the dispatcher by outcome.",
		},
		[]string{"service", "outcome"},
	)
	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "sweep_total",
			Help:      "Invitations moved by the expiry sweep by outcome.",
		},
		[]string{"service", "outcome"},
	)
	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and status.",
		},
		[]string{"service", "job", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"service", "job"},
	)
	publishFailure := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "event_publish_failures_total",
			Help:        "Invitation events that could not be published.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(transitions, dispatchTotal, sweepTotal, jobTotal, jobDuration, publishFailure)

	return &WorkflowMetrics{
		registry:       registry,
		service:        service,
		transitions:    transitions,
		dispatchTotal:  dispatchTotal,
		sweepTotal:     sweepTotal,
		jobTotal:       jobTotal,
		jobDuration:    jobDuration,
		publishFailure: publishFailure,
	}
}

func (m *WorkflowMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkflowMetrics) RecordEvent(event domain.InvitationEvent) {
	to := event.To
	if to == "" {
		to = "none"
	}
	m.transitions.WithLabelValues(m.service, string(event.Type), to).Inc()
}

func (m *WorkflowMetrics) RecordDispatch(result ports.DispatchResult) {
	if result.Dispatched > 0 {
		m.dispatchTotal.WithLabelValues(m.service, "sent").Add(float64(result.Dispatched))
	}
	if result.Failed > 0 {
		m.dispatchTotal.WithLabelValues(m.service, "failed").Add(float64(result.Failed))
	}
}

func (m *WorkflowMetrics) RecordSweep(result ports.SweepResult) {
	if result.Expired > 0 {
		m.sweepTotal.WithLabelValues(m.service, "expired").Add(float64(result.Expired))
	}
	if result.Overdue > 0 {
		m.sweepTotal.WithLabelValues(m.service, "overdue").Add(float64(result.Overdue))
	}
	if result.Failed > 0 {
		m.sweepTotal.WithLabelValues(m.service, "failed").Add(float64(result.Failed))
	}
}

func (m *WorkflowMetrics) ObserveJob(name string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobTotal.WithLabelValues(m.service, name, status).Inc()
	m.jobDuration.WithLabelValues(m.service, name).Observe(duration.Seconds())
}

// CountingPublisher counts every event before handing it to the next
// publisher. A nil next only counts.
type CountingPublisher struct {
	next    ports.EventPublisher
	metrics *WorkflowMetrics
}

func NewCountingPublisher(next ports.EventPublisher, m *WorkflowMetrics) *CountingPublisher {
	return &CountingPublisher{next: next, metrics: m}
}

func (p *CountingPublisher) PublishInvitationEvent(ctx context.Context, event domain.InvitationEvent) error {
	p.metrics.RecordEvent(event)
	if p.next == nil {
		return nil
	}
	if err := p.next.PublishInvitationEvent(ctx, event); err != nil {
		p.metrics.publishFailure.Inc()
		return err
	}
	return nil
}
