package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluation metrics
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_evaluations_total",
		Help: "Total number of escalation evaluations performed",
	}, []string{"outcome"})
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "escalation_evaluation_duration_seconds",
		Help:    "Duration of a single escalation evaluation including effect execution",
		Buckets: prometheus.DefBuckets,
	})
	EvaluationPassEvents = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "escalation_evaluation_pass_events",
		Help:    "Number of deadline events visited per scheduled evaluation pass",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	})

	// Instance lifecycle metrics
	LevelTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_level_transitions_total",
		Help: "Total number of escalation level transitions",
	}, []string{"level"})
	InstancesResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_instances_resolved_total",
		Help: "Total number of escalation instances resolved",
	}, []string{"from_status"})
	SnoozesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escalation_snoozes_started_total",
		Help: "Total number of snoozes started",
	})
	SnoozesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escalation_snoozes_expired_total",
		Help: "Total number of snoozes that expired and resumed escalation",
	})
	SnoozesCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escalation_snoozes_cancelled_total",
		Help: "Total number of snoozes cancelled before expiry",
	})

	// Chain administration metrics
	ChainSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_chain_saves_total",
		Help: "Total number of chain save attempts",
	}, []string{"result"})

	// API metrics
	APIEndpointRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_api_endpoint_requests_total",
		Help: "Total number of requests per API endpoint",
	}, []string{"endpoint"})
	APIEndpointDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escalation_api_endpoint_duration_seconds",
		Help:    "Duration of API endpoint handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	APIEndpointErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_api_endpoint_errors_total",
		Help: "Total number of API endpoint responses with status >= 400",
	}, []string{"endpoint", "status"})

	// Notification metrics
	NotificationsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_notifications_dispatched_total",
		Help: "Total number of notifications handed to a delivery channel",
	}, []string{"channel"})
	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_notification_failures_total",
		Help: "Total number of notification deliveries that failed",
	}, []string{"channel"})

	// Audit export metrics
	AuditEntriesAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escalation_audit_entries_appended_total",
		Help: "Total number of entries appended to the audit trail",
	})
	AuditEntriesExported = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escalation_audit_entries_exported_total",
		Help: "Total number of audit entries exported to sinks",
	})
	AuditEntriesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escalation_audit_entries_dropped_total",
		Help: "Total number of audit entries dropped from the export queue",
	})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_audit_sink_errors_total",
		Help: "Total number of audit sink write errors",
	}, []string{"sink", "reason"})
	AuditSinkConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "escalation_audit_sink_connected",
		Help: "Whether an audit sink is currently reachable (1) or not (0)",
	}, []string{"sink"})
	AuditSinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escalation_audit_sink_write_seconds",
		Help:    "Latency of audit sink writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_mail_queued_total",
		Help: "Total number of mails accepted into the send queue",
	}, []string{"host"})
	MailSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_mail_sent_total",
		Help: "Total number of queued mails sent successfully",
	}, []string{"host"})
	MailFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_mail_failed_total",
		Help: "Total number of queued mails that exhausted all retries",
	}, []string{"host"})
	MailRetryScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_mail_retry_scheduled_total",
		Help: "Total number of mail send retries scheduled",
	}, []string{"host"})
	MailQueueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_mail_queue_dropped_total",
		Help: "Total number of mails dropped because the queue was full or closed",
	}, []string{"host"})
)

func init() {
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(EvaluationPassEvents)
	prometheus.MustRegister(LevelTransitions)
	prometheus.MustRegister(InstancesResolved)
	prometheus.MustRegister(SnoozesStarted)
	prometheus.MustRegister(SnoozesExpired)
	prometheus.MustRegister(SnoozesCancelled)
	prometheus.MustRegister(ChainSaves)
	prometheus.MustRegister(APIEndpointRequests)
	prometheus.MustRegister(APIEndpointDuration)
	prometheus.MustRegister(APIEndpointErrors)
	prometheus.MustRegister(NotificationsDispatched)
	prometheus.MustRegister(NotificationFailures)
	prometheus.MustRegister(AuditEntriesAppended)
	prometheus.MustRegister(AuditEntriesExported)
	prometheus.MustRegister(AuditEntriesDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditSinkConnected)
	prometheus.MustRegister(AuditSinkLatency)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailQueued)
	prometheus.MustRegister(MailSent)
	prometheus.MustRegister(MailFailed)
	prometheus.MustRegister(MailRetryScheduled)
	prometheus.MustRegister(MailQueueDropped)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
