// Package metrics holds the service's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credential_pipeline_outcomes_total",
		Help: "Terminal pipeline outcomes by stage and result",
	}, []string{"stage", "result"})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credential_sessions_created_total",
		Help: "Sessions created by the pipeline",
	})

	sessionsReused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credential_sessions_reused_total",
		Help: "Requests answered with an already-active session",
	})

	auditEventsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credential_audit_events_total",
		Help: "Audit events appended to the stream",
	})
)

// StageFailure records a terminal failure at the named pipeline stage.
func StageFailure(stage string) {
	pipelineOutcomes.WithLabelValues(stage, "failure").Inc()
}

// StageSuccess records a completed pipeline run ending at the named stage.
func StageSuccess(stage string) {
	pipelineOutcomes.WithLabelValues(stage, "success").Inc()
}

// SessionCreated counts a fresh session.
func SessionCreated() { sessionsCreated.Inc() }

// SessionReused counts a short-circuit on an existing active session.
func SessionReused() { sessionsReused.Inc() }

// AuditEventEmitted counts a successful stream append.
func AuditEventEmitted() { auditEventsEmitted.Inc() }
