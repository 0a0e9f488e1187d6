// Package metrics defines the Prometheus collectors for test sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks live session runners on this node.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exstem",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of session runners currently live on this node",
		},
	)

	// SessionsStarted counts sessions that left the instructions phase.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exstem",
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Total number of sessions started",
		},
	)

	// Violations counts recorded visibility losses.
	Violations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exstem",
			Subsystem: "session",
			Name:      "violations_total",
			Help:      "Total number of tab/window visibility violations recorded",
		},
	)

	// ForcedTransitions counts clock- or violation-driven phase changes.
	ForcedTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exstem",
			Subsystem: "session",
			Name:      "forced_transitions_total",
			Help:      "Total number of forced transitions by kind (coding, submit) and reason (clock, violations)",
		},
		[]string{"kind", "reason"},
	)

	// Submissions counts final submission handoffs by result.
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exstem",
			Subsystem: "session",
			Name:      "submissions_total",
			Help:      "Total number of final submission attempts by result (success, failure)",
		},
		[]string{"result"},
	)

	// CheckpointSaves counts checkpoint writes by result.
	CheckpointSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exstem",
			Subsystem: "checkpoint",
			Name:      "saves_total",
			Help:      "Total number of checkpoint saves by result (success, failure)",
		},
		[]string{"result"},
	)

	// QueueRequeues counts worker items pushed back for retry.
	QueueRequeues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exstem",
			Subsystem: "worker",
			Name:      "requeues_total",
			Help:      "Total number of queue items requeued after a persistence failure",
		},
		[]string{"queue"},
	)
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
