package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll results recorded by BackupPolls.
const (
	PollReady    = "ready"
	PollNotReady = "not_ready"
	PollFailed   = "failed"
	PollTimeout  = "timeout"
)

var (
	// BackupTransitions counts persisted backup status transitions by target status.
	BackupTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdesk_backup_transitions_total",
			Help: "Total number of backup status transitions",
		},
		[]string{"status"},
	)

	// BackupPolls counts describe-snapshot polls by outcome.
	BackupPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdesk_backup_polls_total",
			Help: "Total number of snapshot readiness polls",
		},
		[]string{"result"},
	)

	// BackupTasksActive is the number of running background backup jobs.
	BackupTasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vdesk_backup_tasks_active",
			Help: "Number of background backup jobs currently running",
		},
	)

	// ProviderBreakerState is the snapshot provider circuit breaker state
	// (0 closed, 1 half-open, 2 open).
	ProviderBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vdesk_snapshot_provider_breaker_state",
			Help: "Circuit breaker state of the snapshot provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)
