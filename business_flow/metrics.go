package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Accept attempt outcomes
const (
	acceptResultWon      = "won"
	acceptResultLost     = "lost"
	acceptResultRejected = "rejected"
)

var (
	leadsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_created_total",
			Help: "Leads created partitioned by creator role and source",
		},
		[]string{"role", "source"},
	)

	leadAcceptAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_accept_attempts_total",
			Help: "Lead accept attempts partitioned by result",
		},
		[]string{"result"},
	)

	leadStatusChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_status_changes_total",
			Help: "Lead status transitions recorded",
		},
	)
)
