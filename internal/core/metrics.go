package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_admission_decisions_total",
			Help: "Admission control verdicts by outcome (allowed, blocked, revoked)",
		},
		[]string{"verdict"},
	)

	approvalResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_approval_resolutions_total",
			Help: "Approval request resolutions by outcome",
		},
		[]string{"outcome"},
	)

	requestsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeep_requests_expired_total",
			Help: "Approval requests that reached the 30s deadline unresolved",
		},
	)

	pendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatekeep_pending_requests",
			Help: "Approval requests currently awaiting a decision",
		},
	)
)
