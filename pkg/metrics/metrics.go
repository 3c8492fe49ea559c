// Package metrics provides Prometheus metrics for the Laurel service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MonitoringAlertsTotal tracks monitoring-window alerts sent by tier
	MonitoringAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "monitoring",
			Name:      "alerts_total",
			Help:      "Total number of monitoring-window alerts sent by tier",
		},
		[]string{"alert_type"},
	)

	// MonitoringLapsesTotal tracks requests auto-lapsed by the monitoring sweep
	MonitoringLapsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "monitoring",
			Name:      "lapses_total",
			Help:      "Total number of requests auto-lapsed at the end of their monitoring window",
		},
	)

	// RenewalAlertsTotal tracks renewal cadence alerts sent by tier
	RenewalAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "renewal",
			Name:      "alerts_total",
			Help:      "Total number of renewal alerts sent by tier",
		},
		[]string{"alert_flag"},
	)

	// StaleFlaggedTotal tracks entities flagged stale by the staleness sweep
	StaleFlaggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "staleness",
			Name:      "flagged_total",
			Help:      "Total number of prospects and proposals flagged stale",
		},
		[]string{"entity"},
	)

	// NotificationsTotal tracks notification publishes by outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of notification publishes by outcome",
		},
		[]string{"type", "status"},
	)

	// FunnelEventsTotal tracks funnel events recorded by stage
	FunnelEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "funnel",
			Name:      "events_total",
			Help:      "Total number of funnel events recorded by stage",
		},
		[]string{"to_stage"},
	)

	// SweepDuration tracks sweep job duration in seconds
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "laurel",
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of sweep jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	// SweepRunsTotal tracks sweep executions by outcome
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "scheduler",
			Name:      "sweep_runs_total",
			Help:      "Total number of sweep runs by outcome",
		},
		[]string{"job", "status"},
	)
)
