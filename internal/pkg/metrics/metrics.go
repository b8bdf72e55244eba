// Package metrics defines the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guildhall"

// HTTP.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served",
		},
	)
)

// Database pool.
var (
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)

	DBPoolAcquires = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_acquires",
			Help:      "Cumulative connection acquires by result, as reported by the pool",
		},
		[]string{"result"},
	)
)

// Domain events.
var (
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result",
		},
		[]string{"result"},
	)

	actionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "recorded_total",
			Help:      "Actions recorded by outcome",
		},
		[]string{"outcome"},
	)

	actionsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "deleted_total",
			Help:      "Actions soft-deleted",
		},
	)

	goalStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "goals",
			Name:      "status_changes_total",
			Help:      "Weekly goal writes by resulting status",
		},
		[]string{"status"},
	)

	salesRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "registered_total",
			Help:      "Sales accepted for announcement",
		},
	)
)

// RecordLogin counts a login attempt. result is "ok", "invalid" or "error".
func RecordLogin(result string) { loginAttempts.WithLabelValues(result).Inc() }

// RecordAction counts a recorded action.
func RecordAction(outcome string) { actionsRecorded.WithLabelValues(outcome).Inc() }

// RecordActionDeleted counts a soft delete.
func RecordActionDeleted() { actionsDeleted.Inc() }

// RecordGoalStatus counts a goal created or moved to status.
func RecordGoalStatus(status string) { goalStatusChanges.WithLabelValues(status).Inc() }

// RecordSale counts an accepted sale.
func RecordSale() { salesRegistered.Inc() }
