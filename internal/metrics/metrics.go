// Package metrics exposes Prometheus metrics for download sessions and
// settings writes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "siesta"

var (
	// SessionsTotal counts finished sessions by terminal status
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of download sessions by terminal status",
		},
		[]string{"status"},
	)

	SessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of download sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	// SettingsWrites counts settings file writes by operation and result
	SettingsWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_writes_total",
			Help:      "Total number of settings file writes",
		},
		[]string{"op", "result"},
	)

	ProgressEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_total",
			Help:      "Progress events parsed from downloader output",
		},
		[]string{"kind"},
	)

	// ClassifiedTotal counts classification results by content kind
	ClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classified_total",
			Help:      "Total number of classified download results by kind",
		},
		[]string{"kind"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsTotal,
		SessionDuration,
		SettingsWrites,
		ProgressEvents,
		ClassifiedTotal,
		ActiveSessions,
	)
}
