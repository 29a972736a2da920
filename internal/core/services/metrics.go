package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_published_total",
			Help: "Total number of alert events published to the caregiver dispatcher",
		},
		[]string{"type"},
	)

	missedDosesDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "missed_doses_detected_total",
			Help: "Total number of overdue critical doses detected by the sweep",
		},
	)

	sweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "missed_dose_sweeps_total",
			Help: "Total number of completed missed-dose sweeps",
		},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "missed_dose_sweep_duration_seconds",
			Help:    "Duration of the missed-dose sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)
