package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrintake",
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Geofence admission decisions by outcome.",
		},
		[]string{"outcome"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrintake",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Form submissions by result.",
		},
		[]string{"result"},
	)
)

// ObserveAdmission counts one decision. outcome is the admission reason.
func ObserveAdmission(outcome string) {
	admissionDecisions.WithLabelValues(outcome).Inc()
}

// ObserveSubmission counts one submit attempt, e.g. "accepted" or "not_found".
func ObserveSubmission(result string) {
	submissionsTotal.WithLabelValues(result).Inc()
}
