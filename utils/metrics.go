package utils

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "app_request_duration_seconds",
			Help: "Request duration seconds",
		},
		[]string{"method", "path"},
	)

	// ErrorCount is labelled by handler and error kind
	ErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_errors_total",
			Help: "Total app errors",
		},
		[]string{"handler", "kind"},
	)

	BadgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_badges_awarded_total",
			Help: "Badges awarded to users",
		},
		[]string{"badge_id"},
	)

	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_level_ups_total",
			Help: "Levels gained by users",
		},
	)

	QuestsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_quests_completed_total",
			Help: "Quests completed by users",
		},
	)

	ApplicationsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_applications_accepted_total",
			Help: "Applications accepted by help seekers",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(
		ReqCount,
		ReqDuration,
		ErrorCount,
		BadgesAwarded,
		LevelUps,
		QuestsCompleted,
		ApplicationsAccepted,
	)
}
