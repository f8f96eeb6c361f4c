// Package metrics defines the Prometheus instrumentation for the widget platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bobot_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bobot_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	ConversationsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bobot_conversations_started_total",
			Help: "Conversations established per company",
		},
		[]string{"company"},
	)

	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bobot_chat_messages_total",
			Help: "Chat exchanges per company, labelled answered or fallback",
		},
		[]string{"company", "outcome"},
	)

	FeedbackVotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bobot_feedback_votes_total",
			Help: "Feedback votes per company",
		},
		[]string{"company", "vote"},
	)

	ConsentUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bobot_consent_updates_total",
			Help: "Consent decisions recorded per company",
		},
		[]string{"company", "decision"},
	)

	DataDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bobot_data_deletions_total",
			Help: "Visitor data deletions per company",
		},
		[]string{"company"},
	)

	ConversationsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bobot_conversations_purged_total",
			Help: "Conversations removed by the retention sweeper",
		},
	)
)
