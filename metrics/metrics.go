package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequests counts webhook calls by how they ended at the boundary.
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapi_webhook_requests_total",
			Help: "Webhook requests by outcome (accepted, rate_limited, payload_too_large, malformed)",
		},
		[]string{"outcome"},
	)

	// AutoReplies counts automated reply decisions by channel and result.
	AutoReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapi_auto_replies_total",
			Help: "Automated reply decisions by channel and result (sent or skip reason)",
		},
		[]string{"channel", "result"},
	)

	// CacheHits counts ShouldSkip calls that found a live entry.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapi_cache_hits_total",
			Help: "TTL cache hits by cache name",
		},
		[]string{"cache"},
	)

	// ScheduledReplies tracks pending aggregation timers.
	ScheduledReplies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapi_scheduled_replies",
			Help: "Number of pending aggregation timers",
		},
	)

	// ExternalCallDuration tracks latency of outbound Z-API calls.
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zapi_external_call_duration_seconds",
			Help:    "Time spent in outbound Z-API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "status"},
	)
)
