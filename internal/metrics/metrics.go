package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage counters and histograms for the discovery pipeline.

var (
	// Webhook ingestion
	WebhookReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "webhook",
		Name:      "received_total",
		Help:      "Total webhook deliveries received",
	})

	WebhookInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "webhook",
		Name:      "invalid_total",
		Help:      "Total webhook deliveries rejected as undecodable",
	})

	WebhookDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "webhook",
		Name:      "dropped_total",
		Help:      "Total webhook deliveries dropped because the work queue was full",
	})

	// Pipeline
	PipelineCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "pipeline",
		Name:      "completed_total",
		Help:      "Total pipeline runs by terminal outcome",
	}, []string{"outcome"})

	PipelineDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "pipeline",
		Name:      "discarded_total",
		Help:      "Total events discarded before a decision, by guard",
	}, []string{"guard"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tokenwatch",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "End-to-end pipeline duration per event",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Off-chain metadata fetch
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Total gateway fetch attempts by outcome",
	}, []string{"status"})

	GatewayCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "gateway",
		Name:      "cache_hits_total",
		Help:      "Total content cache hits",
	})

	GatewayCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "gateway",
		Name:      "cache_misses_total",
		Help:      "Total content cache misses",
	})

	// Social graph client
	NotablesRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "notables",
		Name:      "requests_total",
		Help:      "Total social graph API calls by status",
	}, []string{"status"})

	NotablesRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "notables",
		Name:      "rate_limit_waits_total",
		Help:      "Total local rate limiter waits before a social graph call",
	})

	// Notifications
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Total alerts delivered to the messaging channel",
	})

	NotificationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "notify",
		Name:      "errors_total",
		Help:      "Total alert delivery failures",
	})

	// Worker pool
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokenwatch",
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Jobs waiting in the worker pool queue",
	})
)
