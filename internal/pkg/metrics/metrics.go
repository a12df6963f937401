package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitorflow_events_ingested_total",
		Help: "The total number of ingestion requests that produced an event",
	}, []string{"category", "status"})

	IngestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitorflow_ingest_rejected_total",
		Help: "The total number of ingestion requests rejected before persistence",
	}, []string{"reason"})

	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitorflow_ingest_duration_seconds",
		Help:    "Time taken to process one ingestion request end to end",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitorflow_webhook_deliveries_total",
		Help: "The total number of webhook delivery attempts",
	}, []string{"outcome"})

	RateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitorflow_rate_limit_exceeded_total",
		Help: "The total number of requests denied by the fixed-window rate limiter",
	})
)
