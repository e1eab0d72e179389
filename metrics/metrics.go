package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code", "service"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "service"},
	)

	// Feed metrics
	FeedPagesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_pages_served_total",
			Help: "Total number of feed pages served",
		},
		[]string{"feed", "first_page"},
	)

	FeedItemsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_served_total",
			Help: "Total number of posts served through the feed",
		},
		[]string{"feed"},
	)

	FeedRequestsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_requests_rejected_total",
			Help: "Feed requests rejected before reaching the store",
		},
		[]string{"feed", "reason"},
	)

	// Engagement metrics
	EngagementRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_engagement_recorded_total",
			Help: "Engagement counter updates applied to posts",
		},
		[]string{"kind"},
	)

	ViewsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_views_skipped_total",
			Help: "Views not counted because of the per-visitor limits",
		},
		[]string{"reason"},
	)

	// Rescore worker metrics
	PostsRescored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_rescored_total",
			Help: "Total number of post scores recomputed",
		},
		[]string{"trigger"},
	)

	RescoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rescore_run_duration_seconds",
			Help:    "Duration of a full rescore run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	LastRescore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rescore_last_success_timestamp_seconds",
			Help: "Unix time of the last successful full rescore",
		},
	)

	// Database metrics
	MongoOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongo_operations_total",
			Help: "Total number of MongoDB operations",
		},
		[]string{"operation", "collection", "status"},
	)

	MongoOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mongo_operation_duration_seconds",
			Help:    "MongoDB operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	// NATS metrics
	NatsMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject", "status"},
	)

	NatsMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject", "status"},
	)

	// Application health metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"service", "version", "environment"},
	)
)

// Initialize metrics with default values
func Init(serviceName, version, environment string) {
	ApplicationInfo.WithLabelValues(serviceName, version, environment).Set(1)
}

// ObserveMongo records one MongoDB operation.
func ObserveMongo(operation, collection string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	MongoOperationsTotal.WithLabelValues(operation, collection, status).Inc()
	MongoOperationDuration.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
}
