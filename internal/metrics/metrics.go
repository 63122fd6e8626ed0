// Package metrics exposes Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed fetch metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strikemap_feed_fetches_total",
			Help: "Total number of feed fetch attempts",
		},
		[]string{"feed", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strikemap_feed_fetch_duration_seconds",
			Help:    "Duration of feed fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	// Normalization metrics
	EventsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strikemap_events_normalized_total",
			Help: "Normalization outcomes per feed",
		},
		[]string{"feed", "outcome"},
	)

	// Pipeline metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strikemap_events_published_total",
			Help: "Events published to the shared channel",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strikemap_store_errors_total",
			Help: "Shared store operation failures",
		},
		[]string{"op"},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strikemap_persist_errors_total",
			Help: "Durable persistence failures",
		},
	)

	// Broadcast metrics
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "strikemap_broadcast_clients",
			Help: "Currently registered live subscriber connections",
		},
	)

	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strikemap_broadcasts_total",
			Help: "Events fanned out to subscribers",
		},
	)

	ListenerReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strikemap_listener_reconnects_total",
			Help: "Channel subscription reconnect attempts",
		},
	)

	// Scheduler metrics
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strikemap_job_runs_total",
			Help: "Scheduler job runs by outcome (ok, error, skipped)",
		},
		[]string{"job", "outcome"},
	)
)
