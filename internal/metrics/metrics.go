// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package metrics exposes Prometheus collectors for RuVector.
//
// Collectors are registered with the default registry through promauto and
// served by promhttp at /metrics. Components call the RecordX helpers rather
// than touching collectors directly.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruvector_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruvector_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Hypergraph Metrics
	GraphEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ruvector_graph_entities",
			Help: "Registered entities by kind",
		},
		[]string{"kind"},
	)

	GraphInteractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_graph_interactions_total",
			Help: "Recorded hyperedges by type",
		},
		[]string{"type"},
	)

	GraphDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruvector_graph_duplicate_interactions_total",
			Help: "Interactions dropped by content-hash dedupe",
		},
	)

	GraphCompactedEdges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruvector_graph_compacted_edges_total",
			Help: "Hyperedges folded into aggregates by compaction",
		},
	)

	// Embedding Metrics
	EmbeddingBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ruvector_embedding_batch_duration_seconds",
			Help:    "Duration of embedding batch computation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	EmbeddingsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_embeddings_computed_total",
			Help: "Embeddings computed by signal regime",
		},
		[]string{"regime"}, // cold, warm, skipped
	)

	EmbeddingGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruvector_embedding_generation",
			Help: "Current published embedding generation",
		},
	)

	// Index Metrics
	IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ruvector_index_build_duration_seconds",
			Help:    "Duration of full IVF builds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruvector_index_vectors",
			Help: "Vectors in the published index snapshot",
		},
	)

	IndexLists = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruvector_index_lists",
			Help: "Inverted lists in the published index snapshot",
		},
	)

	IndexInsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruvector_index_inserts_total",
			Help: "Incremental inserts since process start",
		},
	)

	IndexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruvector_index_query_duration_seconds",
			Help:    "Index query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"backend"},
	)

	// Fine-Tuning Metrics
	FineTuneRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_finetune_rounds_total",
			Help: "Fine-tuning rounds by outcome",
		},
		[]string{"outcome"}, // published, quorum_timeout, canceled, failed
	)

	FineTuneRound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruvector_finetune_round",
			Help: "Current optimization round counter",
		},
	)

	FineTuneLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruvector_finetune_loss",
			Help: "Objective loss at the last published round",
		},
	)

	FineTuneWorkerResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_finetune_worker_results_total",
			Help: "Partial results received by the coordinator",
		},
		[]string{"status"}, // accepted, duplicate, stale
	)

	// Snapshot Metrics
	SnapshotBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ruvector_snapshot_bytes",
			Help:    "Encoded snapshot size in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	SnapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruvector_snapshot_duration_seconds",
			Help:    "Snapshot and restore duration",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	SnapshotFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_snapshot_failures_total",
			Help: "Snapshot failures by operation and reason",
		},
		[]string{"operation", "reason"},
	)

	// Recommendation Metrics
	RecommendFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_recommend_fallbacks_total",
			Help: "Queries answered from trending instead of the index",
		},
		[]string{"reason"},
	)

	RecommendCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruvector_recommend_cache_hits_total",
			Help: "Recommendation response cache hits",
		},
	)

	RecommendCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruvector_recommend_cache_misses_total",
			Help: "Recommendation response cache misses",
		},
	)

	// Pub/Sub Metrics
	PubSubPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_pubsub_published_total",
			Help: "Messages published by topic",
		},
		[]string{"topic"},
	)

	PubSubConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_pubsub_consumed_total",
			Help: "Messages handled by topic",
		},
		[]string{"topic"},
	)

	PubSubDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruvector_pubsub_deduplicated_total",
			Help: "Redelivered messages dropped by the deduplicator",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ruvector_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Storage Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruvector_store_operation_duration_seconds",
			Help:    "Document and blob store operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruvector_store_operation_errors_total",
			Help: "Document and blob store operation errors",
		},
		[]string{"store", "operation"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordInteraction counts a recorded or deduplicated hyperedge.
func RecordInteraction(interactionType string, duplicate bool) {
	if duplicate {
		GraphDuplicatesTotal.Inc()
		return
	}
	GraphInteractionsTotal.WithLabelValues(interactionType).Inc()
}

// SetEntityCounts replaces the per-kind entity gauges.
func SetEntityCounts(counts map[string]int) {
	for kind, n := range counts {
		GraphEntities.WithLabelValues(kind).Set(float64(n))
	}
}

// RecordEmbeddingBatch records a finished embedding batch.
func RecordEmbeddingBatch(duration time.Duration, cold, warm, skipped int, generation uint64) {
	EmbeddingBatchDuration.Observe(duration.Seconds())
	EmbeddingsComputed.WithLabelValues("cold").Add(float64(cold))
	EmbeddingsComputed.WithLabelValues("warm").Add(float64(warm))
	EmbeddingsComputed.WithLabelValues("skipped").Add(float64(skipped))
	EmbeddingGeneration.Set(float64(generation))
}

// RecordIndexBuild records a full index build.
func RecordIndexBuild(duration time.Duration, size, lists int) {
	IndexBuildDuration.Observe(duration.Seconds())
	IndexSize.Set(float64(size))
	IndexLists.Set(float64(lists))
}

// RecordIndexQuery records query latency for a similarity backend.
func RecordIndexQuery(backend string, duration time.Duration) {
	IndexQueryDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordFineTuneRound records the outcome of a coordinator round.
func RecordFineTuneRound(outcome string, round uint64, loss float64) {
	FineTuneRoundsTotal.WithLabelValues(outcome).Inc()
	if outcome == "published" {
		FineTuneRound.Set(float64(round))
		FineTuneLoss.Set(loss)
	}
}

// RecordSnapshot records a snapshot or restore attempt.
func RecordSnapshot(operation string, size int, duration time.Duration, err error) {
	SnapshotDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		SnapshotFailures.WithLabelValues(operation, snapshotReason(err)).Inc()
		return
	}
	if size > 0 {
		SnapshotBytes.Observe(float64(size))
	}
}

// RecordFallback counts a recommendation served from trending.
func RecordFallback(reason string) {
	RecommendFallbacks.WithLabelValues(reason).Inc()
}

// RecordCache counts a recommendation cache lookup.
func RecordCache(hit bool) {
	if hit {
		RecommendCacheHits.Inc()
	} else {
		RecommendCacheMisses.Inc()
	}
}

// RecordStoreOperation records a storage backend call.
func RecordStoreOperation(store, operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(store, operation).Inc()
	}
}

func snapshotReason(err error) string {
	switch {
	case errors.Is(err, rverrors.ErrCorruptSnapshot):
		return "corrupt"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
