// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ruvector/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config populated with built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			MaxBodyBytes:    64 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Graph: GraphConfig{
			LockStripes:     64,
			CompactAfter:    30 * 24 * time.Hour,
			CompactInterval: time.Hour,
			ViewWeight:      1.0,
			LikeWeight:      2.0,
			CompleteWeight:  3.0,
			SkipWeight:      -0.5,
		},
		Embedding: EmbeddingConfig{
			Dimensions:       128,
			WalkLength:       80,
			WalksPerEntity:   10,
			WindowSize:       5,
			ReturnParam:      1.0,
			InOutParam:       1.0,
			IterationWeights: []float64{0.0, 1.0, 1.0},
			MinWalkSamples:   5,
			ColdBlend:        0.2,
			WarmBlend:        0.7,
		},
		Index: IndexConfig{
			NumLists:        16,
			ProbedLists:     4,
			MaxIterations:   25,
			RebuildRatio:    0.2,
			RebuildInterval: 10 * time.Minute,
			Seed:            42,
			Backend:         "ivf",
		},
		FineTune: FineTuneConfig{
			Enabled:       true,
			Interval:      time.Hour,
			Quorum:        2,
			QuorumTimeout: 30 * time.Second,
			MaxAttempts:   3,
			A:             0.1,
			C:             0.1,
			Alpha:         0.602,
			Gamma:         0.101,
			Stability:     100,
			Margin:        0.2,
			LocalWorkers:  2,
			ReplaySamples: 256,
		},
		Recommend: RecommendConfig{
			DefaultLimit:        10,
			MaxLimit:            100,
			CandidateMultiplier: 3,
			DiversityWeight:     0.3,
			Aggregation:         "rank",
			CoInteractionWeight: 0.5,
			RRFK:                60,
			TrendingHalfLife:    24 * time.Hour,
			TrendingWindow:      7 * 24 * time.Hour,
			CacheSize:           1024,
			CacheTTL:            30 * time.Second,
			StaleRetries:        3,
		},
		PubSub: PubSubConfig{
			Transport:            "channel",
			JobsTopic:            "ruvector.learning.jobs",
			ResultsTopic:         "ruvector.gradient.updates",
			ModelSyncTopic:       "ruvector.model.sync",
			BufferSize:           256,
			DedupCapacity:        10000,
			DedupTTL:             10 * time.Minute,
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			BreakerMaxRequests:   3,
			BreakerInterval:      time.Minute,
			BreakerTimeout:       30 * time.Second,
			BreakerFailures:      5,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Host:          "127.0.0.1",
			Port:          4222,
			StoreDir:      "/data/nats",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			QueueGroup:    "ruvector-workers",
			AckWait:       30 * time.Second,
			CloseTimeout:  30 * time.Second,
		},
		Storage: StorageConfig{
			DocStore:   "memory",
			BadgerPath: "/data/ruvector/docs",
			BlobStore:  "memory",
			LocalPath:  "/data/ruvector/blobs",
			AWSRegion:  "us-east-1",
		},
		Postgres: PostgresConfig{
			Table:          "entity_embeddings",
			IndexKind:      "ivfflat",
			Lists:          100,
			Probes:         10,
			M:              16,
			EfConstruction: 64,
			MaxOpenConns:   10,
		},
		Snapshot: SnapshotConfig{
			Enabled:          true,
			Interval:         15 * time.Minute,
			Compression:      "zstd",
			Retain:           2,
			RestoreOnStartup: true,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Default returns the built-in defaults without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf v2.
//
// Loading order (later sources override earlier):
//  1. Defaults
//  2. Config file (if found)
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// floatSliceConfigPaths are parsed from comma-separated env values as numbers.
var floatSliceConfigPaths = []string{
	"embedding.iteration_weights",
}

// processSliceFields converts comma-separated env strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		parts, ok := splitIfString(k.Get(path))
		if !ok || len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	for _, path := range floatSliceConfigPaths {
		parts, ok := splitIfString(k.Get(path))
		if !ok || len(parts) == 0 {
			continue
		}
		values := make([]float64, 0, len(parts))
		for _, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q in %s: %w", p, path, err)
			}
			values = append(values, v)
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func splitIfString(val interface{}) ([]string, bool) {
	strVal, ok := val.(string)
	if !ok || strVal == "" {
		return nil, false
	}
	parts := strings.Split(strVal, ",")
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return trimmed, true
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated env does not leak into config.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_request_timeout":  "server.request_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"max_body_bytes":        "server.max_body_bytes",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Graph
	"graph_lock_stripes":     "graph.lock_stripes",
	"graph_compact_after":    "graph.compact_after",
	"graph_compact_interval": "graph.compact_interval",
	"graph_view_weight":      "graph.view_weight",
	"graph_like_weight":      "graph.like_weight",
	"graph_complete_weight":  "graph.complete_weight",
	"graph_skip_weight":      "graph.skip_weight",
	"seed_demo_data":         "graph.seed_demo_data",
	"auto_initialize":        "graph.auto_initialize",

	// Embedding
	"embedding_dimensions":        "embedding.dimensions",
	"embedding_walk_length":       "embedding.walk_length",
	"embedding_walks_per_entity":  "embedding.walks_per_entity",
	"embedding_window_size":       "embedding.window_size",
	"embedding_return_param":      "embedding.return_param",
	"embedding_in_out_param":      "embedding.in_out_param",
	"embedding_iteration_weights": "embedding.iteration_weights",
	"embedding_min_walk_samples":  "embedding.min_walk_samples",
	"embedding_cold_blend":        "embedding.cold_blend",
	"embedding_warm_blend":        "embedding.warm_blend",
	"embedding_workers":           "embedding.workers",

	// Index
	"index_num_lists":        "index.num_lists",
	"index_probed_lists":     "index.probed_lists",
	"index_max_iterations":   "index.max_iterations",
	"index_rebuild_ratio":    "index.rebuild_ratio",
	"index_rebuild_interval": "index.rebuild_interval",
	"index_seed":             "index.seed",
	"index_backend":          "index.backend",

	// Fine-tuning
	"finetune_enabled":        "finetune.enabled",
	"finetune_interval":       "finetune.interval",
	"finetune_quorum":         "finetune.quorum",
	"finetune_quorum_timeout": "finetune.quorum_timeout",
	"finetune_max_attempts":   "finetune.max_attempts",
	"spsa_a":                  "finetune.a",
	"spsa_c":                  "finetune.c",
	"spsa_alpha":              "finetune.alpha",
	"spsa_gamma":              "finetune.gamma",
	"spsa_stability":          "finetune.stability",
	"finetune_margin":         "finetune.margin",
	"finetune_local_workers":  "finetune.local_workers",
	"finetune_replay_samples": "finetune.replay_samples",
	"worker_id":               "finetune.worker_id",

	// Recommend
	"recommend_default_limit":        "recommend.default_limit",
	"recommend_max_limit":            "recommend.max_limit",
	"recommend_candidate_multiplier": "recommend.candidate_multiplier",
	"recommend_diversity_weight":     "recommend.diversity_weight",
	"recommend_aggregation":          "recommend.aggregation",
	"recommend_co_interaction":       "recommend.co_interaction_weight",
	"recommend_rrf_k":                "recommend.rrf_k",
	"trending_half_life":             "recommend.trending_half_life",
	"trending_window":                "recommend.trending_window",
	"recommend_cache_size":           "recommend.cache_size",
	"recommend_cache_ttl":            "recommend.cache_ttl",
	"recommend_stale_retries":        "recommend.stale_retries",

	// Pub/sub
	"pubsub_transport":        "pubsub.transport",
	"pubsub_jobs_topic":       "pubsub.jobs_topic",
	"pubsub_results_topic":    "pubsub.results_topic",
	"pubsub_model_sync_topic": "pubsub.model_sync_topic",
	"pubsub_buffer_size":      "pubsub.buffer_size",
	"pubsub_dedup_capacity":   "pubsub.dedup_capacity",
	"pubsub_dedup_ttl":        "pubsub.dedup_ttl",
	"pubsub_retry_count":      "pubsub.retry_count",
	"pubsub_breaker_failures": "pubsub.breaker_failures",
	"pubsub_breaker_timeout":  "pubsub.breaker_timeout",

	// NATS
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_store_dir":      "nats.store_dir",
	"nats_jetstream":      "nats.jetstream",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",
	"nats_queue_group":    "nats.queue_group",
	"nats_ack_wait":       "nats.ack_wait",
	"nats_close_timeout":  "nats.close_timeout",

	// Storage
	"docstore_backend":   "storage.docstore",
	"badger_path":        "storage.badger_path",
	"badger_sync_writes": "storage.badger_sync_writes",
	"dynamodb_table":     "storage.dynamo_table",
	"dynamodb_endpoint":  "storage.dynamo_endpoint",
	"blobstore_backend":  "storage.blobstore",
	"blobstore_path":     "storage.local_path",
	"blobstore_bucket":   "storage.bucket",
	"blobstore_prefix":   "storage.prefix",
	"minio_endpoint":     "storage.minio_endpoint",
	"minio_access_key":   "storage.minio_access_key",
	"minio_secret_key":   "storage.minio_secret_key",
	"minio_use_ssl":      "storage.minio_use_ssl",
	"aws_region":         "storage.aws_region",
	"s3_endpoint":        "storage.s3_endpoint",
	"s3_use_path_style":  "storage.s3_use_path_style",

	// Postgres
	"postgres_dsn":             "postgres.dsn",
	"postgres_table":           "postgres.table",
	"pgvector_index_kind":      "postgres.index_kind",
	"pgvector_lists":           "postgres.lists",
	"pgvector_probes":          "postgres.probes",
	"pgvector_m":               "postgres.m",
	"pgvector_ef_construction": "postgres.ef_construction",
	"postgres_max_open_conns":  "postgres.max_open_conns",

	// Snapshot
	"snapshot_enabled":            "snapshot.enabled",
	"snapshot_interval":           "snapshot.interval",
	"snapshot_compression":        "snapshot.compression",
	"snapshot_retain":             "snapshot.retain",
	"snapshot_restore_on_startup": "snapshot.restore_on_startup",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps environment variable names to koanf paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - EMBEDDING_DIMENSIONS -> embedding.dimensions
//   - SPSA_ALPHA -> finetune.alpha
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile invokes callback whenever the file at path changes.
// The caller is responsible for synchronizing any reload it performs.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
