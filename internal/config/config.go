// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package config loads RuVector configuration with Koanf v2.
//
// Configuration Loading Order:
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (config.yaml, /etc/ruvector/config.yaml, or CONFIG_PATH)
//  3. Environment Variables: explicit mappings in envTransformFunc
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Graph      GraphConfig      `koanf:"graph"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Index      IndexConfig      `koanf:"index"`
	FineTune   FineTuneConfig   `koanf:"finetune"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	PubSub     PubSubConfig     `koanf:"pubsub"`
	NATS       NATSConfig       `koanf:"nats"`
	Storage    StorageConfig    `koanf:"storage"`
	Postgres   PostgresConfig   `koanf:"postgres"`
	Snapshot   SnapshotConfig   `koanf:"snapshot"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST, HTTP_PORT
//   - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT
//   - CORS_ORIGINS: comma-separated list
//   - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// GraphConfig holds hypergraph store settings.
type GraphConfig struct {
	// LockStripes is the number of striped adjacency locks. Must be a power of two.
	LockStripes int `koanf:"lock_stripes"`

	// CompactAfter folds hyperedges older than now-CompactAfter on each
	// compaction pass. Zero disables scheduled compaction.
	CompactAfter    time.Duration `koanf:"compact_after"`
	CompactInterval time.Duration `koanf:"compact_interval"`

	// Per-type interaction weights.
	ViewWeight     float64 `koanf:"view_weight"`
	LikeWeight     float64 `koanf:"like_weight"`
	CompleteWeight float64 `koanf:"complete_weight"`
	SkipWeight     float64 `koanf:"skip_weight"`

	// SeedDemoData registers a small media catalogue on Initialize.
	SeedDemoData bool `koanf:"seed_demo_data"`

	// AutoInitialize runs Initialize at startup instead of waiting for
	// POST /api/v1/initialize.
	AutoInitialize bool `koanf:"auto_initialize"`
}

// EmbeddingConfig holds embedding engine settings.
type EmbeddingConfig struct {
	Dimensions     int     `koanf:"dimensions"`
	WalkLength     int     `koanf:"walk_length"`
	WalksPerEntity int     `koanf:"walks_per_entity"`
	WindowSize     int     `koanf:"window_size"`
	ReturnParam    float64 `koanf:"return_param"` // p
	InOutParam     float64 `koanf:"in_out_param"` // q

	// IterationWeights weights each FastRP propagation step; its length is
	// the number of iterations.
	IterationWeights []float64 `koanf:"iteration_weights"`

	// MinWalkSamples is the visit count below which an entity is treated as cold.
	MinWalkSamples int `koanf:"min_walk_samples"`

	// ColdBlend and WarmBlend are the walk-signal weights; FastRP gets 1-blend.
	ColdBlend float64 `koanf:"cold_blend"`
	WarmBlend float64 `koanf:"warm_blend"`

	// Workers bounds batch parallelism. Zero means GOMAXPROCS.
	Workers int `koanf:"workers"`
}

// IndexConfig holds IVF index settings.
type IndexConfig struct {
	NumLists        int           `koanf:"num_lists"`
	ProbedLists     int           `koanf:"probed_lists"`
	MaxIterations   int           `koanf:"max_iterations"`
	RebuildRatio    float64       `koanf:"rebuild_ratio"`
	RebuildInterval time.Duration `koanf:"rebuild_interval"`
	Seed            int64         `koanf:"seed"`

	// Backend selects the similarity backend: ivf (in-process) or pgvector.
	Backend string `koanf:"backend"`
}

// FineTuneConfig holds SPSA fine-tuning settings.
//
// Schedules: a_k = A/(k+1+Stability)^Alpha, c_k = C/(k+1)^Gamma.
type FineTuneConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	Quorum        int           `koanf:"quorum"`
	QuorumTimeout time.Duration `koanf:"quorum_timeout"`
	MaxAttempts   int           `koanf:"max_attempts"`

	A         float64 `koanf:"a"`
	C         float64 `koanf:"c"`
	Alpha     float64 `koanf:"alpha"`
	Gamma     float64 `koanf:"gamma"`
	Stability float64 `koanf:"stability"`
	Margin    float64 `koanf:"margin"`

	// LocalWorkers is the number of in-process SPSA workers. Zero relies
	// entirely on remote workers attached to the same broker.
	LocalWorkers int `koanf:"local_workers"`

	// ReplaySamples caps the triplets each worker replays per evaluation.
	ReplaySamples int `koanf:"replay_samples"`

	WorkerID string `koanf:"worker_id"`
}

// RecommendConfig holds query-layer settings.
type RecommendConfig struct {
	DefaultLimit        int           `koanf:"default_limit"`
	MaxLimit            int           `koanf:"max_limit"`
	CandidateMultiplier int           `koanf:"candidate_multiplier"`
	DiversityWeight     float64       `koanf:"diversity_weight"`
	Aggregation         string        `koanf:"aggregation"` // rank or score
	CoInteractionWeight float64       `koanf:"co_interaction_weight"`
	RRFK                float64       `koanf:"rrf_k"`
	TrendingHalfLife    time.Duration `koanf:"trending_half_life"`
	TrendingWindow      time.Duration `koanf:"trending_window"`
	CacheSize           int           `koanf:"cache_size"`
	CacheTTL            time.Duration `koanf:"cache_ttl"`
	StaleRetries        int           `koanf:"stale_retries"`
}

// PubSubConfig holds fine-tuning transport settings.
type PubSubConfig struct {
	// Transport is channel (in-process) or nats.
	Transport string `koanf:"transport"`

	JobsTopic      string `koanf:"jobs_topic"`
	ResultsTopic   string `koanf:"results_topic"`
	ModelSyncTopic string `koanf:"model_sync_topic"`

	BufferSize int `koanf:"buffer_size"`

	DedupCapacity int           `koanf:"dedup_capacity"`
	DedupTTL      time.Duration `koanf:"dedup_ttl"`

	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`

	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	BreakerFailures    uint32        `koanf:"breaker_failures"`
}

// NATSConfig holds NATS connection settings used when PubSub.Transport is nats.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	StoreDir       string        `koanf:"store_dir"`
	JetStream      bool          `koanf:"jetstream"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	QueueGroup     string        `koanf:"queue_group"`
	AckWait        time.Duration `koanf:"ack_wait"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
}

// StorageConfig selects document and blob store backends.
type StorageConfig struct {
	// DocStore is memory, badger, or dynamodb.
	DocStore string `koanf:"docstore"`

	BadgerPath       string `koanf:"badger_path"`
	BadgerSyncWrites bool   `koanf:"badger_sync_writes"`

	DynamoTable    string `koanf:"dynamo_table"`
	DynamoEndpoint string `koanf:"dynamo_endpoint"`

	// BlobStore is memory, local, minio, or s3.
	BlobStore string `koanf:"blobstore"`

	LocalPath string `koanf:"local_path"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`

	MinIOEndpoint  string `koanf:"minio_endpoint"`
	MinIOAccessKey string `koanf:"minio_access_key"`
	MinIOSecretKey string `koanf:"minio_secret_key"`
	MinIOUseSSL    bool   `koanf:"minio_use_ssl"`

	AWSRegion      string `koanf:"aws_region"`
	S3Endpoint     string `koanf:"s3_endpoint"`
	S3UsePathStyle bool   `koanf:"s3_use_path_style"`
}

// PostgresConfig holds the optional pgvector similarity backend.
type PostgresConfig struct {
	DSN            string `koanf:"dsn"`
	Table          string `koanf:"table"`
	IndexKind      string `koanf:"index_kind"` // ivfflat or hnsw
	Lists          int    `koanf:"lists"`
	Probes         int    `koanf:"probes"`
	M              int    `koanf:"m"`
	EfConstruction int    `koanf:"ef_construction"`
	MaxOpenConns   int    `koanf:"max_open_conns"`
}

// SnapshotConfig holds snapshot scheduling and encoding settings.
type SnapshotConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Interval         time.Duration `koanf:"interval"`
	Compression      string        `koanf:"compression"` // zstd, lz4, none
	Retain           int           `koanf:"retain"`
	RestoreOnStartup bool          `koanf:"restore_on_startup"`
}

// SupervisorConfig holds suture tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load reads configuration from defaults, file, and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
