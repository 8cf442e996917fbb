// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package config

import (
	"errors"
	"fmt"
)

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateGraph,
		c.validateEmbedding,
		c.validateIndex,
		c.validateFineTune,
		c.validateRecommend,
		c.validatePubSub,
		c.validateStorage,
		c.validatePostgres,
		c.validateSnapshot,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return errors.New("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateGraph() error {
	n := c.Graph.LockStripes
	if n <= 0 || n&(n-1) != 0 {
		return fmt.Errorf("GRAPH_LOCK_STRIPES must be a positive power of two, got %d", n)
	}
	if c.Graph.ViewWeight <= 0 || c.Graph.LikeWeight <= 0 || c.Graph.CompleteWeight <= 0 {
		return errors.New("view, like and complete weights must be positive")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	e := c.Embedding
	if e.Dimensions < 8 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be at least 8, got %d", e.Dimensions)
	}
	if e.WalkLength < 2 || e.WalksPerEntity < 1 {
		return errors.New("walk length must be >= 2 and walks per entity >= 1")
	}
	if e.WindowSize < 1 {
		return errors.New("EMBEDDING_WINDOW_SIZE must be positive")
	}
	if e.ReturnParam <= 0 || e.InOutParam <= 0 {
		return errors.New("node2vec p and q must be positive")
	}
	if len(e.IterationWeights) == 0 {
		return errors.New("EMBEDDING_ITERATION_WEIGHTS must have at least one entry")
	}
	if e.ColdBlend < 0 || e.ColdBlend > 1 || e.WarmBlend < 0 || e.WarmBlend > 1 {
		return errors.New("embedding blends must be within [0, 1]")
	}
	return nil
}

func (c *Config) validateIndex() error {
	i := c.Index
	if i.NumLists < 1 {
		return fmt.Errorf("INDEX_NUM_LISTS must be positive, got %d", i.NumLists)
	}
	if i.ProbedLists < 1 || i.ProbedLists > i.NumLists {
		return fmt.Errorf("INDEX_PROBED_LISTS must be within [1, %d], got %d", i.NumLists, i.ProbedLists)
	}
	if i.MaxIterations < 1 {
		return errors.New("INDEX_MAX_ITERATIONS must be positive")
	}
	if i.RebuildRatio <= 0 {
		return errors.New("INDEX_REBUILD_RATIO must be positive")
	}
	switch i.Backend {
	case "ivf":
	case "pgvector":
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when INDEX_BACKEND=pgvector")
		}
	default:
		return fmt.Errorf("INDEX_BACKEND must be ivf or pgvector, got %q", i.Backend)
	}
	return nil
}

func (c *Config) validateFineTune() error {
	f := c.FineTune
	if !f.Enabled {
		return nil
	}
	if f.Quorum < 1 {
		return errors.New("FINETUNE_QUORUM must be at least 1")
	}
	if f.QuorumTimeout <= 0 {
		return errors.New("FINETUNE_QUORUM_TIMEOUT must be positive")
	}
	if f.MaxAttempts < 1 {
		return errors.New("FINETUNE_MAX_ATTEMPTS must be at least 1")
	}
	if f.A <= 0 || f.C <= 0 {
		return errors.New("SPSA a and c must be positive")
	}
	if f.LocalWorkers < 0 {
		return errors.New("FINETUNE_LOCAL_WORKERS must not be negative")
	}
	if c.PubSub.Transport == "channel" && f.LocalWorkers < f.Quorum {
		return fmt.Errorf("in-process transport needs at least %d local workers to reach quorum, got %d",
			f.Quorum, f.LocalWorkers)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.DefaultLimit < 1 || r.DefaultLimit > r.MaxLimit {
		return fmt.Errorf("RECOMMEND_DEFAULT_LIMIT must be within [1, %d]", r.MaxLimit)
	}
	if r.DiversityWeight < 0 || r.DiversityWeight > 1 {
		return errors.New("RECOMMEND_DIVERSITY_WEIGHT must be within [0, 1]")
	}
	if r.CoInteractionWeight < 0 || r.CoInteractionWeight > 1 {
		return errors.New("RECOMMEND_CO_INTERACTION must be within [0, 1]")
	}
	switch r.Aggregation {
	case "rank", "score":
	default:
		return fmt.Errorf("RECOMMEND_AGGREGATION must be rank or score, got %q", r.Aggregation)
	}
	if r.TrendingHalfLife <= 0 {
		return errors.New("TRENDING_HALF_LIFE must be positive")
	}
	return nil
}

func (c *Config) validatePubSub() error {
	switch c.PubSub.Transport {
	case "channel":
	case "nats":
		if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
			return errors.New("NATS_URL is required when PUBSUB_TRANSPORT=nats without an embedded server")
		}
	default:
		return fmt.Errorf("PUBSUB_TRANSPORT must be channel or nats, got %q", c.PubSub.Transport)
	}
	if c.PubSub.JobsTopic == "" || c.PubSub.ResultsTopic == "" || c.PubSub.ModelSyncTopic == "" {
		return errors.New("pub/sub topics must not be empty")
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	switch s.DocStore {
	case "memory":
	case "badger":
		if s.BadgerPath == "" {
			return errors.New("BADGER_PATH is required when DOCSTORE_BACKEND=badger")
		}
	case "dynamodb":
		if s.DynamoTable == "" {
			return errors.New("DYNAMODB_TABLE is required when DOCSTORE_BACKEND=dynamodb")
		}
	default:
		return fmt.Errorf("DOCSTORE_BACKEND must be memory, badger or dynamodb, got %q", s.DocStore)
	}

	switch s.BlobStore {
	case "memory":
	case "local":
		if s.LocalPath == "" {
			return errors.New("BLOBSTORE_PATH is required when BLOBSTORE_BACKEND=local")
		}
	case "minio":
		if s.MinIOEndpoint == "" || s.Bucket == "" {
			return errors.New("MINIO_ENDPOINT and BLOBSTORE_BUCKET are required when BLOBSTORE_BACKEND=minio")
		}
	case "s3":
		if s.Bucket == "" {
			return errors.New("BLOBSTORE_BUCKET is required when BLOBSTORE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("BLOBSTORE_BACKEND must be memory, local, minio or s3, got %q", s.BlobStore)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.Postgres.DSN == "" {
		return nil
	}
	switch c.Postgres.IndexKind {
	case "ivfflat":
		if c.Postgres.Lists < 1 {
			return errors.New("PGVECTOR_LISTS must be positive for ivfflat")
		}
	case "hnsw":
		if c.Postgres.M < 2 || c.Postgres.EfConstruction < 1 {
			return errors.New("PGVECTOR_M must be >= 2 and PGVECTOR_EF_CONSTRUCTION positive for hnsw")
		}
	default:
		return fmt.Errorf("PGVECTOR_INDEX_KIND must be ivfflat or hnsw, got %q", c.Postgres.IndexKind)
	}
	if c.Postgres.Table == "" {
		return errors.New("POSTGRES_TABLE is required")
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	switch c.Snapshot.Compression {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("SNAPSHOT_COMPRESSION must be zstd, lz4 or none, got %q", c.Snapshot.Compression)
	}
	if c.Snapshot.Retain < 2 {
		return fmt.Errorf("SNAPSHOT_RETAIN must be at least 2 to keep a rollback point, got %d", c.Snapshot.Retain)
	}
	if c.Snapshot.Enabled && c.Snapshot.Interval <= 0 {
		return errors.New("SNAPSHOT_INTERVAL must be positive when snapshots are enabled")
	}
	return nil
}
