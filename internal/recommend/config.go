// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/ruvector/internal/config"
)

// Aggregation selects how multi-seed result lists are fused.
type Aggregation string

const (
	// AggregateRank fuses by reciprocal rank: sum of 1/(k + rank).
	AggregateRank Aggregation = "rank"
	// AggregateScore fuses by the mean similarity score across seeds.
	AggregateScore Aggregation = "score"
)

// Valid reports whether a is a known aggregation.
func (a Aggregation) Valid() bool {
	return a == AggregateRank || a == AggregateScore
}

// Config contains the query-side parameters of the recommendation service.
type Config struct {
	// DefaultLimit applies when a query asks for zero items.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps the number of items a query may return.
	MaxLimit int `json:"max_limit"`

	// CandidateMultiplier over-fetches from the index so that filtering
	// still leaves enough candidates. Retrieval widens further if needed.
	CandidateMultiplier int `json:"candidate_multiplier"`

	// DiversityWeight is the MMR diversity term; lambda = 1 - weight.
	DiversityWeight float64 `json:"diversity_weight"`

	// Aggregation is the default multi-seed fusion.
	Aggregation Aggregation `json:"aggregation"`

	// RRFK is the k constant of reciprocal rank fusion.
	RRFK float64 `json:"rrf_k"`

	// CoInteractionWeight blends co-interaction evidence into item-seeded
	// similarity: score = (1-w)*cosine + w*co_interaction.
	CoInteractionWeight float64 `json:"co_interaction_weight"`

	// TrendingHalfLife is the exponential decay half-life of trending scores.
	TrendingHalfLife time.Duration `json:"trending_half_life"`

	// TrendingWindow bounds the interactions considered for trending.
	TrendingWindow time.Duration `json:"trending_window"`

	// CacheSize and CacheTTL bound the response cache. Zero size disables it.
	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`

	// StaleRetries is how often a query is retried after reading a discarded
	// embedding generation before it falls back to trending.
	StaleRetries int `json:"stale_retries"`

	// Parallelism bounds concurrent per-seed retrievals in multi-seed queries.
	Parallelism int `json:"parallelism"`
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        10,
		MaxLimit:            100,
		CandidateMultiplier: 3,
		DiversityWeight:     0.3,
		Aggregation:         AggregateRank,
		RRFK:                60,
		CoInteractionWeight: 0.5,
		TrendingHalfLife:    72 * time.Hour,
		TrendingWindow:      30 * 24 * time.Hour,
		CacheSize:           10000,
		CacheTTL:            5 * time.Minute,
		StaleRetries:        3,
		Parallelism:         4,
	}
}

// FromSettings maps the application configuration onto a service Config.
func FromSettings(rc config.RecommendConfig) Config {
	cfg := DefaultConfig()
	cfg.DefaultLimit = rc.DefaultLimit
	cfg.MaxLimit = rc.MaxLimit
	cfg.CandidateMultiplier = rc.CandidateMultiplier
	cfg.DiversityWeight = rc.DiversityWeight
	cfg.Aggregation = Aggregation(rc.Aggregation)
	cfg.RRFK = rc.RRFK
	cfg.CoInteractionWeight = rc.CoInteractionWeight
	cfg.TrendingHalfLife = rc.TrendingHalfLife
	cfg.TrendingWindow = rc.TrendingWindow
	cfg.CacheSize = rc.CacheSize
	cfg.CacheTTL = rc.CacheTTL
	cfg.StaleRetries = rc.StaleRetries
	return cfg
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit must be >= default_limit, got %d < %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.CandidateMultiplier < 1 {
		return fmt.Errorf("candidate_multiplier must be positive, got %d", c.CandidateMultiplier)
	}
	if c.DiversityWeight < 0 || c.DiversityWeight > 1 {
		return fmt.Errorf("diversity_weight must be in [0, 1], got %f", c.DiversityWeight)
	}
	if !c.Aggregation.Valid() {
		return fmt.Errorf("aggregation must be rank or score, got %q", c.Aggregation)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrf_k must be positive, got %f", c.RRFK)
	}
	if c.CoInteractionWeight < 0 || c.CoInteractionWeight > 1 {
		return fmt.Errorf("co_interaction_weight must be in [0, 1], got %f", c.CoInteractionWeight)
	}
	if c.TrendingHalfLife <= 0 {
		return fmt.Errorf("trending_half_life must be positive, got %v", c.TrendingHalfLife)
	}
	if c.TrendingWindow <= 0 {
		return fmt.Errorf("trending_window must be positive, got %v", c.TrendingWindow)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative, got %d", c.CacheSize)
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive when caching, got %v", c.CacheTTL)
	}
	if c.StaleRetries < 0 {
		return fmt.Errorf("stale_retries must be non-negative, got %d", c.StaleRetries)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	return nil
}

// clampLimit maps a requested limit into [1, MaxLimit], using DefaultLimit
// for non-positive requests.
func (c *Config) clampLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultLimit
	}
	if limit > c.MaxLimit {
		return c.MaxLimit
	}
	return limit
}
