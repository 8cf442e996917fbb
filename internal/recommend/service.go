// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/metrics"
	"github.com/tomtom215/ruvector/internal/recommend/reranking"
	"github.com/tomtom215/ruvector/internal/retry"
	"github.com/tomtom215/ruvector/internal/rverrors"
	"github.com/tomtom215/ruvector/internal/vector"
)

// maxFetch caps how far retrieval widens when filters reject candidates.
const maxFetch = 10000

// Service answers recommendation queries from the similarity index, the
// published embeddings and the live hypergraph.
type Service struct {
	cfg    Config
	graph  Graph
	index  Index
	table  Embeddings
	embed  SeedEmbedder
	logger zerolog.Logger

	mmr *reranking.MMR
	ids *interner

	cache  *expirable.LRU[string, *Response]
	flight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithSeedEmbedder installs the on-demand embedder for seeds missing from
// the published generation.
func WithSeedEmbedder(fn SeedEmbedder) Option {
	return func(s *Service) { s.embed = fn }
}

// NewService creates a recommendation service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(cfg Config, graph Graph, index Index, table Embeddings, logger zerolog.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recommend config: %w", err)
	}
	if graph == nil || index == nil || table == nil {
		return nil, errors.New("recommend: graph, index and embeddings are required")
	}

	s := &Service{
		cfg:    cfg,
		graph:  graph,
		index:  index,
		table:  table,
		logger: logger.With().Str("component", "recommend").Logger(),
		mmr:    reranking.NewMMR(1 - cfg.DiversityWeight),
		ids:    newInterner(),
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, *Response](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Recommend returns media similar to a seed. A user seed is represented by
// its own embedding, or by the weighted mean of the media it interacted
// with; its history is excluded when q.ExcludeSeen is set.
func (s *Service) Recommend(ctx context.Context, seedID string, q Query) (*Response, error) {
	seed, ok := s.graph.Entity(seedID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", rverrors.ErrUnknownEntity, seedID)
	}
	q.Limit = s.cfg.clampLimit(q.Limit)
	if seed.Kind == hypergraph.KindUser {
		q.UserID = seedID
	}
	return s.cached(ctx, "seed", []string{seedID}, q, func(ctx context.Context) (*Response, error) {
		return s.similar(ctx, seed, q)
	})
}

// Similar returns media similar to a media seed.
func (s *Service) Similar(ctx context.Context, itemID string, q Query) (*Response, error) {
	seed, ok := s.graph.Entity(itemID)
	if !ok || seed.Kind != hypergraph.KindMedia {
		return nil, fmt.Errorf("%w: media %s", rverrors.ErrUnknownEntity, itemID)
	}
	q.Limit = s.cfg.clampLimit(q.Limit)
	return s.cached(ctx, "similar", []string{itemID}, q, func(ctx context.Context) (*Response, error) {
		return s.similar(ctx, seed, q)
	})
}

// Trending returns media ranked by time-decayed interaction weight.
func (s *Service) Trending(ctx context.Context, q Query) (*Response, error) {
	q.Limit = s.cfg.clampLimit(q.Limit)
	return s.cached(ctx, "trending", nil, q, func(context.Context) (*Response, error) {
		f, err := s.newFilter(q, q.UserID)
		if err != nil {
			return nil, err
		}
		resp := &Response{
			Items:      s.trendingItems(f, q.Limit),
			Source:     SourceTrending,
			Generation: s.table.CurrentNumber(),
		}
		if q.Explain {
			for i := range resp.Items {
				resp.Items[i].Reasons = []string{reasonTrending}
			}
		}
		return resp, nil
	})
}

// InvalidateCache drops every cached response.
func (s *Service) InvalidateCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Service) similar(ctx context.Context, seed hypergraph.Entity, q Query) (*Response, error) {
	seeds := []string{seed.ID}
	f, err := s.newFilter(q, q.UserID, seed.ID)
	if err != nil {
		return nil, err
	}

	qv, err := s.seedVector(ctx, seed)
	if err != nil {
		return s.fallbackOr(err, seeds, f, q)
	}

	var co map[string]float64
	if seed.Kind == hypergraph.KindMedia && s.cfg.CoInteractionWeight > 0 {
		if co, err = s.coInteraction(seed.ID); err != nil {
			return nil, err
		}
	}

	var (
		cands []reranking.Candidate
		gen   uint64
	)
	err = s.withStaleRetry(ctx, func(ctx context.Context) error {
		var rerr error
		cands, gen, rerr = s.retrieve(ctx, qv, f, q.Limit)
		if rerr != nil {
			return rerr
		}
		if len(co) > 0 {
			cands, rerr = s.blendCoInteraction(qv, cands, co, f, gen)
		}
		return rerr
	})
	if err != nil {
		return s.fallbackOr(err, seeds, f, q)
	}

	resp := &Response{
		Seeds:      seeds,
		Items:      s.toItems(s.mmr.Rerank(ctx, cands, q.Limit)),
		Source:     SourceSimilarity,
		Generation: gen,
	}
	if q.Explain {
		s.attachReasons(seed, resp.Items)
	}
	return resp, nil
}

// seedVector resolves the query vector of a seed.
func (s *Service) seedVector(ctx context.Context, seed hypergraph.Entity) (vector.Vector, error) {
	if s.table.CurrentNumber() == 0 {
		return nil, rverrors.ErrIndexNotBuilt
	}
	if v, _, ok := s.table.Vector(seed.ID); ok {
		return v, nil
	}
	if seed.Kind == hypergraph.KindUser {
		if v, ok, err := s.historyVector(seed.ID); err != nil || ok {
			return v, err
		}
	}
	if s.embed != nil {
		return s.embed(ctx, seed.ID)
	}
	return nil, fmt.Errorf("%w: %s has no embedding", rverrors.ErrInsufficientGraphData, seed.ID)
}

// historyVector is the interaction-weighted mean of the embeddings of the
// media a user engaged with positively.
func (s *Service) historyVector(user string) (vector.Vector, bool, error) {
	edges, err := s.graph.AdjacencyOf(user)
	if err != nil {
		return nil, false, err
	}
	weights := make(map[string]float64)
	for _, e := range edges {
		if !e.FromUser() || e.Weight <= 0 {
			continue
		}
		for _, id := range e.EntityIDs {
			if id != user {
				weights[id] += e.Weight
			}
		}
	}
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		vs []vector.Vector
		ws []float64
	)
	for _, id := range ids {
		if v, _, ok := s.table.Vector(id); ok {
			vs = append(vs, v)
			ws = append(ws, weights[id])
		}
	}
	v, ok := vector.WeightedMean(vs, ws)
	return v, ok, nil
}

// retrieve queries the index and keeps admitted media, widening the query
// until limit candidates survive or the index is exhausted.
func (s *Service) retrieve(ctx context.Context, qv vector.Vector, f *filter, limit int) ([]reranking.Candidate, uint64, error) {
	topN := (limit + int(f.exclude.GetCardinality())) * s.cfg.CandidateMultiplier
	for {
		start := time.Now()
		res, err := s.index.Query(ctx, qv, topN)
		if err != nil {
			return nil, 0, err
		}
		s.logger.Debug().
			Int("top_n", topN).
			Int("hits", len(res.Hits)).
			Dur("took", time.Since(start)).
			Msg("index query")

		cands := make([]reranking.Candidate, 0, limit)
		for _, hit := range res.Hits {
			ent, ok := s.graph.Entity(hit.ID)
			if !ok || !f.admit(ent) {
				continue
			}
			v, _, err := s.table.VectorAt(hit.ID, res.Generation)
			if err != nil {
				return nil, 0, err
			}
			cands = append(cands, reranking.Candidate{ID: hit.ID, Score: hit.Score, Vector: v})
		}

		if len(cands) >= limit || len(res.Hits) < topN || topN >= maxFetch {
			return cands, res.Generation, nil
		}
		topN *= 2
		if topN > maxFetch {
			topN = maxFetch
		}
	}
}

// blendCoInteraction rescores candidates as (1-w)*cosine + w*co and adds
// co-interacted media the index did not return.
func (s *Service) blendCoInteraction(qv vector.Vector, cands []reranking.Candidate, co map[string]float64, f *filter, gen uint64) ([]reranking.Candidate, error) {
	w := s.cfg.CoInteractionWeight
	present := make(map[string]struct{}, len(cands))
	for i := range cands {
		present[cands[i].ID] = struct{}{}
		cands[i].Score = (1-w)*cands[i].Score + w*co[cands[i].ID]
	}

	extra := make([]string, 0)
	for id := range co {
		if _, ok := present[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		ent, ok := s.graph.Entity(id)
		if !ok || !f.admit(ent) {
			continue
		}
		v, found, err := s.table.VectorAt(id, gen)
		if err != nil {
			return nil, err
		}
		var cos float64
		if found {
			cos = vector.Cosine(qv, v)
		}
		cands = append(cands, reranking.Candidate{ID: id, Score: (1-w)*cos + w*co[id], Vector: v})
	}

	sortCandidates(cands)
	return cands, nil
}

func sortCandidates(cands []reranking.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].ID < cands[j].ID
	})
}

func (s *Service) toItems(cands []reranking.Candidate) []Item {
	items := make([]Item, 0, len(cands))
	for _, c := range cands {
		item := Item{ID: c.ID, Score: c.Score}
		if ent, ok := s.graph.Entity(c.ID); ok {
			item.Features = ent.Features
		}
		items = append(items, item)
	}
	return items
}

// withStaleRetry reruns op while it reads a discarded embedding generation.
func (s *Service) withStaleRetry(ctx context.Context, op func(ctx context.Context) error) error {
	cfg := retry.Config{
		MaxAttempts:     s.cfg.StaleRetries + 1,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		Multiplier:      2,
		RetryIf: func(err error) bool {
			return errors.Is(err, rverrors.ErrStaleGenerationRead)
		},
	}
	return retry.Do(ctx, cfg, "recommend.retrieve", op)
}

// fallbackOr answers from trending when err is one of the degraded-index
// conditions, and returns err otherwise.
func (s *Service) fallbackOr(err error, seeds []string, f *filter, q Query) (*Response, error) {
	reason, ok := fallbackReason(err)
	if !ok {
		return nil, err
	}
	metrics.RecordFallback(reason)
	s.logger.Debug().
		Err(err).
		Strs("seeds", seeds).
		Str("reason", reason).
		Msg("Serving trending fallback")

	resp := &Response{
		Seeds:          seeds,
		Items:          s.trendingItems(f, q.Limit),
		Source:         SourceTrending,
		FallbackReason: reason,
		Generation:     s.table.CurrentNumber(),
	}
	if q.Explain {
		for i := range resp.Items {
			resp.Items[i].Reasons = []string{reasonTrending}
		}
	}
	return resp, nil
}

func fallbackReason(err error) (string, bool) {
	switch {
	case errors.Is(err, rverrors.ErrIndexNotBuilt):
		return FallbackIndexNotBuilt, true
	case errors.Is(err, rverrors.ErrInsufficientGraphData):
		return FallbackInsufficient, true
	case errors.Is(err, rverrors.ErrStaleGenerationRead):
		return FallbackStaleGeneration, true
	default:
		return "", false
	}
}

// cached serves q from the response cache, collapsing concurrent misses for
// the same key into one computation. Keys include the embedding generation
// and the graph version, so any write or rebuild invalidates them.
func (s *Service) cached(ctx context.Context, kind string, seeds []string, q Query, compute func(context.Context) (*Response, error)) (*Response, error) {
	key := s.cacheKey(kind, seeds, q)

	if s.cache != nil {
		if resp, ok := s.cache.Get(key); ok {
			metrics.RecordCache(true)
			return resp.asCached(), nil
		}
		metrics.RecordCache(false)
	}

	v, err, shared := s.flight.Do(key, func() (any, error) {
		resp, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Add(key, resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp, ok := v.(*Response)
	if !ok {
		return nil, fmt.Errorf("recommend: unexpected shared result %T", v)
	}
	if shared || s.cache != nil {
		// the stored response must stay untouched by callers
		return resp.clone(), nil
	}
	return resp, nil
}

func (s *Service) cacheKey(kind string, seeds []string, q Query) string {
	cats := make([]string, 0, len(q.Categories))
	for _, c := range q.Categories {
		cats = append(cats, strings.ToLower(strings.TrimSpace(c)))
	}
	sort.Strings(cats)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|n=%d|seen=%t|user=%s|cat=%s|recent=%d|explain=%t|agg=%s|g=%d|v=%d",
		kind,
		strings.Join(seeds, ","),
		q.Limit,
		q.ExcludeSeen,
		q.UserID,
		strings.Join(cats, ","),
		q.RecencyWindow,
		q.Explain,
		q.Aggregation,
		s.table.CurrentNumber(),
		s.graph.Version(),
	)
	return b.String()
}

func (r *Response) clone() *Response {
	cp := *r
	cp.Seeds = append([]string(nil), r.Seeds...)
	cp.Items = make([]Item, len(r.Items))
	for i, item := range r.Items {
		item.Reasons = append([]string(nil), item.Reasons...)
		cp.Items[i] = item
	}
	return &cp
}

func (r *Response) asCached() *Response {
	cp := r.clone()
	cp.Cached = true
	return cp
}
