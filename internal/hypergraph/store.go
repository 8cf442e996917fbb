// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package hypergraph holds entities and their n-ary interactions.
//
// Interactions are appended to a single log and indexed into a per-entity
// adjacency view. The log append is a short serialized section; adjacency
// updates take striped locks so writers touching disjoint entities proceed
// in parallel. Lock order is entities, then log, then stripes ascending.
package hypergraph

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/logging"
	"github.com/tomtom215/ruvector/internal/metrics"
	"github.com/tomtom215/ruvector/internal/validation"
)

// DefaultWeights returns the per-type interaction weights.
func DefaultWeights() map[InteractionType]float64 {
	return map[InteractionType]float64{
		View:         1.0,
		Like:         2.0,
		Complete:     3.0,
		Skip:         -0.5,
		SameGenre:    1.0,
		SameCast:     1.0,
		SameDirector: 1.0,
	}
}

// Options configures a Store.
type Options struct {
	// Stripes is the number of adjacency lock stripes, rounded up to a power of two.
	Stripes int

	// Weights overrides DefaultWeights per type.
	Weights map[InteractionType]float64

	// Now is the clock used for defaulted timestamps.
	Now func() time.Time
}

type stripe struct {
	mu  sync.RWMutex
	adj map[string][]*Hyperedge
}

// Store is the in-memory hypergraph.
type Store struct {
	entMu    sync.RWMutex
	entities map[string]*Entity

	logMu  sync.Mutex
	log    []*Hyperedge
	byHash map[string]*Hyperedge
	seq    uint64

	stripes []stripe
	mask    uint64

	version atomic.Uint64
	weights map[InteractionType]float64
	now     func() time.Time
	logger  zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	n := 1
	for n < opts.Stripes {
		n <<= 1
	}
	if opts.Stripes <= 0 {
		n = 64
	}
	weights := DefaultWeights()
	for t, w := range opts.Weights {
		weights[t] = w
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		entities: make(map[string]*Entity),
		byHash:   make(map[string]*Hyperedge),
		stripes:  make([]stripe, n),
		mask:     uint64(n - 1),
		weights:  weights,
		now:      now,
		logger:   logging.WithComponent("hypergraph"),
	}
	for i := range s.stripes {
		s.stripes[i].adj = make(map[string][]*Hyperedge)
	}
	return s
}

// Weight returns the default weight for an interaction type.
func (s *Store) Weight(t InteractionType) float64 {
	if w, ok := s.weights[t]; ok {
		return w
	}
	return 1.0
}

// RegisterEntity registers id with kind and features. Registering an
// existing id with the same kind is a no-op; a different kind fails with
// ErrDuplicateKindConflict. It returns the store version.
func (s *Store) RegisterEntity(id string, kind Kind, features Features) (uint64, error) {
	_, v, err := s.registerEntity(id, kind, features)
	return v, err
}

func (s *Store) registerEntity(id string, kind Kind, features Features) (*Entity, uint64, error) {
	if !validation.IsEntityID(id) {
		return nil, 0, fmt.Errorf("%w: id %q", ErrInvalidEntity, id)
	}
	if !kind.Valid() {
		return nil, 0, fmt.Errorf("%w: kind %q", ErrInvalidEntity, kind)
	}
	if err := features.Validate(); err != nil {
		return nil, 0, err
	}

	s.entMu.Lock()
	defer s.entMu.Unlock()

	if existing, ok := s.entities[id]; ok {
		if existing.Kind != kind {
			return nil, 0, fmt.Errorf("%w: %s is %s, not %s", ErrDuplicateKindConflict, id, existing.Kind, kind)
		}
		return existing, s.version.Load(), nil
	}

	e := &Entity{
		ID:        id,
		Kind:      kind,
		Features:  features.Clone(),
		CreatedAt: s.now().UTC(),
		Active:    true,
	}
	s.entities[id] = e
	return e, s.version.Add(1), nil
}

// Deactivate soft-deactivates an entity. Its edges remain in the log.
func (s *Store) Deactivate(id string) (uint64, error) {
	s.entMu.Lock()
	defer s.entMu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	if !e.Active {
		return s.version.Load(), nil
	}
	e.Active = false
	return s.version.Add(1), nil
}

// RecordInteraction appends a hyperedge over in.EntityIDs. Every id must be
// registered. Replaying an identical interaction (same ids, type, explicit
// weight and timestamp) returns the existing edge with Duplicate set.
func (s *Store) RecordInteraction(in Interaction) (RecordResult, error) {
	ids := sortedUnique(in.EntityIDs)
	if len(ids) == 0 {
		return RecordResult{}, fmt.Errorf("%w: no entity ids", ErrInvalidInteraction)
	}
	if in.Type == "" || in.Type == Aggregate {
		return RecordResult{}, fmt.Errorf("%w: type %q", ErrInvalidInteraction, in.Type)
	}
	if _, known := s.weights[in.Type]; !known {
		return RecordResult{}, fmt.Errorf("%w: type %q", ErrInvalidInteraction, in.Type)
	}
	if in.Weight != nil && (math.IsNaN(*in.Weight) || math.IsInf(*in.Weight, 0)) {
		return RecordResult{}, fmt.Errorf("%w: weight is not finite", ErrInvalidInteraction)
	}

	s.entMu.RLock()
	var missing []string
	for _, id := range ids {
		if _, ok := s.entities[id]; !ok {
			missing = append(missing, id)
		}
	}
	s.entMu.RUnlock()
	if len(missing) > 0 {
		return RecordResult{}, fmt.Errorf("%w: %s", ErrUnknownEntity, strings.Join(missing, ", "))
	}

	weight := s.Weight(in.Type)
	if in.Weight != nil {
		weight = *in.Weight
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC()
	hash := contentHash(ids, in.Type, in.Weight, ts)

	s.logMu.Lock()
	if existing, ok := s.byHash[hash]; ok {
		s.logMu.Unlock()
		metrics.RecordInteraction(string(in.Type), true)
		return RecordResult{Edge: existing, Version: s.version.Load(), Duplicate: true}, nil
	}
	s.seq++
	edge := &Hyperedge{
		Seq:       s.seq,
		Hash:      hash,
		EntityIDs: ids,
		Type:      in.Type,
		Weight:    weight,
		Timestamp: ts,
		Count:     1,
	}
	s.log = append(s.log, edge)
	s.byHash[hash] = edge

	// Stripes are taken before the log is released so compaction cannot
	// rebuild adjacency between the append and the index update.
	held := s.stripeIndexes(ids)
	for _, i := range held {
		s.stripes[i].mu.Lock()
	}
	s.logMu.Unlock()

	for _, id := range ids {
		st := &s.stripes[s.stripeOf(id)]
		st.adj[id] = append(st.adj[id], edge)
	}
	for j := len(held) - 1; j >= 0; j-- {
		s.stripes[held[j]].mu.Unlock()
	}

	metrics.RecordInteraction(string(in.Type), false)
	return RecordResult{Edge: edge, Version: s.version.Add(1)}, nil
}

// AdjacencyOf returns the hyperedges incident to id, oldest first.
func (s *Store) AdjacencyOf(id string) ([]*Hyperedge, error) {
	if !s.has(id) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	st := &s.stripes[s.stripeOf(id)]
	st.mu.RLock()
	defer st.mu.RUnlock()

	edges := st.adj[id]
	out := make([]*Hyperedge, len(edges))
	copy(out, edges)
	return out, nil
}

// Neighbors returns the summed edge weight between id and every entity it
// shares a hyperedge with (clique expansion). Weights may be non-positive.
func (s *Store) Neighbors(id string) (map[string]float64, error) {
	edges, err := s.AdjacencyOf(id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, e := range edges {
		for _, m := range e.EntityIDs {
			if m != id {
				out[m] += e.Weight
			}
		}
	}
	return out, nil
}

// Compact folds every hyperedge older than before into one aggregate edge
// per distinct entity set and origin, carrying the summed weight. User
// interactions and catalogue edges over the same set stay apart, so
// aggregates of user behaviour still report FromUser. Folded edges leave
// the dedupe set.
func (s *Store) Compact(before time.Time) (CompactResult, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	for i := range s.stripes {
		s.stripes[i].mu.Lock()
	}
	defer func() {
		for i := len(s.stripes) - 1; i >= 0; i-- {
			s.stripes[i].mu.Unlock()
		}
	}()

	type group struct {
		edges []*Hyperedge
	}
	groups := make(map[string]*group)
	var order []string
	recent := make([]*Hyperedge, 0, len(s.log))

	for _, e := range s.log {
		if !e.Timestamp.Before(before) {
			recent = append(recent, e)
			continue
		}
		key := string(e.origin()) + "\x01" + strings.Join(e.EntityIDs, "\x00")
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.edges = append(g.edges, e)
	}

	var res CompactResult
	folded := make([]*Hyperedge, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if len(g.edges) == 1 && g.edges[0].Type == Aggregate {
			folded = append(folded, g.edges[0])
			continue
		}
		agg := &Hyperedge{
			EntityIDs: g.edges[0].EntityIDs,
			Type:      Aggregate,
			Origin:    g.edges[0].origin(),
		}
		for _, e := range g.edges {
			agg.Weight += e.Weight
			agg.Count += e.Count
			if e.Timestamp.After(agg.Timestamp) {
				agg.Timestamp = e.Timestamp
			}
			delete(s.byHash, e.Hash)
		}
		s.seq++
		agg.Seq = s.seq
		agg.Hash = "agg:" + strconv.FormatUint(agg.Seq, 10)
		folded = append(folded, agg)
		res.Folded += len(g.edges)
		res.Aggregates++
	}

	if res.Folded == 0 {
		res.Version = s.version.Load()
		return res, nil
	}

	s.log = append(folded, recent...)
	for i := range s.stripes {
		s.stripes[i].adj = make(map[string][]*Hyperedge)
	}
	for _, e := range s.log {
		for _, id := range e.EntityIDs {
			st := &s.stripes[s.stripeOf(id)]
			st.adj[id] = append(st.adj[id], e)
		}
	}

	metrics.GraphCompactedEdges.Add(float64(res.Folded))
	res.Version = s.version.Add(1)
	s.logger.Info().
		Int("folded", res.Folded).
		Int("aggregates", res.Aggregates).
		Time("before", before).
		Msg("Compacted interaction log")
	return res, nil
}

// Entity returns a copy of the entity.
func (s *Store) Entity(id string) (Entity, bool) {
	s.entMu.RLock()
	defer s.entMu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return copyEntity(e), true
}

// EntitiesByKind returns copies of every entity of kind, sorted by id.
func (s *Store) EntitiesByKind(kind Kind) []Entity {
	s.entMu.RLock()
	out := make([]Entity, 0)
	for _, e := range s.entities {
		if e.Kind == kind {
			out = append(out, copyEntity(e))
		}
	}
	s.entMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every registered id, sorted.
func (s *Store) IDs() []string {
	s.entMu.RLock()
	out := make([]string, 0, len(s.entities))
	for id := range s.entities {
		out = append(out, id)
	}
	s.entMu.RUnlock()

	sort.Strings(out)
	return out
}

// Edges returns the current log, oldest first.
func (s *Store) Edges() []*Hyperedge {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	out := make([]*Hyperedge, len(s.log))
	copy(out, s.log)
	return out
}

// EdgesSince returns log entries with a timestamp at or after since.
func (s *Store) EdgesSince(since time.Time) []*Hyperedge {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	out := make([]*Hyperedge, 0)
	for _, e := range s.log {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// Offset returns the last assigned log sequence number.
func (s *Store) Offset() uint64 {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	return s.seq
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Now returns the store clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	st := Stats{EntitiesByKind: make(map[Kind]int)}

	s.entMu.RLock()
	for _, e := range s.entities {
		st.EntitiesByKind[e.Kind]++
		if !e.Active {
			st.Inactive++
		}
	}
	s.entMu.RUnlock()

	s.logMu.Lock()
	st.Edges = len(s.log)
	st.Offset = s.seq
	s.logMu.Unlock()

	st.Version = s.version.Load()
	return st
}

// State returns a consistent copy of entities and log.
func (s *Store) State() State {
	s.entMu.RLock()
	defer s.entMu.RUnlock()
	s.logMu.Lock()
	defer s.logMu.Unlock()

	st := State{
		Entities: make([]Entity, 0, len(s.entities)),
		Edges:    make([]Hyperedge, len(s.log)),
		Offset:   s.seq,
	}
	for _, e := range s.entities {
		st.Entities = append(st.Entities, copyEntity(e))
	}
	sort.Slice(st.Entities, func(i, j int) bool { return st.Entities[i].ID < st.Entities[j].ID })
	for i, e := range s.log {
		st.Edges[i] = *e
	}
	return st
}

// ValidateState checks that st is self-consistent without loading it.
func ValidateState(st State) error {
	ids := make(map[string]struct{}, len(st.Entities))
	for _, e := range st.Entities {
		if !validation.IsEntityID(e.ID) || !e.Kind.Valid() {
			return fmt.Errorf("%w: bad entity %q", ErrInconsistentState, e.ID)
		}
		if _, dup := ids[e.ID]; dup {
			return fmt.Errorf("%w: duplicate entity %q", ErrInconsistentState, e.ID)
		}
		if err := e.Features.Validate(); err != nil {
			return fmt.Errorf("%w: entity %q: %v", ErrInconsistentState, e.ID, err)
		}
		ids[e.ID] = struct{}{}
	}
	seen := make(map[uint64]struct{}, len(st.Edges))
	for _, e := range st.Edges {
		if e.Seq == 0 || e.Seq > st.Offset {
			return fmt.Errorf("%w: edge seq %d outside offset %d", ErrInconsistentState, e.Seq, st.Offset)
		}
		if _, dup := seen[e.Seq]; dup {
			return fmt.Errorf("%w: duplicate edge seq %d", ErrInconsistentState, e.Seq)
		}
		seen[e.Seq] = struct{}{}
		if len(e.EntityIDs) == 0 {
			return fmt.Errorf("%w: edge %d has no members", ErrInconsistentState, e.Seq)
		}
		for _, id := range e.EntityIDs {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("%w: edge %d references %q", ErrInconsistentState, e.Seq, id)
			}
		}
	}
	return nil
}

// LoadState replaces the whole store with st.
func (s *Store) LoadState(st State) (uint64, error) {
	if err := ValidateState(st); err != nil {
		return 0, err
	}

	entities := make(map[string]*Entity, len(st.Entities))
	for i := range st.Entities {
		e := copyEntity(&st.Entities[i])
		entities[e.ID] = &e
	}
	log := make([]*Hyperedge, len(st.Edges))
	byHash := make(map[string]*Hyperedge, len(st.Edges))
	for i := range st.Edges {
		e := st.Edges[i]
		e.EntityIDs = sortedUnique(e.EntityIDs)
		if e.Type == Aggregate && e.Origin == "" {
			e.Origin = inferOrigin(e.EntityIDs, entities)
		}
		log[i] = &e
		if e.Type != Aggregate {
			byHash[e.Hash] = &e
		}
	}

	s.entMu.Lock()
	defer s.entMu.Unlock()
	s.logMu.Lock()
	defer s.logMu.Unlock()
	for i := range s.stripes {
		s.stripes[i].mu.Lock()
	}
	defer func() {
		for i := len(s.stripes) - 1; i >= 0; i-- {
			s.stripes[i].mu.Unlock()
		}
	}()

	s.entities = entities
	s.log = log
	s.byHash = byHash
	s.seq = st.Offset
	for i := range s.stripes {
		s.stripes[i].adj = make(map[string][]*Hyperedge)
	}
	for _, e := range log {
		for _, id := range e.EntityIDs {
			stp := &s.stripes[s.stripeOf(id)]
			stp.adj[id] = append(stp.adj[id], e)
		}
	}
	return s.version.Add(1), nil
}

// inferOrigin classifies an aggregate written before origins were recorded:
// any user member makes it a user aggregate.
func inferOrigin(ids []string, entities map[string]*Entity) Origin {
	for _, id := range ids {
		if e, ok := entities[id]; ok && e.Kind == KindUser {
			return OriginUser
		}
	}
	return OriginCatalogue
}

func (s *Store) has(id string) bool {
	s.entMu.RLock()
	defer s.entMu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

func (s *Store) stripeOf(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64() & s.mask
}

// stripeIndexes returns the distinct stripes for ids in ascending order.
func (s *Store) stripeIndexes(ids []string) []uint64 {
	idx := make([]uint64, 0, len(ids))
	for _, id := range ids {
		idx = append(idx, s.stripeOf(id))
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	out := idx[:0]
	for i, v := range idx {
		if i == 0 || v != idx[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func copyEntity(e *Entity) Entity {
	cp := *e
	cp.Features = e.Features.Clone()
	return cp
}

func sortedUnique(ids []string) []string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	prev := ""
	for _, id := range sorted {
		if id == "" || id == prev {
			continue
		}
		out = append(out, id)
		prev = id
	}
	return out
}

// contentHash identifies an interaction by sorted ids, type, explicit
// weight and timestamp in nanoseconds.
func contentHash(ids []string, t InteractionType, weight *float64, ts time.Time) string {
	h := fnv.New128a()
	for _, id := range ids {
		_, _ = h.Write([]byte(id))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte(t))
	_, _ = h.Write([]byte{0})
	if weight != nil {
		_, _ = h.Write([]byte(strconv.FormatUint(math.Float64bits(*weight), 16)))
	} else {
		_, _ = h.Write([]byte{'-'})
	}
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(ts.UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}
