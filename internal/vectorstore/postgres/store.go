// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package postgres implements vectorstore.Store on PostgreSQL with the
// pgvector extension, using an ivfflat or hnsw cosine index.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/cache"
	"github.com/tomtom215/ruvector/internal/metrics"
	"github.com/tomtom215/ruvector/internal/vector"
	"github.com/tomtom215/ruvector/internal/vectorstore"
)

var (
	// ErrExtensionMissing is returned when the vector extension is not installed.
	ErrExtensionMissing = errors.New("pgvector extension is not installed")

	// ErrNotInitialized is returned when the store is used before Initialize.
	ErrNotInitialized = errors.New("vector store not initialized")

	tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
)

// Config describes the table and index.
type Config struct {
	Table          string
	Dimensions     int
	IndexKind      string // ivfflat or hnsw
	Lists          int
	Probes         int
	M              int
	EfConstruction int
}

// Store is a pgvector-backed vectorstore.Store.
type Store struct {
	db     *sqlx.DB
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	initialized bool
	generation  atomic.Uint64
}

var _ vectorstore.Store = (*Store)(nil)

// Open connects with lib/pq and returns an uninitialized store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(dsn string, maxOpen int, cfg Config, logger zerolog.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	return New(db, cfg, logger)
}

// New wraps an existing connection pool.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(db *sqlx.DB, cfg Config, logger zerolog.Logger) (*Store, error) {
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	if cfg.Dimensions < 1 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	switch cfg.IndexKind {
	case "ivfflat", "hnsw":
	default:
		return nil, fmt.Errorf("index kind must be ivfflat or hnsw, got %q", cfg.IndexKind)
	}
	return &Store{
		db:     db,
		cfg:    cfg,
		logger: logger.With().Str("component", "pgvector").Logger(),
	}, nil
}

// Name implements vectorstore.Store.
func (s *Store) Name() string {
	return "pgvector"
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize checks for the extension and creates the table and index.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check pgvector extension: %w", err)
	}
	if !exists {
		return ErrExtensionMissing
	}

	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.cfg.Table, err)
	}
	if _, err := s.db.ExecContext(ctx, s.createIndexSQL()); err != nil {
		return fmt.Errorf("create index on %s: %w", s.cfg.Table, err)
	}

	var gen sql.NullInt64
	if err := s.db.GetContext(ctx, &gen, fmt.Sprintf(`SELECT MAX(generation) FROM %s`, s.cfg.Table)); err != nil {
		return fmt.Errorf("read generation: %w", err)
	}
	if gen.Valid {
		s.generation.Store(uint64(gen.Int64)) //nolint:gosec // generation is never negative
	}

	s.initialized = true
	s.logger.Info().
		Str("table", s.cfg.Table).
		Str("index", s.cfg.IndexKind).
		Int("dimensions", s.cfg.Dimensions).
		Msg("pgvector store initialized")
	return nil
}

func (s *Store) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	generation BIGINT NOT NULL,
	embedding vector(%d) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.cfg.Table, s.cfg.Dimensions)
}

func (s *Store) indexName() string {
	return "idx_" + s.cfg.Table + "_embedding"
}

func (s *Store) createIndexSQL() string {
	if s.cfg.IndexKind == "hnsw" {
		return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
			s.indexName(), s.cfg.Table, s.cfg.M, s.cfg.EfConstruction)
	}
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
		s.indexName(), s.cfg.Table, s.cfg.Lists)
}

func (s *Store) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Build replaces every row and reindexes so ivfflat lists are retrained.
func (s *Store) Build(ctx context.Context, generation uint64, vectors map[string]vector.Vector) error {
	if err := s.ready(); err != nil {
		return err
	}
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin build: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.cfg.Table)); err != nil {
		return fmt.Errorf("clear %s: %w", s.cfg.Table, err)
	}
	if err := s.upsertTx(ctx, tx, generation, vectors); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit build: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`REINDEX INDEX %s`, s.indexName())); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	s.generation.Store(generation)
	metrics.RecordIndexBuild(time.Since(start), len(vectors), s.cfg.Lists)
	return nil
}

// Upsert inserts or replaces rows in one transaction.
func (s *Store) Upsert(ctx context.Context, generation uint64, vectors map[string]vector.Vector) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.upsertTx(ctx, tx, generation, vectors); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	if generation > s.generation.Load() {
		s.generation.Store(generation)
	}
	return nil
}

func (s *Store) upsertTx(ctx context.Context, tx *sqlx.Tx, generation uint64, vectors map[string]vector.Vector) error {
	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, generation, embedding, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET generation = EXCLUDED.generation, embedding = EXCLUDED.embedding, updated_at = now()`,
		s.cfg.Table))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v := vectors[id]
		if len(v) != s.cfg.Dimensions {
			return fmt.Errorf("%s: dimension %d, want %d", id, len(v), s.cfg.Dimensions)
		}
		if _, err := stmt.ExecContext(ctx, id, int64(generation), pgvector.NewVector(v)); err != nil { //nolint:gosec // generation fits int64
			return fmt.Errorf("upsert %s: %w", id, err)
		}
	}
	return nil
}

type hitRow struct {
	ID    string  `db:"id"`
	Score float64 `db:"score"`
}

// Query returns the nearest rows by cosine distance, ties by id.
func (s *Store) Query(ctx context.Context, q vector.Vector, topN int) (vectorstore.Result, error) {
	if err := s.ready(); err != nil {
		return vectorstore.Result{}, err
	}
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return vectorstore.Result{}, fmt.Errorf("begin query: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.cfg.IndexKind == "ivfflat" && s.cfg.Probes > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL ivfflat.probes = %d`, s.cfg.Probes)); err != nil {
			return vectorstore.Result{}, fmt.Errorf("set probes: %w", err)
		}
	}

	var rows []hitRow
	err = tx.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1) AS score
FROM %s
ORDER BY embedding <=> $1, id
LIMIT $2`, s.cfg.Table), pgvector.NewVector(q), topN)
	if err != nil {
		return vectorstore.Result{}, fmt.Errorf("query %s: %w", s.cfg.Table, err)
	}
	if err := tx.Commit(); err != nil {
		return vectorstore.Result{}, fmt.Errorf("commit query: %w", err)
	}

	res := vectorstore.Result{Generation: s.generation.Load()}
	for _, r := range rows {
		res.Hits = append(res.Hits, cache.Scored{ID: r.ID, Score: r.Score})
	}
	metrics.RecordIndexQuery("pgvector", time.Since(start))
	return res, nil
}

// Vector implements vectorstore.Store.
func (s *Store) Vector(ctx context.Context, id string) (vector.Vector, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	var v pgvector.Vector
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT embedding FROM %s WHERE id = $1`, s.cfg.Table), id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", id, err)
	}
	return vector.Vector(v.Slice()), true, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.cfg.Table)); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.cfg.Table, err)
	}
	return n, nil
}
