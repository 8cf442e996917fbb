// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package snapshot persists consistent engine checkpoints to the blob store
// and tracks them with manifests in the document store.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/blobstore"
	"github.com/tomtom215/ruvector/internal/docstore"
	"github.com/tomtom215/ruvector/internal/metrics"
)

const (
	// ManifestCollection is the document store collection for manifests.
	ManifestCollection = "snapshots"

	keyPrefix = "snapshots/"
	keySuffix = ".snap"
)

// Source captures and applies engine state.
type Source interface {
	CaptureSnapshot(ctx context.Context) (*Payload, error)
	// ApplySnapshot replaces the engine state with a validated payload.
	ApplySnapshot(ctx context.Context, p *Payload) error
}

// Manifest describes one stored snapshot.
type Manifest struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Generation uint64    `json:"generation"`
	Offset     uint64    `json:"offset"`
	Round      uint64    `json:"round"`
	Codec      string    `json:"codec"`
	Size       int       `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// Config configures the manager.
type Config struct {
	Codec Codec
	// Retain is the number of snapshots kept, current included. Minimum 2.
	Retain int
}

// Manager writes, prunes, and restores snapshots. Snapshot and restore
// calls are serialized.
type Manager struct {
	blobs  blobstore.Store
	docs   docstore.Store
	source Source
	cfg    Config
	logger zerolog.Logger

	mu sync.Mutex
}

// NewManager creates a manager.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewManager(blobs blobstore.Store, docs docstore.Store, source Source, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.Retain < 2 {
		cfg.Retain = 2
	}
	return &Manager{
		blobs:  blobs,
		docs:   docs,
		source: source,
		cfg:    cfg,
		logger: logger.With().Str("component", "snapshot").Logger(),
	}
}

// Key returns the blob key for a generation and log offset.
func Key(generation, offset uint64) string {
	return fmt.Sprintf("%s%d-%d%s", keyPrefix, generation, offset, keySuffix)
}

// parseKey is the inverse of Key.
func parseKey(key string) (generation, offset uint64, ok bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return 0, 0, false
	}
	gen, off, found := strings.Cut(strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix), "-")
	if !found {
		return 0, 0, false
	}
	g, err1 := strconv.ParseUint(gen, 10, 64)
	o, err2 := strconv.ParseUint(off, 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return g, o, true
}

func manifestID(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix)
}

// Snapshot captures the current state, stores it, records its manifest,
// and prunes old snapshots.
func (m *Manager) Snapshot(ctx context.Context) (*Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := time.Now()

	p, err := m.source.CaptureSnapshot(ctx)
	if err != nil {
		metrics.RecordSnapshot("snapshot", 0, time.Since(start), err)
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	data, err := Encode(p, m.cfg.Codec)
	if err != nil {
		metrics.RecordSnapshot("snapshot", 0, time.Since(start), err)
		return nil, err
	}

	key := Key(p.Generation, p.Offset)
	if err := m.blobs.Put(ctx, key, data); err != nil {
		metrics.RecordSnapshot("snapshot", 0, time.Since(start), err)
		return nil, fmt.Errorf("store snapshot %s: %w", key, err)
	}
	man := &Manifest{
		ID:         manifestID(key),
		Key:        key,
		Generation: p.Generation,
		Offset:     p.Offset,
		Round:      p.Optimization.Round,
		Codec:      Codec(data[5]).String(),
		Size:       len(data),
		CreatedAt:  p.CreatedAt,
	}
	if err := docstore.PutJSON(ctx, m.docs, ManifestCollection, man.ID, man); err != nil {
		metrics.RecordSnapshot("snapshot", len(data), time.Since(start), err)
		return nil, fmt.Errorf("record manifest: %w", err)
	}
	metrics.RecordSnapshot("snapshot", len(data), time.Since(start), nil)

	m.logger.Info().
		Str("key", key).
		Uint64("generation", p.Generation).
		Uint64("offset", p.Offset).
		Str("codec", man.Codec).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("snapshot stored")

	if err := m.prune(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("snapshot retention failed")
	}
	return man, nil
}

// List returns known snapshots newest first. Blobs without a manifest are
// included so a lost document store does not hide checkpoints.
func (m *Manager) List(ctx context.Context) ([]Manifest, error) {
	manifests, err := docstore.ListJSON[Manifest](ctx, m.docs, ManifestCollection)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	byKey := make(map[string]Manifest, len(manifests))
	for _, man := range manifests {
		byKey[man.Key] = man
	}

	keys, err := m.blobs.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshot blobs: %w", err)
	}
	for _, k := range keys {
		if _, ok := byKey[k]; ok {
			continue
		}
		gen, off, ok := parseKey(k)
		if !ok {
			continue
		}
		byKey[k] = Manifest{ID: manifestID(k), Key: k, Generation: gen, Offset: off}
	}

	out := make([]Manifest, 0, len(byKey))
	for _, man := range byKey {
		out = append(out, man)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Generation != out[j].Generation {
			return out[i].Generation > out[j].Generation
		}
		if out[i].Offset != out[j].Offset {
			return out[i].Offset > out[j].Offset
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// prune keeps the newest cfg.Retain snapshots.
func (m *Manager) prune(ctx context.Context) error {
	all, err := m.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for i := m.cfg.Retain; i < len(all); i++ {
		man := all[i]
		if err := m.blobs.Delete(ctx, man.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.docs.Delete(ctx, ManifestCollection, man.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		m.logger.Debug().Str("key", man.Key).Msg("snapshot pruned")
	}
	return errors.Join(errs...)
}

// Restore loads the snapshot with the given manifest id or blob key.
func (m *Manager) Restore(ctx context.Context, ref string) (*Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ref
	if !strings.HasPrefix(ref, keyPrefix) {
		key = keyPrefix + ref + keySuffix
	}
	gen, off, ok := parseKey(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSnapshotNotFound, ref)
	}
	man := &Manifest{ID: manifestID(key), Key: key, Generation: gen, Offset: off}
	if err := m.restore(ctx, man); err != nil {
		return nil, err
	}
	return man, nil
}

func (m *Manager) restore(ctx context.Context, man *Manifest) error {
	start := time.Now()
	data, err := m.blobs.Get(ctx, man.Key)
	if errors.Is(err, blobstore.ErrNotFound) {
		metrics.RecordSnapshot("restore", 0, time.Since(start), err)
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, man.Key)
	}
	if err != nil {
		metrics.RecordSnapshot("restore", 0, time.Since(start), err)
		return fmt.Errorf("load snapshot %s: %w", man.Key, err)
	}

	p, codec, err := Decode(data)
	if err == nil {
		err = p.Validate()
	}
	if err == nil && (p.Generation != man.Generation || p.Offset != man.Offset) {
		err = fmt.Errorf("%w: payload is %d-%d, key says %d-%d", ErrCorruptSnapshot, p.Generation, p.Offset, man.Generation, man.Offset)
	}
	if err != nil {
		metrics.RecordSnapshot("restore", len(data), time.Since(start), err)
		return fmt.Errorf("restore %s: %w", man.Key, err)
	}

	if err := m.source.ApplySnapshot(ctx, p); err != nil {
		metrics.RecordSnapshot("restore", len(data), time.Since(start), err)
		return fmt.Errorf("apply snapshot %s: %w", man.Key, err)
	}
	man.Round = p.Optimization.Round
	man.Codec = codec.String()
	man.Size = len(data)
	man.CreatedAt = p.CreatedAt
	metrics.RecordSnapshot("restore", len(data), time.Since(start), nil)

	m.logger.Info().
		Str("key", man.Key).
		Uint64("generation", p.Generation).
		Uint64("offset", p.Offset).
		Int("entities", len(p.Graph.Entities)).
		Int("edges", len(p.Graph.Edges)).
		Msg("snapshot restored")
	return nil
}

// RestoreLatest restores the newest valid snapshot, falling back to older
// ones when a payload is corrupt or missing.
func (m *Manager) RestoreLatest(ctx context.Context) (*Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoSnapshot
	}

	var errs []error
	for i := range all {
		man := all[i]
		err := m.restore(ctx, &man)
		if err == nil {
			if i > 0 {
				m.logger.Warn().Str("key", man.Key).Int("skipped", i).Msg("restored an older snapshot after fallback")
			}
			return &man, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrCorruptSnapshot) && !errors.Is(err, ErrSnapshotNotFound) {
			return nil, err
		}
		m.logger.Warn().Err(err).Str("key", man.Key).Msg("snapshot unusable, trying an older one")
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: no valid snapshot among %d: %w", ErrCorruptSnapshot, len(all), errors.Join(errs...))
}

// Export captures the current state as uncompressed JSON.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	start := time.Now()
	p, err := m.source.CaptureSnapshot(ctx)
	if err != nil {
		metrics.RecordSnapshot("export", 0, time.Since(start), err)
		return nil, fmt.Errorf("capture export: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		metrics.RecordSnapshot("export", 0, time.Since(start), err)
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	metrics.RecordSnapshot("export", len(data), time.Since(start), nil)
	return data, nil
}

// Import replaces the engine state with an exported payload. Both plain
// JSON exports and framed snapshot blobs are accepted.
func (m *Manager) Import(ctx context.Context, data []byte) (*Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := time.Now()

	var (
		p   *Payload
		err error
	)
	if HasMagic(data) {
		p, _, err = Decode(data)
	} else {
		p = &Payload{}
		if uerr := json.Unmarshal(data, p); uerr != nil {
			err = fmt.Errorf("%w: unmarshal: %v", ErrCorruptSnapshot, uerr)
		}
	}
	if err == nil {
		err = p.Validate()
	}
	if err == nil {
		err = m.source.ApplySnapshot(ctx, p)
	}
	metrics.RecordSnapshot("import", len(data), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	m.logger.Info().
		Uint64("generation", p.Generation).
		Uint64("offset", p.Offset).
		Int("entities", len(p.Graph.Entities)).
		Msg("state imported")
	return p, nil
}
