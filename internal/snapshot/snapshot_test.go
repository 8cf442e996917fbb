// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ruvector/internal/blobstore"
	"github.com/tomtom215/ruvector/internal/docstore"
	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/ivf"
	"github.com/tomtom215/ruvector/internal/vector"
)

// fakeSource serves a payload that advances by one generation per capture.
type fakeSource struct {
	t *testing.T

	mu       sync.Mutex
	graph    *hypergraph.Store
	gen      uint64
	applied  []*Payload
	applyErr error
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	g := hypergraph.NewStore(hypergraph.Options{Stripes: 4})
	for _, id := range []string{"user:1", "user:2"} {
		_, err := g.RegisterEntity(id, hypergraph.KindUser, nil)
		require.NoError(t, err)
	}
	for _, id := range []string{"movie:1", "movie:2", "movie:3"} {
		_, err := g.RegisterEntity(id, hypergraph.KindMedia, nil)
		require.NoError(t, err)
	}
	return &fakeSource{t: t, graph: g}
}

func (f *fakeSource) CaptureSnapshot(ctx context.Context) (*Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	_, err := f.graph.RecordInteraction(hypergraph.Interaction{
		EntityIDs: []string{"user:1", "movie:1"},
		Type:      hypergraph.Like,
		Timestamp: time.Unix(int64(f.gen), 0),
	})
	require.NoError(f.t, err)
	st := f.graph.State()

	vectors := map[string]vector.Vector{
		"movie:1": {1, 0, 0, 0},
		"movie:2": {0, 1, 0, 0},
		"movie:3": {0, 0, 1, 0},
	}
	ix, err := ivf.New(ivf.Config{NumLists: 2, ProbedLists: 1, MaxIterations: 5, RebuildRatio: 0.2}, zerolog.Nop())
	require.NoError(f.t, err)
	snap, err := ix.Build(ctx, f.gen, vectors, 7)
	require.NoError(f.t, err)

	params := embedding.IdentityParams(4)
	params.Round = f.gen
	return &Payload{
		Version:    PayloadVersion,
		CreatedAt:  time.Unix(int64(f.gen), 0).UTC(),
		Offset:     st.Offset,
		Generation: f.gen,
		Graph:      st,
		Embeddings: &embedding.Generation{Number: f.gen, Vectors: vectors, CreatedAt: time.Unix(0, 0).UTC()},
		Index:      snap,
		Optimization: Optimization{
			Params: params,
			Seed:   42,
			Round:  f.gen,
		},
	}, nil
}

func (f *fakeSource) ApplySnapshot(_ context.Context, p *Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, p)
	return nil
}

func (f *fakeSource) lastApplied() *Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.applied) == 0 {
		return nil
	}
	return f.applied[len(f.applied)-1]
}

func newManager(t *testing.T, codec Codec) (*Manager, *fakeSource, *blobstore.MemoryStore, docstore.Store) {
	t.Helper()
	src := newFakeSource(t)
	blobs := blobstore.NewMemory()
	docs := docstore.NewMemory()
	return NewManager(blobs, docs, src, Config{Codec: codec, Retain: 2}, zerolog.Nop()), src, blobs, docs
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	src := newFakeSource(t)
	p, err := src.CaptureSnapshot(context.Background())
	require.NoError(t, err)

	for _, c := range []Codec{CodecNone, CodecZstd, CodecLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()
			data, err := Encode(p, c)
			require.NoError(t, err)
			assert.True(t, HasMagic(data))

			got, _, err := Decode(data)
			require.NoError(t, err)
			require.NoError(t, got.Validate())
			assert.Equal(t, p.Generation, got.Generation)
			assert.Equal(t, p.Offset, got.Offset)
			assert.Len(t, got.Graph.Edges, len(p.Graph.Edges))
			assert.Equal(t, p.Index.Size(), len(got.Embeddings.Vectors))
		})
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	t.Parallel()

	src := newFakeSource(t)
	p, err := src.CaptureSnapshot(context.Background())
	require.NoError(t, err)
	data, err := Encode(p, CodecZstd)
	require.NoError(t, err)

	flip := func(i int) []byte {
		out := append([]byte(nil), data...)
		out[i] ^= 0x55
		return out
	}
	cases := map[string][]byte{
		"empty":      nil,
		"truncated":  data[:len(data)-3],
		"header":     data[:headerSize-1],
		"magic":      flip(0),
		"version":    flip(4),
		"codec":      flip(5),
		"raw length": flip(12),
		"checksum":   flip(25),
		"body":       flip(headerSize + 10),
	}
	for name, b := range cases {
		_, _, err := Decode(b)
		assert.ErrorIs(t, err, ErrCorruptSnapshot, name)
	}
}

func TestPayloadValidate(t *testing.T) {
	t.Parallel()

	src := newFakeSource(t)
	mutations := map[string]func(p *Payload){
		"version":           func(p *Payload) { p.Version = 99 },
		"offset":            func(p *Payload) { p.Offset++ },
		"params missing":    func(p *Payload) { p.Optimization.Params = nil },
		"embedding gen":     func(p *Payload) { p.Embeddings.Number++ },
		"unknown embedding": func(p *Payload) { p.Embeddings.Vectors["ghost"] = vector.Vector{1, 0, 0, 0} },
		"embedding dim":     func(p *Payload) { p.Embeddings.Vectors["movie:1"] = vector.Vector{1, 0} },
		"index ahead":       func(p *Payload) { p.Index.Generation = p.Generation + 1 },
		"dangling edge": func(p *Payload) {
			p.Graph.Edges[0].EntityIDs = []string{"nobody"}
		},
		"index without embedding": func(p *Payload) { delete(p.Embeddings.Vectors, "movie:3") },
	}
	for name, mutate := range mutations {
		p, err := src.CaptureSnapshot(context.Background())
		require.NoError(t, err)
		require.NoError(t, p.Validate(), name)
		mutate(p)
		assert.ErrorIs(t, p.Validate(), ErrCorruptSnapshot, name)
	}
}

func TestSnapshotAndRetention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _, blobs, docs := newManager(t, CodecZstd)

	var last *Manifest
	for i := 0; i < 4; i++ {
		man, err := m.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, Key(man.Generation, man.Offset), man.Key)
		assert.Equal(t, "zstd", man.Codec)
		last = man
	}

	keys, err := blobs.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Len(t, keys, 2, "current plus one prior")

	docsList, err := docs.List(ctx, ManifestCollection)
	require.NoError(t, err)
	assert.Len(t, docsList, 2)

	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, last.Key, all[0].Key)
	assert.Equal(t, uint64(3), all[1].Generation)
}

func TestRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, src, _, _ := newManager(t, CodecLZ4)

	first, err := m.Snapshot(ctx)
	require.NoError(t, err)
	_, err = m.Snapshot(ctx)
	require.NoError(t, err)

	man, err := m.Restore(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Generation, man.Generation)
	assert.Equal(t, first.Generation, src.lastApplied().Generation)

	_, err = m.Restore(ctx, "99-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	_, err = m.Restore(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRestoreLatest_FallsBackPastCorruption(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, src, blobs, _ := newManager(t, CodecZstd)

	_, err := m.RestoreLatest(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	older, err := m.Snapshot(ctx)
	require.NoError(t, err)
	newer, err := m.Snapshot(ctx)
	require.NoError(t, err)

	require.True(t, blobs.Corrupt(newer.Key, headerSize+5))

	got, err := m.RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.Key, got.Key)
	assert.Equal(t, older.Generation, src.lastApplied().Generation)

	require.True(t, blobs.Corrupt(older.Key, 0))
	_, err = m.RestoreLatest(ctx)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestRestoreLatest_WithoutManifests(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, src, blobs, _ := newManager(t, CodecNone)

	man, err := m.Snapshot(ctx)
	require.NoError(t, err)

	// A fresh document store loses every manifest; the blob keys still
	// identify the checkpoint.
	m2 := NewManager(blobs, docstore.NewMemory(), src, Config{Codec: CodecNone}, zerolog.Nop())
	got, err := m2.RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, man.Key, got.Key)
}

func TestRestore_ApplyErrorIsNotFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, src, _, _ := newManager(t, CodecZstd)

	_, err := m.Snapshot(ctx)
	require.NoError(t, err)

	boom := errors.New("apply failed")
	src.applyErr = boom
	_, err = m.RestoreLatest(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestExportImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, src, _, _ := newManager(t, CodecZstd)

	data, err := m.Export(ctx)
	require.NoError(t, err)
	assert.False(t, HasMagic(data))
	assert.Equal(t, byte('{'), data[0])

	p, err := m.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Generation)
	assert.Equal(t, p, src.lastApplied())

	framed, err := Encode(p, CodecLZ4)
	require.NoError(t, err)
	_, err = m.Import(ctx, framed)
	require.NoError(t, err)

	_, err = m.Import(ctx, []byte(`{"version": 1, "graph": {"offset": 3}}`))
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
	_, err = m.Import(ctx, []byte("not json"))
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	g, o, ok := parseKey(Key(12, 4096))
	require.True(t, ok)
	assert.Equal(t, uint64(12), g)
	assert.Equal(t, uint64(4096), o)

	for _, bad := range []string{"snapshots/12.snap", "other/1-2.snap", "snapshots/a-b.snap", "snapshots/1-2.json"} {
		_, _, ok := parseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseCodec(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Codec{"": CodecZstd, "zstd": CodecZstd, "lz4": CodecLZ4, "none": CodecNone} {
		got, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCodec("gzip")
	assert.Error(t, err)
}
