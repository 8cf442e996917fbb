// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerStore stores documents under "<collection>\x00<id>" keys.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// BadgerConfig configures the embedded database.
type BadgerConfig struct {
	Path       string
	SyncWrites bool
	// InMemory ignores Path. Used by tests.
	InMemory bool
	GCRatio  float64
}

// OpenBadger opens (or creates) the database.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenBadger(cfg BadgerConfig, logger zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	l := logger.With().Str("component", "docstore").Str("backend", "badger").Logger()
	l.Info().Str("path", cfg.Path).Bool("sync_writes", cfg.SyncWrites).Bool("in_memory", cfg.InMemory).Msg("document store opened")
	return &BadgerStore{db: db, logger: l}, nil
}

// Name implements Store.
func (b *BadgerStore) Name() string { return "badger" }

func badgerKey(collection, id string) []byte {
	return []byte(collection + keySeparator + id)
}

// Put implements Store.
func (b *BadgerStore) Put(ctx context.Context, collection, id string, data []byte) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(collection, id), data)
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, b.mapErr(err))
	}
	return nil
}

// Get implements Store.
func (b *BadgerStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, b.mapErr(err))
	}
	return out, nil
}

// List implements Store. Badger iterates keys in byte order, which is id
// order within a collection prefix.
func (b *BadgerStore) List(ctx context.Context, collection string) ([]Document, error) {
	if collection == "" {
		return nil, ErrInvalidKey
	}
	var out []Document
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(collection + keySeparator)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, Document{
				ID:   strings.TrimPrefix(string(item.Key()), string(prefix)),
				Data: val,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, b.mapErr(err))
	}
	return out, nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(badgerKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, b.mapErr(err))
	}
	return nil
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (b *BadgerStore) RunGC(ratio float64) error {
	for {
		err := b.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	b.logger.Info().Msg("document store closed")
	return nil
}

func (b *BadgerStore) mapErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}
