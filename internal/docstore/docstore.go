// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package docstore provides the document store used for snapshot manifests
// and learning jobs. Documents are opaque byte payloads keyed by
// (collection, id).
//
// Backends:
//   - memory: process-local map, used by tests and single-node deployments
//   - badger: embedded BadgerDB on local disk
//   - dynamodb: AWS DynamoDB table with collection as partition key and id as sort key
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ruvector/internal/metrics"
)

var (
	// ErrNotFound is returned by Get when no document exists for the key.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidKey is returned for empty collections or ids, or ids that
	// contain the key separator.
	ErrInvalidKey = errors.New("invalid document key")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("document store closed")
)

// Document is one stored payload.
type Document struct {
	ID   string
	Data []byte
}

// Store is the document store contract.
type Store interface {
	Name() string
	Put(ctx context.Context, collection, id string, data []byte) error
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// List returns every document in the collection ordered by id.
	List(ctx context.Context, collection string) ([]Document, error)
	// Delete is a no-op for missing documents.
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

const keySeparator = "\x00"

func validateKey(collection, id string) error {
	if collection == "" || id == "" {
		return ErrInvalidKey
	}
	for _, s := range []string{collection, id} {
		for i := 0; i < len(s); i++ {
			if s[i] == 0 {
				return ErrInvalidKey
			}
		}
	}
	return nil
}

// PutJSON marshals v and stores it.
func PutJSON(ctx context.Context, s Store, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	return s.Put(ctx, collection, id, data)
}

// GetJSON loads a document into v.
func GetJSON(ctx context.Context, s Store, collection, id string, v any) error {
	data, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return nil
}

// ListJSON decodes every document of a collection. Documents that fail to
// decode are returned as errors rather than skipped.
func ListJSON[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", collection, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// instrumented records latency and failures for every operation.
type instrumented struct {
	Store
}

// Instrument wraps s so each operation is recorded in the store metrics.
func Instrument(s Store) Store {
	return instrumented{Store: s}
}

func (i instrumented) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	metrics.RecordStoreOperation(i.Store.Name(), op, time.Since(start), err)
}

func (i instrumented) Put(ctx context.Context, collection, id string, data []byte) error {
	start := time.Now()
	err := i.Store.Put(ctx, collection, id, data)
	i.observe("put", start, err)
	return err
}

func (i instrumented) Get(ctx context.Context, collection, id string) ([]byte, error) {
	start := time.Now()
	data, err := i.Store.Get(ctx, collection, id)
	i.observe("get", start, err)
	return data, err
}

func (i instrumented) List(ctx context.Context, collection string) ([]Document, error) {
	start := time.Now()
	docs, err := i.Store.List(ctx, collection)
	i.observe("list", start, err)
	return docs, err
}

func (i instrumented) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, collection, id)
	i.observe("delete", start, err)
	return err
}
