// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package blobstore stores snapshot and export payloads as whole objects.
// Keys are slash-separated relative paths such as
// "snapshots/12-4096.snap".
package blobstore

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/tomtom215/ruvector/internal/metrics"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for absolute, empty, or escaping keys.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is the blob store contract.
type Store interface {
	Name() string
	// Put writes the object atomically: readers see the old or new payload.
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key with the prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key || key == "." || strings.HasPrefix(key, "../") || key == ".." {
		return ErrInvalidKey
	}
	return nil
}

func joinPrefix(root, key string) string {
	if root == "" {
		return key
	}
	joined := path.Join(root, key)
	if strings.HasSuffix(key, "/") {
		joined += "/"
	}
	return joined
}

func trimRoot(root, full string) string {
	if root == "" {
		return full
	}
	return strings.TrimPrefix(strings.TrimPrefix(full, root), "/")
}

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
	metrics.RecordStoreOperation("blob_"+i.Store.Name(), op, time.Since(start), err)
}

func (i instrumented) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := i.Store.Put(ctx, key, data)
	i.observe("put", start, err)
	return err
}

func (i instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := i.Store.Get(ctx, key)
	i.observe("get", start, err)
	return data, err
}

func (i instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := i.Store.List(ctx, prefix)
	i.observe("list", start, err)
	return keys, err
}

func (i instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, key)
	i.observe("delete", start, err)
	return err
}
