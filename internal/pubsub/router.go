// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/ruvector/internal/cache"
	"github.com/tomtom215/ruvector/internal/metrics"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	DedupCapacity int
	DedupTTL      time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		DedupCapacity:        10000,
		DedupTTL:             10 * time.Minute,
	}
}

// Deduplicator drops messages whose key was already handled successfully.
// Keys are recorded only after the handler succeeds, so a nacked message
// is still processed on redelivery.
type Deduplicator struct {
	cache   *cache.LRUCache[string, struct{}]
	dropped atomic.Int64
}

// NewDeduplicator creates a deduplicator remembering up to capacity keys
// for ttl.
func NewDeduplicator(capacity int, ttl time.Duration) *Deduplicator {
	return &Deduplicator{cache: cache.NewLRUCache[string, struct{}](capacity, ttl)}
}

// Seen reports whether key was handled outside any router handler.
func (d *Deduplicator) Seen(key string) bool {
	return d.SeenBy("", key)
}

// SeenBy reports whether the named handler handled key. Keys are scoped
// per handler so every subscriber on a fan-out topic sees each message once.
func (d *Deduplicator) SeenBy(handler, key string) bool {
	_, ok := d.cache.Get(scopedKey(handler, key))
	return ok
}

func scopedKey(handler, key string) string {
	if handler == "" {
		return key
	}
	return handler + "\x00" + key
}

// Middleware implements message.HandlerMiddleware.
func (d *Deduplicator) Middleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		key := scopedKey(message.HandlerNameFromCtx(msg.Context()), dedupKey(msg))
		if _, ok := d.cache.Get(key); ok {
			d.dropped.Add(1)
			metrics.PubSubDeduplicated.Inc()
			return nil, nil
		}
		out, err := h(msg)
		if err == nil {
			d.cache.Add(key, struct{}{})
		}
		return out, err
	}
}

// Dropped returns the number of duplicates dropped.
func (d *Deduplicator) Dropped() int64 {
	return d.dropped.Load()
}

// ErrRouterClosed is returned by Run after Close.
var ErrRouterClosed = errors.New("router is closed")

// Router wraps the Watermill Router with recovery, retry, and
// deduplication middleware.
type Router struct {
	router *message.Router
	dedup  *Deduplicator
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewRouter creates a router. Middleware order, outer to inner:
// Recoverer, Deduplicator, Retry. Duplicates are dropped before any retry
// budget is spent on them.
func NewRouter(cfg RouterConfig, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.DedupCapacity <= 0 {
		cfg.DedupCapacity = DefaultRouterConfig().DedupCapacity
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router: wmRouter,
		dedup:  NewDeduplicator(cfg.DedupCapacity, cfg.DedupTTL),
		logger: logger,
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	wmRouter.AddMiddleware(r.dedup.Middleware)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2.0,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	return r, nil
}

// AddConsumerHandler registers a handler that doesn't produce output messages.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) *message.Handler {
	return r.router.AddConsumerHandler(name, topic, subscriber, func(msg *message.Message) error {
		if err := handler(msg); err != nil {
			return err
		}
		metrics.PubSubConsumed.WithLabelValues(topic).Inc()
		return nil
	})
}

// Run blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	r.started = true
	r.mu.Unlock()
	return r.router.Run(ctx)
}

// Running returns a channel that closes when the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.router.IsRunning()
}

// Close stops the router, waiting up to CloseTimeout for handlers. A
// router that never ran has no handlers to wait for and returns at once.
func (r *Router) Close() error {
	r.mu.Lock()
	r.closed = true
	started := r.started
	r.mu.Unlock()
	if !started {
		return nil
	}
	return r.router.Close()
}

// Deduplicator returns the router's deduplicator.
func (r *Router) Deduplicator() *Deduplicator {
	return r.dedup
}
