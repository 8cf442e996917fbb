// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/ruvector/internal/config"
	"github.com/tomtom215/ruvector/internal/metrics"
)

// ChiMiddlewareConfig holds configuration for the chi middleware stack.
type ChiMiddlewareConfig struct {
	// CORS
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Rate limiting. Zero requests disables limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// MaxBodyBytes caps request bodies. Zero means unlimited.
	MaxBodyBytes int64

	// RequestTimeout bounds handler execution. Zero means no timeout.
	RequestTimeout time.Duration
}

// DefaultChiMiddlewareConfig returns production defaults.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		CORSExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,

		MaxBodyBytes:   64 << 20,
		RequestTimeout: 30 * time.Second,
	}
}

// ChiMiddlewareConfigFromServer maps the server config section.
func ChiMiddlewareConfigFromServer(sc config.ServerConfig) *ChiMiddlewareConfig {
	cfg := DefaultChiMiddlewareConfig()
	if len(sc.CORSOrigins) > 0 {
		cfg.CORSAllowedOrigins = sc.CORSOrigins
	}
	cfg.RateLimitRequests = sc.RateLimitReqs
	if sc.RateLimitWindow > 0 {
		cfg.RateLimitWindow = sc.RateLimitWindow
	}
	cfg.MaxBodyBytes = sc.MaxBodyBytes
	cfg.RequestTimeout = sc.RequestTimeout
	return cfg
}

// ChiMiddleware builds the middleware chain from one config.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
}

// NewChiMiddleware creates the middleware set. A nil config uses defaults.
func NewChiMiddleware(cfg *ChiMiddlewareConfig) *ChiMiddleware {
	if cfg == nil {
		cfg = DefaultChiMiddlewareConfig()
	}
	return &ChiMiddleware{config: cfg}
}

// CORS returns the go-chi/cors handler. Credentials are never allowed with
// a wildcard origin.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	allowCredentials := m.config.CORSAllowCredentials
	for _, o := range m.config.CORSAllowedOrigins {
		if o == "*" {
			allowCredentials = false
			break
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   m.config.CORSAllowedOrigins,
		AllowedMethods:   m.config.CORSAllowedMethods,
		AllowedHeaders:   m.config.CORSAllowedHeaders,
		ExposedHeaders:   m.config.CORSExposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           m.config.CORSMaxAge,
	})
}

// RateLimit returns the default per-IP limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.rateLimit(m.config.RateLimitRequests, m.config.RateLimitWindow)
}

// RateLimitConfig defines rate limit parameters for specific endpoints.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

var (
	// RateLimitHealth is permissive so monitoring can poll freely.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

	// RateLimitWrite bounds full-state writes: import, initialize, fine-tune.
	RateLimitWrite = RateLimitConfig{Requests: 10, Window: time.Minute}
)

// RateLimitCustom returns a limiter with endpoint-specific settings. It is a
// no-op when the global limiter is disabled.
func (m *ChiMiddleware) RateLimitCustom(rl RateLimitConfig) func(http.Handler) http.Handler {
	if m.config.RateLimitRequests <= 0 {
		return passthrough
	}
	return m.rateLimit(rl.Requests, rl.Window)
}

func (m *ChiMiddleware) rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return passthrough
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
			NewResponseWriter(w, r).TooManyRequests("Rate limit exceeded")
		}),
	)
}

// MaxBodySize rejects request bodies larger than the configured limit.
func (m *ChiMiddleware) MaxBodySize() func(http.Handler) http.Handler {
	limit := m.config.MaxBodyBytes
	if limit <= 0 {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				WriteError(w, r, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds the request context. Handlers see context.DeadlineExceeded
// from engine calls and map it to 504.
func (m *ChiMiddleware) Timeout() func(http.Handler) http.Handler {
	timeout := m.config.RequestTimeout
	if timeout <= 0 {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APISecurityHeaders adds security headers to API responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Cache-Control", "no-store")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
