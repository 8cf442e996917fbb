// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

/*
Package middleware provides HTTP middleware shared by the RuVector API.

Every middleware has the signature func(http.HandlerFunc) http.HandlerFunc;
the api package adapts them to chi's func(http.Handler) http.Handler.

  - RequestID: reuses or generates an X-Request-ID and seeds the logging
    context with request and correlation ids.
  - PrometheusMetrics: records request count and latency per route pattern,
    plus the in-flight gauge.
  - Compression: gzip for clients that accept it, using pooled
    klauspost/compress writers.

Order matters. RequestID runs first so every later log line carries the id;
PrometheusMetrics wraps Compression so latency includes encoding time.
*/
package middleware
