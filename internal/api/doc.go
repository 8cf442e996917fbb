// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

/*
Package api serves the RuVector HTTP API on a chi router.

Routes (all under /api/v1 unless noted):

	POST   /initialize                     restore or seed, then build the index
	GET    /recommendations/{userID}       recommendations for a user or item seed
	POST   /recommendations/multi-seed     fused recommendations for several seeds
	GET    /similar/{itemID}               similar media, blended with co-interaction
	GET    /trending                       decayed popularity
	GET    /explain                        shared attributes between seed and item
	POST   /interactions                   record a user interaction
	POST   /media                          register a media item
	DELETE /media/{itemID}                 deactivate a media item
	POST   /fine-tune                      submit a learning job
	GET    /fine-tune[/{jobID}]            list or fetch learning jobs
	GET    /stats                          engine summary
	GET    /export                         full state as JSON
	POST   /import                         replace state from an export or snapshot
	GET    /snapshots, POST /snapshots     list or write snapshots
	GET    /health/live, /health/ready     probes
	GET    /metrics                        Prometheus (root path)

Query routes accept limit, exclude_seen, user_id, categories (alias genres),
recency_days and explain (alias include_explanation).

Every JSON response uses the APIResponse envelope. Engine errors map to
status codes in errors.go: unknown entities are 404, kind conflicts and an
uninitialized engine are 409, corrupt imports are 400 and job admission
limits are 429.
*/
package api
