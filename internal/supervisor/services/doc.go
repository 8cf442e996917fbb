// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

/*
Package services adapts engine components to suture's Serve pattern.

Every wrapper implements suture.Service and fmt.Stringer. Periodic
services run a ticker loop and log failed ticks instead of returning
them: a failed rebuild or snapshot is retried on the next tick, and the
previous generation keeps serving in the meantime. Only conditions that
a restart could fix are returned to the supervisor.

Services take narrow interfaces (IndexMaintainer, Snapshotter,
RoundRunner, MessageRunner, HTTPServer) so they can be tested with
fakes; *engine.Engine satisfies the first four.
*/
package services
