// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

/*
Package pubsub carries fine-tuning traffic between the coordinator and its
workers over Watermill.

Two transports are supported:

  - channel: Watermill gochannel, for single-process deployments and tests
  - nats: watermill-nats against an external NATS server or one embedded
    in the process (nats-server/v2)

Both fan out every published message to every subscriber of a topic, so
a job broadcast reaches all workers.

Publishing goes through a gobreaker circuit breaker. Consumption goes
through a Router with panic recovery, exponential retry, and an LRU-backed
deduplicator so redelivered messages are handled once. Delivery is
at-least-once; handlers must also be idempotent.

Topics:

	ruvector.learning.jobs      coordinator -> workers   JobRequest
	ruvector.gradient.updates   workers -> coordinator   PartialResult
	ruvector.model.sync         coordinator -> engines   RoundComplete
*/
package pubsub
