// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

/*
Package finetune improves the embedding projection with distributed SPSA.

Each round the Coordinator broadcasts a JobRequest carrying the current
parameters θ, a perturbation seed and the gain c_k. Every Worker regenerates
the Rademacher direction Δ from the seed, evaluates the objective at θ+c_kΔ
and θ−c_kΔ over its local interaction replay, and publishes the scalar
estimate (f+ − f−)/(2c_k) with its sample count. Once a quorum of workers
has answered, the coordinator federated-averages the estimates and applies

	θ ← θ − a_k · ĝ · Δ

Round state machine:

	Idle → AwaitingWorkerResults → Averaging → Published → Idle

A round that misses quorum returns to Idle with ErrQuorumTimeout and is
retried with a fresh seed. Cancelling the context discards partial results.

JobManager wraps multi-round runs as learning jobs persisted in the
document store.
*/
package finetune
