// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

// FederatedAverage merges worker estimates weighted by sample count:
// Σ(ci·gi) / Σci. Results with no samples carry no weight. It also returns
// the sample-weighted mean loss, taken as the midpoint of f+ and f−.
func FederatedAverage(results []PartialResult) (gradient, loss float64, samples int, err error) {
	var weighted, lossSum float64
	for _, r := range results {
		if r.Samples <= 0 {
			continue
		}
		c := float64(r.Samples)
		weighted += c * r.Estimate
		lossSum += c * (r.LossPlus + r.LossMinus) / 2
		samples += r.Samples
	}
	if samples == 0 {
		return 0, 0, 0, ErrNoSamples
	}
	total := float64(samples)
	return weighted / total, lossSum / total, samples, nil
}
