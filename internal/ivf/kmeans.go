// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package ivf

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/ruvector/internal/vector"
)

// trainResult holds centroids and the final assignment of every point.
type trainResult struct {
	centroids  []vector.Vector
	assignment []int
	iterations int
}

// train runs seeded k-means++ initialization followed by spherical Lloyd
// iterations: points are assigned by maximum dot product and centroids are
// renormalized means. It stops early when no assignment changes. The
// returned assignment always matches the returned centroids.
func train(ctx context.Context, points []vector.Vector, k, maxIter, workers int, seed int64) (*trainResult, error) {
	n := len(points)
	if k > n {
		k = n
	}
	res := &trainResult{assignment: make([]int, n)}
	if k == 0 {
		return res, nil
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic clustering
	res.centroids = seedPlusPlus(points, k, rng)
	for i := range res.assignment {
		res.assignment[i] = -1
	}

	dim := len(points[0])
	converged := false
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed, err := assignAll(ctx, points, res.centroids, res.assignment, workers)
		if err != nil {
			return nil, err
		}
		res.iterations = iter + 1
		if !changed {
			converged = true
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, c := range res.assignment {
			vector.Accumulate(sums[c], points[i], 1)
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Reseed an empty cluster with the point worst served by its centroid.
				far := farthestPoint(points, res.centroids, res.assignment)
				res.centroids[c] = points[far].Clone()
				res.assignment[far] = c
				continue
			}
			cv := vector.FromFloat64(sums[c])
			if !vector.Normalize(cv) {
				continue
			}
			res.centroids[c] = cv
		}
	}

	// The budget ran out after a centroid update or a reseed; reassign
	// against the final centroids.
	if !converged {
		if _, err := assignAll(ctx, points, res.centroids, res.assignment, workers); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// seedPlusPlus picks k initial centroids with probability proportional to
// squared distance from the nearest already chosen centroid.
func seedPlusPlus(points []vector.Vector, k int, rng *rand.Rand) []vector.Vector {
	n := len(points)
	centroids := make([]vector.Vector, 0, k)
	centroids = append(centroids, points[rng.Intn(n)].Clone())

	dist := make([]float64, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	for len(centroids) < k {
		last := centroids[len(centroids)-1]
		var total float64
		for i, p := range points {
			if d := vector.SquaredL2(p, last); d < dist[i] {
				dist[i] = d
			}
			total += dist[i]
		}

		next := -1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r < 0 {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// All remaining points coincide with centroids; take any unused one.
			next = rng.Intn(n)
		}
		centroids = append(centroids, points[next].Clone())
	}
	return centroids
}

// assignAll assigns every point to its nearest centroid in parallel chunks.
func assignAll(ctx context.Context, points, centroids []vector.Vector, assignment []int, workers int) (bool, error) {
	if workers < 1 {
		workers = 1
	}
	chunk := (len(points) + workers - 1) / workers
	changed := make([]bool, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if hi > len(points) {
			hi = len(points)
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				c := nearest(points[i], centroids)
				if assignment[i] != c {
					assignment[i] = c
					changed[w] = true
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	for _, c := range changed {
		if c {
			return true, nil
		}
	}
	return false, nil
}

// nearest returns the centroid with the highest dot product, lowest index on ties.
func nearest(v vector.Vector, centroids []vector.Vector) int {
	best, bestScore := 0, math.Inf(-1)
	for c, cv := range centroids {
		if s := vector.Dot(v, cv); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func farthestPoint(points, centroids []vector.Vector, assignment []int) int {
	far, worst := 0, math.Inf(1)
	for i, p := range points {
		c := assignment[i]
		if c < 0 {
			continue
		}
		if s := vector.Dot(p, centroids[c]); s < worst {
			far, worst = i, s
		}
	}
	return far
}
