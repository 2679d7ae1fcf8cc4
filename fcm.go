package spcluster

import (
	"fmt"
	"math"
	"math/rand"
)

// FuzzyConfig controls the fuzzy c-means solver.
type FuzzyConfig struct {
	// Fuzziness is the exponent m > 1. Default: 2.
	Fuzziness float64

	// MaxIterations caps solver iterations. Default: 150.
	MaxIterations int

	// Epsilon is the convergence threshold on the maximum absolute
	// membership change per iteration. Default: 1e-5.
	Epsilon float64

	// Seed drives the random membership initialization.
	Seed int64
}

// FuzzyResult is the output of a fuzzy c-means fit. Membership rows are
// probabilistic: each sums to 1.
type FuzzyResult struct {
	// Centers is the k×dims flat centroid matrix.
	Centers []float64
	// Membership is the n×k flat membership matrix, rows summing to 1.
	Membership []float64
	// Distances is the n×k flat point-to-center distance matrix at the
	// final centers.
	Distances []float64
	// Iterations is the number of update iterations performed.
	Iterations int
	// Converged reports whether Epsilon was met before MaxIterations.
	// Hitting MaxIterations is not an error; the last state is returned.
	Converged bool
}

func applyFuzzyDefaults(cfg *FuzzyConfig) {
	if cfg.Fuzziness == 0 {
		cfg.Fuzziness = 2
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 150
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-5
	}
}

// FuzzyCMeans runs the standard fuzzy c-means solver on an n×dims flat
// row-major matrix: memberships initialized randomly (row-stochastic),
// centers as u^m-weighted means, memberships from the inverse-distance-ratio
// update rule, until the maximum membership change falls below Epsilon.
func FuzzyCMeans(data []float64, n, dims, k int, cfg FuzzyConfig) (*FuzzyResult, error) {
	applyFuzzyDefaults(&cfg)
	if n < 1 || dims < 1 || len(data) != n*dims {
		return nil, fmt.Errorf("%w: data length %d does not match n*dims = %d", ErrInvalidInput, len(data), n*dims)
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: k must be in [1, n], got k=%d n=%d", ErrInvalidInput, k, n)
	}
	if cfg.Fuzziness <= 1 {
		return nil, fmt.Errorf("%w: fuzziness must be > 1, got %g", ErrInvalidInput, cfg.Fuzziness)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	membership := randomStochasticRows(rng, n, k)
	centers := make([]float64, k*dims)
	var dists []float64

	converged := false
	iterations := 0

	for iterations < cfg.MaxIterations && !converged {
		updateFuzzyCenters(data, membership, centers, n, dims, k, cfg.Fuzziness)
		dists = centerDistances(data, n, dims, centers, k)
		next := fuzzyMemberships(dists, n, k, cfg.Fuzziness)

		maxChange := 0.0
		for i := range next {
			if c := math.Abs(next[i] - membership[i]); c > maxChange {
				maxChange = c
			}
		}
		membership = next
		converged = maxChange < cfg.Epsilon
		iterations++
	}

	return &FuzzyResult{
		Centers:    centers,
		Membership: membership,
		Distances:  dists,
		Iterations: iterations,
		Converged:  converged,
	}, nil
}

// randomStochasticRows builds an n×k matrix of random rows each summing to 1.
func randomStochasticRows(rng *rand.Rand, n, k int) []float64 {
	m := make([]float64, n*k)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < k; j++ {
			v := rng.Float64() + 1e-9
			m[i*k+j] = v
			sum += v
		}
		for j := 0; j < k; j++ {
			m[i*k+j] /= sum
		}
	}
	return m
}

// updateFuzzyCenters recomputes centers as the u^m-weighted mean of the data.
// A cluster whose total weight is zero keeps its previous center.
func updateFuzzyCenters(data, membership, centers []float64, n, dims, k int, m float64) {
	for j := 0; j < k; j++ {
		var weightSum float64
		num := make([]float64, dims)
		for i := 0; i < n; i++ {
			w := math.Pow(membership[i*k+j], m)
			weightSum += w
			for d := 0; d < dims; d++ {
				num[d] += w * data[i*dims+d]
			}
		}
		if weightSum == 0 {
			continue
		}
		for d := 0; d < dims; d++ {
			centers[j*dims+d] = num[d] / weightSum
		}
	}
}

// fuzzyMemberships computes the probabilistic membership matrix from an n×k
// point-to-center distance matrix with the standard FCM update rule
// u[i,j] = 1 / Σ_l (d[i,j]/d[i,l])^{2/(m-1)}. A point at exactly zero
// distance from a center gets full membership there (degenerate exact match).
func fuzzyMemberships(dists []float64, n, k int, m float64) []float64 {
	u := make([]float64, n*k)
	exp := 2 / (m - 1)
	for i := 0; i < n; i++ {
		zero := -1
		for j := 0; j < k; j++ {
			if dists[i*k+j] == 0 {
				zero = j
				break
			}
		}
		if zero >= 0 {
			u[i*k+zero] = 1
			continue
		}
		for j := 0; j < k; j++ {
			var sum float64
			dij := dists[i*k+j]
			for l := 0; l < k; l++ {
				sum += math.Pow(dij/dists[i*k+l], exp)
			}
			u[i*k+j] = 1 / sum
		}
	}
	return u
}
