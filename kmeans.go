package spcluster

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeansConfig controls the hard k-means solver.
// Zero values fall back to defaults via applyKMeansDefaults.
type KMeansConfig struct {
	// MaxIterations caps Lloyd iterations per restart. Default: 100.
	MaxIterations int

	// Tolerance is the total center movement below which a restart is
	// considered converged. Default: 1e-6.
	Tolerance float64

	// Restarts is the number of independent seeded runs; the run with the
	// lowest within-cluster sum of squares wins. Default: 5.
	Restarts int

	// Seed is the base random seed. Restart r uses Seed + r, so results are
	// deterministic and independent of execution order.
	Seed int64
}

// KMeansResult is the output of one k-means fit (the best restart).
type KMeansResult struct {
	// Labels assigns each point to a cluster in [0, k).
	Labels []int
	// Centers is the k×dims flat centroid matrix.
	Centers []float64
	// WSS is the within-cluster sum of squared distances (inertia).
	WSS float64
	// Iterations is the iteration count of the winning restart.
	Iterations int
	// Converged reports whether the winning restart met Tolerance before
	// MaxIterations.
	Converged bool
}

func applyKMeansDefaults(cfg *KMeansConfig) {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 100
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = 1e-6
	}
	if cfg.Restarts == 0 {
		cfg.Restarts = 5
	}
}

// KMeans runs Lloyd's algorithm with k-means++ initialization on an n×dims
// flat row-major matrix. Each restart is independently seeded; the restart
// with the lowest WSS is returned.
func KMeans(data []float64, n, dims, k int, cfg KMeansConfig) (*KMeansResult, error) {
	applyKMeansDefaults(&cfg)
	if n < 1 || dims < 1 || len(data) != n*dims {
		return nil, fmt.Errorf("%w: data length %d does not match n*dims = %d", ErrInvalidInput, len(data), n*dims)
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: k must be in [1, n], got k=%d n=%d", ErrInvalidInput, k, n)
	}

	var best *KMeansResult
	for r := 0; r < cfg.Restarts; r++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(r)))
		res := lloyd(data, n, dims, k, cfg, rng)
		if best == nil || res.WSS < best.WSS {
			best = res
		}
	}
	return best, nil
}

func lloyd(data []float64, n, dims, k int, cfg KMeansConfig, rng *rand.Rand) *KMeansResult {
	centers := kmeansPlusPlusInit(data, n, dims, k, rng)
	labels := make([]int, n)
	sums := make([]float64, k*dims)
	counts := make([]int, k)

	converged := false
	iterations := 0

	for iterations < cfg.MaxIterations && !converged {
		// Assignment step.
		for i := 0; i < n; i++ {
			labels[i] = nearestCenter(data[i*dims:(i+1)*dims], centers, k, dims)
		}

		// Update step.
		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			c := labels[i]
			counts[c]++
			for d := 0; d < dims; d++ {
				sums[c*dims+d] += data[i*dims+d]
			}
		}

		movement := 0.0
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: reseed from a random point.
				p := rng.Intn(n)
				copy(sums[c*dims:(c+1)*dims], data[p*dims:(p+1)*dims])
				counts[c] = 1
			}
			for d := 0; d < dims; d++ {
				sums[c*dims+d] /= float64(counts[c])
			}
			movement += math.Sqrt(euclideanSumOfSquares(centers[c*dims:(c+1)*dims], sums[c*dims:(c+1)*dims]))
			copy(centers[c*dims:(c+1)*dims], sums[c*dims:(c+1)*dims])
		}

		converged = movement < cfg.Tolerance
		iterations++
	}

	// Final assignment against the last center update.
	wss := 0.0
	for i := 0; i < n; i++ {
		labels[i] = nearestCenter(data[i*dims:(i+1)*dims], centers, k, dims)
		wss += euclideanSumOfSquares(data[i*dims:(i+1)*dims], centers[labels[i]*dims:(labels[i]+1)*dims])
	}

	return &KMeansResult{
		Labels:     labels,
		Centers:    centers,
		WSS:        wss,
		Iterations: iterations,
		Converged:  converged,
	}
}

// kmeansPlusPlusInit chooses k initial centers with probability proportional
// to squared distance from the nearest already-chosen center.
func kmeansPlusPlusInit(data []float64, n, dims, k int, rng *rand.Rand) []float64 {
	centers := make([]float64, k*dims)
	first := rng.Intn(n)
	copy(centers[:dims], data[first*dims:(first+1)*dims])

	minSq := make([]float64, n)
	for i := range minSq {
		minSq[i] = euclideanSumOfSquares(data[i*dims:(i+1)*dims], centers[:dims])
	}

	for c := 1; c < k; c++ {
		total := 0.0
		for _, d := range minSq {
			total += d
		}

		chosen := -1
		if total > 0 {
			r := rng.Float64() * total
			cum := 0.0
			for i, d := range minSq {
				cum += d
				if cum >= r {
					chosen = i
					break
				}
			}
		}
		if chosen < 0 {
			// All points coincide with existing centers.
			chosen = rng.Intn(n)
		}
		copy(centers[c*dims:(c+1)*dims], data[chosen*dims:(chosen+1)*dims])

		for i := range minSq {
			d := euclideanSumOfSquares(data[i*dims:(i+1)*dims], centers[c*dims:(c+1)*dims])
			if d < minSq[i] {
				minSq[i] = d
			}
		}
	}

	return centers
}

func nearestCenter(point, centers []float64, k, dims int) int {
	best := 0
	bestDist := math.Inf(1)
	for c := 0; c < k; c++ {
		d := euclideanSumOfSquares(point, centers[c*dims:(c+1)*dims])
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
