package spcluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Kernel selects the similarity kernel used to convert a distance matrix
// into an affinity graph.
type Kernel string

const (
	// KernelGaussian sets S[i,j] = exp(-D[i,j]² / (2σ²)). Parameter: σ > 0.
	KernelGaussian Kernel = "gaussian"
	// KernelEpsilon sets S[i,j] = 1 if D[i,j] <= ε, else 0. Parameter: ε > 0.
	KernelEpsilon Kernel = "epsilon"
	// KernelKNN connects each observation to its k nearest neighbors
	// (excluding itself). Parameter: integer k in [1, n-1].
	KernelKNN Kernel = "knn"
)

// BuildSimilarity converts an n×n distance matrix into a similarity matrix
// using the given kernel and parameter. The result is symmetric with entries
// in [0, 1]. Binary kernels (epsilon, kNN) are symmetrized by taking the
// element-wise maximum with the transpose, so an edge exists if either
// direction qualifies.
//
// The diagonal is whatever the kernel naturally produces (1 for Gaussian and
// epsilon, 0 for kNN); callers that need a specific self-similarity
// convention set it themselves.
func BuildSimilarity(dist []float64, n int, kernel Kernel, param float64) ([]float64, error) {
	if n < 1 || len(dist) != n*n {
		return nil, fmt.Errorf("%w: distance matrix length %d does not match n*n = %d", ErrInvalidInput, len(dist), n*n)
	}

	switch kernel {
	case KernelGaussian:
		if param <= 0 {
			return nil, fmt.Errorf("%w: gaussian kernel needs sigma > 0, got %g", ErrInvalidInput, param)
		}
		return gaussianSimilarity(dist, n, param), nil
	case KernelEpsilon:
		if param <= 0 {
			return nil, fmt.Errorf("%w: epsilon kernel needs epsilon > 0, got %g", ErrInvalidInput, param)
		}
		return epsilonSimilarity(dist, n, param), nil
	case KernelKNN:
		k := int(param)
		if k < 1 || k > n-1 {
			return nil, fmt.Errorf("%w: knn kernel needs 1 <= k <= n-1, got %d (n=%d)", ErrInvalidInput, k, n)
		}
		return knnSimilarity(dist, n, k), nil
	default:
		return nil, fmt.Errorf("%w: unknown kernel %q", ErrInvalidInput, kernel)
	}
}

func gaussianSimilarity(dist []float64, n int, sigma float64) []float64 {
	sim := make([]float64, n*n)
	denom := 2 * sigma * sigma
	for i := 0; i < n; i++ {
		sim[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			d := dist[i*n+j]
			s := math.Exp(-d * d / denom)
			sim[i*n+j] = s
			sim[j*n+i] = s
		}
	}
	return sim
}

func epsilonSimilarity(dist []float64, n int, epsilon float64) []float64 {
	sim := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if dist[i*n+j] <= epsilon {
				sim[i*n+j] = 1
			}
		}
	}
	symmetrizeMax(sim, n)
	return sim
}

func knnSimilarity(dist []float64, n, k int) []float64 {
	sim := make([]float64, n*n)
	idx := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		idx = idx[:0]
		for j := 0; j < n; j++ {
			if j != i {
				idx = append(idx, j)
			}
		}
		sort.Slice(idx, func(a, b int) bool {
			return dist[i*n+idx[a]] < dist[i*n+idx[b]]
		})
		for _, j := range idx[:k] {
			sim[i*n+j] = 1
		}
	}
	symmetrizeMax(sim, n)
	return sim
}

// symmetrizeMax replaces m with the element-wise maximum of m and its
// transpose, in place.
func symmetrizeMax(m []float64, n int) {
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := math.Max(m[i*n+j], m[j*n+i])
			m[i*n+j] = v
			m[j*n+i] = v
		}
	}
}

// MedianDistance returns the median of the off-diagonal entries of an n×n
// distance matrix. It anchors the Gaussian and epsilon parameter ranges.
func MedianDistance(dist []float64, n int) float64 {
	if n < 2 {
		return 0
	}
	offDiag := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			offDiag = append(offDiag, dist[i*n+j])
		}
	}
	sort.Float64s(offDiag)
	return stat.Quantile(0.5, stat.Empirical, offDiag, nil)
}

// sweepRangePoints is the number of candidate values generated for the
// Gaussian and epsilon kernel parameter ranges.
const sweepRangePoints = 10

// GaussianParamRange returns sweepRangePoints evenly spaced sigma candidates
// in [0.1, 2.0] × medianDist.
func GaussianParamRange(medianDist float64) []float64 {
	return scaledRange(medianDist)
}

// EpsilonParamRange returns sweepRangePoints evenly spaced epsilon candidates
// in [0.1, 2.0] × medianDist.
func EpsilonParamRange(medianDist float64) []float64 {
	return scaledRange(medianDist)
}

func scaledRange(medianDist float64) []float64 {
	out := make([]float64, sweepRangePoints)
	step := (2.0 - 0.1) / float64(sweepRangePoints-1)
	for i := range out {
		out[i] = (0.1 + float64(i)*step) * medianDist
	}
	return out
}

// KNNParamRange returns the integer neighbor-count candidates 2..min(n-1, 15).
// The result is empty when n <= 2.
func KNNParamRange(n int) []int {
	maxK := n - 1
	if maxK > 15 {
		maxK = 15
	}
	var out []int
	for k := 2; k <= maxK; k++ {
		out = append(out, k)
	}
	return out
}
