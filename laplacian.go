package spcluster

import (
	"fmt"
	"math"
)

// LaplacianVariant selects the graph Laplacian normalization.
type LaplacianVariant string

const (
	// LaplacianUnnormalized is L = D - S.
	LaplacianUnnormalized LaplacianVariant = "unnormalized"
	// LaplacianSymmetric is L = I - D^{-1/2} S D^{-1/2}.
	LaplacianSymmetric LaplacianVariant = "symmetric"
	// LaplacianRandomWalk is L = I - D^{-1} S. Not symmetric in general.
	LaplacianRandomWalk LaplacianVariant = "randomwalk"
)

// BuildLaplacian derives the graph Laplacian from an n×n similarity matrix.
// The similarity diagonal is zeroed before degrees are formed, so
// self-similarity never contributes to a node's degree. Any node with zero
// degree (an isolated observation) fails with ErrDegenerateGraph rather than
// producing NaN/Inf through the degree normalization.
func BuildLaplacian(sim []float64, n int, variant LaplacianVariant) ([]float64, error) {
	if n < 1 || len(sim) != n*n {
		return nil, fmt.Errorf("%w: similarity matrix length %d does not match n*n = %d", ErrInvalidInput, len(sim), n*n)
	}

	switch variant {
	case LaplacianUnnormalized, LaplacianSymmetric, LaplacianRandomWalk:
	default:
		return nil, fmt.Errorf("%w: unknown Laplacian variant %q", ErrInvalidInput, variant)
	}

	// Work on a copy with a zero diagonal; the caller's matrix is not touched.
	adj := make([]float64, n*n)
	copy(adj, sim)
	for i := 0; i < n; i++ {
		adj[i*n+i] = 0
	}

	degree := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += adj[i*n+j]
		}
		if sum <= 0 {
			return nil, fmt.Errorf("%w: node %d has zero degree", ErrDegenerateGraph, i)
		}
		degree[i] = sum
	}

	lap := make([]float64, n*n)
	switch variant {
	case LaplacianUnnormalized:
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					lap[i*n+j] = degree[i]
				} else {
					lap[i*n+j] = -adj[i*n+j]
				}
			}
		}
	case LaplacianSymmetric:
		invSqrt := make([]float64, n)
		for i := range invSqrt {
			invSqrt[i] = 1 / math.Sqrt(degree[i])
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := -invSqrt[i] * adj[i*n+j] * invSqrt[j]
				if i == j {
					v = 1
				}
				lap[i*n+j] = v
			}
		}
	case LaplacianRandomWalk:
		for i := 0; i < n; i++ {
			inv := 1 / degree[i]
			for j := 0; j < n; j++ {
				v := -inv * adj[i*n+j]
				if i == j {
					v = 1
				}
				lap[i*n+j] = v
			}
		}
	}

	return lap, nil
}
