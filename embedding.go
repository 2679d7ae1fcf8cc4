package spcluster

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rowNormFloor replaces near-zero row norms during embedding normalization
// so rows never divide by zero.
const rowNormFloor = 1e-10

// SpectralEmbed eigendecomposes a symmetric n×n Laplacian and returns the
// n×k spectral embedding: the eigenvectors of the k smallest non-trivial
// eigenvalues (the very smallest, the near-zero trivial one for a connected
// graph, is skipped), one coordinate row per observation, each row
// normalized to unit L2 norm.
//
// The Laplacian must be symmetric (unnormalized or symmetric-normalized
// variants); only the upper triangle is read. Requires 1 <= k <= n-1.
func SpectralEmbed(lap []float64, n, k int) ([]float64, error) {
	if n < 2 || len(lap) != n*n {
		return nil, fmt.Errorf("%w: laplacian length %d does not match n*n = %d (n=%d)", ErrInvalidInput, len(lap), n*n, n)
	}
	if k < 1 || k > n-1 {
		return nil, fmt.Errorf("%w: embedding dimension k must be in [1, n-1], got %d (n=%d)", ErrInvalidInput, k, n)
	}

	sym := mat.NewSymDense(n, lap)
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, ErrEigenDecomposition
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues come back ascending, but sort indices explicitly so the
	// column selection never depends on the factorization's ordering.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	embedding := make([]float64, n*k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			// Skip the first (trivial) eigenvector.
			embedding[i*k+j] = vectors.At(i, order[j+1])
		}
	}

	normalizeRows(embedding, n, k)
	return embedding, nil
}

// normalizeRows scales each row of an n×k flat matrix to unit L2 norm.
// Rows with near-zero norm use a floored denominator.
func normalizeRows(m []float64, n, k int) {
	for i := 0; i < n; i++ {
		row := m[i*k : (i+1)*k]
		norm := floats.Norm(row, 2)
		if norm < rowNormFloor {
			norm = rowNormFloor
		}
		floats.Scale(1/norm, row)
	}
}
