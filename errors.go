package spcluster

import "errors"

// Sentinel errors returned by the pipeline stages. Wrap sites add context
// with fmt.Errorf("...: %w", err), so callers should test with errors.Is.
var (
	// ErrInvalidInput indicates structurally bad input: an empty matrix,
	// mismatched dimensions, a cluster count outside the valid range, or
	// NaN/Inf values in the feature matrix.
	ErrInvalidInput = errors.New("spcluster: invalid input")

	// ErrDegenerateGraph indicates a similarity graph with an isolated node
	// (zero row-sum), which makes degree normalization undefined.
	ErrDegenerateGraph = errors.New("spcluster: degenerate similarity graph")

	// ErrEigenDecomposition indicates the symmetric eigensolver failed to
	// converge on the Laplacian.
	ErrEigenDecomposition = errors.New("spcluster: eigendecomposition failed")
)
