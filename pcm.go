package spcluster

import (
	"fmt"
	"math"

	"github.com/projectdiscovery/gologger"
)

// etaFloor replaces a non-positive cluster bandwidth. Eta can only collapse
// to zero when every fuzzy weight on a cluster sits on coincident points, so
// a tiny floor degrades gracefully instead of dividing by zero.
const etaFloor = 1e-12

// PCMConfig controls the possibilistic c-means solver.
type PCMConfig struct {
	// Fuzziness is the exponent m > 1 used for the initial fuzzy
	// memberships that calibrate eta. Default: 2.
	Fuzziness float64

	// MaxIterations caps typicality/center update iterations. Default: 150.
	MaxIterations int

	// Epsilon is the convergence threshold on the maximum absolute centroid
	// coordinate change per iteration. Default: 1e-5.
	Epsilon float64

	// EtaFactor scales every cluster bandwidth after calibration, widening
	// zones of influence to reduce coincident-cluster collapse. Default: 1.5.
	EtaFactor float64

	// Seed drives the k-means seeding run.
	Seed int64

	// KMeansRestarts is the restart count of the seeding k-means run.
	// Default: 5.
	KMeansRestarts int

	// InitialCenters, when non-nil (k×dims flat), bypasses the k-means seed.
	InitialCenters []float64

	// Eta, when non-nil (length k), bypasses bandwidth calibration and is
	// used as-is (EtaFactor is not applied).
	Eta []float64
}

// PCMResult is the output of a possibilistic c-means fit. Typicality rows
// are NOT constrained to sum to 1: each entry depends only on that point's
// distance to that one cluster and the cluster's bandwidth, which is what
// makes the solver robust to outliers.
type PCMResult struct {
	// Centers is the k×dims flat centroid matrix.
	Centers []float64
	// Typicalities is the n×k flat typicality matrix, entries in (0, 1].
	Typicalities []float64
	// Distances is the n×k flat point-to-center distance matrix at the
	// final centers.
	Distances []float64
	// Eta holds the per-cluster bandwidths used throughout the run.
	Eta []float64
	// Iterations is the number of fixed-point iterations performed.
	Iterations int
	// Converged reports whether Epsilon was met before MaxIterations.
	// Hitting MaxIterations is not an error; the last state is returned.
	Converged bool
}

func applyPCMDefaults(cfg *PCMConfig) {
	if cfg.Fuzziness == 0 {
		cfg.Fuzziness = 2
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 150
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-5
	}
	if cfg.EtaFactor == 0 {
		cfg.EtaFactor = 1.5
	}
	if cfg.KMeansRestarts == 0 {
		cfg.KMeansRestarts = 5
	}
}

// PossibilisticCMeans runs the PCM solver on an n×dims flat row-major matrix.
//
// Centers are seeded by a restarted k-means run (well-separated starting
// points keep PCM away from the all-equal-typicality degenerate solution),
// an initial fuzzy membership calibrates the per-cluster bandwidth eta, and
// the solver then iterates typicality and centroid updates with eta held
// fixed until the largest centroid coordinate change drops below Epsilon.
func PossibilisticCMeans(data []float64, n, dims, k int, cfg PCMConfig) (*PCMResult, error) {
	applyPCMDefaults(&cfg)
	if n < 1 || dims < 1 || len(data) != n*dims {
		return nil, fmt.Errorf("%w: data length %d does not match n*dims = %d", ErrInvalidInput, len(data), n*dims)
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: k must be in [1, n], got k=%d n=%d", ErrInvalidInput, k, n)
	}
	if cfg.Fuzziness <= 1 {
		return nil, fmt.Errorf("%w: fuzziness must be > 1, got %g", ErrInvalidInput, cfg.Fuzziness)
	}
	if cfg.InitialCenters != nil && len(cfg.InitialCenters) != k*dims {
		return nil, fmt.Errorf("%w: initial centers length %d does not match k*dims = %d", ErrInvalidInput, len(cfg.InitialCenters), k*dims)
	}
	if cfg.Eta != nil && len(cfg.Eta) != k {
		return nil, fmt.Errorf("%w: eta length %d does not match k = %d", ErrInvalidInput, len(cfg.Eta), k)
	}

	centers := make([]float64, k*dims)
	if cfg.InitialCenters != nil {
		copy(centers, cfg.InitialCenters)
	} else {
		seed, err := KMeans(data, n, dims, k, KMeansConfig{
			Restarts: cfg.KMeansRestarts,
			Seed:     cfg.Seed,
		})
		if err != nil {
			return nil, err
		}
		copy(centers, seed.Centers)
	}

	dists := centerDistances(data, n, dims, centers, k)

	var eta []float64
	if cfg.Eta != nil {
		eta = make([]float64, k)
		copy(eta, cfg.Eta)
		for j := range eta {
			if eta[j] <= 0 {
				eta[j] = etaFloor
			}
		}
	} else {
		fuzzy := fuzzyMemberships(dists, n, k, cfg.Fuzziness)
		eta = calibrateEta(fuzzy, dists, n, k, cfg.Fuzziness, cfg.EtaFactor)
	}

	typ := typicalities(dists, eta, n, k)

	converged := false
	iterations := 0

	for iterations < cfg.MaxIterations && !converged {
		centerDiff := updateTypicalityCenters(data, typ, centers, n, dims, k)
		dists = centerDistances(data, n, dims, centers, k)
		typ = typicalities(dists, eta, n, k)

		converged = centerDiff < cfg.Epsilon
		iterations++

		if iterations%50 == 0 {
			gologger.Debug().Msgf("PCM iteration %d/%d, max center diff %.3g", iterations, cfg.MaxIterations, centerDiff)
		}
	}

	if !converged {
		gologger.Warning().Msgf("PCM hit max iterations (%d) without meeting epsilon %.3g", cfg.MaxIterations, cfg.Epsilon)
	}

	return &PCMResult{
		Centers:      centers,
		Typicalities: typ,
		Distances:    dists,
		Eta:          eta,
		Iterations:   iterations,
		Converged:    converged,
	}, nil
}

// calibrateEta computes per-cluster bandwidths from an initial fuzzy
// membership: eta[j] = Σ_i u[i,j]^m d[i,j]² / Σ_i u[i,j]^m, scaled by
// etaFactor. Non-positive values are floored.
func calibrateEta(membership, dists []float64, n, k int, m, etaFactor float64) []float64 {
	eta := make([]float64, k)
	for j := 0; j < k; j++ {
		var num, den float64
		for i := 0; i < n; i++ {
			w := math.Pow(membership[i*k+j], m)
			d := dists[i*k+j]
			num += w * d * d
			den += w
		}
		if den > 0 {
			eta[j] = num / den * etaFactor
		}
		if eta[j] <= 0 {
			eta[j] = etaFloor
		}
	}
	return eta
}

// typicalities computes the possibilistic matrix t[i,j] = 1/(1 + d[i,j]²/eta[j]).
// Rows do not sum to 1; each entry is independent of the other clusters.
func typicalities(dists, eta []float64, n, k int) []float64 {
	t := make([]float64, n*k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			d := dists[i*k+j]
			t[i*k+j] = 1 / (1 + d*d/eta[j])
		}
	}
	return t
}

// updateTypicalityCenters recomputes centers as typicality-weighted means
// and returns the maximum absolute coordinate change across all centers.
// A cluster with zero total typicality keeps its previous center.
func updateTypicalityCenters(data, typ, centers []float64, n, dims, k int) float64 {
	maxDiff := 0.0
	num := make([]float64, dims)
	for j := 0; j < k; j++ {
		var weightSum float64
		for d := range num {
			num[d] = 0
		}
		for i := 0; i < n; i++ {
			w := typ[i*k+j]
			weightSum += w
			for d := 0; d < dims; d++ {
				num[d] += w * data[i*dims+d]
			}
		}
		if weightSum == 0 {
			continue
		}
		for d := 0; d < dims; d++ {
			next := num[d] / weightSum
			if diff := math.Abs(next - centers[j*dims+d]); diff > maxDiff {
				maxDiff = diff
			}
			centers[j*dims+d] = next
		}
	}
	return maxDiff
}
