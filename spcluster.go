package spcluster

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/projectdiscovery/gologger"
)

// Solver selects the partition back end applied to the spectral embedding.
type Solver string

const (
	SolverKMeans Solver = "kmeans"
	SolverFCM    Solver = "fcm"
	SolverPCM    Solver = "pcm"
)

// Config controls the end-to-end spectral clustering pipeline.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// NumClusters is the number of clusters k. 0 means select k
	// automatically with the elbow method over 2..min(10, n-1).
	// Otherwise must satisfy 2 <= k <= n-1. Default: 0 (auto).
	NumClusters int

	// Kernel fixes the similarity kernel. Empty means sweep all three
	// kernels over their parameter ranges and use the best-scoring one.
	// Default: "" (sweep).
	Kernel Kernel

	// KernelParam is the kernel parameter (sigma, epsilon, or neighbor
	// count). Required and > 0 when Kernel is set; ignored during a sweep.
	KernelParam float64

	// Laplacian is the normalization variant. SpectralEmbed needs a
	// symmetric matrix, so LaplacianRandomWalk is rejected here.
	// Default: LaplacianSymmetric.
	Laplacian LaplacianVariant

	// Solver is the partition back end run on the embedding.
	// Default: SolverKMeans.
	Solver Solver

	// Fuzziness is the exponent for the fuzzy/possibilistic solvers.
	// Default: 2.
	Fuzziness float64

	// MaxIterations caps solver iterations. Default: 150.
	MaxIterations int

	// Tolerance is the solver convergence threshold. Default: 1e-5.
	Tolerance float64

	// EtaFactor widens PCM zones of influence. Default: 1.5.
	EtaFactor float64

	// Restarts is the k-means restart count (direct fits and PCM seeding).
	// Default: 5.
	Restarts int

	// Workers controls goroutines for the distance matrix and sweeps.
	// 0 means runtime.NumCPU(). Default: 0 (auto).
	Workers int

	// Seed is the base random seed for every stochastic step. Derived
	// seeds are assigned per candidate and per run, so results do not
	// depend on scheduling. Default: 1.
	Seed int64
}

// Result contains the output of the spectral clustering pipeline.
type Result struct {
	// Labels assigns each observation to a cluster in [0, K).
	Labels []int

	// Membership is the n×K flat membership (FCM) or typicality (PCM)
	// matrix; nil for the k-means solver.
	Membership []float64

	// Centers is the K×K flat centroid matrix in embedding coordinates.
	Centers []float64

	// Embedding is the n×K row-normalized spectral embedding.
	Embedding []float64

	// K is the cluster count used (selected or configured).
	K int

	// Kernel and KernelParam identify the similarity graph used (swept or
	// configured).
	Kernel      Kernel
	KernelParam float64

	// Internal validation indices, measured against the original
	// feature-space distances.
	Silhouette       float64
	Dunn             float64
	CalinskiHarabasz float64

	// Fuzzy indices; zero for the k-means solver.
	PartitionEntropy     float64
	PartitionCoefficient float64

	// Iterations and Converged report the final solver's terminal state.
	// Non-convergence is not an error; the last state is returned.
	Iterations int
	Converged  bool
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Laplacian:     LaplacianSymmetric,
		Solver:        SolverKMeans,
		Fuzziness:     2,
		MaxIterations: 150,
		Tolerance:     1e-5,
		EtaFactor:     1.5,
		Restarts:      5,
		Seed:          1,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Laplacian == "" {
		cfg.Laplacian = LaplacianSymmetric
	}
	if cfg.Solver == "" {
		cfg.Solver = SolverKMeans
	}
	if cfg.Fuzziness == 0 {
		cfg.Fuzziness = 2
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 150
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = 1e-5
	}
	if cfg.EtaFactor == 0 {
		cfg.EtaFactor = 1.5
	}
	if cfg.Restarts == 0 {
		cfg.Restarts = 5
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
}

func validateConfig(cfg *Config) error {
	if cfg.NumClusters < 0 || cfg.NumClusters == 1 {
		return fmt.Errorf("%w: NumClusters must be 0 (auto) or >= 2, got %d", ErrInvalidInput, cfg.NumClusters)
	}
	if cfg.Kernel != "" {
		switch cfg.Kernel {
		case KernelGaussian, KernelEpsilon, KernelKNN:
		default:
			return fmt.Errorf("%w: unknown kernel %q", ErrInvalidInput, cfg.Kernel)
		}
		if cfg.KernelParam <= 0 {
			return fmt.Errorf("%w: KernelParam must be > 0 when Kernel is set, got %g", ErrInvalidInput, cfg.KernelParam)
		}
	}
	switch cfg.Laplacian {
	case LaplacianUnnormalized, LaplacianSymmetric:
	case LaplacianRandomWalk:
		return fmt.Errorf("%w: random-walk Laplacian is not symmetric; use LaplacianSymmetric or LaplacianUnnormalized for embedding", ErrInvalidInput)
	default:
		return fmt.Errorf("%w: unknown Laplacian variant %q", ErrInvalidInput, cfg.Laplacian)
	}
	switch cfg.Solver {
	case SolverKMeans, SolverFCM, SolverPCM:
	default:
		return fmt.Errorf("%w: unknown solver %q", ErrInvalidInput, cfg.Solver)
	}
	if cfg.Fuzziness <= 1 {
		return fmt.Errorf("%w: Fuzziness must be > 1, got %g", ErrInvalidInput, cfg.Fuzziness)
	}
	if cfg.EtaFactor <= 0 {
		return fmt.Errorf("%w: EtaFactor must be > 0, got %g", ErrInvalidInput, cfg.EtaFactor)
	}
	return nil
}

// SpectralCluster runs the full pipeline on the given data: pairwise
// distances → similarity graph (swept or configured) → graph Laplacian →
// spectral embedding → partition solver on the embedding → internal
// validation against the original feature-space distances.
//
// Each element of data is one observation (float64 slice); all observations
// must have the same dimensionality and contain no NaN/Inf. Returns an
// error for invalid input or a degenerate graph; solver non-convergence is
// reported through Result.Converged, never as an error.
func SpectralCluster(ctx context.Context, data [][]float64, cfg Config) (*Result, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	n := len(data)
	if n < 3 {
		return nil, fmt.Errorf("%w: need at least 3 observations, got %d", ErrInvalidInput, n)
	}
	dims := len(data[0])
	if dims == 0 {
		return nil, fmt.Errorf("%w: observations have zero features", ErrInvalidInput)
	}
	flat := make([]float64, n*dims)
	for i, row := range data {
		if len(row) != dims {
			return nil, fmt.Errorf("%w: observation %d has %d features, expected %d", ErrInvalidInput, i, len(row), dims)
		}
		for d, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value at observation %d feature %d", ErrInvalidInput, i, d)
			}
			flat[i*dims+d] = v
		}
	}

	if cfg.NumClusters >= n {
		return nil, fmt.Errorf("%w: NumClusters must be <= n-1, got k=%d n=%d", ErrInvalidInput, cfg.NumClusters, n)
	}

	dist := ComputePairwiseDistancesParallel(flat, n, dims, EuclideanMetric{}, cfg.Workers)

	k := cfg.NumClusters
	if k == 0 {
		kMax := n - 1
		if kMax > 10 {
			kMax = 10
		}
		sel, err := SelectK(ctx, flat, n, dims, SelectionElbow, 2, kMax, SelectionConfig{
			Workers:        cfg.Workers,
			Seed:           cfg.Seed,
			KMeansRestarts: cfg.Restarts,
		})
		if err != nil {
			return nil, err
		}
		k = sel.OptimalK
		gologger.Verbose().Msgf("auto-selected k=%d via elbow method", k)
	}

	kernel, param := cfg.Kernel, cfg.KernelParam
	if kernel == "" {
		sw, err := SweepKernelParams(ctx, flat, n, dims, k, SweepConfig{
			Workers:   cfg.Workers,
			Seed:      cfg.Seed,
			Laplacian: cfg.Laplacian,
		})
		if err != nil {
			return nil, err
		}
		kernel, param = sw.Best.Kernel, sw.Best.Param
	}

	sim, err := BuildSimilarity(dist, n, kernel, param)
	if err != nil {
		return nil, err
	}
	lap, err := BuildLaplacian(sim, n, cfg.Laplacian)
	if err != nil {
		return nil, err
	}
	emb, err := SpectralEmbed(lap, n, k)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Embedding:   emb,
		K:           k,
		Kernel:      kernel,
		KernelParam: param,
	}

	switch cfg.Solver {
	case SolverKMeans:
		res, err := KMeans(emb, n, k, k, KMeansConfig{
			MaxIterations: cfg.MaxIterations,
			Restarts:      cfg.Restarts,
			Seed:          cfg.Seed,
		})
		if err != nil {
			return nil, err
		}
		result.Labels = res.Labels
		result.Centers = res.Centers
		result.Iterations = res.Iterations
		result.Converged = res.Converged
	case SolverFCM:
		res, err := FuzzyCMeans(emb, n, k, k, FuzzyConfig{
			Fuzziness:     cfg.Fuzziness,
			MaxIterations: cfg.MaxIterations,
			Epsilon:       cfg.Tolerance,
			Seed:          cfg.Seed,
		})
		if err != nil {
			return nil, err
		}
		result.Labels = HardLabels(res.Membership, n, k)
		result.Membership = res.Membership
		result.Centers = res.Centers
		result.Iterations = res.Iterations
		result.Converged = res.Converged
	case SolverPCM:
		res, err := PossibilisticCMeans(emb, n, k, k, PCMConfig{
			Fuzziness:      cfg.Fuzziness,
			MaxIterations:  cfg.MaxIterations,
			Epsilon:        cfg.Tolerance,
			EtaFactor:      cfg.EtaFactor,
			Seed:           cfg.Seed,
			KMeansRestarts: cfg.Restarts,
		})
		if err != nil {
			return nil, err
		}
		result.Labels = HardLabels(res.Typicalities, n, k)
		result.Membership = res.Typicalities
		result.Centers = res.Centers
		result.Iterations = res.Iterations
		result.Converged = res.Converged
	}

	result.Silhouette = Silhouette(dist, n, result.Labels)
	result.Dunn = DunnIndex(dist, n, result.Labels)
	if ch, err := CalinskiHarabasz(flat, n, dims, result.Labels); err == nil {
		result.CalinskiHarabasz = ch
	} else {
		gologger.Debug().Msgf("Calinski-Harabasz unavailable: %v", err)
	}
	if result.Membership != nil {
		result.PartitionEntropy = PartitionEntropy(result.Membership, n, k)
		result.PartitionCoefficient = FuzzyPartitionCoefficient(result.Membership, n, k)
	}

	return result, nil
}
