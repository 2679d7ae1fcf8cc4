package spcluster

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/projectdiscovery/gologger"
)

// SweepConfig controls the kernel/parameter sweep.
type SweepConfig struct {
	// Workers controls the number of goroutines evaluating candidates.
	// 0 means runtime.NumCPU().
	Workers int

	// Seed is the base random seed; candidate c uses Seed + c*1000 for its
	// k-means run, so scores are deterministic regardless of scheduling.
	Seed int64

	// KMeansRestarts is the restart count of the per-candidate k-means run
	// on the embedding. Default: 3.
	KMeansRestarts int

	// Laplacian is the variant used for every candidate.
	// Default: LaplacianSymmetric.
	Laplacian LaplacianVariant
}

// SweepCandidate is one (kernel, parameter) evaluation.
type SweepCandidate struct {
	Kernel Kernel
	Param  float64
	// Score is the mean silhouette of the candidate's spectral clustering,
	// measured against the original feature-space distances. Failed
	// candidates score -1.
	Score  float64
	Failed bool
}

// SweepResult holds the winning candidate plus the full evaluation table.
type SweepResult struct {
	Best           SweepCandidate
	Candidates     []SweepCandidate
	MedianDistance float64
}

func applySweepDefaults(cfg *SweepConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.KMeansRestarts == 0 {
		cfg.KMeansRestarts = 3
	}
	if cfg.Laplacian == "" {
		cfg.Laplacian = LaplacianSymmetric
	}
}

// SweepKernelParams evaluates all three kernels over their parameter ranges
// (Gaussian and epsilon span [0.1, 2.0] × the median off-diagonal distance;
// kNN spans 2..min(n-1, 15)) and returns the candidate whose spectral
// clustering scores the highest mean silhouette against the ORIGINAL
// feature-space distances — not the embedding — so the chosen graph is the
// one whose clusters stay coherent in measurement space.
//
// A failing candidate is logged and scored -1; it never aborts the sweep.
// Candidates run in parallel; each owns its working matrices and a seed
// derived from its index, so results do not depend on execution order.
// Cancellation is honored between candidate evaluations.
func SweepKernelParams(ctx context.Context, data []float64, n, dims, k int, cfg SweepConfig) (*SweepResult, error) {
	applySweepDefaults(&cfg)
	if n < 3 || dims < 1 || len(data) != n*dims {
		return nil, fmt.Errorf("%w: data length %d does not match n*dims = %d (n=%d)", ErrInvalidInput, len(data), n*dims, n)
	}
	if k < 2 || k > n-1 {
		return nil, fmt.Errorf("%w: sweep needs 2 <= k <= n-1, got k=%d n=%d", ErrInvalidInput, k, n)
	}

	dist := ComputePairwiseDistancesParallel(data, n, dims, EuclideanMetric{}, cfg.Workers)
	median := MedianDistance(dist, n)

	var candidates []SweepCandidate
	for _, sigma := range GaussianParamRange(median) {
		candidates = append(candidates, SweepCandidate{Kernel: KernelGaussian, Param: sigma})
	}
	for _, eps := range EpsilonParamRange(median) {
		candidates = append(candidates, SweepCandidate{Kernel: KernelEpsilon, Param: eps})
	}
	for _, kn := range KNNParamRange(n) {
		candidates = append(candidates, SweepCandidate{Kernel: KernelKNN, Param: float64(kn)})
	}

	gologger.Verbose().Msgf("kernel sweep: %d candidates (median distance %.4f, k=%d)", len(candidates), median, k)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					candidates[c].Score = -1
					candidates[c].Failed = true
					continue
				}
				score, err := evaluateCandidate(dist, n, k, candidates[c].Kernel, candidates[c].Param, KMeansConfig{
					Restarts: cfg.KMeansRestarts,
					Seed:     cfg.Seed + int64(c)*1000,
				}, cfg.Laplacian)
				if err != nil {
					gologger.Debug().Msgf("sweep candidate %s/%.4f failed: %v", candidates[c].Kernel, candidates[c].Param, err)
					candidates[c].Score = -1
					candidates[c].Failed = true
					continue
				}
				candidates[c].Score = score
			}
		}()
	}
	for c := range candidates {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := -1
	for c := range candidates {
		if candidates[c].Failed {
			continue
		}
		if best < 0 || candidates[c].Score > candidates[best].Score {
			best = c
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("spcluster: all %d sweep candidates failed", len(candidates))
	}

	gologger.Verbose().Msgf("kernel sweep: best %s/%.4f (silhouette %.4f)",
		candidates[best].Kernel, candidates[best].Param, candidates[best].Score)

	return &SweepResult{
		Best:           candidates[best],
		Candidates:     candidates,
		MedianDistance: median,
	}, nil
}

// evaluateCandidate scores one (kernel, parameter) configuration: similarity
// graph (self-similarity forced to 1 for scoring parity across kernels) →
// normalized Laplacian → spectral embedding → seeded k-means → mean
// silhouette against the original-space distance matrix.
func evaluateCandidate(dist []float64, n, k int, kernel Kernel, param float64, km KMeansConfig, variant LaplacianVariant) (float64, error) {
	sim, err := BuildSimilarity(dist, n, kernel, param)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		sim[i*n+i] = 1
	}

	lap, err := BuildLaplacian(sim, n, variant)
	if err != nil {
		return 0, err
	}

	emb, err := SpectralEmbed(lap, n, k)
	if err != nil {
		return 0, err
	}

	res, err := KMeans(emb, n, k, k, km)
	if err != nil {
		return 0, err
	}

	return Silhouette(dist, n, res.Labels), nil
}
