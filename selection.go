package spcluster

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/projectdiscovery/gologger"
)

// SelectionMethod chooses the cluster-count selection strategy.
type SelectionMethod string

const (
	// SelectionElbow picks k from the flattening of the WSS curve.
	SelectionElbow SelectionMethod = "elbow"
	// SelectionGap applies the Tibshirani gap-statistic rule against
	// uniform reference resamples.
	SelectionGap SelectionMethod = "gap"
	// SelectionStability averages the silhouette of repeated seeded fuzzy
	// c-means runs per k and picks the argmax.
	SelectionStability SelectionMethod = "stability"
)

// SelectionConfig controls SelectK.
type SelectionConfig struct {
	// Workers controls parallelism across k candidates. 0 means NumCPU().
	Workers int

	// Seed is the base random seed; every k-means/FCM run derives its own
	// seed from Seed, k and the run index, so results are deterministic.
	Seed int64

	// KMeansRestarts is the restart count per k-means fit. Default: 5.
	KMeansRestarts int

	// BootstrapB is the number of reference resamples for the gap
	// statistic. Default: 10.
	BootstrapB int

	// StabilityRuns is the number of repeated fuzzy runs per k for the
	// stability method. Default: 5.
	StabilityRuns int

	// Fuzziness is the FCM exponent for the stability method. Default: 2.
	Fuzziness float64
}

// SelectionResult holds the chosen k plus the per-method diagnostics that
// support it. Slices are indexed parallel to Ks; only the slices of the
// method that ran are populated.
type SelectionResult struct {
	OptimalK int
	Ks       []int

	// WSS per k (elbow).
	WSS []float64

	// Gap and GapSE per k (gap statistic).
	Gap   []float64
	GapSE []float64

	// Silhouettes per k: mean silhouette over repeated fuzzy runs
	// (stability).
	Silhouettes []float64
}

func applySelectionDefaults(cfg *SelectionConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.KMeansRestarts == 0 {
		cfg.KMeansRestarts = 5
	}
	if cfg.BootstrapB == 0 {
		cfg.BootstrapB = 10
	}
	if cfg.StabilityRuns == 0 {
		cfg.StabilityRuns = 5
	}
	if cfg.Fuzziness == 0 {
		cfg.Fuzziness = 2
	}
}

// SelectK sweeps cluster counts kMin..kMax over an n×dims flat row-major
// matrix with the chosen method and returns the selected k with supporting
// diagnostics. The three methods may disagree; callers decide which to act
// on. Cancellation is honored at the granularity of one k evaluation.
func SelectK(ctx context.Context, data []float64, n, dims int, method SelectionMethod, kMin, kMax int, cfg SelectionConfig) (*SelectionResult, error) {
	applySelectionDefaults(&cfg)
	if n < 2 || dims < 1 || len(data) != n*dims {
		return nil, fmt.Errorf("%w: data length %d does not match n*dims = %d (n=%d)", ErrInvalidInput, len(data), n*dims, n)
	}
	if kMin < 1 || kMin > kMax || kMax >= n {
		return nil, fmt.Errorf("%w: need 1 <= kMin <= kMax < n, got kMin=%d kMax=%d n=%d", ErrInvalidInput, kMin, kMax, n)
	}

	ks := make([]int, 0, kMax-kMin+1)
	for k := kMin; k <= kMax; k++ {
		ks = append(ks, k)
	}

	switch method {
	case SelectionElbow:
		return selectElbow(ctx, data, n, dims, ks, cfg)
	case SelectionGap:
		return selectGap(ctx, data, n, dims, ks, cfg)
	case SelectionStability:
		if kMin < 2 {
			return nil, fmt.Errorf("%w: stability selection needs kMin >= 2, got %d", ErrInvalidInput, kMin)
		}
		return selectStability(ctx, data, n, dims, ks, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown selection method %q", ErrInvalidInput, method)
	}
}

// selectElbow computes WSS per k and picks the first k where the ratio of
// successive WSS drops falls below 0.2 in magnitude. When no k qualifies it
// falls back to the k of maximum discrete curvature (second difference of
// the WSS curve, offset by one index to align with k values), clamped to
// the top of the range.
func selectElbow(ctx context.Context, data []float64, n, dims int, ks []int, cfg SelectionConfig) (*SelectionResult, error) {
	wss := make([]float64, len(ks))
	for j, k := range ks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := KMeans(data, n, dims, k, KMeansConfig{
			Restarts: cfg.KMeansRestarts,
			Seed:     cfg.Seed + int64(k),
		})
		if err != nil {
			return nil, err
		}
		wss[j] = res.WSS
	}

	optimal := 0
	m := len(ks)
	if m >= 3 {
		diffs := make([]float64, m-1)
		for j := range diffs {
			diffs[j] = wss[j+1] - wss[j]
		}
		for j := 0; j+1 < len(diffs); j++ {
			rate := 0.0
			if diffs[j] != 0 {
				rate = diffs[j+1] / diffs[j]
			}
			if math.Abs(rate) < 0.2 {
				optimal = ks[j+1]
				break
			}
		}
		if optimal == 0 {
			bestJ, bestCurv := 0, math.Inf(-1)
			for j := 0; j+2 < m; j++ {
				curv := math.Abs(wss[j+2] - 2*wss[j+1] + wss[j])
				if curv > bestCurv {
					bestCurv = curv
					bestJ = j
				}
			}
			optimal = ks[bestJ+1]
		}
	} else {
		optimal = ks[m-1]
	}
	if optimal > ks[m-1] {
		optimal = ks[m-1]
	}

	gologger.Debug().Msgf("elbow selection: k=%d over range [%d,%d]", optimal, ks[0], ks[m-1])
	return &SelectionResult{OptimalK: optimal, Ks: ks, WSS: wss}, nil
}

// selectGap computes Gap(k) = E*[log W_k] - log W_k over B uniform reference
// resamples drawn inside the per-feature bounds of the data, then applies
// the Tibshirani rule: the smallest k with Gap(k) >= Gap(k+1) - SE(k+1).
// The rule needs Gap at k+1, so the last k in the range can only be chosen
// by the max-gap fallback.
func selectGap(ctx context.Context, data []float64, n, dims int, ks []int, cfg SelectionConfig) (*SelectionResult, error) {
	lo := make([]float64, dims)
	hi := make([]float64, dims)
	for d := 0; d < dims; d++ {
		lo[d] = math.Inf(1)
		hi[d] = math.Inf(-1)
	}
	for i := 0; i < n; i++ {
		for d := 0; d < dims; d++ {
			v := data[i*dims+d]
			if v < lo[d] {
				lo[d] = v
			}
			if v > hi[d] {
				hi[d] = v
			}
		}
	}

	// One fixed set of reference datasets shared by every k.
	refs := make([][]float64, cfg.BootstrapB)
	for b := range refs {
		rng := rand.New(rand.NewSource(cfg.Seed + 7919*int64(b+1)))
		ref := make([]float64, n*dims)
		for i := 0; i < n; i++ {
			for d := 0; d < dims; d++ {
				ref[i*dims+d] = lo[d] + rng.Float64()*(hi[d]-lo[d])
			}
		}
		refs[b] = ref
	}

	gap := make([]float64, len(ks))
	se := make([]float64, len(ks))
	err := forEachK(ctx, len(ks), cfg.Workers, func(j int) error {
		k := ks[j]
		res, err := KMeans(data, n, dims, k, KMeansConfig{
			Restarts: cfg.KMeansRestarts,
			Seed:     cfg.Seed + int64(k),
		})
		if err != nil {
			return err
		}
		logW := safeLog(res.WSS)

		logRefs := make([]float64, len(refs))
		for b, ref := range refs {
			refRes, err := KMeans(ref, n, dims, k, KMeansConfig{
				Restarts: cfg.KMeansRestarts,
				Seed:     cfg.Seed + int64(k)*1000 + int64(b),
			})
			if err != nil {
				return err
			}
			logRefs[b] = safeLog(refRes.WSS)
		}

		mean := 0.0
		for _, v := range logRefs {
			mean += v
		}
		mean /= float64(len(logRefs))
		sd := 0.0
		for _, v := range logRefs {
			sd += (v - mean) * (v - mean)
		}
		sd = math.Sqrt(sd / float64(len(logRefs)))

		gap[j] = mean - logW
		se[j] = sd * math.Sqrt(1+1/float64(len(logRefs)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	optimal := 0
	for j := 0; j+1 < len(ks); j++ {
		if gap[j] >= gap[j+1]-se[j+1] {
			optimal = ks[j]
			break
		}
	}
	if optimal == 0 {
		bestJ := 0
		for j := range gap {
			if gap[j] > gap[bestJ] {
				bestJ = j
			}
		}
		optimal = ks[bestJ]
	}

	gologger.Debug().Msgf("gap selection: k=%d (B=%d references)", optimal, cfg.BootstrapB)
	return &SelectionResult{OptimalK: optimal, Ks: ks, Gap: gap, GapSE: se}, nil
}

// selectStability repeats a seeded fuzzy c-means fit per k, scores each run
// by the mean silhouette of its hard labels, and picks the k with the best
// average. Repetition over distinct seeds guards against the sensitivity of
// the fuzzy objective to initialization.
func selectStability(ctx context.Context, data []float64, n, dims int, ks []int, cfg SelectionConfig) (*SelectionResult, error) {
	dist := ComputePairwiseDistancesParallel(data, n, dims, EuclideanMetric{}, cfg.Workers)

	scores := make([]float64, len(ks))
	err := forEachK(ctx, len(ks), cfg.Workers, func(j int) error {
		k := ks[j]
		total := 0.0
		for r := 0; r < cfg.StabilityRuns; r++ {
			res, err := FuzzyCMeans(data, n, dims, k, FuzzyConfig{
				Fuzziness: cfg.Fuzziness,
				Seed:      cfg.Seed + int64(k)*100 + int64(r),
			})
			if err != nil {
				return err
			}
			total += Silhouette(dist, n, HardLabels(res.Membership, n, k))
		}
		scores[j] = total / float64(cfg.StabilityRuns)
		return nil
	})
	if err != nil {
		return nil, err
	}

	bestJ := 0
	for j := range scores {
		if scores[j] > scores[bestJ] {
			bestJ = j
		}
	}

	gologger.Debug().Msgf("stability selection: k=%d (%d runs per k)", ks[bestJ], cfg.StabilityRuns)
	return &SelectionResult{OptimalK: ks[bestJ], Ks: ks, Silhouettes: scores}, nil
}

// forEachK runs fn(j) for j in [0, m) across workers goroutines. The first
// error (including context cancellation) wins; remaining jobs are skipped.
func forEachK(ctx context.Context, m, workers int, fn func(j int) error) error {
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if failed() {
					continue
				}
				if err := ctx.Err(); err != nil {
					setErr(err)
					continue
				}
				if err := fn(j); err != nil {
					setErr(err)
				}
			}
		}()
	}
	for j := 0; j < m; j++ {
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	return firstErr
}

func safeLog(v float64) float64 {
	if v < 1e-12 {
		v = 1e-12
	}
	return math.Log(v)
}
