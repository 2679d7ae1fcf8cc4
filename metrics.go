package spcluster

import (
	"fmt"
	"math"
)

// entropyEps keeps log arguments strictly positive in entropy computations.
const entropyEps = 1e-12

// HardLabels derives a hard assignment from an n×k membership (or
// typicality) matrix by per-row arg-max.
func HardLabels(membership []float64, n, k int) []int {
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		bestVal := membership[i*k]
		for j := 1; j < k; j++ {
			if v := membership[i*k+j]; v > bestVal {
				bestVal = v
				best = j
			}
		}
		labels[i] = best
	}
	return labels
}

// Silhouette computes the mean silhouette width over all points: per point
// (b-a)/max(a,b), where a is the mean distance to the point's own cluster
// and b the smallest mean distance to any other cluster. Points in singleton
// clusters score 0. Returns 0 when fewer than two clusters are populated.
func Silhouette(dist []float64, n int, labels []int) float64 {
	k := maxLabel(labels) + 1
	if k < 2 {
		return 0
	}

	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	populated := 0
	for _, s := range sizes {
		if s > 0 {
			populated++
		}
	}
	if populated < 2 {
		return 0
	}

	total := 0.0
	clusterSum := make([]float64, k)
	for i := 0; i < n; i++ {
		for j := range clusterSum {
			clusterSum[j] = 0
		}
		for j := 0; j < n; j++ {
			if j != i {
				clusterSum[labels[j]] += dist[i*n+j]
			}
		}

		own := labels[i]
		if sizes[own] <= 1 {
			continue // silhouette of a singleton is 0
		}
		a := clusterSum[own] / float64(sizes[own]-1)

		b := math.Inf(1)
		for j := 0; j < k; j++ {
			if j == own || sizes[j] == 0 {
				continue
			}
			if m := clusterSum[j] / float64(sizes[j]); m < b {
				b = m
			}
		}

		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}

	return total / float64(n)
}

// DunnIndex computes the minimum inter-cluster distance divided by the
// maximum intra-cluster diameter. Higher is better. Returns 0 when fewer
// than two clusters are populated, and +Inf when every cluster has zero
// diameter (all members coincide).
func DunnIndex(dist []float64, n int, labels []int) float64 {
	minInter := math.Inf(1)
	maxIntra := 0.0
	seenInter := false

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := dist[i*n+j]
			if labels[i] == labels[j] {
				if d > maxIntra {
					maxIntra = d
				}
			} else {
				seenInter = true
				if d < minInter {
					minInter = d
				}
			}
		}
	}

	if !seenInter {
		return 0
	}
	if maxIntra == 0 {
		return math.Inf(1)
	}
	return minInter / maxIntra
}

// CalinskiHarabasz computes (betweenSS/(k-1)) / (withinSS/(n-k)) by explicit
// per-cluster accumulation. The decomposition betweenSS + withinSS equals
// the total sum of squares; totalSumOfSquares exists for cross-checking.
// Requires at least two populated clusters and k < n.
func CalinskiHarabasz(data []float64, n, dims int, labels []int) (float64, error) {
	if n < 1 || len(data) != n*dims || len(labels) != n {
		return 0, fmt.Errorf("%w: data/labels dimensions do not match n=%d dims=%d", ErrInvalidInput, n, dims)
	}

	k := maxLabel(labels) + 1
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	populated := 0
	for _, s := range sizes {
		if s > 0 {
			populated++
		}
	}
	if populated < 2 || populated >= n {
		return 0, fmt.Errorf("%w: Calinski-Harabasz needs 2 <= clusters < n, got %d clusters for n=%d", ErrInvalidInput, populated, n)
	}

	overall := make([]float64, dims)
	for i := 0; i < n; i++ {
		for d := 0; d < dims; d++ {
			overall[d] += data[i*dims+d]
		}
	}
	for d := range overall {
		overall[d] /= float64(n)
	}

	means := make([]float64, k*dims)
	for i := 0; i < n; i++ {
		l := labels[i]
		for d := 0; d < dims; d++ {
			means[l*dims+d] += data[i*dims+d]
		}
	}
	for j := 0; j < k; j++ {
		if sizes[j] == 0 {
			continue
		}
		for d := 0; d < dims; d++ {
			means[j*dims+d] /= float64(sizes[j])
		}
	}

	between := 0.0
	for j := 0; j < k; j++ {
		if sizes[j] == 0 {
			continue
		}
		between += float64(sizes[j]) * euclideanSumOfSquares(means[j*dims:(j+1)*dims], overall)
	}

	within := 0.0
	for i := 0; i < n; i++ {
		l := labels[i]
		within += euclideanSumOfSquares(data[i*dims:(i+1)*dims], means[l*dims:(l+1)*dims])
	}

	return (between / float64(populated-1)) / (within / float64(n-populated)), nil
}

// totalSumOfSquares computes Σ_i ||x_i - mean||², the closed-form total that
// the between/within accumulation in CalinskiHarabasz must decompose.
func totalSumOfSquares(data []float64, n, dims int) float64 {
	mean := make([]float64, dims)
	for i := 0; i < n; i++ {
		for d := 0; d < dims; d++ {
			mean[d] += data[i*dims+d]
		}
	}
	for d := range mean {
		mean[d] /= float64(n)
	}
	total := 0.0
	for i := 0; i < n; i++ {
		total += euclideanSumOfSquares(data[i*dims:(i+1)*dims], mean)
	}
	return total
}

// AssignmentEntropies computes the per-point assignment entropy
// -Σ_j u[i,j]·log(u[i,j]+ε) over an n×k membership matrix.
func AssignmentEntropies(membership []float64, n, k int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var h float64
		for j := 0; j < k; j++ {
			u := membership[i*k+j]
			h -= u * math.Log(u+entropyEps)
		}
		out[i] = h
	}
	return out
}

// PartitionEntropy computes the partition entropy of an n×k membership
// matrix: the per-point assignment entropy averaged over all rows. Lower
// means crisper; 0 for a hard partition.
func PartitionEntropy(membership []float64, n, k int) float64 {
	total := 0.0
	for _, h := range AssignmentEntropies(membership, n, k) {
		total += h
	}
	return total / float64(n)
}

// FuzzyPartitionCoefficient computes (1/n)·Σ_i Σ_j u[i,j]², bounded in
// [1/k, 1]. The value is 1 exactly when every row is one-hot (a crisp
// partition) and 1/k at maximal fuzziness.
func FuzzyPartitionCoefficient(membership []float64, n, k int) float64 {
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			u := membership[i*k+j]
			total += u * u
		}
	}
	return total / float64(n)
}

func maxLabel(labels []int) int {
	m := -1
	for _, l := range labels {
		if l > m {
			m = l
		}
	}
	return m
}
