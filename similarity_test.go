package spcluster

import (
	"errors"
	"math"
	"testing"
)

// fourPointDist is a small hand-checkable distance matrix: points on a line
// at 0, 1, 2, 10.
func fourPointDist() []float64 {
	coords := []float64{0, 1, 2, 10}
	n := len(coords)
	dist := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dist[i*n+j] = math.Abs(coords[i] - coords[j])
		}
	}
	return dist
}

func TestGaussianSimilarity_SymmetricAndBounded(t *testing.T) {
	dist := fourPointDist()
	sim, err := BuildSimilarity(dist, 4, KernelGaussian, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if sim[i*4+i] != 1 {
			t.Errorf("gaussian self-similarity should be 1, got %v", sim[i*4+i])
		}
		for j := 0; j < 4; j++ {
			s := sim[i*4+j]
			if s != sim[j*4+i] {
				t.Errorf("asymmetry at (%d,%d)", i, j)
			}
			if s <= 0 || s > 1 {
				t.Errorf("entry (%d,%d) = %v outside (0,1]", i, j, s)
			}
		}
	}
	// exp(-1/(2*1.5^2)) for the unit-distance pair.
	want := math.Exp(-1 / 4.5)
	if !almostEqual(sim[0*4+1], want, floatTol) {
		t.Errorf("sim(0,1): expected %v, got %v", want, sim[0*4+1])
	}
}

func TestEpsilonSimilarity_Thresholding(t *testing.T) {
	dist := fourPointDist()
	sim, err := BuildSimilarity(dist, 4, KernelEpsilon, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Edges: (0,1), (1,2) at distance 1; not (0,2) at 2 or anything to point 3.
	if sim[0*4+1] != 1 || sim[1*4+2] != 1 {
		t.Error("expected edges between adjacent points")
	}
	if sim[0*4+2] != 0 || sim[0*4+3] != 0 || sim[2*4+3] != 0 {
		t.Error("expected no edges beyond epsilon")
	}
	if sim[0*4+0] != 1 {
		t.Error("epsilon self-similarity should be 1 (distance 0 <= epsilon)")
	}
}

func TestKNNSimilarity_SymmetrizationNeverDropsEdges(t *testing.T) {
	dist := fourPointDist()
	n, k := 4, 1
	sim, err := BuildSimilarity(dist, n, KernelKNN, float64(k))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rebuild the one-directional graph and check S >= directed everywhere:
	// max-with-transpose only adds edges.
	directed := make([]float64, n*n)
	for i := 0; i < n; i++ {
		best, bestD := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if j != i && dist[i*n+j] < bestD {
				bestD = dist[i*n+j]
				best = j
			}
		}
		directed[i*n+best] = 1
	}
	directedEdges, symEdges := 0, 0
	for idx := range sim {
		if sim[idx] < directed[idx] {
			t.Fatalf("symmetrization dropped edge at flat index %d", idx)
		}
		directedEdges += int(directed[idx])
		symEdges += int(sim[idx])
	}
	if symEdges < directedEdges {
		t.Errorf("edge count decreased: directed=%d symmetric=%d", directedEdges, symEdges)
	}

	// Point 3's nearest neighbor is 2, so (2,3) must exist even though 3 is
	// not among 2's nearest.
	if sim[2*n+3] != 1 || sim[3*n+2] != 1 {
		t.Error("one-sided kNN edge (3->2) should survive symmetrization in both directions")
	}
	if sim[0*n+0] != 0 {
		t.Error("kNN self-similarity should be 0")
	}
}

func TestBuildSimilarity_InvalidParams(t *testing.T) {
	dist := fourPointDist()
	cases := []struct {
		kernel Kernel
		param  float64
	}{
		{KernelGaussian, 0},
		{KernelGaussian, -1},
		{KernelEpsilon, 0},
		{KernelKNN, 0},
		{KernelKNN, 4}, // k > n-1
		{Kernel("cosine"), 1},
	}
	for _, c := range cases {
		if _, err := BuildSimilarity(dist, 4, c.kernel, c.param); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("kernel=%s param=%v: expected ErrInvalidInput, got %v", c.kernel, c.param, err)
		}
	}
}

func TestMedianDistance_HandComputed(t *testing.T) {
	// Points on a line at 0, 1, 3: off-diagonal distances 1, 2, 3 -> median 2.
	coords := []float64{0, 1, 3}
	dist := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dist[i*3+j] = math.Abs(coords[i] - coords[j])
		}
	}
	if m := MedianDistance(dist, 3); !almostEqual(m, 2, floatTol) {
		t.Errorf("expected median 2, got %v", m)
	}
}

func TestParamRanges(t *testing.T) {
	g := GaussianParamRange(10)
	if len(g) != 10 {
		t.Fatalf("expected 10 gaussian candidates, got %d", len(g))
	}
	if !almostEqual(g[0], 1, floatTol) || !almostEqual(g[9], 20, floatTol) {
		t.Errorf("gaussian range should span [1, 20], got [%v, %v]", g[0], g[9])
	}
	for i := 1; i < len(g); i++ {
		if g[i] <= g[i-1] {
			t.Errorf("gaussian range not increasing at %d", i)
		}
	}

	e := EpsilonParamRange(10)
	if len(e) != 10 || !almostEqual(e[0], 1, floatTol) || !almostEqual(e[9], 20, floatTol) {
		t.Errorf("epsilon range should be 10 points over [1, 20]")
	}

	kn := KNNParamRange(8)
	want := []int{2, 3, 4, 5, 6, 7}
	if len(kn) != len(want) {
		t.Fatalf("expected %v, got %v", want, kn)
	}
	for i := range want {
		if kn[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kn)
		}
	}
	if kn := KNNParamRange(100); kn[len(kn)-1] != 15 {
		t.Errorf("kNN range should cap at 15, got %d", kn[len(kn)-1])
	}
	if kn := KNNParamRange(2); kn != nil {
		t.Errorf("kNN range for n=2 should be empty, got %v", kn)
	}
}
