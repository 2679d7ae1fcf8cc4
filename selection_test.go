package spcluster

import (
	"context"
	"errors"
	"testing"
)

// threeBlobs builds three well-separated 8-point blobs for cluster-count
// selection tests.
func threeBlobs(c3x, c3y float64) ([]float64, int) {
	data := blobData(nil, 0, 0, 8, 1.0)
	data = blobData(data, 10, 0, 8, 1.0)
	data = blobData(data, c3x, c3y, 8, 1.0)
	return data, 24
}

func TestSelectK_ElbowFindsThreeBlobs(t *testing.T) {
	data, n := threeBlobs(5, 8)

	res, err := SelectK(context.Background(), data, n, 2, SelectionElbow, 1, 10, SelectionConfig{Seed: 21})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OptimalK != 3 {
		t.Errorf("expected k=3, got %d (WSS curve %v)", res.OptimalK, res.WSS)
	}
	if len(res.WSS) != len(res.Ks) {
		t.Fatalf("WSS has %d entries for %d k values", len(res.WSS), len(res.Ks))
	}
	for j := 1; j < len(res.WSS); j++ {
		if res.WSS[j] > res.WSS[j-1]+1e-9 {
			t.Errorf("WSS increased from k=%d to k=%d: %v -> %v",
				res.Ks[j-1], res.Ks[j], res.WSS[j-1], res.WSS[j])
		}
	}
}

func TestSelectK_GapStatisticFindsThreeBlobs(t *testing.T) {
	// The third blob sits far off-axis so the data's log-WSS keeps dropping
	// faster than the uniform references' until k=3, then levels off.
	data, n := threeBlobs(40, 20)

	res, err := SelectK(context.Background(), data, n, 2, SelectionGap, 1, 5, SelectionConfig{
		Seed:       21,
		BootstrapB: 8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OptimalK != 3 {
		t.Errorf("expected k=3, got %d (gap %v, se %v)", res.OptimalK, res.Gap, res.GapSE)
	}
	if len(res.Gap) != len(res.Ks) || len(res.GapSE) != len(res.Ks) {
		t.Fatalf("gap diagnostics not parallel to Ks: %d gaps, %d SEs, %d ks",
			len(res.Gap), len(res.GapSE), len(res.Ks))
	}
	for j, se := range res.GapSE {
		if se < 0 {
			t.Errorf("SE[%d] = %v, expected >= 0", j, se)
		}
	}
}

func TestSelectK_StabilityFindsTwoBlobs(t *testing.T) {
	data := blobData(nil, 0, 0, 8, 0.5)
	data = blobData(data, 10, 0, 8, 0.5)
	n := 16

	res, err := SelectK(context.Background(), data, n, 2, SelectionStability, 2, 4, SelectionConfig{
		Seed:          21,
		StabilityRuns: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OptimalK != 2 {
		t.Errorf("expected k=2, got %d (silhouettes %v)", res.OptimalK, res.Silhouettes)
	}
	if len(res.Silhouettes) != len(res.Ks) {
		t.Fatalf("silhouettes not parallel to Ks")
	}
	for j, s := range res.Silhouettes {
		if s < -1 || s > 1 {
			t.Errorf("silhouette[%d] = %v outside [-1, 1]", j, s)
		}
	}
}

func TestSelectK_InvalidRanges(t *testing.T) {
	data, n := threeBlobs(5, 8)
	ctx := context.Background()

	cases := []struct {
		name       string
		method     SelectionMethod
		kMin, kMax int
	}{
		{"kMin zero", SelectionElbow, 0, 5},
		{"kMin above kMax", SelectionElbow, 5, 3},
		{"kMax equals n", SelectionElbow, 2, n},
		{"stability kMin one", SelectionStability, 1, 5},
		{"unknown method", SelectionMethod("bisect"), 2, 5},
	}
	for _, tc := range cases {
		if _, err := SelectK(ctx, data, n, 2, tc.method, tc.kMin, tc.kMax, SelectionConfig{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestSelectK_HonorsCancellation(t *testing.T) {
	data, n := threeBlobs(5, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, method := range []SelectionMethod{SelectionElbow, SelectionGap, SelectionStability} {
		if _, err := SelectK(ctx, data, n, 2, method, 2, 5, SelectionConfig{Seed: 1}); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", method, err)
		}
	}
}

func TestSelectK_DeterministicForFixedSeed(t *testing.T) {
	data, n := threeBlobs(5, 8)
	ctx := context.Background()

	a, err := SelectK(ctx, data, n, 2, SelectionGap, 1, 4, SelectionConfig{Seed: 9, BootstrapB: 4, Workers: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := SelectK(ctx, data, n, 2, SelectionGap, 1, 4, SelectionConfig{Seed: 9, BootstrapB: 4, Workers: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.OptimalK != b.OptimalK {
		t.Errorf("worker count changed the selection: %d vs %d", a.OptimalK, b.OptimalK)
	}
	for j := range a.Gap {
		if a.Gap[j] != b.Gap[j] {
			t.Errorf("gap[%d] differs across worker counts: %v vs %v", j, a.Gap[j], b.Gap[j])
		}
	}
}
