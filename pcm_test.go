package spcluster

import (
	"errors"
	"math"
	"testing"
)

// outlierDataset builds two tight, well-separated blobs plus one point far
// from both. The outlier is index 20.
func outlierDataset() ([]float64, int) {
	data := blobData(nil, 0, 0, 10, 0.1)
	data = blobData(data, 20, 0, 10, 0.1)
	data = append(data, 10, 15)
	return data, 21
}

func TestPCM_TypicalityRowsDoNotSumToOne(t *testing.T) {
	data, n := outlierDataset()
	res, err := PossibilisticCMeans(data, n, 2, 2, PCMConfig{Seed: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sawNonStochastic := false
	for i := 0; i < n; i++ {
		sum := res.Typicalities[i*2] + res.Typicalities[i*2+1]
		if math.Abs(sum-1) > 1e-6 {
			sawNonStochastic = true
		}
	}
	if !sawNonStochastic {
		t.Error("every typicality row sums to 1; PCM rows must not be constrained")
	}
}

func TestPCM_OutlierGetsLowTypicalityEverywhere(t *testing.T) {
	data, n := outlierDataset()

	res, err := PossibilisticCMeans(data, n, 2, 2, PCMConfig{Seed: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outlier := n - 1
	for j := 0; j < 2; j++ {
		if typ := res.Typicalities[outlier*2+j]; typ >= 0.1 {
			t.Errorf("outlier typicality to cluster %d is %v, expected < 0.1", j, typ)
		}
	}
	// Blob members stay typical of their own cluster.
	labels := HardLabels(res.Typicalities, n, 2)
	for i := 0; i < 20; i++ {
		if own := res.Typicalities[i*2+labels[i]]; own < 0.5 {
			t.Errorf("blob point %d own typicality %v, expected > 0.5", i, own)
		}
	}

	// Fuzzy c-means on the same data is forced to commit: the outlier's
	// memberships still sum to 1 and split between the two clusters.
	fcm, err := FuzzyCMeans(data, n, 2, 2, FuzzyConfig{Seed: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum := fcm.Membership[outlier*2] + fcm.Membership[outlier*2+1]
	if !almostEqual(sum, 1, 1e-6) {
		t.Errorf("FCM outlier row sums to %v, expected 1", sum)
	}
	for j := 0; j < 2; j++ {
		if u := fcm.Membership[outlier*2+j]; u < 0.2 || u > 0.8 {
			t.Errorf("FCM outlier membership to cluster %d is %v, expected a forced split", j, u)
		}
	}
}

func TestPCM_EtaIsPositive(t *testing.T) {
	data, n := outlierDataset()
	res, err := PossibilisticCMeans(data, n, 2, 2, PCMConfig{Seed: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for j, eta := range res.Eta {
		if eta <= 0 {
			t.Errorf("eta[%d] = %v, expected > 0", j, eta)
		}
	}
}

func TestPCM_IdempotentAtFixedPoint(t *testing.T) {
	data := blobData(nil, 0, 0, 6, 0.1)
	data = blobData(data, 5, 0, 6, 0.1)
	n := 12

	first, err := PossibilisticCMeans(data, n, 2, 2, PCMConfig{Seed: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Converged {
		t.Fatalf("first run did not converge in %d iterations", first.Iterations)
	}

	// Feeding the converged centers back with the same eta must converge on
	// the first iteration: the solver is at a fixed point.
	second, err := PossibilisticCMeans(data, n, 2, 2, PCMConfig{
		Seed:           1,
		InitialCenters: first.Centers,
		Eta:            first.Eta,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Converged || second.Iterations != 1 {
		t.Errorf("expected convergence on first iteration, got converged=%v after %d iterations",
			second.Converged, second.Iterations)
	}
	for i := range first.Centers {
		if !almostEqual(first.Centers[i], second.Centers[i], 1e-3) {
			t.Errorf("center drifted at %d: %v -> %v", i, first.Centers[i], second.Centers[i])
		}
	}
}

func TestPCM_InvalidInputs(t *testing.T) {
	data := blobData(nil, 0, 0, 4, 0.1)
	if _, err := PossibilisticCMeans(data, 4, 2, 5, PCMConfig{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("k>n: expected ErrInvalidInput, got %v", err)
	}
	if _, err := PossibilisticCMeans(data, 4, 2, 2, PCMConfig{Fuzziness: 0.5}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("m<=1: expected ErrInvalidInput, got %v", err)
	}
	if _, err := PossibilisticCMeans(data, 4, 2, 2, PCMConfig{InitialCenters: []float64{1, 2}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short centers: expected ErrInvalidInput, got %v", err)
	}
	if _, err := PossibilisticCMeans(data, 4, 2, 2, PCMConfig{Eta: []float64{1}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short eta: expected ErrInvalidInput, got %v", err)
	}
}

func TestCalibrateEta_FlooredWhenDegenerate(t *testing.T) {
	// All memberships on cluster 0 with zero distance: cluster 1 gets no
	// weight and must be floored, not divided by zero.
	membership := []float64{1, 0, 1, 0}
	dists := []float64{0, 5, 0, 5}
	eta := calibrateEta(membership, dists, 2, 2, 2, 1.5)
	for j, v := range eta {
		if v <= 0 || math.IsNaN(v) {
			t.Errorf("eta[%d] = %v, expected a positive floor", j, v)
		}
	}
}
