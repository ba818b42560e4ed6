package spawn

import (
	"math"
	"testing"
)

func TestPoisson_ZeroMean(t *testing.T) {
	c := NewSeededCalculator(1)
	for _, mean := range []float64{0, -1, -0.001} {
		if got := c.Poisson(mean); got != 0 {
			t.Errorf("Poisson(%v) = %d, want 0", mean, got)
		}
	}
}

func TestPoisson_MomentsMatchMean(t *testing.T) {
	const (
		mean  = 4.0
		draws = 3000
	)
	c := NewSeededCalculator(12345)

	var sum, sumSq float64
	for i := 0; i < draws; i++ {
		k := c.Poisson(mean)
		if k < 0 {
			t.Fatalf("draw %d returned negative count %d", i, k)
		}
		sum += float64(k)
		sumSq += float64(k) * float64(k)
	}

	sampleMean := sum / draws
	sampleVar := sumSq/draws - sampleMean*sampleMean

	if math.Abs(sampleMean-mean)/mean > 0.1 {
		t.Errorf("sample mean %v drifted more than 10%% from %v", sampleMean, mean)
	}
	// Variance equals the mean for a Poisson distribution.
	if math.Abs(sampleVar/sampleMean-1.0) > 0.1 {
		t.Errorf("variance/mean ratio %v drifted more than 10%% from 1", sampleVar/sampleMean)
	}
}

func TestPoisson_LargeMeanApproximation(t *testing.T) {
	const (
		mean  = 200.0
		draws = 2000
	)
	c := NewSeededCalculator(777)

	var sum float64
	for i := 0; i < draws; i++ {
		k := c.Poisson(mean)
		if k < 0 {
			t.Fatalf("draw %d returned negative count %d", i, k)
		}
		sum += float64(k)
	}

	sampleMean := sum / draws
	if math.Abs(sampleMean-mean)/mean > 0.05 {
		t.Errorf("sample mean %v drifted more than 5%% from %v", sampleMean, mean)
	}
}

func TestPoisson_SeededDeterminism(t *testing.T) {
	a := NewSeededCalculator(9)
	b := NewSeededCalculator(9)
	for i := 0; i < 100; i++ {
		if ka, kb := a.Poisson(3.5), b.Poisson(3.5); ka != kb {
			t.Fatalf("draw %d diverged: %d vs %d", i, ka, kb)
		}
	}
}
