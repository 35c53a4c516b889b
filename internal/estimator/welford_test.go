package estimator

import (
	"math"
	"math/rand"
	"testing"
)

func naiveMeanVar(xs []float64) (mean, sampleVar float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		sampleVar += (x - mean) * (x - mean)
	}
	sampleVar /= float64(len(xs) - 1)
	return mean, sampleVar
}

func TestOnlineMean_MatchesBatchMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	xs := make([]float64, 500)
	for i := range xs {
		xs[i] = rng.NormFloat64()*3 + 10
	}

	m := NewOnlineMean()
	for i, x := range xs {
		m.Update(x)
		if m.N() != i+1 {
			t.Fatalf("Expected n=%d after %d updates, got %d", i+1, i+1, m.N())
		}
	}

	want, _ := naiveMeanVar(xs)
	if math.Abs(m.Mean()-want) > 1e-10 {
		t.Errorf("Expected mean %g, got %g", want, m.Mean())
	}
}

func TestOnlineMean_EmptyAndReset(t *testing.T) {
	m := NewOnlineMean()
	if m.Mean() != 0 || m.N() != 0 {
		t.Errorf("Fresh mean should be 0 at n=0, got %g at n=%d", m.Mean(), m.N())
	}
	m.Update(4)
	m.Reset()
	if m.Mean() != 0 || m.N() != 0 {
		t.Errorf("Reset should zero the state, got %g at n=%d", m.Mean(), m.N())
	}
}

func TestOnlineVariance_MatchesTwoPassReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	xs := make([]float64, 1000)
	for i := range xs {
		xs[i] = rng.Float64() * 5
	}

	v := NewOnlineVariance()
	for _, x := range xs {
		v.Update(x)
	}

	wantMean, wantVar := naiveMeanVar(xs)
	if math.Abs(v.Mean()-wantMean) > 1e-10 {
		t.Errorf("Expected mean %g, got %g", wantMean, v.Mean())
	}
	if math.Abs(v.Variance()-wantVar) > 1e-10 {
		t.Errorf("Expected sample variance %g, got %g", wantVar, v.Variance())
	}
	wantPop := wantVar * float64(len(xs)-1) / float64(len(xs))
	if math.Abs(v.VarPop()-wantPop) > 1e-10 {
		t.Errorf("Expected population variance %g, got %g", wantPop, v.VarPop())
	}
}

func TestOnlineVariance_SmallCounts(t *testing.T) {
	v := NewOnlineVariance()
	if v.Variance() != 0 || v.VarPop() != 0 {
		t.Error("Variance at n=0 should be 0")
	}
	v.Update(3)
	if v.Variance() != 0 {
		t.Errorf("Sample variance at n=1 should be 0, got %g", v.Variance())
	}
	if v.VarPop() != 0 {
		t.Errorf("Population variance of a single point should be 0, got %g", v.VarPop())
	}
	v.Update(5)
	if math.Abs(v.Variance()-2) > 1e-12 {
		t.Errorf("Sample variance of {3,5} should be 2, got %g", v.Variance())
	}
	if math.Abs(v.VarPop()-1) > 1e-12 {
		t.Errorf("Population variance of {3,5} should be 1, got %g", v.VarPop())
	}
}

// Large common offsets are where the textbook sum-of-squares formula
// collapses. Welford must hold up.
func TestOnlineVariance_NumericalStabilityUnderOffset(t *testing.T) {
	const offset = 1e9
	xs := []float64{offset + 4, offset + 7, offset + 13, offset + 16}

	v := NewOnlineVariance()
	for _, x := range xs {
		v.Update(x)
	}

	if math.Abs(v.Variance()-30) > 1e-6 {
		t.Errorf("Expected sample variance 30 under offset, got %g", v.Variance())
	}
}

func TestOnlineVariance_ConstantStream(t *testing.T) {
	v := NewOnlineVariance()
	for i := 0; i < 50; i++ {
		v.Update(2.5)
	}
	if v.Variance() != 0 {
		t.Errorf("Constant stream should have zero variance, got %g", v.Variance())
	}
	if v.Mean() != 2.5 {
		t.Errorf("Expected mean 2.5, got %g", v.Mean())
	}
}
