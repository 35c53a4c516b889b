package atlas

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"goanytime/domain/core"
)

// Observation is one labeled draw from a two-sample stream.
type Observation struct {
	Arm   string  `json:"arm"`
	Value float64 `json:"value"`
}

// Clusters and spreads for the shaped one-sample generators. The
// bimodal weights are solved from the scenario mean so the coverage
// target stays honest.
const (
	bimodalLoCluster     = 0.2
	bimodalHiCluster     = 0.8
	bimodalConcentration = 50.0
	betaConcentration    = 10.0
	driftHalfRange       = 0.05
	spikeEvery           = 50
	spikeOvershoot       = 0.5 // fraction of the support width past Hi
)

// Two-sample generator shape parameters.
const (
	imbalancedRatioA = 0.7
	heteroscConcA    = 40.0
	heteroscConcB    = 8.0
)

// OneSampleData draws the full stream for one simulation of a
// one-sample scenario. The offset shifts the seed so each Monte Carlo
// replicate is an independent stream while the whole run stays
// reproducible.
func OneSampleData(sc Scenario, n int, offset int) ([]float64, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	seed := sc.Seed + int64(offset)
	switch sc.Distribution {
	case DistBernoulli:
		return bernoulliStream(sc.TrueMean, n, seed)
	case DistUniform:
		return uniformStream(sc.Support.Lo, sc.Support.Hi, n, seed), nil
	case DistBeta:
		return betaStream(sc.TrueMean, betaConcentration, n, seed)
	case DistBimodal:
		return bimodalStream(sc.TrueMean, n, seed)
	case DistDrift:
		return driftStream(sc.TrueMean-driftHalfRange, sc.TrueMean+driftHalfRange, n, seed)
	case DistSpike:
		return spikeStream(sc.TrueMean, sc.Support.Lo, sc.Support.Hi, n, seed)
	default:
		return nil, core.NewConfigError("scenario.distribution", "unknown one-sample distribution "+sc.Distribution)
	}
}

// TwoSampleData draws the full labeled stream for one simulation of a
// two-sample scenario. Arm means are TrueMean -/+ TrueLift/2 so the
// contrast B - A equals TrueLift.
func TwoSampleData(sc Scenario, n int, offset int) ([]Observation, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	seed := sc.Seed + int64(offset)
	meanA := sc.TrueMean - sc.TrueLift/2
	meanB := sc.TrueMean + sc.TrueLift/2
	switch sc.Distribution {
	case DistABBernoulli:
		return abBernoulliStream(meanA, meanB, n, seed, 0.5)
	case DistABImbalanced:
		return abBernoulliStream(meanA, meanB, n, seed, imbalancedRatioA)
	case DistABBeta:
		return abBetaStream(meanA, meanB, heteroParams{concA: betaConcentration, concB: betaConcentration}, n, seed)
	case DistABHeteroscedastic:
		return abBetaStream(meanA, meanB, heteroParams{concA: heteroscConcA, concB: heteroscConcB}, n, seed)
	default:
		return nil, core.NewConfigError("scenario.distribution", "unknown two-sample distribution "+sc.Distribution)
	}
}

func checkProbability(p float64, name string) error {
	if p < 0 || p > 1 {
		return core.NewConfigError(name, "probability outside [0, 1]")
	}
	return nil
}

// betaParams converts a mean and concentration to Beta shape
// parameters: alpha = mean*c, beta = (1-mean)*c.
func betaParams(mean, concentration float64) (float64, float64, error) {
	if mean <= 0 || mean >= 1 {
		return 0, 0, core.NewConfigError("true_mean", "beta mean must be inside (0, 1)")
	}
	if concentration <= 0 {
		return 0, 0, core.NewConfigError("concentration", "must be positive")
	}
	return mean * concentration, (1 - mean) * concentration, nil
}

func bernoulliStream(p float64, n int, seed int64) ([]float64, error) {
	if err := checkProbability(p, "true_mean"); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		if rng.Float64() < p {
			out[i] = 1
		}
	}
	return out, nil
}

func uniformStream(lo, hi float64, n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*rng.Float64()
	}
	return out
}

// betaStream samples Beta(mean, concentration) by pushing seeded
// uniforms through the distuv quantile, keeping the draw reproducible
// from the scenario seed alone.
func betaStream(mean, concentration float64, n int, seed int64) ([]float64, error) {
	a, b, err := betaParams(mean, concentration)
	if err != nil {
		return nil, err
	}
	dist := distuv.Beta{Alpha: a, Beta: b}
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = dist.Quantile(rng.Float64())
	}
	return out, nil
}

// bimodalStream mixes two tight Beta clusters at 0.2 and 0.8. The
// cluster weight is solved from the requested mean, so the mean must
// sit between the cluster centers.
func bimodalStream(mean float64, n int, seed int64) ([]float64, error) {
	if mean < bimodalLoCluster || mean > bimodalHiCluster {
		return nil, core.NewConfigError("true_mean", "bimodal mean must lie between the 0.2 and 0.8 clusters")
	}
	w1 := (bimodalHiCluster - mean) / (bimodalHiCluster - bimodalLoCluster)

	a1, b1, err := betaParams(bimodalLoCluster, bimodalConcentration)
	if err != nil {
		return nil, err
	}
	a2, b2, err := betaParams(bimodalHiCluster, bimodalConcentration)
	if err != nil {
		return nil, err
	}
	lo := distuv.Beta{Alpha: a1, Beta: b1}
	hi := distuv.Beta{Alpha: a2, Beta: b2}

	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		if rng.Float64() < w1 {
			out[i] = lo.Quantile(rng.Float64())
		} else {
			out[i] = hi.Quantile(rng.Float64())
		}
	}
	return out, nil
}

// spikeStream corrupts a Bernoulli base stream with a value past the
// support's upper bound every spikeEvery observations. Paired with a
// clip-mode spec it benchmarks coverage under the clipped guarantee
// tier; under an error-mode spec the first spike surfaces as an
// assumption violation.
func spikeStream(p, lo, hi float64, n int, seed int64) ([]float64, error) {
	out, err := bernoulliStream(p, n, seed)
	if err != nil {
		return nil, err
	}
	spike := hi + spikeOvershoot*(hi-lo)
	for i := spikeEvery - 1; i < n; i += spikeEvery {
		out[i] = spike
	}
	return out, nil
}

// driftStream ramps a Bernoulli success probability linearly from
// pStart to pEnd across the stream. The mean over the whole horizon
// is the midpoint, but no fixed-p model fits any prefix.
func driftStream(pStart, pEnd float64, n int, seed int64) ([]float64, error) {
	if err := checkProbability(pStart, "drift start"); err != nil {
		return nil, err
	}
	if err := checkProbability(pEnd, "drift end"); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		frac := float64(i) / float64(max(1, n-1))
		p := pStart + frac*(pEnd-pStart)
		if rng.Float64() < p {
			out[i] = 1
		}
	}
	return out, nil
}

// abBernoulliStream assigns arms by coin flip at ratioA, except that
// a balanced design (ratioA == 0.5) alternates deterministically so
// the arms fill in lockstep.
func abBernoulliStream(pA, pB float64, n int, seed int64, ratioA float64) ([]Observation, error) {
	if err := checkProbability(pA, "arm A mean"); err != nil {
		return nil, err
	}
	if err := checkProbability(pB, "arm B mean"); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]Observation, n)
	for i := range out {
		arm, p := "A", pA
		if assignB(rng, i, ratioA) {
			arm, p = "B", pB
		}
		value := 0.0
		if rng.Float64() < p {
			value = 1
		}
		out[i] = Observation{Arm: arm, Value: value}
	}
	return out, nil
}

type heteroParams struct {
	concA float64
	concB float64
}

func abBetaStream(meanA, meanB float64, shape heteroParams, n int, seed int64) ([]Observation, error) {
	aA, bA, err := betaParams(meanA, shape.concA)
	if err != nil {
		return nil, err
	}
	aB, bB, err := betaParams(meanB, shape.concB)
	if err != nil {
		return nil, err
	}
	distA := distuv.Beta{Alpha: aA, Beta: bA}
	distB := distuv.Beta{Alpha: aB, Beta: bB}

	rng := rand.New(rand.NewSource(seed))
	out := make([]Observation, n)
	for i := range out {
		if assignB(rng, i, 0.5) {
			out[i] = Observation{Arm: "B", Value: distB.Quantile(rng.Float64())}
		} else {
			out[i] = Observation{Arm: "A", Value: distA.Quantile(rng.Float64())}
		}
	}
	return out, nil
}

func assignB(rng *rand.Rand, i int, ratioA float64) bool {
	if ratioA == 0.5 {
		return i%2 == 1
	}
	return rng.Float64() >= ratioA
}
