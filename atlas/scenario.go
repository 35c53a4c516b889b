// Package atlas runs Monte Carlo benchmarks over the confidence
// sequences and e-processes in this module. A benchmark pairs a data
// scenario (distribution, true mean, horizon, seed) with an estimator
// and an optional stopping rule, simulates many independent streams,
// and aggregates coverage, error rates, width and stop-time metrics
// into comparison reports.
package atlas

import (
	"fmt"

	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
)

// One-sample distributions.
const (
	DistBernoulli = "bernoulli" // iid Bernoulli(TrueMean)
	DistUniform   = "uniform"   // uniform over the support
	DistBeta      = "beta"      // Beta with mean TrueMean, concentration 10
	DistBimodal   = "bimodal"   // two Beta clusters at 0.2 and 0.8, weights solved from TrueMean
	DistDrift     = "drift"     // Bernoulli with p ramping TrueMean +/- 0.05
	DistSpike     = "spike"     // Bernoulli with an out-of-range spike every 50 draws
)

// Two-sample distributions. Arm means are TrueMean -/+ TrueLift/2.
const (
	DistABBernoulli       = "bernoulli"            // alternating arms
	DistABImbalanced      = "bernoulli_imbalanced" // random arms, 70% A
	DistABBeta            = "beta"                 // Beta arms, concentration 10
	DistABHeteroscedastic = "beta_heteroscedastic" // same-shape means, concentrations 40 vs 8
)

// Scenario describes one benchmark data regime. TrueMean is the mean
// the coverage check targets for one-sample runs; TrueLift (mean B
// minus mean A) is the target for two-sample runs. Seed is offset per
// simulation so every Monte Carlo replicate draws a fresh stream.
type Scenario struct {
	Name         string         `json:"name"`
	TrueMean     float64        `json:"true_mean"`
	TrueLift     float64        `json:"true_lift,omitempty"`
	Distribution string         `json:"distribution"`
	Support      stream.Support `json:"support"`
	NMax         int            `json:"n_max"`
	Seed         int64          `json:"seed"`
	IsNull       bool           `json:"is_null"`
}

// Validate checks the fields every generator relies on. Distribution
// names are checked later, at generation time, because the one- and
// two-sample families accept different sets.
func (sc Scenario) Validate() error {
	if sc.Name == "" {
		return core.NewConfigError("scenario.name", "is required")
	}
	if sc.NMax < 1 {
		return core.NewConfigError("scenario.n_max", "must be positive")
	}
	if sc.Support.Lo >= sc.Support.Hi {
		return core.NewConfigError("scenario.support", "want lo < hi")
	}
	if (sc.Distribution == DistBernoulli || sc.Distribution == DistSpike) && (sc.Support.Lo != 0 || sc.Support.Hi != 1) {
		return core.NewConfigError("scenario.support", "bernoulli-based distributions require [0, 1]")
	}
	return nil
}

// Direction selects which side of a threshold a stopping rule watches.
type Direction string

const (
	DirGE   Direction = "ge"   // stop when the whole interval sits above the threshold
	DirLE   Direction = "le"   // stop when the whole interval sits below the threshold
	DirBoth Direction = "both" // stop when the interval excludes the threshold either way
)

// StoppingRule decides, after each observation, whether a sequential
// run should stop. Stop receives the current interval and the
// observation count. A nil rule means run to the horizon.
type StoppingRule struct {
	Name string
	Stop func(iv stats.Interval, t int) bool
}

// ExcludeThreshold stops once the interval excludes the threshold in
// the given direction. Anytime validity of the underlying sequence is
// what makes this a level-alpha test despite the continuous peeking.
func ExcludeThreshold(threshold float64, direction Direction) StoppingRule {
	return StoppingRule{
		Name: fmt.Sprintf("exclude_%s_%g", direction, threshold),
		Stop: func(iv stats.Interval, _ int) bool {
			switch direction {
			case DirGE:
				return iv.Lo > threshold
			case DirLE:
				return iv.Hi < threshold
			default:
				return iv.Lo > threshold || iv.Hi < threshold
			}
		},
	}
}

// Periodic gates an inner rule so it is consulted only every `every`
// observations, modeling an experimenter who looks on a schedule
// rather than continuously.
func Periodic(every int, inner StoppingRule) StoppingRule {
	if every < 1 {
		every = 1
	}
	return StoppingRule{
		Name: fmt.Sprintf("periodic_%d_%s", every, inner.Name),
		Stop: func(iv stats.Interval, t int) bool {
			return t%every == 0 && inner.Stop(iv, t)
		},
	}
}
