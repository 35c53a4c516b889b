package cs

import (
	"math"

	"goanytime/diagnostics"
	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
	"goanytime/internal/numeric"
	"goanytime/ports"
)

var _ ports.ConfidenceSequence = (*BernoulliCS)(nil)

// Root search stays strictly inside (0, 1); the boundary function
// diverges at the endpoints.
const bernoulliEps = 1e-12

// Jeffreys prior, the default mixing measure.
const (
	DefaultPriorA = 0.5
	DefaultPriorB = 0.5
)

// BernoulliCS is the exact confidence sequence for a success
// proportion. It inverts a beta-binomial mixture e-process: the
// interval at time t is the set of p whose e-value has not yet crossed
// the rejection threshold. All arithmetic is in log space so large t
// never overflows.
type BernoulliCS struct {
	spec      stream.StreamSpec
	priorA    float64
	priorB    float64
	successes int
	t         int
	pipe      *diagnostics.Pipeline
}

// NewBernoulliCS builds the sequence with the Jeffreys prior. The spec
// kind must be bernoulli.
func NewBernoulliCS(spec stream.StreamSpec) (*BernoulliCS, error) {
	return NewBernoulliCSWithPrior(spec, DefaultPriorA, DefaultPriorB)
}

// NewBernoulliCSWithPrior builds the sequence with an explicit
// Beta(a, b) mixing prior.
func NewBernoulliCSWithPrior(spec stream.StreamSpec, a, b float64) (*BernoulliCS, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Kind != stream.KindBernoulli {
		return nil, core.NewConfigError("kind", "exact bernoulli sequence needs kind=bernoulli")
	}
	if !(a > 0) || !(b > 0) {
		return nil, core.ErrInvalidPrior
	}
	return &BernoulliCS{
		spec:   spec,
		priorA: a,
		priorB: b,
		pipe:   diagnostics.NewPipeline(spec),
	}, nil
}

// Update folds one observation. After sanitation the value must be
// exactly 0 or 1; anything else is an assumption violation and drops
// the tier to DIAGNOSTIC.
func (b *BernoulliCS) Update(x float64) error {
	v, ok, err := b.pipe.Apply(x)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if v != 0 && v != 1 {
		b.pipe.Diagnostics().Degrade(stats.TierDiagnostic)
		return core.NewNonBinaryError(v)
	}
	if v == 1 {
		b.successes++
	}
	b.t++
	return nil
}

// logE evaluates the mixture e-process against success probability p.
// E_t(p) = Beta(S+a, t-S+b) / (Beta(a, b) p^S (1-p)^(t-S)). The
// likelihood terms are skipped when their exponent is zero so that
// evaluating at p=0 or p=1 never multiplies 0 by -Inf.
func (b *BernoulliCS) logE(p float64) float64 {
	s := float64(b.successes)
	tf := float64(b.t)
	le := numeric.LogBeta(s+b.priorA, tf-s+b.priorB) - numeric.LogBeta(b.priorA, b.priorB)
	if s > 0 {
		le -= s * math.Log(p)
	}
	if tf-s > 0 {
		le -= (tf - s) * math.Log(1-p)
	}
	return le
}

// Interval returns the current confidence sequence by locating the two
// crossings of the e-process threshold. Boundary cases skip the root
// search: no successes pins lo to 0, all successes pins hi to 1, and
// before any data the interval is the whole unit range.
func (b *BernoulliCS) Interval() stats.Interval {
	iv := stats.Interval{
		T:           b.t,
		Alpha:       b.spec.Alpha,
		Tier:        b.pipe.Tier(),
		Diagnostics: b.pipe.Snapshot(),
	}
	if b.t == 0 {
		iv.Lo, iv.Hi = 0, 1
		return iv
	}

	mean := float64(b.successes) / float64(b.t)
	iv.Estimate = mean

	// One-sided specs spend the whole alpha on their tail, which
	// tightens the threshold to ln(1/(2 alpha)).
	c := 1.0
	if !b.spec.TwoSided {
		c = 2.0
	}
	target := math.Log(1 / (c * b.spec.Alpha))
	f := func(p float64) float64 { return b.logE(p) - target }

	// f is +Inf-divergent at both endpoints and minimized at the
	// sample mean, so each half-range brackets exactly one crossing.
	if b.successes == 0 {
		iv.Lo = 0
	} else {
		lo, err := numeric.Brent(f, bernoulliEps, mean)
		if err != nil {
			lo = 0
		}
		iv.Lo = lo
	}
	if b.successes == b.t {
		iv.Hi = 1
	} else {
		hi, err := numeric.Brent(f, mean, 1-bernoulliEps)
		if err != nil {
			hi = 1
		}
		iv.Hi = hi
	}
	return iv
}

// Reset clears all mutable state, keeping the spec and prior.
func (b *BernoulliCS) Reset() {
	b.successes = 0
	b.t = 0
	b.pipe.Reset()
}
