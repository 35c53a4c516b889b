// Package evalue implements the anytime-valid e-processes. An e-value
// is evidence against a null hypothesis: it stays near 1 when the null
// holds and compounds multiplicatively when it does not. The level
// alpha test rejects once e >= 1/alpha, and by Ville's inequality that
// rule holds its error rate no matter when or how often the caller
// looks.
package evalue

import (
	"math"

	"goanytime/diagnostics"
	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
	"goanytime/internal/numeric"
	"goanytime/ports"
)

// Side names the alternative hypothesis region.
type Side string

const (
	SideGE  Side = "ge"  // H1: parameter >= null value
	SideLE  Side = "le"  // H1: parameter <= null value
	SideTwo Side = "two" // H1: parameter != null value
)

func (s Side) valid() bool {
	return s == SideGE || s == SideLE || s == SideTwo
}

// Exponent bounds for exp(). Below the floor the e-value flushes to
// exactly 0; above the cap it saturates finite instead of overflowing
// to +Inf.
const (
	logUnderflowFloor = -745
	logOverflowCap    = 700
)

// Jeffreys prior, the default mixing measure.
const (
	DefaultPriorA = 0.5
	DefaultPriorB = 0.5
)

var _ ports.EValueProcess = (*BernoulliMixtureE)(nil)

// BernoulliMixtureE tests a null success probability p0 against binary
// observations using a beta-mixture e-process. One-sided variants
// restrict the mixture to the alternative's side of p0 and renormalize
// by the prior mass there.
type BernoulliMixtureE struct {
	spec      stream.StreamSpec
	p0        float64
	side      Side
	priorA    float64
	priorB    float64
	successes int
	t         int
	pipe      *diagnostics.Pipeline
}

// NewBernoulliMixtureE builds the process with the Jeffreys prior.
func NewBernoulliMixtureE(spec stream.StreamSpec, p0 float64, side Side) (*BernoulliMixtureE, error) {
	return NewBernoulliMixtureEWithPrior(spec, p0, side, DefaultPriorA, DefaultPriorB)
}

// NewBernoulliMixtureEWithPrior builds the process with an explicit
// Beta(a, b) mixing prior.
func NewBernoulliMixtureEWithPrior(spec stream.StreamSpec, p0 float64, side Side, a, b float64) (*BernoulliMixtureE, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Kind != stream.KindBernoulli {
		return nil, core.NewConfigError("kind", "bernoulli e-value needs kind=bernoulli")
	}
	if !(p0 > 0 && p0 < 1) {
		return nil, core.NewConfigError("p0", "null proportion must lie strictly inside (0, 1)")
	}
	if !side.valid() {
		return nil, core.NewConfigError("side", "want ge, le or two")
	}
	if !(a > 0) || !(b > 0) {
		return nil, core.ErrInvalidPrior
	}
	return &BernoulliMixtureE{
		spec:   spec,
		p0:     p0,
		side:   side,
		priorA: a,
		priorB: b,
		pipe:   diagnostics.NewPipeline(spec),
	}, nil
}

// Update folds one observation. After sanitation the value must be
// exactly 0 or 1.
func (m *BernoulliMixtureE) Update(x float64) error {
	v, ok, err := m.pipe.Apply(x)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if v != 0 && v != 1 {
		m.pipe.Diagnostics().Degrade(stats.TierDiagnostic)
		return core.NewNonBinaryError(v)
	}
	if v == 1 {
		m.successes++
	}
	m.t++
	return nil
}

// EValue returns the current evidence snapshot. Before any data the
// e-value is exactly 1 (no evidence either way).
func (m *BernoulliMixtureE) EValue() stats.EValue {
	ev := stats.EValue{
		T:           m.t,
		Alpha:       m.spec.Alpha,
		Tier:        m.pipe.Tier(),
		Diagnostics: m.pipe.Snapshot(),
	}
	if m.t == 0 {
		ev.E = 1
		return ev
	}
	logE := m.logE()
	switch {
	case logE < logUnderflowFloor:
		ev.E = 0
	case logE > logOverflowCap:
		ev.E = math.Exp(logOverflowCap)
	default:
		ev.E = math.Exp(logE)
	}
	ev.Decision = ev.E >= 1/m.spec.Alpha
	return ev
}

// logE is the log marginal-likelihood ratio of the (possibly
// restricted) beta mixture against the point null.
func (m *BernoulliMixtureE) logE() float64 {
	s := float64(m.successes)
	tf := float64(m.t)

	logE := numeric.LogBeta(s+m.priorA, tf-s+m.priorB) - numeric.LogBeta(m.priorA, m.priorB) -
		s*math.Log(m.p0) - (tf-s)*math.Log(1-m.p0)

	if m.side == SideTwo {
		return logE
	}

	// One-sided: keep only the posterior mass on the alternative's
	// side of p0 and renormalize by the prior mass there.
	postCDF := numeric.RegIncBeta(s+m.priorA, tf-s+m.priorB, m.p0)
	priorCDF := numeric.RegIncBeta(m.priorA, m.priorB, m.p0)
	if m.side == SideGE {
		return logE + math.Log1p(-postCDF) - math.Log1p(-priorCDF)
	}
	return logE + math.Log(postCDF) - math.Log(priorCDF)
}

// Reset clears all mutable state, keeping spec, null and prior.
func (m *BernoulliMixtureE) Reset() {
	m.successes = 0
	m.t = 0
	m.pipe.Reset()
}
