// Package twosample composes two independent one-sample confidence
// sequences into an anytime-valid interval for the mean difference
// B - A. The arms need no pairing and may fill at different rates;
// combining each arm's own time-uniform interval bounds the contrast
// at every look.
package twosample

import (
	"math"

	"goanytime/cs"
	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
	"goanytime/ports"
)

var _ ports.PairedSequence = (*TwoSampleCS)(nil)

// Factory builds the one-sample sequence used for each arm.
type Factory func(spec stream.StreamSpec) (ports.ConfidenceSequence, error)

// TwoSampleCS wraps two one-sample confidence sequences of the same
// method, one per arm. A two-sided composite builds each arm at
// alpha/2 so the union bound over both sequences spends alpha in
// total; a one-sided composite passes alpha through.
type TwoSampleCS struct {
	spec stream.ABSpec
	armA ports.ConfidenceSequence
	armB ports.ConfidenceSequence
}

// NewTwoSampleCS builds the composition from a one-sample factory.
// Both arms run the derived per-arm spec.
func NewTwoSampleCS(spec stream.ABSpec, factory Factory) (*TwoSampleCS, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	armAlpha := spec.Alpha
	if spec.TwoSided {
		armAlpha = spec.Alpha / 2
	}
	armSpec := spec.Stream(armAlpha)
	a, err := factory(armSpec)
	if err != nil {
		return nil, err
	}
	b, err := factory(armSpec)
	if err != nil {
		return nil, err
	}
	return &TwoSampleCS{spec: spec, armA: a, armB: b}, nil
}

// NewTwoSampleHoeffdingCS composes two range-based sequences.
func NewTwoSampleHoeffdingCS(spec stream.ABSpec) (*TwoSampleCS, error) {
	if err := requireBoundedKind(spec); err != nil {
		return nil, err
	}
	return NewTwoSampleCS(spec, func(s stream.StreamSpec) (ports.ConfidenceSequence, error) {
		return cs.NewHoeffdingCS(s)
	})
}

// NewTwoSampleEmpiricalBernsteinCS composes two variance-adaptive
// sequences.
func NewTwoSampleEmpiricalBernsteinCS(spec stream.ABSpec) (*TwoSampleCS, error) {
	if err := requireBoundedKind(spec); err != nil {
		return nil, err
	}
	return NewTwoSampleCS(spec, func(s stream.StreamSpec) (ports.ConfidenceSequence, error) {
		return cs.NewEmpiricalBernsteinCS(s)
	})
}

func requireBoundedKind(spec stream.ABSpec) error {
	if spec.Kind != stream.KindBounded && spec.Kind != stream.KindBernoulli {
		return core.NewConfigError("kind", "two-sample composition needs bounded or bernoulli data")
	}
	return nil
}

// UpdateArm routes one observation to its arm's sequence. Labels other
// than "A" and "B" are configuration errors.
func (c *TwoSampleCS) UpdateArm(arm string, x float64) error {
	switch arm {
	case "A":
		return c.armA.Update(x)
	case "B":
		return c.armB.Update(x)
	default:
		return core.NewInvalidArmError(arm)
	}
}

// Interval returns the current interval for the mean difference B - A.
// Each arm's interval bounds its own mean at every time, so opposite
// extremes bound the contrast: lo = loB - hiA, hi = hiB - loA. Until
// both arms have data the interval is vacuous. T counts observations
// across both arms.
func (c *TwoSampleCS) Interval() stats.Interval {
	ivA := c.armA.Interval()
	ivB := c.armB.Interval()
	iv := stats.Interval{
		T:           ivA.T + ivB.T,
		Alpha:       c.spec.Alpha,
		Tier:        stats.Worst(ivA.Tier, ivB.Tier),
		Diagnostics: stats.MergeDiagnostics(ivA.Diagnostics, ivB.Diagnostics),
	}
	if ivA.T == 0 || ivB.T == 0 {
		iv.Lo = math.Inf(-1)
		iv.Hi = math.Inf(1)
		return iv
	}
	iv.Estimate = ivB.Estimate - ivA.Estimate
	iv.Lo = ivB.Lo - ivA.Hi
	iv.Hi = ivB.Hi - ivA.Lo
	return iv
}

// Reset returns both arms to their initial state.
func (c *TwoSampleCS) Reset() {
	c.armA.Reset()
	c.armB.Reset()
}
