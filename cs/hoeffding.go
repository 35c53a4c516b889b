// Package cs implements the one-sample confidence sequences. Each
// sequence consumes raw observations through the diagnostics pipeline
// and re-derives its interval from estimator state on every read, so
// intervals stay valid under optional stopping: the caller may look
// after every update and act on what it sees.
package cs

import (
	"math"

	"goanytime/diagnostics"
	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
	"goanytime/internal/estimator"
	"goanytime/ports"
)

var _ ports.ConfidenceSequence = (*HoeffdingCS)(nil)

// HoeffdingCS is the range-based confidence sequence. Its margin
// depends only on the support width and t, which makes it the safe
// default and the fallback for the variance-adaptive sequence.
type HoeffdingCS struct {
	spec stream.StreamSpec
	mean *estimator.OnlineMean
	pipe *diagnostics.Pipeline
}

// NewHoeffdingCS builds the sequence. The spec must carry a finite
// support; the margin is proportional to its width.
func NewHoeffdingCS(spec stream.StreamSpec) (*HoeffdingCS, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if !spec.Support.IsBounded() {
		return nil, core.NewConfigError("support", "hoeffding needs finite bounds")
	}
	return &HoeffdingCS{
		spec: spec,
		mean: estimator.NewOnlineMean(),
		pipe: diagnostics.NewPipeline(spec),
	}, nil
}

// Update folds one observation. Missing values are skipped; range
// violations follow the spec's clip mode.
func (h *HoeffdingCS) Update(x float64) error {
	v, ok, err := h.pipe.Apply(x)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	h.mean.Update(v)
	return nil
}

// Interval returns the current confidence interval. Before any data it
// is (-Inf, +Inf).
func (h *HoeffdingCS) Interval() stats.Interval {
	t := h.mean.N()
	iv := stats.Interval{
		T:           t,
		Estimate:    h.mean.Mean(),
		Alpha:       h.spec.Alpha,
		Tier:        h.pipe.Tier(),
		Diagnostics: h.pipe.Snapshot(),
	}
	if t == 0 {
		iv.Lo = math.Inf(-1)
		iv.Hi = math.Inf(1)
		return iv
	}
	margin := hoeffdingMargin(h.spec, t)
	iv.Lo = iv.Estimate - margin
	iv.Hi = iv.Estimate + margin
	return iv
}

// Reset clears all mutable state, keeping the spec.
func (h *HoeffdingCS) Reset() {
	h.mean.Reset()
	h.pipe.Reset()
}

// hoeffdingMargin is the stitched Hoeffding radius at time t. The
// pi^2 t^2 term comes from a union bound over all times with 1/t^2
// weights, so the alpha budget sums across every future look and the
// interval is time-uniform. One-sided specs spend the whole budget on
// one tail (c=6), two-sided specs split it (c=3).
func hoeffdingMargin(spec stream.StreamSpec, t int) float64 {
	c := 6.0
	if spec.TwoSided {
		c = 3.0
	}
	tf := float64(t)
	logTerm := math.Log(math.Pi * math.Pi * tf * tf / (c * spec.Alpha))
	return spec.Support.Width() * math.Sqrt(logTerm/(2*tf))
}
