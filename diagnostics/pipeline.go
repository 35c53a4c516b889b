package diagnostics

import (
	"math"

	"goanytime/domain/stats"
	"goanytime/domain/stream"
)

// Pipeline is the single sanitation entry point a sequence feeds raw
// observations through. It owns the stats.Diagnostics record; the
// checkers only ever write through it.
type Pipeline struct {
	diag    *stats.Diagnostics
	ranger  *RangeChecker
	missing *MissingnessTracker
	drift   *DriftDetector
}

// NewPipeline wires the standard checkers for a validated spec.
func NewPipeline(spec stream.StreamSpec) *Pipeline {
	return &Pipeline{
		diag:    stats.NewDiagnostics(),
		ranger:  NewRangeChecker(spec.Support, spec.ClipMode),
		missing: NewMissingnessTracker(),
		drift:   NewDriftDetector(DefaultDriftWindow, DefaultDriftThreshold),
	}
}

// Apply sanitizes one raw observation. ok=false means the value was
// missing and must be skipped without erroring. A returned error means
// the observation violated the declared support in error clip mode;
// the stream stays usable afterwards.
func (p *Pipeline) Apply(x float64) (float64, bool, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		p.missing.Observe(true)
		p.diag.MissingCount++
		p.diag.Degrade(stats.TierDiagnostic)
		return 0, false, nil
	}
	p.missing.Observe(false)

	clean, err := p.ranger.Check(x, p.diag)
	if err != nil {
		return 0, false, err
	}
	p.drift.Update(clean, p.diag)
	return clean, true, nil
}

// Diagnostics exposes the live record. Callers that emit results should
// attach Snapshot() instead.
func (p *Pipeline) Diagnostics() *stats.Diagnostics {
	return p.diag
}

// Snapshot returns a copy of the current record.
func (p *Pipeline) Snapshot() *stats.Diagnostics {
	return p.diag.Snapshot()
}

// MissingRate reports the fraction of missing observations so far.
func (p *Pipeline) MissingRate() float64 {
	return p.missing.Rate()
}

// Tier returns the current guarantee tier.
func (p *Pipeline) Tier() stats.GuaranteeTier {
	return p.diag.Tier
}

func (p *Pipeline) Reset() {
	p.diag.Reset()
	p.missing.Reset()
	p.drift.Reset()
}
