package stats

import "math"

// Diagnostics is the single mutable record of data-quality findings for
// one stream. Checkers write into it through explicit method calls so
// there is exactly one owner for every counter.
type Diagnostics struct {
	Tier            GuaranteeTier `json:"tier"`
	OutOfRangeCount int           `json:"out_of_range_count"`
	MissingCount    int           `json:"missing_count"`
	ClippedCount    int           `json:"clipped_count"`
	DriftDetected   bool          `json:"drift_detected"`
	DriftScore      float64       `json:"drift_score"`
}

// NewDiagnostics starts a record at the full guarantee tier.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{Tier: TierGuaranteed}
}

// Degrade lowers the tier to target if target is weaker. The tier never
// recovers within a stream.
func (d *Diagnostics) Degrade(target GuaranteeTier) {
	if target < d.Tier {
		d.Tier = target
	}
}

// Snapshot returns a copy safe to attach to an emitted result.
func (d *Diagnostics) Snapshot() *Diagnostics {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Reset returns the record to its initial state.
func (d *Diagnostics) Reset() {
	*d = Diagnostics{Tier: TierGuaranteed}
}

// MergeDiagnostics combines the records of two independent streams:
// counts add, drift flags OR, scores take the max, tiers take the worst.
func MergeDiagnostics(a, b *Diagnostics) *Diagnostics {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		return b.Snapshot()
	}
	if b == nil {
		return a.Snapshot()
	}
	return &Diagnostics{
		Tier:            Worst(a.Tier, b.Tier),
		OutOfRangeCount: a.OutOfRangeCount + b.OutOfRangeCount,
		MissingCount:    a.MissingCount + b.MissingCount,
		ClippedCount:    a.ClippedCount + b.ClippedCount,
		DriftDetected:   a.DriftDetected || b.DriftDetected,
		DriftScore:      math.Max(a.DriftScore, b.DriftScore),
	}
}
