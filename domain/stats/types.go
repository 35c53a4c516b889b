package stats

import (
	"encoding/json"
	"fmt"
	"math"
)

// GuaranteeTier grades how much of the declared guarantee still holds.
// Order is by strength: Guaranteed > Clipped > Diagnostic.
type GuaranteeTier int

const (
	TierDiagnostic GuaranteeTier = iota // assumption violated, output is descriptive only
	TierClipped                         // guarantee holds for the clipped stream
	TierGuaranteed                      // full anytime-valid guarantee
)

func (g GuaranteeTier) String() string {
	switch g {
	case TierGuaranteed:
		return "GUARANTEED"
	case TierClipped:
		return "CLIPPED"
	case TierDiagnostic:
		return "DIAGNOSTIC"
	default:
		return fmt.Sprintf("GuaranteeTier(%d)", int(g))
	}
}

// Worst returns the weaker of two tiers.
func Worst(a, b GuaranteeTier) GuaranteeTier {
	if a < b {
		return a
	}
	return b
}

// MarshalJSON encodes the tier by name so run logs and event streams
// stay readable.
func (g GuaranteeTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

func (g *GuaranteeTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "GUARANTEED":
		*g = TierGuaranteed
	case "CLIPPED":
		*g = TierClipped
	case "DIAGNOSTIC":
		*g = TierDiagnostic
	default:
		return fmt.Errorf("unknown guarantee tier %q", s)
	}
	return nil
}

// Interval is a confidence-sequence snapshot at observation count T.
// Bounds are +/-Inf before any data arrives, never NaN.
type Interval struct {
	T           int           `json:"t"`
	Estimate    float64       `json:"estimate"`
	Lo          float64       `json:"lo"`
	Hi          float64       `json:"hi"`
	Alpha       float64       `json:"alpha"`
	Tier        GuaranteeTier `json:"tier"`
	Diagnostics *Diagnostics  `json:"diagnostics,omitempty"`
}

// Width returns Hi - Lo, +Inf for the vacuous interval.
func (iv Interval) Width() float64 {
	return iv.Hi - iv.Lo
}

// Excludes reports whether value lies strictly outside the interval.
func (iv Interval) Excludes(value float64) bool {
	return value < iv.Lo || value > iv.Hi
}

// IsVacuous reports whether the interval carries no information yet.
func (iv Interval) IsVacuous() bool {
	return math.IsInf(iv.Lo, -1) && math.IsInf(iv.Hi, 1)
}

// EValue is an e-process snapshot at observation count T. Decision is
// the level-alpha e-test: E >= 1/alpha.
type EValue struct {
	T           int           `json:"t"`
	E           float64       `json:"e"`
	Decision    bool          `json:"decision"`
	Alpha       float64       `json:"alpha"`
	Tier        GuaranteeTier `json:"tier"`
	Diagnostics *Diagnostics  `json:"diagnostics,omitempty"`
}
