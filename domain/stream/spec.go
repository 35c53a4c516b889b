package stream

import (
	"fmt"
	"math"

	"goanytime/domain/core"
)

// Kind declares what the caller promises about the data stream.
type Kind string

const (
	KindBounded     Kind = "bounded"     // observations lie in [Support.Lo, Support.Hi]
	KindBernoulli   Kind = "bernoulli"   // observations are exactly 0 or 1
	KindSubgaussian Kind = "subgaussian" // placeholder, no engine implements it yet
)

// ClipMode selects how out-of-range observations are treated.
type ClipMode string

const (
	ClipModeError ClipMode = "error" // reject the observation
	ClipModeClip  ClipMode = "clip"  // clamp into support, degrade the guarantee tier
)

// Support is the declared observation range. Unbounded sides are +/-Inf
// and are only legal for subgaussian streams.
type Support struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Width returns Hi - Lo.
func (s Support) Width() float64 {
	return s.Hi - s.Lo
}

// IsBounded reports whether both sides are finite.
func (s Support) IsBounded() bool {
	return !math.IsInf(s.Lo, 0) && !math.IsInf(s.Hi, 0) &&
		!math.IsNaN(s.Lo) && !math.IsNaN(s.Hi)
}

// Contains reports whether x lies inside the declared range.
func (s Support) Contains(x float64) bool {
	return x >= s.Lo && x <= s.Hi
}

// Clamp forces x into the declared range.
func (s Support) Clamp(x float64) float64 {
	if x < s.Lo {
		return s.Lo
	}
	if x > s.Hi {
		return s.Hi
	}
	return x
}

// StreamSpec is the immutable contract for a one-sample stream. Engines
// validate it once at construction and never mutate it.
type StreamSpec struct {
	Alpha    float64  `json:"alpha"`
	Support  Support  `json:"support"`
	Kind     Kind     `json:"kind"`
	TwoSided bool     `json:"two_sided"`
	Name     string   `json:"name,omitempty"`
	ClipMode ClipMode `json:"clip_mode"`
}

// NewStreamSpec builds a validated spec with the default error clip mode.
func NewStreamSpec(alpha float64, support Support, kind Kind, twoSided bool) (StreamSpec, error) {
	s := StreamSpec{
		Alpha:    alpha,
		Support:  support,
		Kind:     kind,
		TwoSided: twoSided,
		ClipMode: ClipModeError,
	}
	if err := s.Validate(); err != nil {
		return StreamSpec{}, err
	}
	return s, nil
}

// Validate checks every spec invariant. Literal-built specs must pass
// through here before reaching an engine.
func (s StreamSpec) Validate() error {
	return validate(s.Alpha, s.Support, s.Kind, s.ClipMode)
}

// ABSpec is the immutable contract for a two-sample (A/B) stream.
type ABSpec struct {
	Alpha    float64  `json:"alpha"`
	Support  Support  `json:"support"`
	Kind     Kind     `json:"kind"`
	TwoSided bool     `json:"two_sided"`
	Name     string   `json:"name,omitempty"`
	ClipMode ClipMode `json:"clip_mode"`
}

// NewABSpec builds a validated two-sample spec with the default error clip mode.
func NewABSpec(alpha float64, support Support, kind Kind, twoSided bool) (ABSpec, error) {
	s := ABSpec{
		Alpha:    alpha,
		Support:  support,
		Kind:     kind,
		TwoSided: twoSided,
		ClipMode: ClipModeError,
	}
	if err := s.Validate(); err != nil {
		return ABSpec{}, err
	}
	return s, nil
}

// Validate checks every spec invariant.
func (s ABSpec) Validate() error {
	return validate(s.Alpha, s.Support, s.Kind, s.ClipMode)
}

// Stream derives the per-arm spec used by two-sample compositions. The
// arm inherits everything except alpha, which the composition splits.
func (s ABSpec) Stream(alpha float64) StreamSpec {
	return StreamSpec{
		Alpha:    alpha,
		Support:  s.Support,
		Kind:     s.Kind,
		TwoSided: s.TwoSided,
		Name:     s.Name,
		ClipMode: s.ClipMode,
	}
}

func validate(alpha float64, support Support, kind Kind, clipMode ClipMode) error {
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("%w: got %g", core.ErrInvalidAlpha, alpha)
	}
	if math.IsNaN(support.Lo) || math.IsNaN(support.Hi) {
		return fmt.Errorf("%w: NaN bound", core.ErrInvalidSupport)
	}
	if !(support.Lo < support.Hi) {
		return fmt.Errorf("%w: lo %g >= hi %g", core.ErrInvalidSupport, support.Lo, support.Hi)
	}
	switch kind {
	case KindBounded:
		if !support.IsBounded() {
			return fmt.Errorf("%w: bounded kind needs finite support, got [%g, %g]",
				core.ErrInvalidSupport, support.Lo, support.Hi)
		}
	case KindBernoulli:
		if support.Lo != 0 || support.Hi != 1 {
			return fmt.Errorf("%w: bernoulli kind needs support (0, 1), got [%g, %g]",
				core.ErrInvalidSupport, support.Lo, support.Hi)
		}
	case KindSubgaussian:
		// unbounded support is fine here
	default:
		return fmt.Errorf("%w: %q", core.ErrUnknownKind, kind)
	}
	switch clipMode {
	case ClipModeError, ClipModeClip:
	default:
		return fmt.Errorf("%w: %q", core.ErrUnknownClipMode, clipMode)
	}
	return nil
}
