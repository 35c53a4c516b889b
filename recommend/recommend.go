// Package recommend picks a confidence-sequence method for a declared
// stream. The choice is a pure function of the spec: binary data gets
// the exact Bernoulli inversion, general bounded data gets the
// variance-adaptive sequence. Callers receive a factory closed over the
// spec rather than a method name to switch on.
package recommend

import (
	"fmt"

	"goanytime/cs"
	"goanytime/domain/core"
	"goanytime/domain/stream"
	"goanytime/ports"
	"goanytime/twosample"
)

// Method names accepted by the CLI and the benchmark scenarios.
const (
	MethodHoeffding          = "hoeffding"
	MethodEmpiricalBernstein = "empirical_bernstein"
	MethodBernoulli          = "bernoulli"
)

// Recommendation is the outcome of one-sample method selection. New
// builds the recommended sequence for the spec it was derived from.
type Recommendation struct {
	Method string
	Reason string
	New    func() (ports.ConfidenceSequence, error)
}

// ABRecommendation is the outcome of two-sample method selection.
type ABRecommendation struct {
	Method string
	Reason string
	New    func() (ports.PairedSequence, error)
}

// RecommendCS selects the one-sample method for a spec.
func RecommendCS(spec stream.StreamSpec) (Recommendation, error) {
	if err := spec.Validate(); err != nil {
		return Recommendation{}, err
	}
	switch spec.Kind {
	case stream.KindBernoulli:
		return Recommendation{
			Method: MethodBernoulli,
			Reason: "exact Bernoulli inversion gives the tightest valid intervals for binary data",
			New: func() (ports.ConfidenceSequence, error) {
				return cs.NewBernoulliCS(spec)
			},
		}, nil
	case stream.KindBounded:
		return Recommendation{
			Method: MethodEmpiricalBernstein,
			Reason: "empirical Bernstein adapts to the observed variance on bounded data",
			New: func() (ports.ConfidenceSequence, error) {
				return cs.NewEmpiricalBernsteinCS(spec)
			},
		}, nil
	case stream.KindSubgaussian:
		return Recommendation{}, fmt.Errorf("%w: no subgaussian sequence implemented", core.ErrUnsupported)
	default:
		return Recommendation{}, fmt.Errorf("%w: %q", core.ErrUnknownKind, spec.Kind)
	}
}

// RecommendAB selects the two-sample method for a spec. Both binary and
// general bounded arms run empirical Bernstein; the exact Bernoulli
// inversion has no two-sample composition.
func RecommendAB(spec stream.ABSpec) (ABRecommendation, error) {
	if err := spec.Validate(); err != nil {
		return ABRecommendation{}, err
	}
	switch spec.Kind {
	case stream.KindBernoulli, stream.KindBounded:
		return ABRecommendation{
			Method: MethodEmpiricalBernstein,
			Reason: "variance-adaptive arms for a bounded mean difference",
			New: func() (ports.PairedSequence, error) {
				return twosample.NewTwoSampleEmpiricalBernsteinCS(spec)
			},
		}, nil
	case stream.KindSubgaussian:
		return ABRecommendation{}, fmt.Errorf("%w: no subgaussian sequence implemented", core.ErrUnsupported)
	default:
		return ABRecommendation{}, fmt.Errorf("%w: %q", core.ErrUnknownKind, spec.Kind)
	}
}

// BuildCS constructs a one-sample sequence by explicit method name.
// Method "auto" defers to RecommendCS.
func BuildCS(method string, spec stream.StreamSpec) (ports.ConfidenceSequence, error) {
	switch method {
	case "", "auto":
		rec, err := RecommendCS(spec)
		if err != nil {
			return nil, err
		}
		return rec.New()
	case MethodHoeffding:
		return cs.NewHoeffdingCS(spec)
	case MethodEmpiricalBernstein:
		return cs.NewEmpiricalBernsteinCS(spec)
	case MethodBernoulli:
		return cs.NewBernoulliCS(spec)
	default:
		return nil, core.NewConfigError("method", fmt.Sprintf("unknown method %q", method))
	}
}

// BuildAB constructs a two-sample sequence by explicit method name.
// Method "auto" defers to RecommendAB. The exact Bernoulli method is
// one-sample only.
func BuildAB(method string, spec stream.ABSpec) (ports.PairedSequence, error) {
	switch method {
	case "", "auto":
		rec, err := RecommendAB(spec)
		if err != nil {
			return nil, err
		}
		return rec.New()
	case MethodHoeffding:
		return twosample.NewTwoSampleHoeffdingCS(spec)
	case MethodEmpiricalBernstein:
		return twosample.NewTwoSampleEmpiricalBernsteinCS(spec)
	default:
		return nil, core.NewConfigError("method", fmt.Sprintf("unknown method %q", method))
	}
}
