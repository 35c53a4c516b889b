package ports

import "goanytime/domain/stats"

// ConfidenceSequence is an anytime-valid interval estimator over a single
// stream. Interval may be read after every Update without spending alpha.
type ConfidenceSequence interface {
	// Update folds one observation into the sequence. Assumption
	// violations surface here; the sequence stays usable afterwards.
	Update(x float64) error

	// Interval returns the current confidence interval snapshot.
	Interval() stats.Interval

	// Reset returns the sequence to its initial state.
	Reset()
}

// EValueProcess is an anytime-valid evidence accumulator against a fixed
// null hypothesis.
type EValueProcess interface {
	// Update folds one observation into the process.
	Update(x float64) error

	// EValue returns the current evidence snapshot.
	EValue() stats.EValue

	// Reset returns the process to its initial state.
	Reset()
}

// PairedSequence estimates a contrast between two labeled arms.
type PairedSequence interface {
	// UpdateArm folds one observation from arm "A" or "B".
	UpdateArm(arm string, x float64) error

	// Interval returns the current interval for the contrast B - A.
	Interval() stats.Interval

	// Reset returns both arms to their initial state.
	Reset()
}

// PairedEValueProcess accumulates evidence about a contrast between two
// labeled arms.
type PairedEValueProcess interface {
	// UpdateArm folds one observation from arm "A" or "B".
	UpdateArm(arm string, x float64) error

	// EValue returns the current evidence snapshot for the contrast.
	EValue() stats.EValue

	// Reset returns both arms to their initial state.
	Reset()
}
