package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors
	ErrConfig          = errors.New("invalid configuration")
	ErrInvalidAlpha    = fmt.Errorf("%w: alpha out of (0, 1)", ErrConfig)
	ErrInvalidSupport  = fmt.Errorf("%w: support bounds", ErrConfig)
	ErrUnknownKind     = fmt.Errorf("%w: unknown stream kind", ErrConfig)
	ErrUnknownClipMode = fmt.Errorf("%w: unknown clip mode", ErrConfig)
	ErrInvalidArm      = fmt.Errorf("%w: unknown arm label", ErrConfig)
	ErrInvalidPrior    = fmt.Errorf("%w: prior parameters", ErrConfig)
	ErrUnsupported     = fmt.Errorf("%w: unsupported method", ErrConfig)

	// Assumption violations: the stream broke the declared model
	ErrAssumptionViolation = errors.New("assumption violation")
	ErrOutOfRange          = fmt.Errorf("%w: observation outside declared support", ErrAssumptionViolation)
	ErrNonBinary           = fmt.Errorf("%w: non-binary observation on bernoulli stream", ErrAssumptionViolation)
)

// Error constructors with context
func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfig, field, reason)
}

func NewOutOfRangeError(x, lo, hi float64) error {
	return fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, x, lo, hi)
}

func NewNonBinaryError(x float64) error {
	return fmt.Errorf("%w: got %g", ErrNonBinary, x)
}

func NewInvalidArmError(arm string) error {
	return fmt.Errorf("%w: %q (want \"A\" or \"B\")", ErrInvalidArm, arm)
}

// Error checking helpers
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

func IsAssumptionViolation(err error) bool {
	return errors.Is(err, ErrAssumptionViolation)
}
