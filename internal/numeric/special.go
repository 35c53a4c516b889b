// Package numeric provides the special-function kernel shared by the
// confidence sequences and e-processes. It is a thin, domain-named layer
// over gonum so the engines never touch distribution objects directly.
package numeric

import (
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// LogBeta returns ln B(a, b).
func LogBeta(a, b float64) float64 {
	return mathext.Lbeta(a, b)
}

// RegIncBeta returns the regularized incomplete beta function I_x(a, b),
// the CDF of a Beta(a, b) at x.
func RegIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return mathext.RegIncBeta(a, b, x)
}

// BetaQuantile returns the p-quantile of a Beta(a, b) distribution.
// Scenario generators sample by pushing uniforms through this.
func BetaQuantile(p, a, b float64) float64 {
	return distuv.Beta{Alpha: a, Beta: b}.Quantile(p)
}

// NormalQuantile returns the p-quantile of the standard normal.
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}
