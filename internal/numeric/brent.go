package numeric

import (
	"errors"
	"math"
)

var (
	// ErrNotBracketed means f(a) and f(b) share a sign.
	ErrNotBracketed = errors.New("root not bracketed")
	// ErrNoConvergence means the iteration budget ran out.
	ErrNoConvergence = errors.New("root finder did not converge")
)

const (
	brentMaxIter = 100
	brentXTol    = 2e-12
	machEps      = 2.220446049250313e-16
)

// Brent finds a root of f in [a, b] by Brent's method: bisection for
// safety, secant and inverse quadratic interpolation for speed. The
// endpoints must bracket a sign change.
func Brent(f func(float64) float64, a, b float64) (float64, error) {
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, ErrNotBracketed
	}

	c, fc := a, fa
	d := b - a
	e := d

	for i := 0; i < brentMaxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol := 2*machEps*math.Abs(b) + 0.5*brentXTol
		mid := 0.5 * (c - b)
		if math.Abs(mid) <= tol || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol && math.Abs(fa) > math.Abs(fb) {
			// Interpolation step: secant when only two points are
			// distinct, inverse quadratic otherwise.
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * mid * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*mid*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*mid*q-math.Abs(tol*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = mid
				e = d
			}
		} else {
			d = mid
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol {
			b += d
		} else {
			b += math.Copysign(tol, mid)
		}
		fb = f(b)
	}
	return b, ErrNoConvergence
}
