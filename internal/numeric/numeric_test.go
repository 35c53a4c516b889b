package numeric

import (
	"errors"
	"math"
	"testing"
)

func TestLogBeta_KnownValues(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{1, 1, 0},                 // B(1,1) = 1
		{2, 3, math.Log(1.0 / 12)}, // B(2,3) = 1/12
		{0.5, 0.5, math.Log(math.Pi)},
	}
	for _, tt := range tests {
		if got := LogBeta(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("LogBeta(%g, %g) = %g, want %g", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRegIncBeta_UniformIsIdentity(t *testing.T) {
	for _, x := range []float64{0.1, 0.25, 0.5, 0.9} {
		if got := RegIncBeta(1, 1, x); math.Abs(got-x) > 1e-12 {
			t.Errorf("RegIncBeta(1, 1, %g) = %g, want %g", x, got, x)
		}
	}
}

func TestRegIncBeta_Edges(t *testing.T) {
	if got := RegIncBeta(2, 5, 0); got != 0 {
		t.Errorf("Expected 0 at x=0, got %g", got)
	}
	if got := RegIncBeta(2, 5, 1); got != 1 {
		t.Errorf("Expected 1 at x=1, got %g", got)
	}
	if got := RegIncBeta(2, 5, -0.5); got != 0 {
		t.Errorf("Expected clamp below, got %g", got)
	}
	if got := RegIncBeta(2, 5, 1.5); got != 1 {
		t.Errorf("Expected clamp above, got %g", got)
	}
}

func TestRegIncBeta_ReflectionIdentity(t *testing.T) {
	// I_x(a, b) = 1 - I_{1-x}(b, a)
	a, b := 2.5, 4.0
	for _, x := range []float64{0.2, 0.5, 0.7} {
		lhs := RegIncBeta(a, b, x)
		rhs := 1 - RegIncBeta(b, a, 1-x)
		if math.Abs(lhs-rhs) > 1e-12 {
			t.Errorf("Reflection identity failed at x=%g: %g vs %g", x, lhs, rhs)
		}
	}
}

func TestBetaQuantile_InvertsCDF(t *testing.T) {
	a, b := 0.5, 0.5
	for _, p := range []float64{0.05, 0.3, 0.5, 0.95} {
		x := BetaQuantile(p, a, b)
		if back := RegIncBeta(a, b, x); math.Abs(back-p) > 1e-9 {
			t.Errorf("CDF(Quantile(%g)) = %g", p, back)
		}
	}
}

func TestNormalQuantile_KnownValues(t *testing.T) {
	if got := NormalQuantile(0.5); math.Abs(got) > 1e-12 {
		t.Errorf("Median of standard normal should be 0, got %g", got)
	}
	if got := NormalQuantile(0.975); math.Abs(got-1.959963984540054) > 1e-9 {
		t.Errorf("Expected 97.5%% quantile 1.96, got %g", got)
	}
}

func TestBrent_FindsKnownRoots(t *testing.T) {
	tests := []struct {
		name string
		f    func(float64) float64
		a, b float64
		want float64
	}{
		{"sqrt2", func(x float64) float64 { return x*x - 2 }, 0, 2, math.Sqrt2},
		{"cos fixpoint", func(x float64) float64 { return math.Cos(x) - x }, 0, 1, 0.7390851332151607},
		{"cubic", func(x float64) float64 { return x*x*x - x - 2 }, 1, 2, 1.5213797068045676},
		{"log", func(x float64) float64 { return math.Log(x) }, 0.1, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Brent(tt.f, tt.a, tt.b)
			if err != nil {
				t.Fatalf("Expected root, got error %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected root %g, got %g", tt.want, got)
			}
		})
	}
}

func TestBrent_ExactEndpointRoot(t *testing.T) {
	got, err := Brent(func(x float64) float64 { return x - 1 }, 1, 2)
	if err != nil || got != 1 {
		t.Errorf("Expected endpoint root 1, got %g (err %v)", got, err)
	}
}

func TestBrent_NotBracketed(t *testing.T) {
	_, err := Brent(func(x float64) float64 { return x*x + 1 }, -1, 1)
	if !errors.Is(err, ErrNotBracketed) {
		t.Errorf("Expected ErrNotBracketed, got %v", err)
	}
}

func TestBrent_SteepFunction(t *testing.T) {
	// The bernoulli boundary search solves functions of this shape:
	// slowly varying in the middle, divergent at the edges.
	f := func(p float64) float64 {
		return 10*math.Log(p) - 5*math.Log(1-p) + 3
	}
	root, err := Brent(f, 1e-12, 1-1e-12)
	if err != nil {
		t.Fatalf("Expected root, got %v", err)
	}
	if math.Abs(f(root)) > 1e-8 {
		t.Errorf("Residual at root too large: f(%g) = %g", root, f(root))
	}
}
