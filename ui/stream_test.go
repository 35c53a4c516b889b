package ui

import (
	"math"
	"net/url"
	"testing"

	"goanytime/domain/core"
	"goanytime/recommend"
)

func TestParseDemoParams_Defaults(t *testing.T) {
	p, err := parseDemoParams(url.Values{})
	if err != nil {
		t.Fatalf("Expected defaults to parse, got %v", err)
	}
	if p != defaultDemoParams() {
		t.Errorf("Expected default params, got %+v", p)
	}
}

func TestParseDemoParams_Overrides(t *testing.T) {
	q := url.Values{}
	q.Set("pA", "0.1")
	q.Set("pB", "0.9")
	q.Set("alpha", "0.10")
	q.Set("method", recommend.MethodHoeffding)
	q.Set("nmax", "250")
	q.Set("rate", "50")
	q.Set("seed", "99")

	p, err := parseDemoParams(q)
	if err != nil {
		t.Fatalf("Expected overrides to parse, got %v", err)
	}
	if p.PA != 0.1 || p.PB != 0.9 {
		t.Errorf("Expected rates 0.1/0.9, got %g/%g", p.PA, p.PB)
	}
	if p.Alpha != 0.10 {
		t.Errorf("Expected alpha 0.10, got %g", p.Alpha)
	}
	if p.Method != recommend.MethodHoeffding {
		t.Errorf("Expected hoeffding, got %q", p.Method)
	}
	if p.NMax != 250 || p.Rate != 50 || p.Seed != 99 {
		t.Errorf("Expected nmax/rate/seed 250/50/99, got %d/%d/%d", p.NMax, p.Rate, p.Seed)
	}
}

func TestParseDemoParams_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric control rate", "pA", "abc"},
		{"control rate above one", "pA", "1.5"},
		{"negative treatment rate", "pB", "-0.1"},
		{"non-numeric alpha", "alpha", "lots"},
		{"zero horizon", "nmax", "0"},
		{"huge horizon", "nmax", "100000"},
		{"zero rate", "rate", "0"},
		{"excessive rate", "rate", "500"},
		{"non-integer seed", "seed", "7.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := url.Values{}
			q.Set(tc.key, tc.value)
			_, err := parseDemoParams(q)
			if err == nil {
				t.Fatalf("Expected error for %s=%s", tc.key, tc.value)
			}
			if !core.IsConfigError(err) {
				t.Errorf("Expected config error, got %v", err)
			}
		})
	}
}

func TestNewSimulation_Rejects(t *testing.T) {
	bad := defaultDemoParams()
	bad.Method = "ttest"
	if _, err := newSimulation(bad); !core.IsConfigError(err) {
		t.Errorf("Expected config error for unknown method, got %v", err)
	}

	bad = defaultDemoParams()
	bad.Alpha = 0
	if _, err := newSimulation(bad); !core.IsConfigError(err) {
		t.Errorf("Expected config error for alpha 0, got %v", err)
	}
}

func TestSimulation_Deterministic(t *testing.T) {
	params := defaultDemoParams()
	params.Seed = 7
	params.NMax = 60

	first, err := newSimulation(params)
	if err != nil {
		t.Fatalf("Failed to build simulation: %v", err)
	}
	second, err := newSimulation(params)
	if err != nil {
		t.Fatalf("Failed to build simulation: %v", err)
	}
	for i := 0; i < params.NMax; i++ {
		a, err := first.step()
		if err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
		b, err := second.step()
		if err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
		if a != b {
			t.Fatalf("Expected identical snapshots at step %d, got %+v vs %+v", i, a, b)
		}
	}
}

func TestSimulation_StepProgress(t *testing.T) {
	params := defaultDemoParams()
	params.NMax = 50

	sim, err := newSimulation(params)
	if err != nil {
		t.Fatalf("Failed to build simulation: %v", err)
	}

	var early, last snapshot
	for i := 0; i < params.NMax; i++ {
		snap, err := sim.step()
		if err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
		if i == 0 {
			if snap.T != 2 {
				t.Errorf("Expected first snapshot at t=2, got %d", snap.T)
			}
			if snap.Done {
				t.Error("Expected first snapshot not done")
			}
		}
		if i == 4 {
			early = snap
		}
		if snap.Lo > snap.Estimate || snap.Estimate > snap.Hi {
			t.Fatalf("Expected estimate inside interval at t=%d, got %g not in [%g, %g]",
				snap.T, snap.Estimate, snap.Lo, snap.Hi)
		}
		if snap.EValue <= 0 {
			t.Fatalf("Expected positive e-value at t=%d, got %g", snap.T, snap.EValue)
		}
		if snap.NaiveP < 0 || snap.NaiveP > 1 {
			t.Fatalf("Expected naive p in [0, 1], got %g", snap.NaiveP)
		}
		last = snap
	}

	if !last.Done {
		t.Error("Expected final snapshot marked done")
	}
	if last.T != 2*params.NMax {
		t.Errorf("Expected final t=%d, got %d", 2*params.NMax, last.T)
	}
	if last.Width >= early.Width {
		t.Errorf("Expected interval to shrink, width went %g -> %g", early.Width, last.Width)
	}
	if last.Tier != "GUARANTEED" {
		t.Errorf("Expected GUARANTEED tier on clean stream, got %q", last.Tier)
	}
	if math.Abs(last.TrueLift-0.05) > 1e-9 {
		t.Errorf("Expected true lift 0.05, got %g", last.TrueLift)
	}
}

func TestSimulation_DetectsLargeLift(t *testing.T) {
	params := defaultDemoParams()
	params.PA = 0.2
	params.PB = 0.8
	params.Method = recommend.MethodHoeffding
	params.NMax = 400

	sim, err := newSimulation(params)
	if err != nil {
		t.Fatalf("Failed to build simulation: %v", err)
	}

	var last snapshot
	for i := 0; i < params.NMax; i++ {
		if last, err = sim.step(); err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
	}

	if last.EStopAt <= 0 || last.EStopAt >= last.T {
		t.Errorf("Expected e-process decision strictly before the horizon, got e_stop_at=%d t=%d",
			last.EStopAt, last.T)
	}
	if !last.EDecision {
		t.Error("Expected e-process decision to hold at the horizon")
	}
	if last.NaiveStopAt <= 0 {
		t.Error("Expected the naive test to fire on a 0.6 lift")
	}
	if last.Lo <= 0 {
		t.Errorf("Expected final interval to exclude zero, got lo=%g", last.Lo)
	}
}

func TestPooledZTest(t *testing.T) {
	if p := pooledZTest(0, 0, 0, 0); p != 1 {
		t.Errorf("Expected p=1 with no data, got %g", p)
	}
	if p := pooledZTest(0, 0, 50, 50); p != 1 {
		t.Errorf("Expected p=1 on degenerate pool, got %g", p)
	}
	if p := pooledZTest(25, 25, 50, 50); p != 1 {
		t.Errorf("Expected p=1 on identical arms, got %g", p)
	}
	if p := pooledZTest(10, 90, 100, 100); p > 1e-9 {
		t.Errorf("Expected vanishing p on extreme imbalance, got %g", p)
	}
	p := pooledZTest(45, 55, 100, 100)
	if p < 0.14 || p > 0.18 {
		t.Errorf("Expected p near 0.157 for z=1.41, got %g", p)
	}
}
