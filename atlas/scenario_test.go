package atlas

import (
	"math"
	"strings"
	"testing"

	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
)

func bernoulliScenario(name string, mean float64, isNull bool) Scenario {
	return Scenario{
		Name:         name,
		TrueMean:     mean,
		Distribution: DistBernoulli,
		Support:      stream.Support{Lo: 0, Hi: 1},
		NMax:         200,
		Seed:         42,
		IsNull:       isNull,
	}
}

func TestScenarioValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr bool
	}{
		{"valid", func(sc *Scenario) {}, false},
		{"missing name", func(sc *Scenario) { sc.Name = "" }, true},
		{"zero horizon", func(sc *Scenario) { sc.NMax = 0 }, true},
		{"inverted support", func(sc *Scenario) { sc.Support = stream.Support{Lo: 1, Hi: 0} }, true},
		{"bernoulli off unit support", func(sc *Scenario) { sc.Support = stream.Support{Lo: 0, Hi: 2} }, true},
		{"uniform off unit support", func(sc *Scenario) {
			sc.Distribution = DistUniform
			sc.Support = stream.Support{Lo: 0, Hi: 2}
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := bernoulliScenario("base", 0.5, false)
			tc.mutate(&sc)
			err := sc.Validate()
			if tc.wantErr && !core.IsConfigError(err) {
				t.Errorf("Expected config error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected valid scenario, got %v", err)
			}
		})
	}
}

func TestExcludeThreshold_Directions(t *testing.T) {
	above := stats.Interval{Lo: 0.6, Hi: 0.9}
	below := stats.Interval{Lo: 0.1, Hi: 0.4}
	straddling := stats.Interval{Lo: 0.3, Hi: 0.7}

	cases := []struct {
		direction Direction
		iv        stats.Interval
		want      bool
	}{
		{DirGE, above, true},
		{DirGE, below, false},
		{DirGE, straddling, false},
		{DirLE, below, true},
		{DirLE, above, false},
		{DirLE, straddling, false},
		{DirBoth, above, true},
		{DirBoth, below, true},
		{DirBoth, straddling, false},
	}
	for _, tc := range cases {
		rule := ExcludeThreshold(0.5, tc.direction)
		if got := rule.Stop(tc.iv, 10); got != tc.want {
			t.Errorf("%s on [%g, %g]: got %v, want %v", tc.direction, tc.iv.Lo, tc.iv.Hi, got, tc.want)
		}
	}
}

func TestExcludeThreshold_NeverFiresOnVacuous(t *testing.T) {
	rule := ExcludeThreshold(0.0, DirBoth)
	vacuous := stats.Interval{Lo: math.Inf(-1), Hi: math.Inf(1)}
	if rule.Stop(vacuous, 1) {
		t.Error("Vacuous interval excludes nothing, rule must not fire")
	}
}

func TestPeriodic_GatesInnerRule(t *testing.T) {
	always := StoppingRule{Name: "always", Stop: func(stats.Interval, int) bool { return true }}
	rule := Periodic(5, always)

	iv := stats.Interval{Lo: 0.6, Hi: 0.9}
	for _, tc := range []struct {
		t    int
		want bool
	}{
		{1, false}, {4, false}, {5, true}, {7, false}, {10, true},
	} {
		if got := rule.Stop(iv, tc.t); got != tc.want {
			t.Errorf("t=%d: got %v, want %v", tc.t, got, tc.want)
		}
	}
	if !strings.Contains(rule.Name, "always") {
		t.Errorf("Periodic rule name should carry the inner name, got %q", rule.Name)
	}
}

func TestPeriodic_ClampsEvery(t *testing.T) {
	always := StoppingRule{Name: "always", Stop: func(stats.Interval, int) bool { return true }}
	rule := Periodic(0, always)
	if !rule.Stop(stats.Interval{}, 1) {
		t.Error("Every below 1 should behave as every observation")
	}
}
