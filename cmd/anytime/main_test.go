package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
	"goanytime/internal/config"
)

func TestBuildStoppingRule(t *testing.T) {
	if got := buildStoppingRule(nil); got != nil {
		t.Fatalf("Expected nil rule for nil config, got %q", got.Name)
	}
	if got := buildStoppingRule(&config.StoppingConfig{Type: "fixed"}); got != nil {
		t.Fatalf("Expected nil rule for fixed config, got %q", got.Name)
	}
	if got := buildStoppingRule(&config.StoppingConfig{}); got != nil {
		t.Fatalf("Expected nil rule for empty type, got %q", got.Name)
	}

	rule := buildStoppingRule(&config.StoppingConfig{Type: "exclude_threshold", Threshold: 0.5, Direction: "ge"})
	if rule == nil {
		t.Fatal("Expected a rule for exclude_threshold config")
	}
	if rule.Name != "exclude_ge_0.5" {
		t.Errorf("Expected name exclude_ge_0.5, got %q", rule.Name)
	}
	if !rule.Stop(stats.Interval{Lo: 0.6, Hi: 0.9}, 10) {
		t.Error("Expected stop when the interval sits above the threshold")
	}
	if rule.Stop(stats.Interval{Lo: 0.4, Hi: 0.9}, 10) {
		t.Error("Expected no stop while the interval straddles the threshold")
	}

	// Bare exclude_threshold defaults to both directions around zero.
	bare := buildStoppingRule(&config.StoppingConfig{Type: "exclude_threshold"})
	if bare == nil || bare.Name != "exclude_both_0" {
		t.Fatalf("Expected exclude_both_0 from bare config, got %+v", bare)
	}
	if !bare.Stop(stats.Interval{Lo: 0.1, Hi: 0.5}, 3) {
		t.Error("Expected stop once the interval excludes zero")
	}
	if bare.Stop(stats.Interval{Lo: -0.1, Hi: 0.5}, 3) {
		t.Error("Expected no stop while zero is inside the interval")
	}

	periodic := buildStoppingRule(&config.StoppingConfig{
		Type:  "periodic",
		Every: 10,
		Rule:  &config.StoppingConfig{Type: "exclude_threshold", Direction: "ge"},
	})
	if periodic == nil || periodic.Name != "periodic_10_exclude_ge_0" {
		t.Fatalf("Expected periodic_10_exclude_ge_0, got %+v", periodic)
	}
	iv := stats.Interval{Lo: 0.2, Hi: 0.6}
	if periodic.Stop(iv, 9) {
		t.Error("Expected the gated rule to stay quiet off schedule")
	}
	if !periodic.Stop(iv, 10) {
		t.Error("Expected the gated rule to fire on schedule")
	}

	// Bare periodic wraps the default inner rule every 50 observations.
	if got := buildStoppingRule(&config.StoppingConfig{Type: "periodic"}); got == nil || got.Name != "periodic_50_exclude_both_0" {
		t.Fatalf("Expected periodic_50_exclude_both_0 from bare periodic, got %+v", got)
	}
	// A periodic wrapper around a fixed rule has nothing to check.
	if got := buildStoppingRule(&config.StoppingConfig{Type: "periodic", Rule: &config.StoppingConfig{Type: "fixed"}}); got != nil {
		t.Fatalf("Expected nil for periodic over fixed, got %q", got.Name)
	}
}

func TestMaterializeScenario(t *testing.T) {
	fallback := stream.Support{Lo: 0, Hi: 1}
	mean := 0.4
	lift := 0.1
	yes := true

	sc := materializeScenario(config.ScenarioConfig{Name: "base", TrueMean: &mean, NMax: 100, Seed: 7}, fallback, false)
	if sc.Support != fallback {
		t.Errorf("Expected fallback support, got %+v", sc.Support)
	}
	if sc.TrueMean != 0.4 || sc.NMax != 100 || sc.Seed != 7 {
		t.Errorf("Expected config fields copied through, got %+v", sc)
	}
	if sc.IsNull {
		t.Error("Expected one-sample scenarios to default to non-null")
	}

	sc = materializeScenario(config.ScenarioConfig{Name: "wide", Support: []float64{-2, 2}}, fallback, false)
	if sc.Support.Lo != -2 || sc.Support.Hi != 2 {
		t.Errorf("Expected the scenario support to override the fallback, got %+v", sc.Support)
	}

	sc = materializeScenario(config.ScenarioConfig{Name: "flagged", IsNull: &yes}, fallback, false)
	if !sc.IsNull {
		t.Error("Expected an explicit is_null to win")
	}

	// Two-sample scenarios are null exactly when the lift is zero.
	sc = materializeScenario(config.ScenarioConfig{Name: "ab_null", TrueMean: &mean}, fallback, true)
	if !sc.IsNull {
		t.Error("Expected zero lift to imply a null two-sample scenario")
	}
	sc = materializeScenario(config.ScenarioConfig{Name: "ab_alt", TrueLift: &lift}, fallback, true)
	if sc.IsNull {
		t.Error("Expected a nonzero lift to imply a non-null scenario")
	}
}

func TestFactories(t *testing.T) {
	oneSpec, err := stream.NewStreamSpec(0.05, stream.Support{Lo: 0, Hi: 1}, stream.KindBernoulli, true)
	if err != nil {
		t.Fatalf("Expected valid spec, got %v", err)
	}
	abSpec, err := stream.NewABSpec(0.05, stream.Support{Lo: 0, Hi: 1}, stream.KindBernoulli, true)
	if err != nil {
		t.Fatalf("Expected valid spec, got %v", err)
	}

	for _, method := range []string{"hoeffding", "empirical_bernstein", "bernoulli"} {
		factory, err := oneSampleFactory(method)
		if err != nil {
			t.Fatalf("Expected a factory for %q, got %v", method, err)
		}
		if _, err := factory(oneSpec); err != nil {
			t.Errorf("Expected factory %q to build, got %v", method, err)
		}
	}
	if _, err := oneSampleFactory("ttest"); !core.IsConfigError(err) {
		t.Errorf("Expected config error for unknown one-sample method, got %v", err)
	}

	for _, method := range []string{"hoeffding", "empirical_bernstein"} {
		factory, err := twoSampleFactory(method)
		if err != nil {
			t.Fatalf("Expected a factory for %q, got %v", method, err)
		}
		if _, err := factory(abSpec); err != nil {
			t.Errorf("Expected factory %q to build, got %v", method, err)
		}
	}
	if _, err := twoSampleFactory("bernoulli"); !core.IsConfigError(err) {
		t.Errorf("Expected config error for bernoulli as a two-sample method, got %v", err)
	}
}

func TestDiagnosticsSummary(t *testing.T) {
	if got := diagnosticsSummary(nil); got != "" {
		t.Errorf("Expected empty summary for nil diagnostics, got %q", got)
	}
	if got := diagnosticsSuffix(nil); got != "" {
		t.Errorf("Expected empty suffix for nil diagnostics, got %q", got)
	}

	d := &stats.Diagnostics{
		Tier:            stats.TierClipped,
		MissingCount:    2,
		OutOfRangeCount: 1,
		ClippedCount:    3,
	}
	want := "tier=CLIPPED, missing=2, out_of_range=1, clipped=3, drift=false"
	if got := diagnosticsSummary(d); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if got := diagnosticsSuffix(d); got != " ("+want+")" {
		t.Errorf("Expected parenthesized suffix, got %q", got)
	}
}

func TestNewIntervalEntry(t *testing.T) {
	iv := stats.Interval{T: 10, Estimate: 0.5, Lo: 0.25, Hi: 0.75, Tier: stats.TierGuaranteed}
	entry := newIntervalEntry(iv)
	if entry.T != 10 || entry.Width != 0.5 {
		t.Errorf("Expected t=10 width=0.5, got t=%d width=%v", entry.T, entry.Width)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Expected entry to marshal, got %v", err)
	}
	if !strings.Contains(string(data), `"tier":"GUARANTEED"`) {
		t.Errorf("Expected tier by name in JSON, got %s", data)
	}
	if strings.Contains(string(data), "diagnostics") {
		t.Errorf("Expected diagnostics omitted when nil, got %s", data)
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected to write %s, got %v", path, err)
	}
}

// singleRunDir returns the one run directory created under base.
func singleRunDir(t *testing.T, base string) string {
	t.Helper()
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("Expected output dir to exist, got %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected exactly one run dir, got %d", len(entries))
	}
	return filepath.Join(base, entries[0].Name())
}

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Expected results file, got %v", err)
	}
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Expected valid JSONL, got %v in %q", err, line)
		}
		out = append(out, entry)
	}
	return out
}

func TestRunMean_EndToEnd(t *testing.T) {
	dir := t.TempDir()

	var rows strings.Builder
	rows.WriteString("value\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&rows, "%d\n", i%2)
	}
	csvPath := filepath.Join(dir, "data.csv")
	writeTestFile(t, csvPath, rows.String())

	cfgPath := filepath.Join(dir, "run.yaml")
	writeTestFile(t, cfgPath, fmt.Sprintf(`alpha: 0.05
support: [0, 1]
kind: bernoulli
name: trial
method: hoeffding
input: %q
column: value
report_every: 20
`, csvPath))

	out := filepath.Join(dir, "out")
	if err := runMean(cfgPath, out); err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}

	runDir := singleRunDir(t, out)
	entries := readJSONLines(t, filepath.Join(runDir, "results.jsonl"))
	if len(entries) != 40 {
		t.Fatalf("Expected 40 logged intervals, got %d", len(entries))
	}
	if got := entries[0]["t"].(float64); got != 1 {
		t.Errorf("Expected first entry at t=1, got %v", got)
	}
	if got := entries[39]["t"].(float64); got != 40 {
		t.Errorf("Expected final entry at t=40, got %v", got)
	}
	if got := entries[39]["tier"]; got != "GUARANTEED" {
		t.Errorf("Expected full guarantee on a clean stream, got %v", got)
	}

	if _, err := os.Stat(filepath.Join(runDir, "manifest.json")); err != nil {
		t.Errorf("Expected a manifest, got %v", err)
	}
}

func TestRunMean_StoppingRuleEndsEarly(t *testing.T) {
	dir := t.TempDir()

	var rows strings.Builder
	rows.WriteString("value\n")
	for i := 0; i < 200; i++ {
		rows.WriteString("1\n")
	}
	csvPath := filepath.Join(dir, "data.csv")
	writeTestFile(t, csvPath, rows.String())

	cfgPath := filepath.Join(dir, "run.yaml")
	writeTestFile(t, cfgPath, fmt.Sprintf(`alpha: 0.05
support: [0, 1]
kind: bernoulli
method: hoeffding
input: %q
stopping_rule:
  type: exclude_threshold
  threshold: 0.5
  direction: ge
`, csvPath))

	out := filepath.Join(dir, "out")
	if err := runMean(cfgPath, out); err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}

	runDir := singleRunDir(t, out)
	entries := readJSONLines(t, filepath.Join(runDir, "results.jsonl"))
	if len(entries) == 0 || len(entries) >= 200 {
		t.Fatalf("Expected the rule to stop before the data ran out, got %d entries", len(entries))
	}
	last := entries[len(entries)-1]
	if lo := last["lo"].(float64); lo <= 0.5 {
		t.Errorf("Expected the final interval to sit above 0.5, got lo=%v", lo)
	}
}

func TestRunABTest_EndToEnd(t *testing.T) {
	dir := t.TempDir()

	var rows strings.Builder
	rows.WriteString("arm,value\n")
	for i := 0; i < 30; i++ {
		rows.WriteString("A,0\nB,1\n")
	}
	csvPath := filepath.Join(dir, "data.csv")
	writeTestFile(t, csvPath, rows.String())

	cfgPath := filepath.Join(dir, "ab.yaml")
	writeTestFile(t, cfgPath, fmt.Sprintf(`alpha: 0.05
support: [0, 1]
kind: bernoulli
method: empirical_bernstein
input: %q
arm_column: arm
value_column: value
evalue: true
delta0: 0
`, csvPath))

	out := filepath.Join(dir, "out")
	if err := runABTest(cfgPath, out); err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}

	runDir := singleRunDir(t, out)
	entries := readJSONLines(t, filepath.Join(runDir, "results.jsonl"))
	// The first row sees only arm A, so its interval is vacuous and
	// skipped; every later row logs.
	if len(entries) != 59 {
		t.Fatalf("Expected 59 logged intervals, got %d", len(entries))
	}
	if got := entries[0]["t"].(float64); got != 2 {
		t.Errorf("Expected first entry at t=2, got %v", got)
	}
	last := entries[len(entries)-1]
	if got := last["t"].(float64); got != 60 {
		t.Errorf("Expected final entry at t=60, got %v", got)
	}
	if est := last["estimate"].(float64); est != 1 {
		t.Errorf("Expected lift estimate 1 for perfectly separated arms, got %v", est)
	}
	if _, ok := last["e_value"]; !ok {
		t.Error("Expected e_value in entries when the e-process is on")
	}
	if dec, ok := last["e_decision"].(bool); !ok || !dec {
		t.Errorf("Expected the e-process to reject zero lift by t=60, got %v", last["e_decision"])
	}

	if _, err := os.Stat(filepath.Join(runDir, "manifest.json")); err != nil {
		t.Errorf("Expected a manifest, got %v", err)
	}
}

func TestRunAtlas_EndToEnd(t *testing.T) {
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "atlas.yaml")
	writeTestFile(t, cfgPath, `n_sim: 4
one_sample:
  spec:
    alpha: 0.05
    support: [0, 1]
    kind: bernoulli
  methods: [hoeffding]
  scenarios:
    - name: nullcase
      true_mean: 0.5
      n_max: 25
      is_null: true
`)

	out := filepath.Join(dir, "out")
	if err := runAtlas(context.Background(), cfgPath, out, 0); err != nil {
		t.Fatalf("Expected atlas run to succeed, got %v", err)
	}

	runDir := singleRunDir(t, out)
	report, err := os.ReadFile(filepath.Join(runDir, "report_one_sample.md"))
	if err != nil {
		t.Fatalf("Expected a one-sample report, got %v", err)
	}
	for _, want := range []string{"hoeffding", "nullcase"} {
		if !strings.Contains(string(report), want) {
			t.Errorf("Expected report to mention %q", want)
		}
	}

	csvData, err := os.ReadFile(filepath.Join(runDir, "atlas_one_sample.csv"))
	if err != nil {
		t.Fatalf("Expected a CSV export, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected header plus one row, got %d lines", len(lines))
	}

	if _, err := os.Stat(filepath.Join(runDir, "atlas_one_sample.xlsx")); err != nil {
		t.Errorf("Expected an XLSX export, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "manifest.json")); err != nil {
		t.Errorf("Expected a manifest, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "report_two_sample.md")); !os.IsNotExist(err) {
		t.Errorf("Expected no two-sample report without a two_sample section, got %v", err)
	}
}

// The sims flag overrides n_sim so quick smoke runs do not need a
// config edit.
func TestRunAtlas_SimsOverride(t *testing.T) {
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "atlas.yaml")
	writeTestFile(t, cfgPath, `n_sim: 500
two_sample:
  spec:
    alpha: 0.05
    support: [0, 1]
    kind: bernoulli
  methods: [hoeffding]
  scenarios:
    - name: lifted
      true_mean: 0.5
      true_lift: 0.4
      n_max: 30
`)

	out := filepath.Join(dir, "out")
	if err := runAtlas(context.Background(), cfgPath, out, 3); err != nil {
		t.Fatalf("Expected atlas run to succeed, got %v", err)
	}

	runDir := singleRunDir(t, out)
	if _, err := os.Stat(filepath.Join(runDir, "report_two_sample.md")); err != nil {
		t.Fatalf("Expected a two-sample report, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "report_one_sample.md")); !os.IsNotExist(err) {
		t.Errorf("Expected no one-sample report without a one_sample section, got %v", err)
	}
}
