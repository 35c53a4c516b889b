// Command anytime runs peeking-safe streaming inference: one-sample
// and A/B confidence sequences over CSV data, the Monte Carlo
// benchmark suite, and the interactive demo server.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"goanytime/adapters/csvfeed"
	"goanytime/atlas"
	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
	"goanytime/evalue"
	"goanytime/internal"
	"goanytime/internal/config"
	"goanytime/internal/runlog"
	"goanytime/ports"
	"goanytime/recommend"
	"goanytime/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		internal.DefaultLogger.Debug("no .env file found, using system environment")
	}

	rootCmd := &cobra.Command{
		Use:   "anytime",
		Short: "Peeking-safe streaming inference for A/B tests and online metrics",
	}

	rootCmd.AddCommand(
		newMeanCmd(),
		newABTestCmd(),
		newAtlasCmd(),
		newDemoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMeanCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "mean [config.yaml]",
		Short: "Run a one-sample confidence sequence over CSV data",
		Long: `Stream a CSV column through an anytime-valid confidence sequence.

The interval may be read after every row without spending the error
budget, so the run can stop the moment it is conclusive.

Example: anytime mean run.yaml --output runs/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMean(args[0], output)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Directory for run artifacts (JSONL log and manifest)")

	return cmd
}

func newABTestCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "abtest [config.yaml]",
		Short: "Run a two-sample A/B confidence sequence over CSV data",
		Long: `Stream labeled A/B rows through a two-sample confidence sequence
for the lift (mean B minus mean A), optionally alongside a
mean-difference e-process when the config sets evalue: true.

Example: anytime abtest ab.yaml --output runs/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runABTest(args[0], output)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Directory for run artifacts (JSONL log and manifest)")

	return cmd
}

func newAtlasCmd() *cobra.Command {
	var output string
	var sims int

	cmd := &cobra.Command{
		Use:   "atlas [config.yaml]",
		Short: "Run Monte Carlo benchmarks and write comparison reports",
		Long: `Benchmark the confidence sequence methods across data scenarios.

Without a config a small built-in suite runs. With --output the
reports land in a timestamped run directory together with CSV and
XLSX exports and a manifest.

Example: anytime atlas atlas.yaml --output runs/ --sims 500`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := ""
			if len(args) == 1 {
				configPath = args[0]
			}
			return runAtlas(cmd.Context(), configPath, output, sims)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Directory for benchmark artifacts")
	cmd.Flags().IntVar(&sims, "sims", 0, "Override the number of simulations per scenario")

	return cmd
}

func newDemoCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve the interactive peeking demo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ui.NewApp(ui.Config{Addr: addr})
			if err != nil {
				return err
			}
			return app.Start()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")

	return cmd
}

func runMean(configPath, output string) error {
	cfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		return err
	}
	spec, err := cfg.Spec.Stream()
	if err != nil {
		return err
	}

	seq, err := buildOneSample(cfg.Method, spec)
	if err != nil {
		return err
	}

	name := spec.Name
	if name == "" {
		name = "mean"
	}
	runDir, logw, err := openRunDir(output, name)
	if err != nil {
		return err
	}
	if logw != nil {
		defer logw.Close()
	}

	reader, err := csvfeed.NewReader(cfg.Input, csvfeed.OneSampleSchema(cfg.Column))
	if err != nil {
		return err
	}
	rule := buildStoppingRule(cfg.Stopping)

	lastReport := 0
	err = reader.Each(func(row csvfeed.Row, line int) error {
		x, ok := reader.Numeric(row, cfg.Column)
		if !ok {
			x = math.NaN() // fold into the stream so diagnostics count it
		}
		if err := seq.Update(x); err != nil {
			return fmt.Errorf("row %d: %w", line, err)
		}
		iv := seq.Interval()
		if logw != nil && !iv.IsVacuous() {
			if err := logw.Log(newIntervalEntry(iv)); err != nil {
				return err
			}
		}
		if cfg.ReportEvery > 0 && iv.T > 0 && iv.T%cfg.ReportEvery == 0 && iv.T != lastReport {
			lastReport = iv.T
			fmt.Printf("t=%d: estimate=%.4f, [%.4f, %.4f]%s\n",
				iv.T, iv.Estimate, iv.Lo, iv.Hi, diagnosticsSuffix(iv.Diagnostics))
		}
		if rule != nil && rule.Stop(iv, iv.T) {
			fmt.Printf("Stopping rule %s fired at t=%d\n", rule.Name, iv.T)
			return csvfeed.ErrStop
		}
		return nil
	})
	if err != nil {
		return err
	}

	iv := seq.Interval()
	fmt.Printf("\nFinal result at t=%d:\n", iv.T)
	fmt.Printf("  Estimate: %.4f\n", iv.Estimate)
	fmt.Printf("  %.0f%% CI: [%.4f, %.4f]\n", 100*(1-spec.Alpha), iv.Lo, iv.Hi)
	fmt.Printf("  Width: %.4f\n", iv.Width())
	fmt.Printf("  Tier: %s\n", iv.Tier)
	if s := diagnosticsSummary(iv.Diagnostics); s != "" {
		fmt.Printf("  Diagnostics: %s\n", s)
	}

	return finishRun(runDir, cfg)
}

func runABTest(configPath, output string) error {
	cfg, err := config.LoadABConfig(configPath)
	if err != nil {
		return err
	}
	spec, err := cfg.Spec.AB()
	if err != nil {
		return err
	}

	seq, err := buildTwoSample(cfg.Method, spec)
	if err != nil {
		return err
	}
	var eproc ports.PairedEValueProcess
	if cfg.EValue {
		eproc, err = evalue.NewTwoSampleMeanMixtureE(spec, cfg.Delta0, evalue.Side(cfg.Side))
		if err != nil {
			return err
		}
	}

	name := spec.Name
	if name == "" {
		name = "abtest"
	}
	runDir, logw, err := openRunDir(output, name)
	if err != nil {
		return err
	}
	if logw != nil {
		defer logw.Close()
	}

	reader, err := csvfeed.NewReader(cfg.Input, csvfeed.ABTestSchema(cfg.ArmColumn, cfg.ValueColumn))
	if err != nil {
		return err
	}
	rule := buildStoppingRule(cfg.Stopping)

	eAnnounced := false
	lastReport := 0
	err = reader.Each(func(row csvfeed.Row, line int) error {
		arm := strings.TrimSpace(row[cfg.ArmColumn])
		x, ok := reader.Numeric(row, cfg.ValueColumn)
		if !ok {
			x = math.NaN()
		}
		if err := seq.UpdateArm(arm, x); err != nil {
			return fmt.Errorf("row %d: %w", line, err)
		}
		if eproc != nil {
			if err := eproc.UpdateArm(arm, x); err != nil {
				return fmt.Errorf("row %d: %w", line, err)
			}
		}
		iv := seq.Interval()
		if logw != nil && !iv.IsVacuous() {
			entry := abEntry{intervalEntry: newIntervalEntry(iv)}
			if eproc != nil {
				ev := eproc.EValue()
				entry.EValue = &ev.E
				entry.EDecision = &ev.Decision
			}
			if err := logw.Log(entry); err != nil {
				return err
			}
		}
		if eproc != nil && !eAnnounced {
			if ev := eproc.EValue(); ev.Decision {
				eAnnounced = true
				fmt.Printf("E-process rejects delta0=%g at t=%d (e=%.4g)\n", cfg.Delta0, iv.T, ev.E)
			}
		}
		if cfg.ReportEvery > 0 && iv.T > 0 && iv.T%cfg.ReportEvery == 0 && iv.T != lastReport {
			lastReport = iv.T
			fmt.Printf("t=%d: lift=%.4f, [%.4f, %.4f]%s\n",
				iv.T, iv.Estimate, iv.Lo, iv.Hi, diagnosticsSuffix(iv.Diagnostics))
		}
		if rule != nil && rule.Stop(iv, iv.T) {
			fmt.Printf("Stopping rule %s fired at t=%d\n", rule.Name, iv.T)
			return csvfeed.ErrStop
		}
		return nil
	})
	if err != nil {
		return err
	}

	iv := seq.Interval()
	fmt.Printf("\nFinal result at t=%d:\n", iv.T)
	fmt.Printf("  Lift: %.4f\n", iv.Estimate)
	fmt.Printf("  %.0f%% CI: [%.4f, %.4f]\n", 100*(1-spec.Alpha), iv.Lo, iv.Hi)
	fmt.Printf("  Width: %.4f\n", iv.Width())
	fmt.Printf("  Tier: %s\n", iv.Tier)
	if s := diagnosticsSummary(iv.Diagnostics); s != "" {
		fmt.Printf("  Diagnostics: %s\n", s)
	}
	if eproc != nil {
		ev := eproc.EValue()
		fmt.Printf("  E-value: %.4g (decision: %v)\n", ev.E, ev.Decision)
	}

	return finishRun(runDir, cfg)
}

func runAtlas(ctx context.Context, configPath, output string, sims int) error {
	var cfg config.AtlasConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadAtlasConfig(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.DefaultAtlasConfig()
	}
	if sims > 0 {
		cfg.NSim = sims
	}

	var runDir string
	if output != "" {
		if runDir, err = runlog.CreateRunDir(output, "atlas"); err != nil {
			return err
		}
	}

	runner := atlas.NewRunner(cfg.NSim)

	if cfg.OneSample != nil {
		if err := runOneSampleBench(ctx, runner, cfg.OneSample, runDir); err != nil {
			return err
		}
	}
	if cfg.TwoSample != nil {
		if err := runTwoSampleBench(ctx, runner, cfg.TwoSample, runDir); err != nil {
			return err
		}
	}

	if runDir != "" {
		if _, err := runlog.WriteManifest(runDir, cfg, nil); err != nil {
			return err
		}
	}
	return nil
}

func runOneSampleBench(ctx context.Context, runner *atlas.Runner, section *config.AtlasSection, runDir string) error {
	spec, err := section.Spec.Stream()
	if err != nil {
		return err
	}
	sectionRule := buildStoppingRule(section.Stopping)

	comp := atlas.NewComparison()
	for _, method := range section.Methods {
		factory, err := oneSampleFactory(method)
		if err != nil {
			return err
		}
		for _, scfg := range section.Scenarios {
			sc := materializeScenario(scfg, spec.Support, false)
			rule := buildStoppingRule(scfg.Stopping)
			if rule == nil {
				rule = sectionRule
			}
			m, err := runner.RunOneSample(ctx, sc, spec, factory, atlas.OneSampleOptions{Rule: rule})
			if err != nil {
				return err
			}
			comp.Add(method, sc.Name, m)
		}
	}

	dir := runDir
	if dir == "" {
		dir = "."
	}
	reportPath := filepath.Join(dir, "report_one_sample.md")
	if err := atlas.WriteComparisonReport(comp, "One-Sample Benchmark", reportPath); err != nil {
		return err
	}
	fmt.Printf("One-sample report written to %s\n", reportPath)
	if runDir != "" {
		tb := comp.Table()
		if err := atlas.WriteCSV(filepath.Join(runDir, "atlas_one_sample.csv"), tb); err != nil {
			return err
		}
		if err := atlas.WriteXLSX(filepath.Join(runDir, "atlas_one_sample.xlsx"), tb); err != nil {
			return err
		}
	}
	return nil
}

func runTwoSampleBench(ctx context.Context, runner *atlas.Runner, section *config.AtlasSection, runDir string) error {
	spec, err := section.Spec.AB()
	if err != nil {
		return err
	}
	sectionRule := buildStoppingRule(section.Stopping)

	comp := atlas.NewComparison()
	for _, method := range section.Methods {
		factory, err := twoSampleFactory(method)
		if err != nil {
			return err
		}
		for _, scfg := range section.Scenarios {
			sc := materializeScenario(scfg, spec.Support, true)
			rule := buildStoppingRule(scfg.Stopping)
			if rule == nil {
				rule = sectionRule
			}
			m, err := runner.RunTwoSample(ctx, sc, spec, factory, atlas.TwoSampleOptions{Rule: rule})
			if err != nil {
				return err
			}
			comp.Add(method, sc.Name, m)
		}
	}

	dir := runDir
	if dir == "" {
		dir = "."
	}
	reportPath := filepath.Join(dir, "report_two_sample.md")
	if err := atlas.WriteComparisonReport(comp, "Two-Sample Benchmark", reportPath); err != nil {
		return err
	}
	fmt.Printf("Two-sample report written to %s\n", reportPath)
	if runDir != "" {
		tb := comp.Table()
		if err := atlas.WriteCSV(filepath.Join(runDir, "atlas_two_sample.csv"), tb); err != nil {
			return err
		}
		if err := atlas.WriteXLSX(filepath.Join(runDir, "atlas_two_sample.xlsx"), tb); err != nil {
			return err
		}
	}
	return nil
}

// buildOneSample resolves the method name to a live sequence,
// announcing the choice when it was automatic.
func buildOneSample(method string, spec stream.StreamSpec) (ports.ConfidenceSequence, error) {
	if method == "" || method == "auto" {
		rec, err := recommend.RecommendCS(spec)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Using recommended method: %s\n", rec.Reason)
		return rec.New()
	}
	return recommend.BuildCS(method, spec)
}

func buildTwoSample(method string, spec stream.ABSpec) (ports.PairedSequence, error) {
	if method == "" || method == "auto" {
		rec, err := recommend.RecommendAB(spec)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Using recommended method: %s\n", rec.Reason)
		return rec.New()
	}
	return recommend.BuildAB(method, spec)
}

// oneSampleFactory rejects unknown method names up front so a bad
// config fails before any simulation runs.
func oneSampleFactory(method string) (atlas.CSFactory, error) {
	switch method {
	case recommend.MethodHoeffding, recommend.MethodEmpiricalBernstein, recommend.MethodBernoulli:
		return func(spec stream.StreamSpec) (ports.ConfidenceSequence, error) {
			return recommend.BuildCS(method, spec)
		}, nil
	default:
		return nil, core.NewConfigError("methods", fmt.Sprintf("unknown one-sample method %q", method))
	}
}

func twoSampleFactory(method string) (atlas.ABFactory, error) {
	switch method {
	case recommend.MethodHoeffding, recommend.MethodEmpiricalBernstein:
		return func(spec stream.ABSpec) (ports.PairedSequence, error) {
			return recommend.BuildAB(method, spec)
		}, nil
	default:
		return nil, core.NewConfigError("methods", fmt.Sprintf("unknown two-sample method %q", method))
	}
}

// buildStoppingRule materializes a validated stopping config. Type
// "fixed" (or nil) means run to the end of the data.
func buildStoppingRule(c *config.StoppingConfig) *atlas.StoppingRule {
	if c == nil {
		return nil
	}
	switch c.Type {
	case "", "fixed":
		return nil
	case "exclude_threshold":
		direction := atlas.Direction(c.Direction)
		if c.Direction == "" {
			direction = atlas.DirBoth
		}
		rule := atlas.ExcludeThreshold(c.Threshold, direction)
		return &rule
	case "periodic":
		every := c.Every
		if every == 0 {
			every = 50
		}
		inner := c.Rule
		if inner == nil {
			inner = &config.StoppingConfig{Type: "exclude_threshold"}
		}
		innerRule := buildStoppingRule(inner)
		if innerRule == nil {
			return nil
		}
		rule := atlas.Periodic(every, *innerRule)
		return &rule
	default:
		return nil
	}
}

// materializeScenario fills a benchmark scenario from its config form.
// A two-sample scenario with no explicit is_null counts as null when
// the lift is zero.
func materializeScenario(sc config.ScenarioConfig, fallback stream.Support, twoSample bool) atlas.Scenario {
	out := atlas.Scenario{
		Name:         sc.Name,
		Distribution: sc.Distribution,
		Support:      fallback,
		NMax:         sc.NMax,
		Seed:         sc.Seed,
	}
	if len(sc.Support) == 2 {
		out.Support = stream.Support{Lo: sc.Support[0], Hi: sc.Support[1]}
	}
	if sc.TrueMean != nil {
		out.TrueMean = *sc.TrueMean
	}
	if sc.TrueLift != nil {
		out.TrueLift = *sc.TrueLift
	}
	switch {
	case sc.IsNull != nil:
		out.IsNull = *sc.IsNull
	case twoSample:
		out.IsNull = out.TrueLift == 0
	}
	return out
}

func openRunDir(output, name string) (string, *runlog.Writer, error) {
	if output == "" {
		return "", nil, nil
	}
	runDir, err := runlog.CreateRunDir(output, name)
	if err != nil {
		return "", nil, err
	}
	logw, err := runlog.NewWriter(filepath.Join(runDir, "results.jsonl"))
	if err != nil {
		return "", nil, err
	}
	return runDir, logw, nil
}

func finishRun(runDir string, cfg any) error {
	if runDir == "" {
		return nil
	}
	if _, err := runlog.WriteManifest(runDir, cfg, nil); err != nil {
		return err
	}
	fmt.Printf("\nResults written to %s\n", runDir)
	return nil
}

// intervalEntry is one JSONL line of a sequential run.
type intervalEntry struct {
	T           int                `json:"t"`
	Estimate    float64            `json:"estimate"`
	Lo          float64            `json:"lo"`
	Hi          float64            `json:"hi"`
	Width       float64            `json:"width"`
	Tier        string             `json:"tier"`
	Diagnostics *stats.Diagnostics `json:"diagnostics,omitempty"`
}

// abEntry extends the interval line with the companion e-process state
// when one is running.
type abEntry struct {
	intervalEntry
	EValue    *float64 `json:"e_value,omitempty"`
	EDecision *bool    `json:"e_decision,omitempty"`
}

func newIntervalEntry(iv stats.Interval) intervalEntry {
	return intervalEntry{
		T:           iv.T,
		Estimate:    iv.Estimate,
		Lo:          iv.Lo,
		Hi:          iv.Hi,
		Width:       iv.Width(),
		Tier:        iv.Tier.String(),
		Diagnostics: iv.Diagnostics,
	}
}

func diagnosticsSummary(d *stats.Diagnostics) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("tier=%s, missing=%d, out_of_range=%d, clipped=%d, drift=%v",
		d.Tier, d.MissingCount, d.OutOfRangeCount, d.ClippedCount, d.DriftDetected)
}

func diagnosticsSuffix(d *stats.Diagnostics) string {
	if s := diagnosticsSummary(d); s != "" {
		return " (" + s + ")"
	}
	return ""
}
