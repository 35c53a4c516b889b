// Package config loads the YAML run configurations the CLI consumes.
// Absent fields fall back to defaults, so a minimal config names only
// the input data and everything else follows the declared stream.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"goanytime/domain/core"
	"goanytime/domain/stream"
)

// SpecConfig is the YAML form of a stream declaration. Support is the
// two-element [lo, hi] list the config files use.
type SpecConfig struct {
	Alpha    float64   `yaml:"alpha" json:"alpha"`
	Support  []float64 `yaml:"support,flow" json:"support"`
	Kind     string    `yaml:"kind" json:"kind"`
	TwoSided *bool     `yaml:"two_sided" json:"two_sided"`
	ClipMode string    `yaml:"clip_mode" json:"clip_mode,omitempty"`
	Name     string    `yaml:"name" json:"name,omitempty"`
}

func (c SpecConfig) normalized() SpecConfig {
	if c.Alpha == 0 {
		c.Alpha = 0.05
	}
	if len(c.Support) == 0 {
		c.Support = []float64{0, 1}
	}
	if c.Kind == "" {
		c.Kind = string(stream.KindBounded)
	}
	if c.TwoSided == nil {
		twoSided := true
		c.TwoSided = &twoSided
	}
	if c.ClipMode == "" {
		c.ClipMode = string(stream.ClipModeError)
	}
	return c
}

func (c SpecConfig) support() (stream.Support, error) {
	if len(c.Support) != 2 {
		return stream.Support{}, core.NewConfigError("support", "want a [lo, hi] pair")
	}
	return stream.Support{Lo: c.Support[0], Hi: c.Support[1]}, nil
}

// Stream materializes the one-sample spec.
func (c SpecConfig) Stream() (stream.StreamSpec, error) {
	n := c.normalized()
	sup, err := n.support()
	if err != nil {
		return stream.StreamSpec{}, err
	}
	spec := stream.StreamSpec{
		Alpha:    n.Alpha,
		Support:  sup,
		Kind:     stream.Kind(n.Kind),
		TwoSided: *n.TwoSided,
		Name:     n.Name,
		ClipMode: stream.ClipMode(n.ClipMode),
	}
	if err := spec.Validate(); err != nil {
		return stream.StreamSpec{}, err
	}
	return spec, nil
}

// AB materializes the two-sample spec.
func (c SpecConfig) AB() (stream.ABSpec, error) {
	n := c.normalized()
	sup, err := n.support()
	if err != nil {
		return stream.ABSpec{}, err
	}
	spec := stream.ABSpec{
		Alpha:    n.Alpha,
		Support:  sup,
		Kind:     stream.Kind(n.Kind),
		TwoSided: *n.TwoSided,
		Name:     n.Name,
		ClipMode: stream.ClipMode(n.ClipMode),
	}
	if err := spec.Validate(); err != nil {
		return stream.ABSpec{}, err
	}
	return spec, nil
}

// StoppingConfig describes when a sequential run stops early. Type
// "fixed" (or absent) runs to the end of the data; "exclude_threshold"
// stops once the interval excludes the threshold in the given
// direction; "periodic" wraps an inner rule and checks it every N
// observations.
type StoppingConfig struct {
	Type      string          `yaml:"type" json:"type"`
	Threshold float64         `yaml:"threshold" json:"threshold,omitempty"`
	Direction string          `yaml:"direction" json:"direction,omitempty"`
	Every     int             `yaml:"every" json:"every,omitempty"`
	Rule      *StoppingConfig `yaml:"rule" json:"rule,omitempty"`
}

// Validate checks the rule shape without materializing it.
func (c *StoppingConfig) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Type {
	case "", "fixed":
		return nil
	case "exclude_threshold":
		switch c.Direction {
		case "", "ge", "le", "both":
		default:
			return core.NewConfigError("stopping_rule.direction", fmt.Sprintf("unknown direction %q", c.Direction))
		}
		if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
			return core.NewConfigError("stopping_rule.threshold", "must be finite")
		}
		return nil
	case "periodic":
		if c.Every < 0 {
			return core.NewConfigError("stopping_rule.every", "must not be negative")
		}
		return c.Rule.Validate()
	default:
		return core.NewConfigError("stopping_rule.type", fmt.Sprintf("unknown type %q", c.Type))
	}
}

// RunConfig drives the one-sample mean command. The spec fields sit at
// the top level of the YAML document.
type RunConfig struct {
	Spec        SpecConfig      `yaml:",inline" json:"spec"`
	Method      string          `yaml:"method" json:"method"`
	Input       string          `yaml:"input" json:"input"`
	Column      string          `yaml:"column" json:"column"`
	Stopping    *StoppingConfig `yaml:"stopping_rule" json:"stopping_rule,omitempty"`
	ReportEvery int             `yaml:"report_every" json:"report_every"`
}

// Validate checks the config after defaults are applied.
func (c RunConfig) Validate() error {
	if c.Input == "" {
		return core.NewConfigError("input", "path to a CSV file is required")
	}
	if _, err := c.Spec.Stream(); err != nil {
		return err
	}
	return c.Stopping.Validate()
}

// LoadRunConfig reads and validates a one-sample run config.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := RunConfig{Method: "auto", Column: "value", ReportEvery: 100}
	if err := loadYAML(path, &cfg); err != nil {
		return RunConfig{}, err
	}
	if cfg.Column == "" {
		cfg.Column = "value"
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// ABConfig drives the two-sample abtest command. Delta0 and Side feed
// the companion e-process when EValue is set.
type ABConfig struct {
	Spec        SpecConfig      `yaml:",inline" json:"spec"`
	Method      string          `yaml:"method" json:"method"`
	Input       string          `yaml:"input" json:"input"`
	ArmColumn   string          `yaml:"arm_column" json:"arm_column"`
	ValueColumn string          `yaml:"value_column" json:"value_column"`
	EValue      bool            `yaml:"evalue" json:"evalue"`
	Delta0      float64         `yaml:"delta0" json:"delta0"`
	Side        string          `yaml:"side" json:"side,omitempty"`
	Stopping    *StoppingConfig `yaml:"stopping_rule" json:"stopping_rule,omitempty"`
	ReportEvery int             `yaml:"report_every" json:"report_every"`
}

// Validate checks the config after defaults are applied.
func (c ABConfig) Validate() error {
	if c.Input == "" {
		return core.NewConfigError("input", "path to a CSV file is required")
	}
	if _, err := c.Spec.AB(); err != nil {
		return err
	}
	switch c.Side {
	case "", "ge", "le", "two":
	default:
		return core.NewConfigError("side", fmt.Sprintf("unknown side %q", c.Side))
	}
	return c.Stopping.Validate()
}

// LoadABConfig reads and validates a two-sample run config.
func LoadABConfig(path string) (ABConfig, error) {
	cfg := ABConfig{
		Method:      "auto",
		ArmColumn:   "arm",
		ValueColumn: "value",
		Side:        "two",
		ReportEvery: 100,
	}
	if err := loadYAML(path, &cfg); err != nil {
		return ABConfig{}, err
	}
	if cfg.ArmColumn == "" {
		cfg.ArmColumn = "arm"
	}
	if cfg.ValueColumn == "" {
		cfg.ValueColumn = "value"
	}
	if err := cfg.Validate(); err != nil {
		return ABConfig{}, err
	}
	return cfg, nil
}

// ScenarioConfig is one benchmark scenario. TrueMean, TrueLift and
// IsNull are pointers so a missing key is distinguishable from zero.
type ScenarioConfig struct {
	Name         string          `yaml:"name" json:"name"`
	Distribution string          `yaml:"distribution" json:"distribution"`
	TrueMean     *float64        `yaml:"true_mean" json:"true_mean,omitempty"`
	TrueLift     *float64        `yaml:"true_lift" json:"true_lift,omitempty"`
	Support      []float64       `yaml:"support,flow" json:"support,omitempty"`
	NMax         int             `yaml:"n_max" json:"n_max"`
	Seed         int64           `yaml:"seed" json:"seed"`
	IsNull       *bool           `yaml:"is_null" json:"is_null,omitempty"`
	Stopping     *StoppingConfig `yaml:"stopping_rule" json:"stopping_rule,omitempty"`
}

// AtlasSection configures one family of benchmarks.
type AtlasSection struct {
	Spec      SpecConfig       `yaml:"spec" json:"spec"`
	Methods   []string         `yaml:"methods" json:"methods"`
	Scenarios []ScenarioConfig `yaml:"scenarios" json:"scenarios"`
	Stopping  *StoppingConfig  `yaml:"stopping_rule" json:"stopping_rule,omitempty"`
}

// AtlasConfig drives the benchmark suite.
type AtlasConfig struct {
	NSim      int           `yaml:"n_sim" json:"n_sim"`
	OneSample *AtlasSection `yaml:"one_sample" json:"one_sample,omitempty"`
	TwoSample *AtlasSection `yaml:"two_sample" json:"two_sample,omitempty"`
}

func (c *AtlasConfig) applyDefaults() {
	if c.NSim == 0 {
		c.NSim = 200
	}
	for _, section := range []*AtlasSection{c.OneSample, c.TwoSample} {
		if section == nil {
			continue
		}
		for i := range section.Scenarios {
			sc := &section.Scenarios[i]
			if sc.Distribution == "" {
				sc.Distribution = "bernoulli"
			}
			if sc.NMax == 0 {
				sc.NMax = 200
			}
			if sc.Seed == 0 {
				sc.Seed = 42
			}
		}
	}
}

// Validate checks the suite shape: at least one section, each with
// methods and fully described scenarios.
func (c AtlasConfig) Validate() error {
	if c.OneSample == nil && c.TwoSample == nil {
		return core.NewConfigError("atlas", "need at least one of one_sample, two_sample")
	}
	if c.NSim < 1 {
		return core.NewConfigError("n_sim", "must be positive")
	}
	if err := c.OneSample.validate("one_sample", false); err != nil {
		return err
	}
	return c.TwoSample.validate("two_sample", true)
}

func (s *AtlasSection) validate(name string, twoSample bool) error {
	if s == nil {
		return nil
	}
	if len(s.Methods) == 0 {
		return core.NewConfigError(name+".methods", "must be a non-empty list")
	}
	if len(s.Scenarios) == 0 {
		return core.NewConfigError(name+".scenarios", "must be a non-empty list")
	}
	if err := s.Stopping.Validate(); err != nil {
		return err
	}
	for i, sc := range s.Scenarios {
		field := fmt.Sprintf("%s.scenarios[%d]", name, i)
		if sc.Name == "" {
			return core.NewConfigError(field+".name", "is required")
		}
		if sc.TrueMean == nil {
			return core.NewConfigError(field+".true_mean", "is required")
		}
		if twoSample && sc.TrueLift == nil {
			return core.NewConfigError(field+".true_lift", "is required")
		}
		if sc.NMax < 1 {
			return core.NewConfigError(field+".n_max", "must be positive")
		}
		if len(sc.Support) != 0 && len(sc.Support) != 2 {
			return core.NewConfigError(field+".support", "want a [lo, hi] pair")
		}
		if err := sc.Stopping.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadAtlasConfig reads and validates a benchmark config.
func LoadAtlasConfig(path string) (AtlasConfig, error) {
	var cfg AtlasConfig
	if err := loadYAML(path, &cfg); err != nil {
		return AtlasConfig{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return AtlasConfig{}, err
	}
	return cfg, nil
}

// DefaultAtlasConfig is the built-in tiny benchmark used when no config
// file is given.
func DefaultAtlasConfig() AtlasConfig {
	ptr := func(v float64) *float64 { return &v }
	yes := true
	no := false
	cfg := AtlasConfig{
		NSim: 200,
		OneSample: &AtlasSection{
			Spec:    SpecConfig{Alpha: 0.05, Support: []float64{0, 1}, Kind: string(stream.KindBernoulli)},
			Methods: []string{"hoeffding", "empirical_bernstein", "bernoulli"},
			Scenarios: []ScenarioConfig{
				{Name: "bernoulli_null", TrueMean: ptr(0.5), IsNull: &yes},
				{Name: "bernoulli_alt", TrueMean: ptr(0.55), IsNull: &no},
			},
		},
		TwoSample: &AtlasSection{
			Spec:    SpecConfig{Alpha: 0.05, Support: []float64{0, 1}, Kind: string(stream.KindBernoulli)},
			Methods: []string{"hoeffding", "empirical_bernstein"},
			Scenarios: []ScenarioConfig{
				{Name: "ab_null", TrueMean: ptr(0.1), TrueLift: ptr(0.0), IsNull: &yes},
				{Name: "ab_alt", TrueMean: ptr(0.1), TrueLift: ptr(0.02), IsNull: &no},
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.NewConfigError("config", err.Error())
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return core.NewConfigError("config", fmt.Sprintf("invalid YAML: %v", err))
	}
	return nil
}
