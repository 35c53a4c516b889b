package ui

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"goanytime/domain/core"
	"goanytime/domain/stream"
	"goanytime/evalue"
	"goanytime/ports"
	"goanytime/recommend"
	"goanytime/twosample"
)

// demoParams are the simulation controls, settable per connection via
// query parameters. Fields are exported so the index template can show
// the defaults.
type demoParams struct {
	PA     float64
	PB     float64
	Alpha  float64
	Method string
	NMax   int
	Rate   int
	Seed   int64
}

func defaultDemoParams() demoParams {
	return demoParams{
		PA:     0.50,
		PB:     0.55,
		Alpha:  0.05,
		Method: recommend.MethodEmpiricalBernstein,
		NMax:   1000,
		Rate:   20,
		Seed:   42,
	}
}

func parseDemoParams(q url.Values) (demoParams, error) {
	p := defaultDemoParams()
	var err error
	if p.PA, err = floatParam(q, "pA", p.PA); err != nil {
		return demoParams{}, err
	}
	if p.PB, err = floatParam(q, "pB", p.PB); err != nil {
		return demoParams{}, err
	}
	if p.Alpha, err = floatParam(q, "alpha", p.Alpha); err != nil {
		return demoParams{}, err
	}
	if v := q.Get("method"); v != "" {
		p.Method = v
	}
	if p.NMax, err = intParam(q, "nmax", p.NMax); err != nil {
		return demoParams{}, err
	}
	if p.Rate, err = intParam(q, "rate", p.Rate); err != nil {
		return demoParams{}, err
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return demoParams{}, core.NewConfigError("seed", fmt.Sprintf("not an integer: %q", v))
		}
		p.Seed = seed
	}

	if p.PA < 0 || p.PA > 1 {
		return demoParams{}, core.NewConfigError("pA", fmt.Sprintf("conversion rate %g not in [0, 1]", p.PA))
	}
	if p.PB < 0 || p.PB > 1 {
		return demoParams{}, core.NewConfigError("pB", fmt.Sprintf("conversion rate %g not in [0, 1]", p.PB))
	}
	if p.NMax < 1 || p.NMax > 50000 {
		return demoParams{}, core.NewConfigError("nmax", fmt.Sprintf("%d not in [1, 50000]", p.NMax))
	}
	if p.Rate < 1 || p.Rate > 200 {
		return demoParams{}, core.NewConfigError("rate", fmt.Sprintf("%d not in [1, 200]", p.Rate))
	}
	return p, nil
}

func floatParam(q url.Values, key string, def float64) (float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, core.NewConfigError(key, fmt.Sprintf("not a number: %q", raw))
	}
	return v, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewConfigError(key, fmt.Sprintf("not an integer: %q", raw))
	}
	return v, nil
}

// snapshot is one SSE frame. T counts observations across both arms,
// so it advances by two per paired draw. Stop markers stay zero until
// the corresponding rule first fires and then hold that T forever.
type snapshot struct {
	T           int     `json:"t"`
	Estimate    float64 `json:"estimate"`
	Lo          float64 `json:"lo"`
	Hi          float64 `json:"hi"`
	Width       float64 `json:"width"`
	Tier        string  `json:"tier"`
	EValue      float64 `json:"e_value"`
	EDecision   bool    `json:"e_decision"`
	EStopAt     int     `json:"e_stop_at,omitempty"`
	NaiveP      float64 `json:"naive_p"`
	NaiveStopAt int     `json:"naive_stop_at,omitempty"`
	TrueLift    float64 `json:"true_lift"`
	Done        bool    `json:"done"`
}

// simulation owns one experiment: a seeded Bernoulli pair stream, the
// selected two-sample confidence sequence and a mean-difference
// e-process against zero lift.
type simulation struct {
	params demoParams
	rng    *rand.Rand
	cs     ports.PairedSequence
	ev     ports.PairedEValueProcess

	t           int
	sumA        float64
	sumB        float64
	eStopAt     int
	naiveStopAt int
}

func newSimulation(params demoParams) (*simulation, error) {
	spec, err := stream.NewABSpec(params.Alpha, stream.Support{Lo: 0, Hi: 1}, stream.KindBernoulli, true)
	if err != nil {
		return nil, err
	}
	var cs ports.PairedSequence
	switch params.Method {
	case recommend.MethodHoeffding:
		cs, err = twosample.NewTwoSampleHoeffdingCS(spec)
	case recommend.MethodEmpiricalBernstein:
		cs, err = twosample.NewTwoSampleEmpiricalBernsteinCS(spec)
	default:
		return nil, core.NewConfigError("method", fmt.Sprintf("unknown method %q", params.Method))
	}
	if err != nil {
		return nil, err
	}
	ev, err := evalue.NewTwoSampleMeanMixtureE(spec, 0, evalue.SideTwo)
	if err != nil {
		return nil, err
	}
	return &simulation{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
		cs:     cs,
		ev:     ev,
	}, nil
}

// step draws one observation per arm and returns the updated snapshot.
func (s *simulation) step() (snapshot, error) {
	xA := bernoulliDraw(s.rng, s.params.PA)
	xB := bernoulliDraw(s.rng, s.params.PB)
	if err := s.cs.UpdateArm("A", xA); err != nil {
		return snapshot{}, err
	}
	if err := s.cs.UpdateArm("B", xB); err != nil {
		return snapshot{}, err
	}
	if err := s.ev.UpdateArm("A", xA); err != nil {
		return snapshot{}, err
	}
	if err := s.ev.UpdateArm("B", xB); err != nil {
		return snapshot{}, err
	}
	s.t++
	s.sumA += xA
	s.sumB += xB

	iv := s.cs.Interval()
	ev := s.ev.EValue()
	naiveP := pooledZTest(s.sumA, s.sumB, s.t, s.t)
	if s.eStopAt == 0 && ev.Decision {
		s.eStopAt = iv.T
	}
	if s.naiveStopAt == 0 && naiveP < s.params.Alpha {
		s.naiveStopAt = iv.T
	}

	return snapshot{
		T:           iv.T,
		Estimate:    iv.Estimate,
		Lo:          iv.Lo,
		Hi:          iv.Hi,
		Width:       iv.Width(),
		Tier:        iv.Tier.String(),
		EValue:      ev.E,
		EDecision:   ev.Decision,
		EStopAt:     s.eStopAt,
		NaiveP:      naiveP,
		NaiveStopAt: s.naiveStopAt,
		TrueLift:    s.params.PB - s.params.PA,
		Done:        s.t >= s.params.NMax,
	}, nil
}

func bernoulliDraw(rng *rand.Rand, p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

// pooledZTest is the fixed-horizon two-proportion z-test the demo
// contrasts against. Its p-value is only valid for a single
// preregistered look; the page shows how often it dips under alpha
// when read continuously.
func pooledZTest(sumA, sumB float64, nA, nB int) float64 {
	if nA == 0 || nB == 0 {
		return 1
	}
	pool := (sumA + sumB) / float64(nA+nB)
	if pool <= 0 || pool >= 1 {
		return 1
	}
	se := math.Sqrt(pool * (1 - pool) * (1/float64(nA) + 1/float64(nB)))
	if se == 0 {
		return 1
	}
	z := (sumB/float64(nB) - sumA/float64(nA)) / se
	return 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
}
