package atlas

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/stat/distuv"

	"goanytime/domain/core"
	"goanytime/domain/stream"
	"goanytime/internal"
	"goanytime/internal/estimator"
	"goanytime/ports"
)

// Metrics aggregates one Monte Carlo benchmark. Coverage counts
// simulations where the interval contained the truth at every
// observed time, the property a fixed-sample interval cannot offer.
// TypeIError and Power are the stop rate split by whether the
// scenario is a null. EValueDecisionRate and NaivePeekingError stay
// zero unless the run tracked them.
type Metrics struct {
	Coverage           float64 `json:"coverage"`
	FinalCoverage      float64 `json:"final_coverage"`
	TypeIError         float64 `json:"type_i_error"`
	Power              float64 `json:"power"`
	AvgWidth           float64 `json:"avg_width"`
	MedianStopTime     float64 `json:"median_stop_time"`
	AvgRuntime         float64 `json:"avg_runtime"`
	EValueDecisionRate float64 `json:"evalue_decision_rate"`
	NaivePeekingError  float64 `json:"naive_peeking_error"`
}

// CSFactory builds a fresh one-sample sequence for one simulation.
type CSFactory func(spec stream.StreamSpec) (ports.ConfidenceSequence, error)

// ABFactory builds a fresh paired sequence for one simulation.
type ABFactory func(spec stream.ABSpec) (ports.PairedSequence, error)

// EFactory builds a fresh one-sample e-process for one simulation.
type EFactory func(spec stream.StreamSpec) (ports.EValueProcess, error)

// ABEFactory builds a fresh paired e-process for one simulation.
type ABEFactory func(spec stream.ABSpec) (ports.PairedEValueProcess, error)

// OneSampleOptions carries the optional trackers for a one-sample
// benchmark. A nil Rule runs every simulation to the horizon. NewE,
// when set, runs an e-process beside the sequence and records whether
// it ever reached its decision threshold. TrackNaivePeeking replays
// the classical t-test-every-few-looks workflow on null scenarios to
// show the inflation anytime methods avoid.
type OneSampleOptions struct {
	Rule              *StoppingRule
	NewE              EFactory
	TrackNaivePeeking bool
}

// TwoSampleOptions carries the optional trackers for a two-sample
// benchmark.
type TwoSampleOptions struct {
	Rule *StoppingRule
	NewE ABEFactory
}

// Runner fans simulations out across a bounded worker pool and
// aggregates their results. Workers of zero uses GOMAXPROCS.
type Runner struct {
	NSim    int
	Workers int
	Log     *internal.Logger
}

func NewRunner(nSim int) *Runner {
	return &Runner{NSim: nSim, Log: internal.DefaultLogger.Named("atlas")}
}

func (r *Runner) logger() *internal.Logger {
	if r.Log != nil {
		return r.Log
	}
	return internal.DefaultLogger
}

// RunOneSample benchmarks one method on one scenario: NSim
// independent streams, each replayed through a fresh sequence built
// by newCS, with coverage of the scenario mean checked after every
// observation.
func (r *Runner) RunOneSample(ctx context.Context, sc Scenario, spec stream.StreamSpec, newCS CSFactory, opts OneSampleOptions) (Metrics, error) {
	if r.NSim < 1 {
		return Metrics{}, core.NewConfigError("n_sim", "must be positive")
	}
	if err := sc.Validate(); err != nil {
		return Metrics{}, err
	}
	r.logger().Debug("one-sample %s: %d sims over horizon %d", sc.Name, r.NSim, sc.NMax)

	results, err := r.fanOut(ctx, func(i int) (simResult, error) {
		return oneSampleSim(sc, spec, newCS, opts, i)
	})
	if err != nil {
		return Metrics{}, err
	}
	m, err := summarize(sc, results, opts.NewE != nil, opts.TrackNaivePeeking)
	if err != nil {
		return Metrics{}, err
	}
	r.logger().Info("one-sample %s: coverage %.3f, avg width %.4f", sc.Name, m.Coverage, m.AvgWidth)
	return m, nil
}

// RunTwoSample benchmarks one paired method on one scenario, checking
// coverage of the scenario lift after every observation.
func (r *Runner) RunTwoSample(ctx context.Context, sc Scenario, spec stream.ABSpec, newAB ABFactory, opts TwoSampleOptions) (Metrics, error) {
	if r.NSim < 1 {
		return Metrics{}, core.NewConfigError("n_sim", "must be positive")
	}
	if err := sc.Validate(); err != nil {
		return Metrics{}, err
	}
	r.logger().Debug("two-sample %s: %d sims over horizon %d", sc.Name, r.NSim, sc.NMax)

	results, err := r.fanOut(ctx, func(i int) (simResult, error) {
		return twoSampleSim(sc, spec, newAB, opts, i)
	})
	if err != nil {
		return Metrics{}, err
	}
	m, err := summarize(sc, results, opts.NewE != nil, false)
	if err != nil {
		return Metrics{}, err
	}
	r.logger().Info("two-sample %s: coverage %.3f, avg width %.4f", sc.Name, m.Coverage, m.AvgWidth)
	return m, nil
}

type simResult struct {
	coveredAll    bool
	finalCovered  bool
	stopped       bool
	stopTime      int
	width         float64
	runtime       float64
	evalueDecided bool
	naiveRejected bool
}

// fanOut runs one goroutine per simulation, bounded by a weighted
// semaphore, and collects results by index so aggregation order never
// depends on scheduling.
func (r *Runner) fanOut(ctx context.Context, sim func(i int) (simResult, error)) ([]simResult, error) {
	workers := r.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(workers))
	results := make([]simResult, r.NSim)
	errs := make([]error, r.NSim)

	var wg sync.WaitGroup
	for i := 0; i < r.NSim; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			results[i], errs[i] = sim(i)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func oneSampleSim(sc Scenario, spec stream.StreamSpec, newCS CSFactory, opts OneSampleOptions, sim int) (simResult, error) {
	start := time.Now()
	data, err := OneSampleData(sc, sc.NMax, sim)
	if err != nil {
		return simResult{}, err
	}

	res := simResult{coveredAll: true}
	if opts.TrackNaivePeeking && sc.IsNull {
		res.naiveRejected, _ = naivePeekingTest(data, sc.TrueMean, spec.Alpha)
	}

	cs, err := newCS(spec)
	if err != nil {
		return simResult{}, err
	}
	var ev ports.EValueProcess
	if opts.NewE != nil {
		if ev, err = opts.NewE(spec); err != nil {
			return simResult{}, err
		}
	}

	for t, x := range data {
		if err := cs.Update(x); err != nil {
			return simResult{}, err
		}
		iv := cs.Interval()
		if iv.Excludes(sc.TrueMean) {
			res.coveredAll = false
		}
		if ev != nil && !res.evalueDecided {
			if err := ev.Update(x); err != nil {
				return simResult{}, err
			}
			res.evalueDecided = ev.EValue().Decision
		}
		if opts.Rule != nil && opts.Rule.Stop(iv, t+1) {
			res.stopped = true
			res.stopTime = t + 1
			break
		}
	}
	if !res.stopped {
		res.stopTime = sc.NMax
	}

	iv := cs.Interval()
	res.finalCovered = !iv.Excludes(sc.TrueMean)
	res.width = iv.Width()
	res.runtime = time.Since(start).Seconds()
	return res, nil
}

func twoSampleSim(sc Scenario, spec stream.ABSpec, newAB ABFactory, opts TwoSampleOptions, sim int) (simResult, error) {
	start := time.Now()
	data, err := TwoSampleData(sc, sc.NMax, sim)
	if err != nil {
		return simResult{}, err
	}

	res := simResult{coveredAll: true}
	ab, err := newAB(spec)
	if err != nil {
		return simResult{}, err
	}
	var ev ports.PairedEValueProcess
	if opts.NewE != nil {
		if ev, err = opts.NewE(spec); err != nil {
			return simResult{}, err
		}
	}

	for t, obs := range data {
		if err := ab.UpdateArm(obs.Arm, obs.Value); err != nil {
			return simResult{}, err
		}
		iv := ab.Interval()
		if iv.Excludes(sc.TrueLift) {
			res.coveredAll = false
		}
		if ev != nil && !res.evalueDecided {
			if err := ev.UpdateArm(obs.Arm, obs.Value); err != nil {
				return simResult{}, err
			}
			res.evalueDecided = ev.EValue().Decision
		}
		if opts.Rule != nil && opts.Rule.Stop(iv, t+1) {
			res.stopped = true
			res.stopTime = t + 1
			break
		}
	}
	if !res.stopped {
		res.stopTime = sc.NMax
	}

	iv := ab.Interval()
	res.finalCovered = !iv.Excludes(sc.TrueLift)
	res.width = iv.Width()
	res.runtime = time.Since(start).Seconds()
	return res, nil
}

func summarize(sc Scenario, results []simResult, hasEValue, hasNaive bool) (Metrics, error) {
	n := float64(len(results))
	var covered, finalCovered, stops, decisions, naiveRejections int
	widths := make([]float64, 0, len(results))
	stopTimes := make([]float64, 0, len(results))
	runtimes := make([]float64, 0, len(results))
	for _, res := range results {
		if res.coveredAll {
			covered++
		}
		if res.finalCovered {
			finalCovered++
		}
		if res.stopped {
			stops++
		}
		if res.evalueDecided {
			decisions++
		}
		if res.naiveRejected {
			naiveRejections++
		}
		widths = append(widths, res.width)
		stopTimes = append(stopTimes, float64(res.stopTime))
		runtimes = append(runtimes, res.runtime)
	}

	avgWidth, err := stats.Mean(widths)
	if err != nil {
		return Metrics{}, err
	}
	medianStop, err := stats.Median(stopTimes)
	if err != nil {
		return Metrics{}, err
	}
	avgRuntime, err := stats.Mean(runtimes)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		Coverage:       float64(covered) / n,
		FinalCoverage:  float64(finalCovered) / n,
		AvgWidth:       avgWidth,
		MedianStopTime: medianStop,
		AvgRuntime:     avgRuntime,
	}
	if sc.IsNull {
		m.TypeIError = float64(stops) / n
	} else {
		m.Power = float64(stops) / n
	}
	if hasEValue {
		m.EValueDecisionRate = float64(decisions) / n
	}
	if hasNaive && sc.IsNull {
		m.NaivePeekingError = float64(naiveRejections) / n
	}
	return m, nil
}

const naivePeekingEvery = 10

// naivePeekingTest replays the workflow anytime methods exist to
// replace: a classical fixed-sample t-test repeated every few
// observations, stopping at the first nominal rejection. It carries
// no validity guarantee under such peeking; the runner reports its
// rejection rate on null scenarios as the cautionary baseline.
func naivePeekingTest(data []float64, nullMean, alpha float64) (bool, int) {
	acc := estimator.NewOnlineVariance()
	for i, x := range data {
		acc.Update(x)
		t := i + 1
		if t%naivePeekingEvery != 0 {
			continue
		}
		sd := math.Sqrt(acc.Variance())
		if sd == 0 {
			continue
		}
		tStat := (acc.Mean() - nullMean) / (sd / math.Sqrt(float64(t)))
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(t - 1)}
		p := 2 * (1 - tDist.CDF(math.Abs(tStat)))
		if p < alpha {
			return true, t
		}
	}
	return false, len(data)
}
