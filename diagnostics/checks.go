// Package diagnostics watches a stream for the ways real data breaks
// declared assumptions: out-of-range values, missing observations, and
// distribution drift. Findings land in a shared stats.Diagnostics record
// that every emitted result carries a snapshot of.
package diagnostics

import (
	"math"

	"goanytime/domain/core"
	"goanytime/domain/stats"
	"goanytime/domain/stream"
	"goanytime/internal/estimator"
)

// Default drift settings. Detection needs a full window and a global
// history at least twice as long before it may fire.
const (
	DefaultDriftWindow    = 50
	DefaultDriftThreshold = 2.0
)

// RangeChecker enforces the declared support. It holds no counters of
// its own: callers pass the diagnostics record explicitly.
type RangeChecker struct {
	support stream.Support
	mode    stream.ClipMode
}

func NewRangeChecker(support stream.Support, mode stream.ClipMode) *RangeChecker {
	return &RangeChecker{support: support, mode: mode}
}

// Check validates one finite observation against the support. In clip
// mode an out-of-range value is clamped and the tier drops to CLIPPED;
// in error mode it is rejected and the tier drops to DIAGNOSTIC.
func (rc *RangeChecker) Check(x float64, d *stats.Diagnostics) (float64, error) {
	if rc.support.Contains(x) {
		return x, nil
	}
	d.OutOfRangeCount++
	if rc.mode == stream.ClipModeClip {
		d.ClippedCount++
		d.Degrade(stats.TierClipped)
		return rc.support.Clamp(x), nil
	}
	d.Degrade(stats.TierDiagnostic)
	return 0, core.NewOutOfRangeError(x, rc.support.Lo, rc.support.Hi)
}

// MissingnessTracker counts missing observations against the total.
type MissingnessTracker struct {
	total   int
	missing int
}

func NewMissingnessTracker() *MissingnessTracker {
	return &MissingnessTracker{}
}

func (mt *MissingnessTracker) Observe(missing bool) {
	mt.total++
	if missing {
		mt.missing++
	}
}

func (mt *MissingnessTracker) Total() int   { return mt.total }
func (mt *MissingnessTracker) Missing() int { return mt.missing }

// Rate returns the missing fraction, 0 before any observation.
func (mt *MissingnessTracker) Rate() float64 {
	if mt.total == 0 {
		return 0
	}
	return float64(mt.missing) / float64(mt.total)
}

func (mt *MissingnessTracker) Reset() {
	*mt = MissingnessTracker{}
}

// DriftDetector compares a sliding window mean against the global mean
// in global standard deviation units. Once the score crosses the
// threshold the detection latches for the life of the stream.
type DriftDetector struct {
	window    []float64
	head      int
	filled    int
	winSum    float64
	global    *estimator.OnlineVariance
	threshold float64
}

func NewDriftDetector(window int, threshold float64) *DriftDetector {
	if window <= 0 {
		window = DefaultDriftWindow
	}
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	return &DriftDetector{
		window:    make([]float64, window),
		global:    estimator.NewOnlineVariance(),
		threshold: threshold,
	}
}

// Update folds one clean observation and scores the current window.
func (dd *DriftDetector) Update(x float64, d *stats.Diagnostics) {
	if dd.filled == len(dd.window) {
		dd.winSum -= dd.window[dd.head]
	}
	dd.window[dd.head] = x
	dd.winSum += x
	dd.head = (dd.head + 1) % len(dd.window)
	if dd.filled < len(dd.window) {
		dd.filled++
	}
	dd.global.Update(x)

	if dd.filled < len(dd.window) || dd.global.N() <= 2*len(dd.window) {
		return
	}
	sd := math.Sqrt(dd.global.VarPop())
	if sd <= 0 {
		return
	}
	windowMean := dd.winSum / float64(dd.filled)
	score := math.Abs(windowMean-dd.global.Mean()) / sd
	d.DriftScore = score
	if score > dd.threshold {
		d.DriftDetected = true
		d.Degrade(stats.TierDiagnostic)
	}
}

func (dd *DriftDetector) Reset() {
	for i := range dd.window {
		dd.window[i] = 0
	}
	dd.head = 0
	dd.filled = 0
	dd.winSum = 0
	dd.global.Reset()
}
