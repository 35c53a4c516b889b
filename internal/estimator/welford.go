// Package estimator holds the single-pass running statistics the
// confidence sequences are built on.
package estimator

// OnlineMean is a running mean over a stream.
type OnlineMean struct {
	n    int
	mean float64
}

func NewOnlineMean() *OnlineMean {
	return &OnlineMean{}
}

func (m *OnlineMean) Update(x float64) {
	m.n++
	m.mean += (x - m.mean) / float64(m.n)
}

func (m *OnlineMean) N() int {
	return m.n
}

// Mean returns 0 before any observation.
func (m *OnlineMean) Mean() float64 {
	return m.mean
}

func (m *OnlineMean) Reset() {
	*m = OnlineMean{}
}

// OnlineVariance tracks mean and variance in one pass using Welford's
// update, so a long stream never loses precision to catastrophic
// cancellation.
type OnlineVariance struct {
	n    int
	mean float64
	m2   float64
}

func NewOnlineVariance() *OnlineVariance {
	return &OnlineVariance{}
}

func (v *OnlineVariance) Update(x float64) {
	v.n++
	delta := x - v.mean
	v.mean += delta / float64(v.n)
	delta2 := x - v.mean
	v.m2 += delta * delta2
}

func (v *OnlineVariance) N() int {
	return v.n
}

func (v *OnlineVariance) Mean() float64 {
	return v.mean
}

// Variance returns the sample variance (n-1 denominator), 0 for n < 2.
func (v *OnlineVariance) Variance() float64 {
	if v.n < 2 {
		return 0
	}
	return v.m2 / float64(v.n-1)
}

// VarPop returns the population variance (n denominator), 0 for n < 1.
func (v *OnlineVariance) VarPop() float64 {
	if v.n < 1 {
		return 0
	}
	return v.m2 / float64(v.n)
}

func (v *OnlineVariance) Reset() {
	*v = OnlineVariance{}
}
