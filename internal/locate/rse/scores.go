package rse

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// breakpointCount is the 21-breakpoint table named in spec §4.1. We
// instantiate the unspecified "optimal non-decreasing scores" as Van der
// Waerden normal scores (Phi^-1 of a uniform grid), the standard choice
// for an optimal rank-sum score function in the robust-statistics
// literature: they are strictly increasing and already antisymmetric
// about p=0.5, which is exactly the shape spec §4.1 describes before its
// own antisymmetrisation step runs. See DESIGN.md for why this table
// (not a literal transcription, since the upstream table was not
// recoverable from this pack) was the chosen grounding.
const breakpointCount = 21

var breakpoints [breakpointCount]float64
var breakpointScores [breakpointCount]float64

func init() {
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	for k := 0; k < breakpointCount; k++ {
		p := (float64(k) + 0.5) / breakpointCount
		breakpoints[k] = p
		breakpointScores[k] = normal.Quantile(p)
	}
}

// cache stores score arrays keyed by sample count n, shared across RSE
// instances regardless of whether they view raw or projected residuals
// (spec §9 "share score caching across instances by length").
var (
	cacheMu sync.RWMutex
	cache   = map[int][]float64{}
)

// Scores returns the length-n score array s_1..s_n used by dispersion()
// and steepestDescent(), rebuilding (and caching) it on first request for
// that n (spec §4.1).
func Scores(n int) []float64 {
	if n <= 0 {
		return nil
	}
	cacheMu.RLock()
	if s, ok := cache[n]; ok {
		cacheMu.RUnlock()
		return s
	}
	cacheMu.RUnlock()

	s := buildScores(n)

	cacheMu.Lock()
	cache[n] = s
	cacheMu.Unlock()
	return s
}

func buildScores(n int) []float64 {
	s := make([]float64, n)
	for j := 1; j <= n; j++ {
		p := float64(j) / float64(n+1)
		s[j-1] = interpolate(p)
	}

	mean := 0.0
	for _, v := range s {
		mean += v
	}
	mean /= float64(n)
	for i := range s {
		s[i] -= mean
	}

	// Antisymmetrise: s_j <- 1/2 (s_j - s_{n-1-j}); zero the centre of odd n.
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		out[j] = 0.5 * (s[j] - s[n-1-j])
	}
	if n%2 == 1 {
		out[n/2] = 0
	}
	return out
}

// interpolate evaluates the piecewise-linear breakpoint table at p.
func interpolate(p float64) float64 {
	if p <= breakpoints[0] {
		return breakpointScores[0]
	}
	if p >= breakpoints[breakpointCount-1] {
		return breakpointScores[breakpointCount-1]
	}
	k := sort.Search(breakpointCount, func(i int) bool { return breakpoints[i] >= p })
	lo, hi := k-1, k
	p0, p1 := breakpoints[lo], breakpoints[hi]
	s0, s1 := breakpointScores[lo], breakpointScores[hi]
	frac := (p - p0) / (p1 - p0)
	return s0 + frac*(s1-s0)
}
