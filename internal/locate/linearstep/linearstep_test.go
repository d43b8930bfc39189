package linearstep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic builds an Evaluate around a convex bowl with minimum at sOpt,
// mimicking a dispersion curve that a locator step search would see.
func quadratic(sOpt, curvature, floor float64) Evaluate {
	return func(s float64) (float64, float64) {
		d := floor + curvature*(s-sOpt)*(s-sOpt)
		return 0, d
	}
}

func TestSearchFindsMinimumNearOptimum(t *testing.T) {
	f := quadratic(3.0, 1.0, 10.0)
	_, d0 := f(0)

	res := Search(f, 0.5, 0.01, 50, d0)
	require.False(t, res.NoStep)
	assert.InDelta(t, 3.0, res.StepLen, 0.6)
	assert.LessOrEqual(t, res.Dispersion, d0+1e-9)
}

func TestSearchNoStepWhenAlwaysWorse(t *testing.T) {
	f := func(s float64) (float64, float64) { return 0, 100 + s }
	res := Search(f, 1, 0.01, 50, 100)
	assert.True(t, res.NoStep)
	assert.Equal(t, 0.0, res.StepLen)
}

func TestSearchRespectsStepMax(t *testing.T) {
	// Optimum far beyond sMax: the search should still terminate cleanly
	// and never propose a step larger than sMax.
	f := quadratic(1000, 1.0, 5.0)
	_, d0 := f(0)
	res := Search(f, 1, 0.01, 10, d0)
	assert.LessOrEqual(t, res.StepLen, 10.0+1e-9)
}

func TestSearchHalvesWhenInitialStepWorsens(t *testing.T) {
	f := quadratic(0.2, 1.0, 2.0)
	_, d0 := f(0)
	res := Search(f, 5.0, 0.01, 50, d0)
	require.False(t, res.NoStep)
	assert.LessOrEqual(t, res.Dispersion, d0+1e-9)
}
