package decorrelate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolocator/domain/locator"
	"hypolocator/ports"
)

// correlatedModel ties covariance to distance-in-index, resembling the
// "station separation" driver named in spec §4.4 step 1.
type correlatedModel struct {
	variance float64
	decay    float64
}

func (m correlatedModel) Covariance(a, b ports.PickCovariate) float64 {
	if a.Lat == b.Lat && a.Lon == b.Lon && a.ArrivalSec == b.ArrivalSec {
		return m.variance
	}
	sep := math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
	return m.variance * math.Exp(-sep/m.decay)
}

func buildRows(n int) ([]locator.WeightedResidual, []ports.PickCovariate, []locator.Pick) {
	rows := make([]locator.WeightedResidual, n)
	covs := make([]ports.PickCovariate, n)
	picks := make([]locator.Pick, n)
	for i := 0; i < n; i++ {
		rows[i] = locator.WeightedResidual{PickIdx: i, Residual: float64(i%5) - 2, Weight: 1, DtDDepth: 0.01 * float64(i+1)}
		covs[i] = ports.PickCovariate{Lat: float64(i), Lon: float64(i) * 0.5, ArrivalSec: float64(i)}
		picks[i] = locator.Pick{Used: true}
	}
	return rows, covs, picks
}

func TestTriageReducesToMaxPicks(t *testing.T) {
	rows, covs, picks := buildRows(30)
	d := New(20, 0.99, 0.05)
	model := correlatedModel{variance: 1, decay: 5}

	res := d.Decorrelate(rows, covs, model, picks, nil)
	assert.LessOrEqual(t, len(res.Projected), 20)

	triaged := 0
	for _, p := range picks {
		if p.Triage {
			triaged++
		}
	}
	assert.Equal(t, 30-20, triaged)
}

func TestDecorrelateIndependentPicksKeepsAllVariance(t *testing.T) {
	rows, covs, picks := buildRows(8)
	d := New(20, 0.99, 0.05)
	model := correlatedModel{variance: 1, decay: 0.0001} // ~independent

	res := d.Decorrelate(rows, covs, model, picks, nil)
	require.Greater(t, res.Retained, 0)

	sumEig := 0.0
	for _, v := range d.eigenvalues {
		sumEig += v
	}
	// Sum of all eigenvalues of Sigma equals trace(Sigma) = sum of
	// variances regardless of how many we retain; with near-independent
	// picks almost everything is retained.
	assert.InDelta(t, 8.0, sumEig, 0.5)
}

func TestEigensignDepthTiebreakerFlipsConsistently(t *testing.T) {
	rows, covs, picks := buildRows(6)
	for i := range rows {
		rows[i].Residual = 0 // force the correlation signal to zero
		rows[i].DtDDepth = -1
	}
	d := New(20, 0.99, 0.05)
	model := correlatedModel{variance: 1, decay: 5}

	res := d.Decorrelate(rows, covs, model, picks, nil)
	for _, row := range res.Projected {
		assert.GreaterOrEqual(t, row.DtDDepth, 0.0, "depth derivative tiebreaker should leave a non-negative sign")
	}
}

func TestProjectEstimatedUsesFrozenBasis(t *testing.T) {
	rows, covs, picks := buildRows(10)
	d := New(20, 0.99, 0.05)
	model := correlatedModel{variance: 1, decay: 3}
	d.Decorrelate(rows, covs, model, picks, nil)

	for i := range rows {
		rows[i].EstResidual = rows[i].Residual * 0.5
	}
	out := d.ProjectEstimated(rows, 0, false)
	assert.Len(t, out, d.Retained())
}

func TestBayesianRowAppendedUnchanged(t *testing.T) {
	rows, covs, picks := buildRows(5)
	bayesian := &locator.WeightedResidual{PickIdx: locator.NoPick, IsBayesianDepth: true, Residual: 42, Weight: 0.1}
	d := New(20, 0.99, 0.05)
	model := correlatedModel{variance: 1, decay: 3}

	res := d.Decorrelate(rows, covs, model, picks, bayesian)
	last := res.Projected[len(res.Projected)-1]
	assert.True(t, last.IsBayesianDepth)
	assert.Equal(t, 42.0, last.Residual)
	assert.Equal(t, 0.1, last.Weight)
}
