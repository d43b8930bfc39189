package closeout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolocator/domain/core"
	"hypolocator/domain/locator"
	"hypolocator/internal/config"
)

// fourStationEvent builds a minimal Event with four used picks at the
// cardinal azimuths, a well-conditioned demedianed design matrix, and no
// Bayesian-depth row -- enough to drive Compute through the full
// pipeline without a real travel-time service.
func fourStationEvent(t *testing.T) *locator.Event {
	t.Helper()
	hypo := locator.NewHypocenter(0, 0, 0, 10, false)
	ev := locator.NewEvent(core.EventID("evt-test"), hypo, 0, 700, 8)

	ev.Stations = []locator.Station{{Code: "AAA"}, {Code: "BBB"}, {Code: "CCC"}, {Code: "DDD"}}
	ev.Groups = []locator.PickGroup{
		{StationIdx: 0, PickStart: 0, PickEnd: 1, DistanceDeg: 5, AzimuthDeg: 0},
		{StationIdx: 1, PickStart: 1, PickEnd: 2, DistanceDeg: 5, AzimuthDeg: 90},
		{StationIdx: 2, PickStart: 2, PickEnd: 3, DistanceDeg: 5, AzimuthDeg: 180},
		{StationIdx: 3, PickStart: 3, PickEnd: 4, DistanceDeg: 5, AzimuthDeg: 270},
	}
	ev.Picks = []locator.Pick{
		{StationIdx: 0, Used: true, Residual: 0.1, Weight: 1},
		{StationIdx: 1, Used: true, Residual: -0.2, Weight: 1},
		{StationIdx: 2, Used: true, Residual: 0.15, Weight: 1},
		{StationIdx: 3, Used: true, Residual: -0.05, Weight: 1},
	}

	rows := []locator.WeightedResidual{
		{PickIdx: 0, Residual: 0.1, Weight: 1, DtDLat: 1, DtDLon: 0, DtDDepth: 0.1},
		{PickIdx: 1, Residual: -0.2, Weight: 1, DtDLat: 0, DtDLon: 1, DtDDepth: -0.1},
		{PickIdx: 2, Residual: 0.15, Weight: 1, DtDLat: -1, DtDLon: 0, DtDDepth: 0.2},
		{PickIdx: 3, Residual: -0.05, Weight: 1, DtDLat: 0, DtDLon: -1, DtDDepth: -0.2},
	}
	for i := range rows {
		rows[i].SetDemedianedDerivatives(rows[i].Derivatives())
	}
	ev.ResidualsRaw = rows

	return ev
}

func TestComputeProducesFullEllipsoidAndImportances(t *testing.T) {
	cfg := config.Default()
	ev := fourStationEvent(t)

	result := Compute(ev, cfg, nil)

	require.Equal(t, locator.StatusSuccess, result.Status)
	assert.Len(t, result.Axes, 3, "every close-out computes a full 3-axis ellipsoid")
	assert.InDelta(t, 90.0, result.GapDeg, 1e-6, "four cardinal azimuths leave a 90-degree max gap")
	assert.Len(t, result.PickImportance, 4)
	for _, imp := range result.PickImportance {
		assert.GreaterOrEqual(t, imp, 0.0)
	}
	assert.NotZero(t, result.OriginTimeErrorSec)
}

func TestComputeSingularMatrixWhenDerivativesAreDegenerate(t *testing.T) {
	cfg := config.Default()
	ev := fourStationEvent(t)
	// Collapse every derivative onto the same direction: Compute
	// demedians them to zero, so the normal matrix is not invertible.
	for i := range ev.ResidualsRaw {
		ev.ResidualsRaw[i].DtDLat, ev.ResidualsRaw[i].DtDLon, ev.ResidualsRaw[i].DtDDepth = 1, 0, 0
		ev.ResidualsRaw[i].SetDemedianedDerivatives([3]float64{1, 0, 0})
	}

	result := Compute(ev, cfg, nil)
	assert.Equal(t, locator.StatusSingularMatrix, result.Status)
	assert.Empty(t, result.Axes)
}

func TestDefaultGradePromotesToGWhenGT5Holds(t *testing.T) {
	cfg := config.Default()
	q := DefaultGrade(GradeContext{IsGT5: true, EquivHorizRadiusKm: 1000}, cfg)
	assert.Equal(t, byte('G'), q)
}

func TestDefaultGradeFallsBackToDWhenNothingQualifies(t *testing.T) {
	cfg := config.Default()
	q := DefaultGrade(GradeContext{
		EquivHorizRadiusKm: 1e6,
		DepthErrorKm:       1e6,
		NUsed:              0,
		LongestSemiAxisKm:  1e6,
	}, cfg)
	assert.Equal(t, byte('D'), q)
}
