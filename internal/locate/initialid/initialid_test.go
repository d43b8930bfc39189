package initialid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolocator/domain/core"
	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	"hypolocator/internal/fixture"
)

func buildEvent(t *testing.T, originTime float64, picks []locator.Pick) *locator.Event {
	t.Helper()
	hypo := locator.NewHypocenter(originTime, 0, 0, 10, false)
	ev := locator.NewEvent(core.EventID("evt"), hypo, 0, 700, 8)
	ev.Stations = []locator.Station{{Code: "AAA"}}
	ev.Picks = picks
	ev.Groups = []locator.PickGroup{{StationIdx: 0, PickStart: 0, PickEnd: len(picks), DistanceDeg: 2, AzimuthDeg: 30}}
	return ev
}

func TestRunEasyBranchAnchorsOriginTimeToMedianResidual(t *testing.T) {
	cfg := config.Default()
	table := fixture.NewDefaultTable()
	sess, err := table.NewSession("ak135", 10, nil, 0, 0, true, true, false, false)
	require.NoError(t, err)

	// Pg travel time at 2deg*111.195km/8.0km/s ~= 27.8s; pick arrives a
	// few seconds late so the origin time should shift toward that offset.
	ev := buildEvent(t, 0, []locator.Pick{
		{StationIdx: 0, ArrivalTime: 30, OriginalPhaseCode: "Pg", CurrentPhaseCode: "Pg", Used: true, Automatic: true},
	})

	Run(ev, sess, cfg)

	assert.NotEqual(t, 0.0, ev.Hypo.OriginTime, "origin time should move off its initial zero value")
	assert.Equal(t, "Pg", ev.Picks[0].CurrentPhaseCode)
}

func TestRunSkipsSecondaryPhaseCodes(t *testing.T) {
	cfg := config.Default()
	table := fixture.NewDefaultTable()
	sess, err := table.NewSession("ak135", 10, nil, 0, 0, true, true, false, false)
	require.NoError(t, err)

	ev := buildEvent(t, 0, []locator.Pick{
		{StationIdx: 0, ArrivalTime: 30, OriginalPhaseCode: "Sg", CurrentPhaseCode: "Sg", Used: true, Automatic: true},
	})

	Run(ev, sess, cfg)

	assert.Equal(t, "Sg", ev.Picks[0].CurrentPhaseCode, "a secondary S phase is left untouched by the initial pass")
	assert.Equal(t, 0.0, ev.Hypo.OriginTime, "no eligible residual means no origin-time shift")
}

func TestRunRestartedEventDelegatesToFullPhaseID(t *testing.T) {
	cfg := config.Default()
	table := fixture.NewDefaultTable()
	sess, err := table.NewSession("ak135", 10, nil, 0, 0, true, true, false, false)
	require.NoError(t, err)

	ev := buildEvent(t, 0, []locator.Pick{
		{StationIdx: 0, ArrivalTime: 30, OriginalPhaseCode: "Pg", CurrentPhaseCode: "Pg", Used: true, Automatic: true},
	})
	ev.IsLocationRestarted = true

	Run(ev, sess, cfg)

	require.NotEmpty(t, ev.ResidualsRaw, "the restart path runs a full C5 pass, which rebuilds ResidualsRaw")
}
