package locate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolocator/internal/config"
	"hypolocator/internal/fixture"
)

func fourStationInput() Input {
	// Four stations ringing a trial epicenter near (0,0), each with a
	// single automatic Pg pick a few seconds past a plausible travel time.
	return Input{
		ID:                     "20260731010203.01",
		EarthModel:             "ak135",
		SourceOriginTimeMillis: 0,
		SourceLatitude:         0.1,
		SourceLongitude:        0.1,
		SourceDepthKm:          10,
		Picks: []InputPick{
			{ID: "p1", Network: "XX", Station: "AAA", Lat: 1.0, Lon: 0.0, AuthorType: "LocalAutomatic", TimeMillis: 12000, PickedPhase: "Pg", Use: true},
			{ID: "p2", Network: "XX", Station: "BBB", Lat: 0.0, Lon: 1.0, AuthorType: "LocalAutomatic", TimeMillis: 12000, PickedPhase: "Pg", Use: true},
			{ID: "p3", Network: "XX", Station: "CCC", Lat: -1.0, Lon: 0.0, AuthorType: "LocalAutomatic", TimeMillis: 12000, PickedPhase: "Pg", Use: true},
			{ID: "p4", Network: "XX", Station: "DDD", Lat: 0.0, Lon: -1.0, AuthorType: "LocalAutomatic", TimeMillis: 12000, PickedPhase: "Pg", Use: true},
		},
	}
}

func TestLocateRunsFullPipelineAndEchoesPickIDs(t *testing.T) {
	cfg := config.Default()
	deps := Deps{TravelTimes: fixture.NewDefaultTable()}

	out, err := Locate(cfg, deps, fourStationInput())
	require.NoError(t, err)

	assert.Equal(t, "20260731010203.01", out.ID)
	assert.NotEmpty(t, out.ExitCode)
	assert.Len(t, out.Picks, 4)

	seen := make(map[string]bool)
	for _, p := range out.Picks {
		seen[p.ID] = true
	}
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		assert.True(t, seen[id], "expected pick id %s to survive arena reordering into the output", id)
	}
}

func TestLocateHeldHypocenterReturnsHeldStatus(t *testing.T) {
	cfg := config.Default()
	deps := Deps{TravelTimes: fixture.NewDefaultTable()}

	in := fourStationInput()
	in.IsLocationHeld = true
	in.IsDepthHeld = true

	out, err := Locate(cfg, deps, in)
	require.NoError(t, err)

	assert.Equal(t, "Success", out.ExitCode)
	assert.Equal(t, in.SourceLatitude, out.Latitude)
	assert.Equal(t, in.SourceLongitude, out.Longitude)
	assert.Len(t, out.Axes, 3, "a held hypocenter still gets a full 3-axis error ellipse")
}

func TestLocateBadInputOnUnparseableEventID(t *testing.T) {
	cfg := config.Default()
	deps := Deps{TravelTimes: fixture.NewDefaultTable()}

	in := fourStationInput()
	in.ID = ""

	out, err := Locate(cfg, deps, in)
	require.Error(t, err)
	assert.Equal(t, "BadInput", out.ExitCode)
}

func TestLocateInsufficientDataWithNoPicks(t *testing.T) {
	cfg := config.Default()
	deps := Deps{TravelTimes: fixture.NewDefaultTable()}

	in := fourStationInput()
	in.Picks = nil

	out, err := Locate(cfg, deps, in)
	require.NoError(t, err)
	assert.Equal(t, "NotEnoughData", out.ExitCode)
	assert.Zero(t, out.OriginTimeErrorSec)
	assert.Empty(t, out.Axes)
}
