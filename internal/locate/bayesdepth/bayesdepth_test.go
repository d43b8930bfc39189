package bayesdepth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	"hypolocator/internal/fixture"
	"hypolocator/ports"
)

func TestSelectWithNoAuxUsesDefaultShallow(t *testing.T) {
	cfg := config.Default()
	rec := Select(10, 20, 5, nil, cfg)
	assert.Equal(t, locator.DepthSourceShallow, rec.Source)
	assert.Equal(t, cfg.DefaultDepth, rec.Depth)
}

func TestSelectPrefersDeepSlabWhenTrialDepthDeep(t *testing.T) {
	cfg := config.Default()
	aux := &fixture.AuxData{
		SlabsData: []ports.SlabDepth{
			{Depth: 120, Lower: 100, Upper: 140},
		},
	}
	rec := Select(10, 20, 100, aux, cfg)
	require.Equal(t, locator.DepthSourceSlabModel, rec.Source)
	assert.InDelta(t, 120, rec.Depth, 1e-9)
}

func TestSelectIgnoresDeepSlabWhenTrialDepthShallow(t *testing.T) {
	cfg := config.Default()
	aux := &fixture.AuxData{
		SlabsData: []ports.SlabDepth{
			{Depth: 120, Lower: 100, Upper: 140},
		},
	}
	rec := Select(10, 20, 5, aux, cfg)
	assert.NotEqual(t, locator.DepthSourceSlabModel, rec.Source)
}

func TestShallowSlabMergesIntoShallowPrior(t *testing.T) {
	cfg := config.Default()
	candidates := buildFromSlabs(
		locator.BayesianDepthRecord{Depth: cfg.DefaultDepth, Spread: cfg.DefaultDepthSE, Source: locator.DepthSourceShallow},
		[]ports.SlabDepth{{Depth: 10, Lower: 5, Upper: 20}},
		cfg,
	)
	require.Len(t, candidates, 1)
	assert.Equal(t, locator.DepthSourceSlabInterface, candidates[0].Source)
}

func TestNewZoneStatsShallowCollapsesToSingleCandidate(t *testing.T) {
	cfg := config.Default()
	shallow := locator.BayesianDepthRecord{Depth: cfg.DefaultDepth, Spread: cfg.DefaultDepthSE, Source: locator.DepthSourceShallow}
	nz := ports.NewZoneStatsResult{Mean: 10, Spread: 50}
	candidates := buildFromNewZoneStats(shallow, nz, cfg)
	require.Len(t, candidates, 1)
	assert.Equal(t, locator.DepthSourceNewZoneShallow, candidates[0].Source)
}

func TestClosestToPicksNearestCandidate(t *testing.T) {
	candidates := []locator.BayesianDepthRecord{
		{Depth: 10, Source: locator.DepthSourceShallow},
		{Depth: 100, Source: locator.DepthSourceSlabModel},
	}
	got := closestTo(candidates, 90)
	assert.Equal(t, 100.0, got.Depth)
}
