// Package bayesdepth implements the Bayesian Depth Selector (C7): given a
// trial epicenter it builds a ranked list of depth-prior candidates from
// the default shallow prior, the slab model, and the (new) zone-statistics
// tables, then selects one based on the hypocenter's current depth (spec
// §4.6).
package bayesdepth

import (
	"math"

	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	"hypolocator/ports"
)

// Select builds the candidate list for (lat, lon) and picks one given the
// current depth z, per spec §4.6. aux may be nil, in which case only the
// default shallow prior is available.
func Select(lat, lon, z float64, aux ports.AuxDataProvider, cfg *config.Config) locator.BayesianDepthRecord {
	candidates := build(lat, lon, aux, cfg)
	return choose(candidates, z, cfg)
}

// build implements the "Construction order" of spec §4.6 steps 1-3.
func build(lat, lon float64, aux ports.AuxDataProvider, cfg *config.Config) []locator.BayesianDepthRecord {
	shallow := locator.BayesianDepthRecord{
		Depth: cfg.DefaultDepth, Spread: cfg.DefaultDepthSE, Source: locator.DepthSourceShallow,
	}

	if aux == nil {
		return []locator.BayesianDepthRecord{shallow}
	}

	slabs, err := aux.Slabs().Depths(lat, lon)
	if err == nil && len(slabs) > 0 {
		return buildFromSlabs(shallow, slabs, cfg)
	}

	nz, err := aux.NewZoneStats().Query(lat, lon)
	if err == nil && nz != nil {
		return buildFromNewZoneStats(shallow, *nz, cfg)
	}

	return []locator.BayesianDepthRecord{shallow}
}

// buildFromSlabs implements spec §4.6 step 2: a shallow slab result
// merges into the shallow prior; deeper ones become additional deep
// candidates.
func buildFromSlabs(shallow locator.BayesianDepthRecord, slabs []ports.SlabDepth, cfg *config.Config) []locator.BayesianDepthRecord {
	out := []locator.BayesianDepthRecord{shallow}
	merged := false
	for _, s := range slabs {
		if s.Depth <= cfg.SlabMergeDepth {
			// Shallow slab: merge into the shallow prior using the
			// deepest error bound reported for this slab candidate.
			if !merged {
				deepestBound := s.Upper
				out[0] = locator.BayesianDepthRecord{
					Depth:  deepestBound / 2,
					Spread: deepestBound / 6,
					Source: locator.DepthSourceSlabInterface,
				}
				merged = true
			}
			continue
		}
		spread := math.Max(s.Upper-s.Depth, s.Depth-s.Lower)
		out = append(out, locator.BayesianDepthRecord{Depth: s.Depth, Spread: spread, Source: locator.DepthSourceSlabModel})
	}
	return out
}

// buildFromNewZoneStats implements spec §4.6 step 3.
func buildFromNewZoneStats(shallow locator.BayesianDepthRecord, nz ports.NewZoneStatsResult, cfg *config.Config) []locator.BayesianDepthRecord {
	rec := locator.BayesianDepthRecord{Depth: nz.Mean, Spread: nz.Spread, Source: locator.DepthSourceNewZoneStats}

	upperBound := nz.Mean - nz.Spread
	switch {
	case upperBound < cfg.DeepestShallow:
		rec.Source = locator.DepthSourceNewZoneShallow
		return []locator.BayesianDepthRecord{rec}
	case upperBound < cfg.SlabMergeDepth:
		rec.Source = locator.DepthSourceNewZoneInterface
		return []locator.BayesianDepthRecord{shallow, rec}
	default:
		return []locator.BayesianDepthRecord{shallow, rec}
	}
}

// choose implements spec §4.6 "Selection": if z is below
// SLAB_MAX_SHALLOW_DEPTH and a deep prior exists, use the deep prior
// closest to z; else use whichever candidate (shallow or deep) is
// closest to z.
func choose(candidates []locator.BayesianDepthRecord, z float64, cfg *config.Config) locator.BayesianDepthRecord {
	if len(candidates) == 0 {
		return locator.BayesianDepthRecord{Depth: cfg.DefaultDepth, Spread: cfg.DefaultDepthSE, Source: locator.DepthSourceShallow}
	}

	var deepCandidates []locator.BayesianDepthRecord
	for _, c := range candidates {
		if isDeepSource(c.Source) {
			deepCandidates = append(deepCandidates, c)
		}
	}

	if z > cfg.SlabMaxShallowDepth && len(deepCandidates) > 0 {
		return closestTo(deepCandidates, z)
	}
	return closestTo(candidates, z)
}

func isDeepSource(s locator.DepthSource) bool {
	switch s {
	case locator.DepthSourceSlabModel, locator.DepthSourceNewZoneInterface, locator.DepthSourceZoneInterface, locator.DepthSourceZoneStats, locator.DepthSourceNewZoneStats:
		return true
	default:
		return false
	}
}

func closestTo(candidates []locator.BayesianDepthRecord, z float64) locator.BayesianDepthRecord {
	best := candidates[0]
	bestDist := math.Abs(best.Depth - z)
	for _, c := range candidates[1:] {
		d := math.Abs(c.Depth - z)
		if d < bestDist {
			bestDist, best = d, c
		}
	}
	return best
}
