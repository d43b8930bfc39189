package ports

// ZoneStatsResult is the (mean, min, max) depth triple zoneStats.query
// returns for a geographic cell (spec §6).
type ZoneStatsResult struct {
	MeanDepth float64
	MinDepth  float64
	MaxDepth  float64
}

// NewZoneStatsResult is the (mean, spread) pair newZoneStats.query
// returns (spec §6).
type NewZoneStatsResult struct {
	Mean   float64
	Spread float64
}

// SlabDepth is one candidate depth returned by slabs.depths for a
// geographic cell, with its upper/lower error bounds (spec §6).
type SlabDepth struct {
	Depth float64
	Lower float64
	Upper float64
}

// CratonProvider answers whether a point lies within a slow/fast cratonic
// region (spec §6). No component of the engine queries it; the
// travel-time session is always opened with its tectonic flag false.
type CratonProvider interface {
	Contains(lat, lon float64) (bool, error)
}

// ZoneStatsProvider queries the legacy zone-statistics table.
type ZoneStatsProvider interface {
	Query(lat, lon float64) (*ZoneStatsResult, error)
}

// NewZoneStatsProvider queries the newer zone-statistics table, used when
// no slab model result is available (spec §4.6).
type NewZoneStatsProvider interface {
	Query(lat, lon float64) (*NewZoneStatsResult, error)
}

// SlabProvider queries the slab depth model.
type SlabProvider interface {
	Depths(lat, lon float64) ([]SlabDepth, error)
}

// AuxDataProvider bundles the four auxiliary geographic data sources
// (spec §6). Only the Bayesian depth selector (C7) consumes it, through
// Slabs and NewZoneStats; Cratons and ZoneStats are not queried by any
// component. Concrete loading of these tables is out of scope.
type AuxDataProvider interface {
	Cratons() CratonProvider
	ZoneStats() ZoneStatsProvider
	NewZoneStats() NewZoneStatsProvider
	Slabs() SlabProvider
}
