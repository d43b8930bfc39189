package locator

// DepthSource names where a Bayesian depth candidate came from (spec §3).
type DepthSource int

const (
	DepthSourceShallow DepthSource = iota
	DepthSourceZoneShallow
	DepthSourceNewZoneShallow
	DepthSourceZoneInterface
	DepthSourceNewZoneInterface
	DepthSourceSlabInterface
	DepthSourceSlabModel
	DepthSourceZoneStats
	DepthSourceNewZoneStats
)

func (s DepthSource) String() string {
	switch s {
	case DepthSourceShallow:
		return "shallow"
	case DepthSourceZoneShallow:
		return "zone-shallow"
	case DepthSourceNewZoneShallow:
		return "newzone-shallow"
	case DepthSourceZoneInterface:
		return "zone-interface"
	case DepthSourceNewZoneInterface:
		return "newzone-interface"
	case DepthSourceSlabInterface:
		return "slab-interface"
	case DepthSourceSlabModel:
		return "slab-model"
	case DepthSourceZoneStats:
		return "zone-stats"
	case DepthSourceNewZoneStats:
		return "newzone-stats"
	default:
		return "unknown"
	}
}

// BayesianDepthRecord is one ranked candidate in the transient list the
// depth selector (C7) builds per trial epicenter (spec §3).
type BayesianDepthRecord struct {
	Depth  float64
	Spread float64
	Source DepthSource
}
