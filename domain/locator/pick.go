package locator

// AuthorType classifies who/what produced a pick, per spec §3. Each has a
// default affinity used when the caller supplies affinity <= 0.
type AuthorType int

const (
	AuthorUnknown AuthorType = iota
	AuthorContributedAuto
	AuthorLocalAuto
	AuthorContributedHuman
	AuthorLocalHuman
)

// DefaultAffinity returns the default affinity for an author type, per the
// table in spec §3: {contributedAuto:1, localAuto:1, contributedHuman:1.5,
// localHuman:3, unknown:0}.
func (a AuthorType) DefaultAffinity() float64 {
	switch a {
	case AuthorContributedAuto:
		return 1
	case AuthorLocalAuto:
		return 1
	case AuthorContributedHuman:
		return 1.5
	case AuthorLocalHuman:
		return 3
	default:
		return 0
	}
}

// IsAutomatic reports whether this author type denotes an automatic
// (non-analyst) pick.
func (a AuthorType) IsAutomatic() bool {
	return a == AuthorContributedAuto || a == AuthorLocalAuto
}

// Pick links one Station to one Event (spec §3). PickGroup/Event own Pick
// values by index into Event.picks; a WeightedResidual row stores that
// index rather than a pointer, per the arena-allocation design note (§9).
type Pick struct {
	StationIdx int // index into Event.stations

	ExternalID string // caller-supplied pick id, echoed back on the output envelope (spec §6)

	ArrivalTime float64 // seconds since epoch
	Channel     string
	Quality     float64 // sigma, seconds
	ExternalUse bool    // caller's requested "use" flag
	Affinity    float64 // > 0 after defaulting, except 0 for an unknown author type

	OriginalPhaseCode string // as supplied
	CurrentPhaseCode  string // evolves through phase-ID passes
	BestPhaseCode     string // best candidate from the last phase-ID pass

	Author     AuthorType
	Automatic  bool
	SurfaceWave bool // Lg/LR; once true the phase code is frozen (spec §3)

	Residual   float64
	Weight     float64
	Importance float64

	Used   bool
	Triage bool // sticky: permanently excluded by decorrelation triage

	TravelTime float64 // cached ArrivalTime - t0; refreshed when t0 changes

	// Slowness and DTdDepth cache the winning theoretical arrival's
	// dt/dDistance and dt/dDepth (seconds/degree, seconds/km) so the
	// residual rebuild can derive dt/dLat and dt/dLon without re-querying
	// the travel-time service (spec §4.3/§6 TTimeData fields).
	Slowness float64
	DTdDepth float64

	ForceAssociation bool // phase-ID scratch: operator forced this pick's ID
}

// RefreshTravelTime recomputes the cached travel time for a new origin
// time (spec §3: "refreshed whenever t0 changes").
func (p *Pick) RefreshTravelTime(originTime float64) {
	p.TravelTime = p.ArrivalTime - originTime
}

// ClearIfUnweighted enforces the spec §3 invariant "weight == 0 implies
// isUsed = false (for the next iteration)".
func (p *Pick) ClearIfUnweighted() {
	if p.Weight <= 0 {
		p.Used = false
	}
}

// CanReidentify reports whether this pick's phase code may still change.
// Surface waves are frozen once identified, but only for manual picks per
// spec §9 Open Question (c): "applied only for manual picks in current
// code; reimplement the same exclusion -- do not guess."
func (p Pick) CanReidentify() bool {
	if p.SurfaceWave && !p.Automatic {
		return false
	}
	return true
}
