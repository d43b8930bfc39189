package locator

// PickGroup holds all picks of one station, ordered by travel time, plus
// the station's current source-receiver geometry (spec §3). PickStart/End
// index into Event.picks (arena-allocated, per the §9 design note) rather
// than holding pointers.
type PickGroup struct {
	StationIdx int

	PickStart int // first index into Event.picks belonging to this group
	PickEnd   int // one past the last index

	DistanceDeg float64 // source-receiver distance, degrees
	AzimuthDeg  float64 // azimuth from epicenter to station, CW from north

	// CumulativeFoM accumulates the phase identifier's figure of merit
	// across the permutation search for this group's cluster (spec §4.3).
	CumulativeFoM float64
}

// Len returns the number of picks in this group.
func (g PickGroup) Len() int { return g.PickEnd - g.PickStart }
