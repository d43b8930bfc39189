// Package ports declares the interfaces the locator engine consumes but
// never implements -- travel-time computation and auxiliary geographic
// data are external collaborators per spec §1. Following the teacher's
// ports/ convention (one interface file per collaborator), this package
// holds only contracts; concrete adapters (a real travel-time session, a
// real slab/zone-stats database) are out of scope.
package ports

// TTimeData is one theoretical arrival returned by a travel-time session
// for a given (phase, distance, depth) (spec §6).
type TTimeData struct {
	PhaseCode string
	PhaseGroup string
	AuxGroup   string

	TravelTime float64 // seconds
	Spread     float64 // statistical spread (sigma-like), seconds

	Observability float64 // amplitude/weight prior, [0,1]-ish
	DTdDistance   float64 // slowness, seconds/degree
	DTdDepth      float64 // seconds/km

	CanUse       bool
	IsDisallowed bool // phase disallowed at this depth
	IsRegional   bool

	Window float64 // observability half-window, seconds
}

// TravelTimeSession is a bound session for one earth model and trial
// depth, created by TravelTimeProvider.NewSession.
type TravelTimeSession interface {
	// GetTT returns every theoretical phase arrival for a station at the
	// given distance/azimuth (spec §6).
	GetTT(stationLat, stationLon, stationElevKm, distanceDeg, azimuthDeg float64) ([]TTimeData, error)

	// FindGroup resolves a phase code (as picked, or as theoretically
	// produced) to its phase group name; isAutomatic affects the
	// resolution because automatic pickers use coarser phase vocabularies
	// (spec §6).
	FindGroup(phaseCode string, isAutomatic bool) (string, error)
}

// TravelTimeProvider opens sessions against a named earth model (spec
// §6). allPhases/backBranches/isTectonic/rstt mirror the upstream
// session options the engine passes through without interpreting.
type TravelTimeProvider interface {
	NewSession(earthModel string, depthKm float64, phaseFilter []string, lat, lon float64,
		allPhases, backBranches, isTectonic, rstt bool) (TravelTimeSession, error)
}
