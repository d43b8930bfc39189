// Package fixture provides trivial in-memory implementations of the
// ports interfaces for tests and the demo CLI -- a stand-in for the real
// travel-time/auxiliary-data ecosystem, which is explicitly out of scope
// (spec §1).
package fixture

import (
	"math"
	"sort"

	"hypolocator/ports"
)

// Phase is one entry in a TravelTimeTable: a simple constant-velocity
// phase definition keyed by distance in degrees.
type Phase struct {
	Code          string
	Group         string
	AuxGroup      string
	VelocityKmS   float64 // apparent surface velocity, km/s, for dt/dDistance
	InterceptSec  float64 // travel time at distance 0
	Spread        float64
	Observability float64
	Window        float64
	Disallowed    bool
	Regional      bool
	MaxDistDeg    float64 // 0 means unbounded
}

// TravelTimeTable is a minimal constant-gradient travel-time model: each
// phase's travel time is InterceptSec + distanceKm/VelocityKmS plus
// 0.01 s per km of the session's source depth, which is
// enough to drive the phase identifier, stepper and close-out through
// their control flow in tests without a real Earth model.
type TravelTimeTable struct {
	Phases []Phase
}

// NewDefaultTable returns a small table with three P-group phases (Pg,
// Pn, P) and three slower S-group phases (Sn, Sg, Lg), sufficient for
// most location scenarios.
func NewDefaultTable() *TravelTimeTable {
	return &TravelTimeTable{Phases: []Phase{
		{Code: "Pg", Group: "P", VelocityKmS: 8.0, InterceptSec: 0, Spread: 0.8, Observability: 1.0, Window: 4, MaxDistDeg: 20},
		{Code: "Pn", Group: "P", VelocityKmS: 8.1, InterceptSec: 3, Spread: 1.0, Observability: 0.9, Window: 4, Regional: true, MaxDistDeg: 100},
		{Code: "P", Group: "P", VelocityKmS: 8.1, InterceptSec: 3, Spread: 1.2, Observability: 0.9, Window: 5},
		{Code: "Sn", Group: "S", VelocityKmS: 4.5, InterceptSec: 4, Spread: 1.5, Observability: 0.6, Window: 6, Regional: true, MaxDistDeg: 100},
		{Code: "Sg", Group: "S", VelocityKmS: 4.4, InterceptSec: 0, Spread: 1.3, Observability: 0.6, Window: 5, MaxDistDeg: 20},
		{Code: "Lg", Group: "S", AuxGroup: "surface", VelocityKmS: 3.5, InterceptSec: 0, Spread: 2.0, Observability: 0.4, Window: 10, MaxDistDeg: 30},
	}}
}

const kmPerDeg = 111.195

type session struct {
	table     *TravelTimeTable
	depthKm   float64
	phaseSet  map[string]bool
}

// NewSession builds a TravelTimeSession over t (implements
// ports.TravelTimeProvider via (*TravelTimeTable).NewSession).
func (t *TravelTimeTable) NewSession(earthModel string, depthKm float64, phaseFilter []string, lat, lon float64,
	allPhases, backBranches, isTectonic, rstt bool) (ports.TravelTimeSession, error) {
	var filter map[string]bool
	if len(phaseFilter) > 0 && !allPhases {
		filter = make(map[string]bool, len(phaseFilter))
		for _, p := range phaseFilter {
			filter[p] = true
		}
	}
	return &session{table: t, depthKm: depthKm, phaseSet: filter}, nil
}

func (s *session) GetTT(stationLat, stationLon, stationElevKm, distanceDeg, azimuthDeg float64) ([]ports.TTimeData, error) {
	distKm := distanceDeg * kmPerDeg
	var out []ports.TTimeData
	for _, p := range s.table.Phases {
		if s.phaseSet != nil && !s.phaseSet[p.Code] {
			continue
		}
		if p.MaxDistDeg > 0 && distanceDeg > p.MaxDistDeg {
			continue
		}
		tt := p.InterceptSec + distKm/p.VelocityKmS + 0.01*s.depthKm
		out = append(out, ports.TTimeData{
			PhaseCode:     p.Code,
			PhaseGroup:    p.Group,
			AuxGroup:      p.AuxGroup,
			TravelTime:    tt,
			Spread:        p.Spread,
			Observability: p.Observability,
			DTdDistance:   kmPerDeg / p.VelocityKmS,
			DTdDepth:      0.01,
			CanUse:        true,
			IsDisallowed:  p.Disallowed,
			IsRegional:    p.Regional,
			Window:        p.Window,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TravelTime < out[j].TravelTime })
	return out, nil
}

func (s *session) FindGroup(phaseCode string, isAutomatic bool) (string, error) {
	for _, p := range s.table.Phases {
		if p.Code == phaseCode {
			return p.Group, nil
		}
	}
	return "", nil
}

// AuxData is an in-memory stand-in satisfying ports.AuxDataProvider: every
// query method returns the configured fixed values, or "no data" when the
// corresponding field is left at its zero value.
type AuxData struct {
	Craton bool

	ZoneStatsData    *ports.ZoneStatsResult
	NewZoneStatsData *ports.NewZoneStatsResult
	SlabsData        []ports.SlabDepth
}

func (a *AuxData) Cratons() ports.CratonProvider             { return cratonStub{a.Craton} }
func (a *AuxData) ZoneStats() ports.ZoneStatsProvider        { return zoneStatsStub{a.ZoneStatsData} }
func (a *AuxData) NewZoneStats() ports.NewZoneStatsProvider  { return newZoneStatsStub{a.NewZoneStatsData} }
func (a *AuxData) Slabs() ports.SlabProvider                 { return slabStub{a.SlabsData} }

type cratonStub struct{ v bool }

func (c cratonStub) Contains(lat, lon float64) (bool, error) { return c.v, nil }

type zoneStatsStub struct{ v *ports.ZoneStatsResult }

func (z zoneStatsStub) Query(lat, lon float64) (*ports.ZoneStatsResult, error) { return z.v, nil }

type newZoneStatsStub struct{ v *ports.NewZoneStatsResult }

func (z newZoneStatsStub) Query(lat, lon float64) (*ports.NewZoneStatsResult, error) { return z.v, nil }

type slabStub struct{ v []ports.SlabDepth }

func (s slabStub) Depths(lat, lon float64) ([]ports.SlabDepth, error) { return s.v, nil }

// Covariance is a simple exponential-decay-with-distance covariance
// model, enough to exercise the decorrelator in integration tests.
type Covariance struct {
	Variance float64
	DecayKm  float64
}

func (c Covariance) Covariance(a, b ports.PickCovariate) float64 {
	if a == b {
		return c.Variance
	}
	sep := math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon) * kmPerDeg
	return c.Variance * math.Exp(-sep/c.DecayKm)
}
