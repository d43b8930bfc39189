// Package locator holds the core data model shared by every locate
// component (C1, station/pick identity, C10): Hypocenter, Station,
// Pick, PickGroup, WeightedResidual, HypoAudit, Event. Per spec §9's
// "Mutable event state with back-references" design note, everything is
// arena-allocated with stable indices -- Event owns Picks/Stations/Groups
// and WeightedResidual rows carry a pick index, never a pointer.
//
// The iteration algorithms (RSE, decorrelator, phase identifier, stepper,
// close-out) live in sibling packages under internal/locate and operate
// on *Event by reference; they are kept out of this package so Event
// itself stays a plain data model with no algorithmic dependencies.
package locator

import "hypolocator/domain/core"

// Event owns a Hypocenter, a station map, ordered PickGroups, and the
// three WeightedResidual arrays used across a location run (spec §3).
type Event struct {
	ID   core.EventID
	Hypo Hypocenter

	Stations []Station
	Picks    []Pick
	Groups   []PickGroup // ordered by group's first pick's travel time

	ResidualsRaw      []WeightedResidual
	ResidualsOriginal []WeightedResidual // saved order, for decorrelation input
	ResidualsProjected []WeightedResidual

	BayesianDepth BayesianDepthRecord

	IsLocationHeld       bool // analyst fixed the whole hypocenter
	IsDepthHeld          bool
	IsBayesianDepthFixed bool // analyst supplied bayesianDepth/Spread directly
	IsLocationNew        bool
	IsLocationRestarted  bool
	UseDecorrelation     bool

	DepthMin, DepthMax float64

	auditCap int
	audit    []HypoAudit
}

// NewEvent constructs an Event with empty pick, station and residual
// arrays; callers fill them. auditCap bounds
// the audit ring; 0 means unbounded.
func NewEvent(id core.EventID, hypo Hypocenter, depthMin, depthMax float64, auditCap int) *Event {
	return &Event{
		ID:       id,
		Hypo:     hypo,
		DepthMin: depthMin,
		DepthMax: depthMax,
		auditCap: auditCap,
	}
}

// NUsed counts picks currently marked used.
func (e *Event) NUsed() int {
	n := 0
	for i := range e.Picks {
		if e.Picks[i].Used {
			n++
		}
	}
	return n
}

// Update sets the hypocenter fields directly and refreshes every
// per-group Delta/azimuth and per-pick travel time (spec §4.9). Calling
// Update with the current values is a no-op on all derived state (spec
// §8 "Idempotence of no-op update").
func (e *Event) Update(originTime, lat, lon, depth float64) {
	e.Hypo = NewHypocenter(originTime, lat, lon, depth, e.Hypo.DepthHeld())
	e.refreshGroups()
	e.refreshTravelTimes()
}

// UpdateStep applies a spatial increment s*dir plus an origin-time shift,
// re-derives group geometry and pick travel times (spec §4.9, §4.7 step
// 5). Depth is clamped by Hypocenter.Apply; dir is NOT renormalised when
// clamping clips the depth component (spec §4.2 step 3).
func (e *Event) UpdateStep(stepLen float64, dir [3]float64, dOriginTime float64) {
	dLat := stepLen * dir[0]
	dLon := stepLen * dir[1]
	dDepth := stepLen * dir[2]
	e.Hypo = e.Hypo.Apply(dOriginTime, dLat, dLon, dDepth, e.DepthMin, e.DepthMax)
	e.refreshGroups()
	e.refreshTravelTimes()
}

// UpdateOriginTime is the cheap origin-only path (spec §4.9): it shifts
// every used pick's cached residual by -dt0 directly, since neither
// distance/azimuth nor the theoretical travel time depend on t0, and
// refreshes the cached travel times.
func (e *Event) UpdateOriginTime(dOriginTime float64) {
	e.Hypo = e.Hypo.WithOriginTime(e.Hypo.OriginTime + dOriginTime)
	e.refreshTravelTimes()
	for i := range e.Picks {
		if e.Picks[i].Used {
			e.Picks[i].Residual -= dOriginTime
		}
	}
	for i := range e.ResidualsRaw {
		if !e.ResidualsRaw[i].IsBayesianDepth {
			e.ResidualsRaw[i].Residual -= dOriginTime
		}
	}
}

// Restore reverts the hypocenter to a prior audit snapshot (spec §4.9),
// used when step damping fails and the stepper rolls back to the last
// good state.
func (e *Event) Restore(a HypoAudit) {
	e.Hypo = a.Hypocenter
	e.refreshGroups()
	e.refreshTravelTimes()
}

// AddAudit appends a new audit snapshot of the current hypocenter,
// trimming the oldest entry once auditCap is exceeded.
func (e *Event) AddAudit(stage, iteration int, status Status) HypoAudit {
	a := NewHypoAudit(stage, iteration, e.NUsed(), status, e.Hypo)
	e.audit = append(e.audit, a)
	if e.auditCap > 0 && len(e.audit) > e.auditCap {
		e.audit = e.audit[len(e.audit)-e.auditCap:]
	}
	return a
}

// LastAudit returns the most recent audit snapshot, if any.
func (e *Event) LastAudit() (HypoAudit, bool) {
	if len(e.audit) == 0 {
		return HypoAudit{}, false
	}
	return e.audit[len(e.audit)-1], true
}

// AuditTrail exposes the full ring for external inspection -- not just
// the rollback target -- so callers (the audit store, tests validating
// monotone stage convergence) can see every transition (SPEC_FULL §10.1).
func (e *Event) AuditTrail() []HypoAudit {
	out := make([]HypoAudit, len(e.audit))
	copy(out, e.audit)
	return out
}

// SaveOriginalResiduals shallow-copies the current residual order for use
// by the decorrelation projection, which sorts the live array (spec
// §4.9).
func (e *Event) SaveOriginalResiduals() {
	e.ResidualsOriginal = append([]WeightedResidual(nil), e.ResidualsRaw...)
}

func (e *Event) refreshGroups() {
	for i := range e.Groups {
		st := e.Stations[e.Groups[i].StationIdx]
		dist, az := DistanceAzimuth(e.Hypo.Lat, e.Hypo.Lon, st.Lat, st.Lon)
		e.Groups[i].DistanceDeg = dist
		e.Groups[i].AzimuthDeg = az
	}
}

func (e *Event) refreshTravelTimes() {
	for i := range e.Picks {
		e.Picks[i].RefreshTravelTime(e.Hypo.OriginTime)
	}
}
