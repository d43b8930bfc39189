// Package initialid implements the Initial Phase-ID pass (C6): a one-shot
// heuristic pass run once before the iterative location loop starts, to
// get the origin time into a sane range before the real phase identifier
// (C5) starts re-assigning phases (spec §4.5).
package initialid

import (
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	"hypolocator/internal/locate/phaseid"
	"hypolocator/ports"
)

// secondaryCodes lists phase codes spec §4.5 step 2 excludes from the
// initial pass as "secondary S phases"; Sc* is matched by prefix.
var secondaryCodes = map[string]bool{"Sg": true, "Sb": true, "Sn": true, "Lg": true}

func isDeepEarthOrSecondary(code string) bool {
	if strings.HasPrefix(code, "PK") || strings.HasPrefix(code, "P'") {
		return true
	}
	if strings.HasPrefix(code, "Sc") {
		return true
	}
	return secondaryCodes[code]
}

// firstArrivalPhaseGroups are the codes the "easy" branch of spec §4.5
// step 3 leaves enabled for automatic picks: the common first-arrival P
// family.
var firstArrivalPhaseGroups = map[string]bool{"Pg": true, "Pb": true, "Pn": true, "P": true}

// Run executes the one-shot pass of spec §4.5. On a restart
// (ev.IsLocationRestarted) it skips the complex/easy branching entirely
// and instead delegates to a full C5 pass, per the spec's explicit carve-out.
func Run(ev *locator.Event, sess ports.TravelTimeSession, cfg *config.Config) {
	if ev.IsLocationRestarted {
		phaseid.Identify(ev, sess, cfg, false)
		return
	}

	t0 := ev.Hypo.OriginTime
	var residuals []float64
	disagreeCount := 0
	nStationsUsed := 0
	for _, g := range ev.Groups {
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			if ev.Picks[pi].Used {
				nStationsUsed++
				break
			}
		}
	}

	type assignment struct {
		pickIdx   int
		arrival   ports.TTimeData
		residual  float64
		isAutoFirst bool
		disagrees bool
	}
	var assignments []assignment

	for gi := range ev.Groups {
		g := ev.Groups[gi]
		if g.DistanceDeg > 100 {
			continue
		}
		st := ev.Stations[g.StationIdx]
		arrivals, err := sess.GetTT(st.Lat, st.Lon, st.ElevKm, g.DistanceDeg, g.AzimuthDeg)
		if err != nil || len(arrivals) == 0 {
			continue
		}
		sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].TravelTime < arrivals[j].TravelTime })
		first := arrivals[0]

		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			p := &ev.Picks[pi]
			if !p.Used {
				continue
			}
			if isDeepEarthOrSecondary(p.OriginalPhaseCode) {
				continue
			}

			var chosen ports.TTimeData
			found := false
			if p.Automatic {
				chosen = first
				found = true
			} else {
				for _, a := range arrivals {
					if a.PhaseCode == p.OriginalPhaseCode {
						chosen, found = a, true
						break
					}
				}
			}
			if !found {
				continue
			}

			residual := p.ArrivalTime - (t0 + chosen.TravelTime)
			p.Residual = residual
			p.Weight = chosen.Observability
			p.CurrentPhaseCode = chosen.PhaseCode
			p.ClearIfUnweighted()
			residuals = append(residuals, residual)

			disagrees := p.Automatic && p.OriginalPhaseCode != first.PhaseCode
			if disagrees {
				disagreeCount++
			}
			assignments = append(assignments, assignment{pickIdx: pi, arrival: chosen, residual: residual, isAutoFirst: p.Automatic, disagrees: disagrees})
		}
	}

	complex := float64(disagreeCount) >= cfg.BadRatio*float64(nStationsUsed)

	for _, as := range assignments {
		p := &ev.Picks[as.pickIdx]
		if complex {
			if as.disagrees {
				p.CurrentPhaseCode = as.arrival.PhaseCode
			}
			if p.Automatic && isDeepEarthOrSecondary(p.CurrentPhaseCode) {
				p.Weight = 0
				p.ClearIfUnweighted()
			}
		} else {
			if p.Automatic && !firstArrivalPhaseGroups[p.CurrentPhaseCode] {
				p.Weight = 0
				p.ClearIfUnweighted()
			}
			if p.Automatic && isDeepEarthOrSecondary(p.CurrentPhaseCode) {
				p.Weight = 0
				p.ClearIfUnweighted()
			}
		}
	}

	if len(residuals) == 0 {
		return
	}
	med, err := stats.Median(residuals)
	if err != nil {
		return
	}
	ev.UpdateOriginTime(med)
}
