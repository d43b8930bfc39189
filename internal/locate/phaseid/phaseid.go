// Package phaseid implements the Phase Identifier (C5): per spec §4.3 it
// asks the travel-time service for every theoretical arrival at a group's
// current distance/azimuth, clusters them by overlapping observability
// windows, and assigns each observed pick the theoretical phase that
// maximises a figure of merit, rebuilding the event's WeightedResidual
// array from scratch each pass.
package phaseid

import (
	"math"
	"sort"

	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	"hypolocator/ports"
)

// maxPermSize bounds the brute-force permutation search (spec §4.3 step
// 4); clusters larger than this are resolved by a greedy assignment
// instead, since n! grows quickly: 7! is 5,040 permutations and 8! is
// already 40,320.
const maxPermSize = 7

// validityLimitFactor scales a theoretical arrival's spread into the
// "validityLimit" spec §4.3 step 6 references when merging the
// statistical and alternate winners; the spec names the concept but not
// its constant, so this is the chosen instantiation.
const validityLimitFactor = 3.0

// Identify runs one phase-identification pass over every group of ev,
// rebuilding ev.ResidualsRaw and each pick's phase/residual/weight/travel
// time fields (spec §4.3). noReID selects the cheap re-anchor mode used
// during step damping. It returns true if any used pick's identity
// changed, and the number of stations left used after this pass.
func Identify(ev *locator.Event, sess ports.TravelTimeSession, cfg *config.Config, noReID bool) (changed bool, nStationsUsed int) {
	t0 := ev.Hypo.OriginTime
	stationUsed := make(map[int]bool)

	for gi := range ev.Groups {
		g := &ev.Groups[gi]
		st := ev.Stations[g.StationIdx]

		arrivals, err := sess.GetTT(st.Lat, st.Lon, st.ElevKm, g.DistanceDeg, g.AzimuthDeg)
		if err != nil || len(arrivals) == 0 {
			continue
		}
		sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].TravelTime < arrivals[j].TravelTime })

		picks := ev.Picks[g.PickStart:g.PickEnd]

		if noReID {
			reanchor(picks, arrivals, t0, sess, cfg, &changed)
		} else {
			clusters := buildClusters(arrivals)
			g.CumulativeFoM = identifyGroup(picks, arrivals, clusters, t0, sess, cfg, &changed)
		}

		for i := range picks {
			if picks[i].Used {
				stationUsed[g.StationIdx] = true
			}
		}
	}

	rebuildResiduals(ev)
	return changed, len(stationUsed)
}

// arrivalWindow is a theoretical arrival's absolute time window [t-w,
// t+w], used to build clusters (spec §4.3 step 3).
type arrivalWindow struct {
	idx        int
	start, end float64
}

func buildClusters(arrivals []ports.TTimeData) [][]int {
	windows := make([]arrivalWindow, len(arrivals))
	for i, a := range arrivals {
		windows[i] = arrivalWindow{idx: i, start: a.TravelTime - a.Window, end: a.TravelTime + a.Window}
	}

	var clusters [][]int
	cur := []int{0}
	curEnd := windows[0].end
	for i := 1; i < len(windows); i++ {
		if windows[i].start <= curEnd {
			cur = append(cur, i)
			if windows[i].end > curEnd {
				curEnd = windows[i].end
			}
			continue
		}
		clusters = append(clusters, cur)
		cur = []int{i}
		curEnd = windows[i].end
	}
	clusters = append(clusters, cur)
	return clusters
}

// identifyGroup runs the permutation search cluster by cluster over one
// group's picks, assigns winners, and writes the result back onto each
// Pick. Returns the group's total accumulated figure of merit.
func identifyGroup(picks []locator.Pick, arrivals []ports.TTimeData, clusters [][]int, t0 float64, sess ports.TravelTimeSession, cfg *config.Config, changed *bool) float64 {
	total := 0.0
	for _, clusterArrivalIdx := range clusters {
		clusterArrivals := make([]ports.TTimeData, len(clusterArrivalIdx))
		for i, ai := range clusterArrivalIdx {
			clusterArrivals[i] = arrivals[ai]
		}

		winStart := t0 + clusterArrivals[0].TravelTime - clusterArrivals[0].Window
		winEnd := winStart
		for _, a := range clusterArrivals {
			s, e := t0+a.TravelTime-a.Window, t0+a.TravelTime+a.Window
			if s < winStart {
				winStart = s
			}
			if e > winEnd {
				winEnd = e
			}
		}

		var clusterPickIdx []int
		for i := range picks {
			if !picks[i].CanReidentify() && picks[i].CurrentPhaseCode != "" {
				continue
			}
			if picks[i].ArrivalTime >= winStart && picks[i].ArrivalTime <= winEnd {
				clusterPickIdx = append(clusterPickIdx, i)
			}
		}
		if len(clusterPickIdx) == 0 {
			continue
		}

		total += assignCluster(picks, clusterPickIdx, clusterArrivals, t0, sess, cfg, changed)
	}
	return total
}

// assignCluster scores every (pick, arrival) pair in one cluster, picks
// the best bijective assignment (the "statistical" winner), computes an
// independent affinity-weighted "alternate" per pick, merges them, and
// then applies distance correction, dedup and time-monotonicity (spec
// §4.3 steps 4-9).
func assignCluster(picks []locator.Pick, pickIdx []int, arrivals []ports.TTimeData, t0 float64, sess ports.TravelTimeSession, cfg *config.Config, changed *bool) float64 {
	np, na := len(pickIdx), len(arrivals)

	fom := make([][]float64, np)
	residual := make([][]float64, np)
	for i, pi := range pickIdx {
		fom[i] = make([]float64, na)
		residual[i] = make([]float64, na)
		for j, a := range arrivals {
			r := picks[pi].ArrivalTime - (t0 + a.TravelTime)
			residual[i][j] = r
			fom[i][j] = figureOfMerit(picks[pi], a, r, sess, cfg)
		}
	}

	statAssign, _ := bestAssignment(fom, np, na)

	altAssign := make([]int, np)
	for i, pi := range pickIdx {
		best, bestScore := -1, math.Inf(1)
		aff := math.Max(picks[pi].Affinity, 0.1)
		for j := range arrivals {
			score := math.Abs(residual[i][j]) / aff
			if score < bestScore {
				bestScore, best = score, j
			}
		}
		altAssign[i] = best
	}

	firstArrivalIdx := 0 // arrivals are sorted ascending by TravelTime

	chosen := make([]int, np)
	for i := range pickIdx {
		s := statAssign[i]
		a := altAssign[i]
		if s < 0 {
			chosen[i] = a
			continue
		}
		preferAlt := false
		if math.Abs(residual[i][s]) > 2*validityLimitFactor*arrivals[s].Spread &&
			a >= 0 && math.Abs(residual[i][a]) <= validityLimitFactor*arrivals[a].Spread {
			preferAlt = true
		}
		if s == firstArrivalIdx && a >= 0 && a != s {
			// "within the first arrival of a group the alternate is
			// slightly preferred" -- a small bias toward the alternate
			// when it is otherwise comparably good.
			if math.Abs(residual[i][a]) <= math.Abs(residual[i][s])*1.05 {
				preferAlt = true
			}
		}
		if preferAlt {
			chosen[i] = a
		} else {
			chosen[i] = s
		}
	}

	applyDistanceCorrection(fom, chosen, arrivals, firstArrivalIdx, cfg)
	dedup(chosen, fom, pickIdx)
	enforceMonotonicity(chosen, pickIdx, picks, arrivals)

	total := 0.0
	for i, pi := range pickIdx {
		j := chosen[i]
		if j < 0 {
			continue
		}
		a := arrivals[j]
		if a.PhaseCode != picks[pi].CurrentPhaseCode && picks[pi].Used {
			*changed = true
		}
		writePickAssignment(&picks[pi], a, residual[i][j])
		total += fom[i][j]
	}
	return total
}

// bestAssignment finds the bijection between the smaller and larger
// dimension maximising cumulative figure of merit (spec §4.3 step 4).
// Returns, for each pick index (by cluster-local position), the chosen
// arrival index or -1 if unassigned, and the winning total.
func bestAssignment(fom [][]float64, np, na int) ([]int, float64) {
	assign := make([]int, np)
	for i := range assign {
		assign[i] = -1
	}
	if np == 0 || na == 0 {
		return assign, 0
	}

	m := np
	if na < np {
		m = na
	}
	if m > maxPermSize {
		return greedyAssignment(fom, np, na)
	}

	// Permute over the shorter dimension (spec §4.3 step 4: "the shorter
	// set is the one over which permutations are taken").
	if np <= na {
		indices := make([]int, na)
		for i := range indices {
			indices[i] = i
		}
		best := append([]int(nil), assign...)
		bestScore := math.Inf(-1)
		permuteK(indices, np, func(perm []int) {
			score := 0.0
			for i, j := range perm {
				score += fom[i][j]
			}
			if score > bestScore {
				bestScore = score
				copy(best, perm)
			}
		})
		return best, bestScore
	}

	indices := make([]int, np)
	for i := range indices {
		indices[i] = i
	}
	best := append([]int(nil), assign...)
	bestScore := math.Inf(-1)
	permuteK(indices, na, func(perm []int) {
		score := 0.0
		candidate := make([]int, np)
		for i := range candidate {
			candidate[i] = -1
		}
		for j, i := range perm {
			candidate[i] = j
			score += fom[i][j]
		}
		if score > bestScore {
			bestScore = score
			copy(best, candidate)
		}
	})
	return best, bestScore
}

// greedyAssignment resolves clusters too large to permute exhaustively:
// repeatedly picks the best remaining (pick, arrival) pair.
func greedyAssignment(fom [][]float64, np, na int) ([]int, float64) {
	assign := make([]int, np)
	for i := range assign {
		assign[i] = -1
	}
	usedArrival := make([]bool, na)
	usedPick := make([]bool, np)
	total := 0.0
	for k := 0; k < np && k < na; k++ {
		bi, bj, bs := -1, -1, math.Inf(-1)
		for i := 0; i < np; i++ {
			if usedPick[i] {
				continue
			}
			for j := 0; j < na; j++ {
				if usedArrival[j] {
					continue
				}
				if fom[i][j] > bs {
					bs, bi, bj = fom[i][j], i, j
				}
			}
		}
		if bi < 0 {
			break
		}
		assign[bi] = bj
		usedPick[bi] = true
		usedArrival[bj] = true
		total += bs
	}
	return assign, total
}

// permuteK enumerates every ordered selection of k elements from
// indices, calling visit with each selection.
func permuteK(indices []int, k int, visit func([]int)) {
	n := len(indices)
	chosen := make([]int, k)
	used := make([]bool, n)
	var rec func(depth int)
	rec = func(depth int) {
		if depth == k {
			visit(chosen)
			return
		}
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			chosen[depth] = indices[i]
			rec(depth + 1)
			used[i] = false
		}
	}
	rec(0)
}

// figureOfMerit implements spec §4.3 step 5.
func figureOfMerit(p locator.Pick, a ports.TTimeData, residual float64, sess ports.TravelTimeSession, cfg *config.Config) float64 {
	amp := a.Observability
	if a.IsDisallowed {
		amp *= cfg.DownWeight
	}

	matches := groupMatches(p, a, sess)
	if matches {
		amp *= cfg.GroupWeight
	} else {
		amp *= cfg.OtherWeight
		if phaseType(p.CurrentPhaseCode) != phaseType(a.PhaseCode) && !p.Automatic {
			amp *= cfg.TypeWeight
		}
	}

	if p.OriginalPhaseCode == a.PhaseCode {
		amp *= math.Max(p.Affinity, 0.01)
	}
	if a.PhaseCode == p.CurrentPhaseCode && p.CurrentPhaseCode != "" {
		amp *= cfg.StickyWeight
	}

	return amp * longTailProb(residual, a.Spread)
}

// longTailProb is the chosen instantiation of spec §4.3's unspecified
// "long-tailed residual likelihood": a Cauchy-shaped kernel, heavier
// tailed than Gaussian so one bad phase guess does not dominate the
// figure of merit.
func longTailProb(r, spread float64) float64 {
	if spread <= 0 {
		spread = 1e-3
	}
	x := r / spread
	return 1.0 / (1.0 + x*x)
}

func groupMatches(p locator.Pick, a ports.TTimeData, sess ports.TravelTimeSession) bool {
	observedGroup, err := sess.FindGroup(p.CurrentPhaseCode, p.Automatic)
	if err != nil || observedGroup == "" {
		return false
	}
	return observedGroup == a.PhaseGroup || observedGroup == a.AuxGroup
}

// phaseType classifies a phase code by its leading letter, P or S.
func phaseType(code string) byte {
	if code == "" {
		return 0
	}
	switch code[0] {
	case 'P', 'p':
		return 'P'
	case 'S', 's':
		return 'S'
	default:
		return 0
	}
}

// applyDistanceCorrection divides the figure of merit of the arrival
// chosen for the cluster's first pick by a constant factor of 1.3 when
// that arrival is not flagged regional, and leaves regional arrivals
// unchanged. The factor does not vary with distance; neither the group's
// distance nor its azimuth is read.
func applyDistanceCorrection(fom [][]float64, chosen []int, arrivals []ports.TTimeData, firstArrivalIdx int, cfg *config.Config) {
	if len(chosen) == 0 {
		return
	}
	j := chosen[firstArrivalIdx]
	if j < 0 {
		return
	}
	if arrivals[j].IsRegional {
		return
	}
	const threshold = 30.0 // degrees-equivalent distance correction onset
	factor := 1.0
	if !arrivals[j].IsRegional {
		factor = 1.0 + 0.01*threshold
	}
	fom[firstArrivalIdx][j] /= factor
}

// dedup enforces spec §4.3 step 8: if two picks chose the same
// theoretical arrival, the one with the worse statistical figure of
// merit loses its assignment.
func dedup(chosen []int, fom [][]float64, pickIdx []int) {
	byArrival := make(map[int][]int)
	for i, j := range chosen {
		if j < 0 {
			continue
		}
		byArrival[j] = append(byArrival[j], i)
	}
	for _, competitors := range byArrival {
		if len(competitors) < 2 {
			continue
		}
		best, bestScore := -1, math.Inf(-1)
		for _, i := range competitors {
			if fom[i][chosen[i]] > bestScore {
				bestScore, best = fom[i][chosen[i]], i
			}
		}
		for _, i := range competitors {
			if i != best {
				chosen[i] = -1
			}
		}
	}
}

// enforceMonotonicity drops the less observable of two picks whose
// assigned theoretical times contradict their observed arrival order
// (spec §4.3 step 9), except surface waves.
func enforceMonotonicity(chosen []int, pickIdx []int, picks []locator.Pick, arrivals []ports.TTimeData) {
	type entry struct{ i, j int }
	var entries []entry
	for i, j := range chosen {
		if j >= 0 {
			entries = append(entries, entry{i, j})
		}
	}
	sort.Slice(entries, func(a, b int) bool {
		return picks[pickIdx[entries[a].i]].ArrivalTime < picks[pickIdx[entries[b].i]].ArrivalTime
	})
	for k := 1; k < len(entries); k++ {
		prev, cur := entries[k-1], entries[k]
		if arrivals[cur.j].TravelTime < arrivals[prev.j].TravelTime {
			pp := picks[pickIdx[prev.i]]
			pc := picks[pickIdx[cur.i]]
			if pp.SurfaceWave || pc.SurfaceWave {
				continue
			}
			if arrivals[prev.j].Observability < arrivals[cur.j].Observability {
				chosen[prev.i] = -1
			} else {
				chosen[cur.i] = -1
			}
		}
	}
}

// writePickAssignment stores the winning theoretical arrival's phase and
// residual/weight/derivative data on the pick (spec §4.3 contract).
func writePickAssignment(p *locator.Pick, a ports.TTimeData, residual float64) {
	if p.CurrentPhaseCode != a.PhaseCode {
		p.BestPhaseCode = p.CurrentPhaseCode
	}
	p.CurrentPhaseCode = a.PhaseCode
	p.Residual = residual
	if !a.CanUse || a.Observability <= 0 {
		p.Weight = 0
	} else {
		p.Weight = a.Observability
	}
	p.ClearIfUnweighted()
	p.Slowness = a.DTdDistance
	p.DTdDepth = a.DTdDepth
}

// reanchor implements the "no re-ID" fast mode used during step damping
// (spec §4.3): it re-anchors each pick to the closest-in-time theoretical
// arrival sharing its code or, failing that, its phase group, within
// ASSOC_TOL. A pick with no such arrival is not re-identified here: its
// weight is zeroed and it is marked unused, and it is only considered
// again when a later stage restores Used from ExternalUse and runs a
// full identification pass.
func reanchor(picks []locator.Pick, arrivals []ports.TTimeData, t0 float64, sess ports.TravelTimeSession, cfg *config.Config, changed *bool) {
	for i := range picks {
		p := &picks[i]
		if p.CurrentPhaseCode == "" {
			continue
		}
		best, bestDt := -1, math.Inf(1)
		for j, a := range arrivals {
			if a.PhaseCode != p.CurrentPhaseCode {
				continue
			}
			dt := math.Abs(p.ArrivalTime - (t0 + a.TravelTime))
			if dt < bestDt {
				bestDt, best = dt, j
			}
		}
		if best < 0 || bestDt > cfg.AssocTol {
			observedGroup, _ := sess.FindGroup(p.CurrentPhaseCode, p.Automatic)
			for j, a := range arrivals {
				if a.PhaseGroup != observedGroup {
					continue
				}
				dt := math.Abs(p.ArrivalTime - (t0 + a.TravelTime))
				if dt < bestDt {
					bestDt, best = dt, j
				}
			}
		}
		if best < 0 || bestDt > cfg.AssocTol {
			p.Weight = 0
			p.ClearIfUnweighted()
			continue
		}
		a := arrivals[best]
		if a.PhaseCode != p.CurrentPhaseCode && p.Used {
			*changed = true
		}
		residual := p.ArrivalTime - (t0 + a.TravelTime)
		writePickAssignment(p, a, residual)
	}
}

// rebuildResiduals regenerates ev.ResidualsRaw from every used pick plus
// the Bayesian depth pseudo-row (spec §4.3 "after all groups...").
func rebuildResiduals(ev *locator.Event) {
	rows := make([]locator.WeightedResidual, 0, len(ev.Picks)+1)
	for gi := range ev.Groups {
		g := ev.Groups[gi]
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			p := ev.Picks[pi]
			if !p.Used {
				continue
			}
			dLat, dLon, dDepth := derivatives(ev, g, pi)
			rows = append(rows, locator.WeightedResidual{
				PickIdx:  pi,
				Residual: p.Residual,
				Weight:   p.Weight,
				DtDLat:   dLat,
				DtDLon:   dLon,
				DtDDepth: dDepth,
			})
		}
	}
	if ev.BayesianDepth.Spread > 0 {
		w := 1 / ev.BayesianDepth.Spread
		rows = append(rows, locator.WeightedResidual{
			PickIdx:         locator.NoPick,
			IsBayesianDepth: true,
			Residual:        ev.Hypo.Depth - ev.BayesianDepth.Depth,
			Weight:          w,
			DtDDepth:        1,
		})
	}
	ev.ResidualsRaw = rows
}

// derivatives computes dt/dlat, dt/dlon, dt/ddepth from the arrival's
// dt/ddistance and dt/ddepth using the standard spherical chain rule
// through the group's azimuth -- the spec names only dt/dΔ and dt/dz as
// travel-time service outputs, so the lat/lon partials are derived here.
func derivatives(ev *locator.Event, g locator.PickGroup, pickIdx int) (dLat, dLon, dDepth float64) {
	p := ev.Picks[pickIdx]
	azRad := g.AzimuthDeg * math.Pi / 180
	latRad := ev.Hypo.Lat * math.Pi / 180
	dDeltaDLat := -math.Cos(azRad)
	dDeltaDLon := -math.Sin(azRad) * math.Cos(latRad)
	dLat = p.Slowness * dDeltaDLat
	dLon = p.Slowness * dDeltaDLon
	dDepth = p.DTdDepth
	return dLat, dLon, dDepth
}
