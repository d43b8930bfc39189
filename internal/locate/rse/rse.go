// Package rse implements the Rank-Sum Estimator (C2): the penalty the
// locator minimises and its steepest-descent direction, operating over a
// view into an Event's WeightedResidual array (spec §4.1). A single RSE
// type serves both the raw and the decorrelated/projected residual
// views -- per spec §9's "polymorphism by capability set" note -- by
// taking whichever slice the caller passes; it never copies the rows.
package rse

import (
	"math"
	"sort"

	"hypolocator/domain/locator"
)

// DemedianReady is returned only by Median and consumed only by
// DemedianDesignMatrix, encoding the ordering dependency spec §9 calls
// out explicitly: "document and enforce via a type state". A caller
// cannot call DemedianDesignMatrix without first obtaining one from
// Median on the same RSE, and a stale token from before the last Median()
// call is rejected.
type DemedianReady struct {
	order []int
	stamp uint64
	owner *RSE
}

// RSE operates in place on rows: demedianing and projection write back
// into the backing array, exactly like the teacher's residual arrays.
type RSE struct {
	rows []locator.WeightedResidual

	haveMedian bool
	median     float64
	lastOrder  []int // indices into rows, ascending by residual, from the last Median call
	stamp      uint64

	haveEstMedian bool
	estMedian     float64
	estOrder      []int
}

// New wraps rows for estimation. rows must outlive the RSE, since
// demedianing and projection mutate it in place.
func New(rows []locator.WeightedResidual) *RSE {
	return &RSE{rows: rows}
}

// Len reports the number of rows currently in view.
func (e *RSE) Len() int { return len(e.rows) }

// insufficient reports whether there are too few rows to estimate
// anything (spec §4.1 "Failure": fewer than two rows).
func (e *RSE) insufficient() bool { return len(e.rows) < 2 }

// Median returns the sample median of residuals, establishing the sort
// order later consumed by DemedianDesignMatrix (spec §4.1).
func (e *RSE) Median() (float64, DemedianReady) {
	if e.insufficient() {
		return 0, DemedianReady{}
	}
	order := make([]int, len(e.rows))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return e.rows[order[a]].Residual < e.rows[order[b]].Residual
	})

	med := medianAt(order, func(idx int) float64 { return e.rows[idx].Residual })

	e.haveMedian = true
	e.median = med
	e.lastOrder = order
	e.stamp++
	return med, DemedianReady{order: order, stamp: e.stamp, owner: e}
}

// Spread returns MADNORM * median(|r_i - median|); requires a prior
// Median() call (spec §4.1).
func (e *RSE) Spread(madNorm float64) float64 {
	if !e.haveMedian || e.insufficient() {
		return 0
	}
	devs := make([]float64, len(e.rows))
	for i, row := range e.rows {
		devs[i] = math.Abs(row.Residual - e.median)
	}
	sort.Float64s(devs)
	return madNorm * medianOfSorted(devs)
}

// DemedianResiduals subtracts the last computed median from every
// residual and clears the cached median (spec §4.1).
func (e *RSE) DemedianResiduals() {
	if !e.haveMedian {
		return
	}
	for i := range e.rows {
		e.rows[i].Residual -= e.median
	}
	e.haveMedian = false
}

// DemedianDesignMatrix subtracts the componentwise design-row median, at
// the residual-sort positions established by tok, from every row's
// derivatives (spec §4.1). tok must come from the immediately preceding
// Median() call on this RSE.
func (e *RSE) DemedianDesignMatrix(tok DemedianReady) {
	if tok.stamp == 0 || tok.stamp != e.stamp || tok.owner != e || len(tok.order) == 0 {
		return
	}
	n := len(tok.order)
	lat := make([]float64, n)
	lon := make([]float64, n)
	depth := make([]float64, n)
	for i, idx := range tok.order {
		d := e.rows[idx].Derivatives()
		lat[i], lon[i], depth[i] = d[0], d[1], d[2]
	}
	medLat := medianOfUnsorted(lat)
	medLon := medianOfUnsorted(lon)
	medDepth := medianOfUnsorted(depth)

	for i := range e.rows {
		d := e.rows[i].Derivatives()
		e.rows[i].SetDemedianedDerivatives([3]float64{d[0] - medLat, d[1] - medLon, d[2] - medDepth})
	}
}

// Dispersion returns the rank-sum penalty Sum_j s_j * r_j over the last
// established residual sort order (spec §4.1). If Median has not been
// called yet, the order is computed fresh without mutating cached state.
func (e *RSE) Dispersion() float64 {
	if e.insufficient() {
		return 0
	}
	order := e.lastOrder
	if order == nil {
		order = sortedOrder(e.rows, func(r locator.WeightedResidual) float64 { return r.Residual })
	}
	scores := Scores(len(order))
	d := 0.0
	for j, idx := range order {
		d += scores[j] * e.rows[idx].Residual
	}
	return d
}

// BayesianContribution returns the dispersion term contributed by the
// isBayesianDepth row alone, so the stepper can track how much of the
// dispersion change is attributable to the Bayesian prior drifting
// (spec §4.1 "Bayesian contribution").
func (e *RSE) BayesianContribution() float64 {
	order := e.lastOrder
	if order == nil {
		order = sortedOrder(e.rows, func(r locator.WeightedResidual) float64 { return r.Residual })
	}
	if len(order) == 0 {
		return 0
	}
	scores := Scores(len(order))
	for j, idx := range order {
		if e.rows[idx].IsBayesianDepth {
			return scores[j] * e.rows[idx].Residual
		}
	}
	return 0
}

// SteepestDescent returns the unit descent direction over dof components
// (2 or 3, spec §3) using the last established sort order, the rows'
// weights, and their demedianed derivatives (spec §4.1). Returns the zero
// vector when there are too few rows.
func (e *RSE) SteepestDescent(dof int) [3]float64 {
	var u [3]float64
	if e.insufficient() {
		return u
	}
	order := e.lastOrder
	if order == nil {
		order = sortedOrder(e.rows, func(r locator.WeightedResidual) float64 { return r.Residual })
	}
	scores := Scores(len(order))
	for j, idx := range order {
		row := e.rows[idx]
		d := row.DemedianedDerivatives()
		coeff := scores[j] * row.Weight
		u[0] += coeff * d[0]
		u[1] += coeff * d[1]
		if dof > 2 {
			u[2] += coeff * d[2]
		}
	}
	norm := math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
	if norm == 0 {
		return [3]float64{}
	}
	return [3]float64{u[0] / norm, u[1] / norm, u[2] / norm}
}

// LinEstMedian is the estimated-residual twin of Median: it operates on
// rₑ so the line search can score a candidate step without invoking the
// travel-time service (spec §4.1).
func (e *RSE) LinEstMedian() float64 {
	if e.insufficient() {
		return 0
	}
	order := sortedOrder(e.rows, func(r locator.WeightedResidual) float64 { return r.EstResidual })
	med := medianAt(order, func(idx int) float64 { return e.rows[idx].EstResidual })
	e.haveEstMedian = true
	e.estMedian = med
	e.estOrder = order
	return med
}

// DemedianEst subtracts the last LinEstMedian result from every rₑ and
// clears the cached estimate median (spec §4.1).
func (e *RSE) DemedianEst() {
	if !e.haveEstMedian {
		return
	}
	for i := range e.rows {
		e.rows[i].EstResidual -= e.estMedian
	}
	e.haveEstMedian = false
}

// EstDispersion is the estimated-residual twin of Dispersion, used
// exclusively by the line search (spec §4.1, §4.2).
func (e *RSE) EstDispersion() float64 {
	if e.insufficient() {
		return 0
	}
	order := e.estOrder
	if order == nil {
		order = sortedOrder(e.rows, func(r locator.WeightedResidual) float64 { return r.EstResidual })
	}
	scores := Scores(len(order))
	d := 0.0
	for j, idx := range order {
		d += scores[j] * e.rows[idx].EstResidual
	}
	return d
}

func sortedOrder(rows []locator.WeightedResidual, key func(locator.WeightedResidual) float64) []int {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return key(rows[order[a]]) < key(rows[order[b]]) })
	return order
}

func medianAt(order []int, value func(int) float64) float64 {
	n := len(order)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return value(order[n/2])
	}
	return (value(order[n/2-1]) + value(order[n/2])) / 2
}

func medianOfSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func medianOfUnsorted(values []float64) float64 {
	cp := append([]float64(nil), values...)
	sort.Float64s(cp)
	return medianOfSorted(cp)
}
