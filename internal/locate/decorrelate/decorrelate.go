// Package decorrelate implements the Decorrelator (C4): it builds the
// pick-residual covariance matrix, triages the largest contributors when
// there are too many picks to decorrelate cheaply, eigendecomposes the
// remainder, and projects both the real and the linearised-estimate
// residuals onto the retained eigenvectors (spec §4.4).
package decorrelate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"hypolocator/domain/locator"
	"hypolocator/ports"
)

// SignConvention decides whether a retained eigenvector's sign should be
// flipped, given the correlation between its projected residual and the
// raw inputs that fed it (corr) and a depth-derivative tiebreaker used
// when corr is too close to zero to trust (spec §4.4 step 4, §9 "do not
// silently fix up" -- exposed here as a pluggable predicate for testing).
type SignConvention func(corr, depthTie float64) bool

// DefaultSignConvention treats a non-negative projected residual as the
// canonical sign; when the residual correlation is negligible it falls
// back to requiring a non-negative depth derivative.
func DefaultSignConvention(corr, depthTie float64) bool {
	const epsilon = 1e-9
	if math.Abs(corr) > epsilon {
		return corr < 0
	}
	return depthTie < 0
}

// Decorrelator holds the frozen eigenvector basis from the last
// decorrelate() call, reused across step-damping iterations by
// ProjectEstimated until a phase-ID change forces a fresh Decorrelate
// call (spec §4.4, §5 "Allocation discipline").
type Decorrelator struct {
	MaxPicks    int
	EigenLimit  float64
	EigenThresh float64
	Sign        SignConvention

	vectors    *mat.Dense // n (post-triage) x m (retained), columns are eigenvectors
	eigenvalues []float64 // retained, descending, len m
	weights    []float64 // 1/sqrt(eigenvalue), len m
}

// New builds a Decorrelator with the default sign convention.
func New(maxPicks int, eigenLimit, eigenThresh float64) *Decorrelator {
	return &Decorrelator{MaxPicks: maxPicks, EigenLimit: eigenLimit, EigenThresh: eigenThresh, Sign: DefaultSignConvention}
}

// Result carries the decorrelated rows plus bookkeeping the stepper needs.
type Result struct {
	Projected []locator.WeightedResidual
	Retained  int
}

// Decorrelate runs the full pipeline of spec §4.4: triage, eigendecompose,
// project, sign-correct. rows and covariates must be the same length and
// in the same pick order, excluding the Bayesian depth row; picks is the
// event's pick array, indexed by rows[i].PickIdx, so triaged picks can be
// flagged sticky-excluded (spec §3 isTriage). bayesian, if present, is
// appended to the output unchanged (spec §4.4 step 5).
func (d *Decorrelator) Decorrelate(rows []locator.WeightedResidual, covariates []ports.PickCovariate, cov ports.CovarianceModel, picks []locator.Pick, bayesian *locator.WeightedResidual) Result {
	rows = append([]locator.WeightedResidual(nil), rows...)
	covariates = append([]ports.PickCovariate(nil), covariates...)

	d.triage(rows, covariates, cov, picks, &rows, &covariates)

	n := len(rows)
	if n < 2 {
		out := append([]locator.WeightedResidual(nil), rows...)
		if bayesian != nil {
			out = append(out, *bayesian)
		}
		d.vectors = nil
		d.eigenvalues = nil
		d.weights = nil
		return Result{Projected: out, Retained: 0}
	}

	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var v float64
			if i == j {
				v = cov.Covariance(covariates[i], covariates[i])
			} else {
				v = cov.Covariance(covariates[i], covariates[j])
			}
			sigma.SetSym(i, j, v)
		}
	}

	var eig mat.EigenSym
	ok := eig.Factorize(sigma, true)
	if !ok {
		out := append([]locator.WeightedResidual(nil), rows...)
		if bayesian != nil {
			out = append(out, *bayesian)
		}
		return Result{Projected: out, Retained: 0}
	}

	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Order indices by eigenvalue descending -- these are the "top"
	// eigenvectors spec §4.4 step 3 retains first.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	total := 0.0
	for _, v := range values {
		total += v
	}
	maxEig := values[order[0]]

	retained := 0
	cumulative := 0.0
	for k, idx := range order {
		cumulative += values[idx]
		retained = k + 1
		overLimit := cumulative > d.EigenLimit*total
		nextSmall := true
		if k+1 < len(order) {
			nextSmall = values[order[k+1]] <= d.EigenThresh*maxEig
		}
		if overLimit && nextSmall {
			break
		}
	}

	vectors := mat.NewDense(n, retained, nil)
	eigenvalues := make([]float64, retained)
	weights := make([]float64, retained)
	for j := 0; j < retained; j++ {
		idx := order[j]
		eigenvalues[j] = values[idx]
		weights[j] = 1 / math.Sqrt(math.Max(values[idx], 1e-300))
		for i := 0; i < n; i++ {
			vectors.Set(i, j, vecs.At(i, idx))
		}
	}

	d.vectors = vectors
	d.eigenvalues = eigenvalues
	d.weights = weights

	projected := d.project(rows)
	d.correctSigns(projected, rows)

	if bayesian != nil {
		projected = append(projected, *bayesian)
	}
	return Result{Projected: projected, Retained: retained}
}

// triage iteratively removes the pick whose row sum of off-diagonal
// covariances is largest until n <= MaxPicks, flagging each eliminated
// pick Triage=true (sticky, spec §3/§4.4 step 2).
func (d *Decorrelator) triage(rows []locator.WeightedResidual, covariates []ports.PickCovariate, cov ports.CovarianceModel, picks []locator.Pick, rowsOut *[]locator.WeightedResidual, covOut *[]ports.PickCovariate) {
	n := len(rows)
	if n <= d.MaxPicks {
		return
	}

	// Precompute the full off-diagonal covariance matrix once.
	full := make([][]float64, n)
	rowSum := make([]float64, n)
	for i := 0; i < n; i++ {
		full[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v := cov.Covariance(covariates[i], covariates[j])
			full[i][j] = v
			rowSum[i] += v
		}
	}

	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}
	remaining := n

	for remaining > d.MaxPicks {
		worst := -1
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			if worst == -1 || rowSum[i] > rowSum[worst] {
				worst = i
			}
		}
		alive[worst] = false
		remaining--
		picks[rows[worst].PickIdx].Triage = true
		picks[rows[worst].PickIdx].Used = false
		for i := 0; i < n; i++ {
			if alive[i] {
				rowSum[i] -= full[i][worst]
			}
		}
	}

	newRows := make([]locator.WeightedResidual, 0, remaining)
	newCov := make([]ports.PickCovariate, 0, remaining)
	for i := 0; i < n; i++ {
		if alive[i] {
			newRows = append(newRows, rows[i])
			newCov = append(newCov, covariates[i])
		}
	}
	*rowsOut = newRows
	*covOut = newCov
}

func (d *Decorrelator) project(rows []locator.WeightedResidual) []locator.WeightedResidual {
	n, m := d.vectors.Dims()
	out := make([]locator.WeightedResidual, m)
	for j := 0; j < m; j++ {
		var r, lat, lon, depth float64
		for i := 0; i < n; i++ {
			v := d.vectors.At(i, j)
			r += v * rows[i].Residual
			lat += v * rows[i].DtDLat
			lon += v * rows[i].DtDLon
			depth += v * rows[i].DtDDepth
		}
		out[j] = locator.WeightedResidual{
			PickIdx:  locator.NoPick,
			Residual: r,
			Weight:   d.weights[j],
			DtDLat:   lat,
			DtDLon:   lon,
			DtDDepth: depth,
		}
	}
	return out
}

func (d *Decorrelator) correctSigns(projected []locator.WeightedResidual, rawRows []locator.WeightedResidual) {
	n, m := d.vectors.Dims()
	for j := 0; j < m; j++ {
		corr := projected[j].Residual
		depthTie := projected[j].DtDDepth
		if d.Sign(corr, depthTie) {
			projected[j].Residual = -projected[j].Residual
			projected[j].DtDLat = -projected[j].DtDLat
			projected[j].DtDLon = -projected[j].DtDLon
			projected[j].DtDDepth = -projected[j].DtDDepth
			for i := 0; i < n; i++ {
				d.vectors.Set(i, j, -d.vectors.At(i, j))
			}
		}
	}
}

// ProjectEstimated projects only rₑ using the frozen eigenvector basis
// from the last Decorrelate call -- it never recomputes eigenvectors, so
// the line search stays cheap during step damping (spec §4.4
// "projectEstimatedPicks"). rawRows must be the same (post-triage,
// pre-Bayesian) rows, in the same order, that produced the current basis.
func (d *Decorrelator) ProjectEstimated(rawRows []locator.WeightedResidual, bayesianEst float64, hasBayesian bool) []locator.WeightedResidual {
	if d.vectors == nil {
		return nil
	}
	n, m := d.vectors.Dims()
	out := make([]locator.WeightedResidual, m, m+1)
	for j := 0; j < m; j++ {
		var est float64
		for i := 0; i < n && i < len(rawRows); i++ {
			est += d.vectors.At(i, j) * rawRows[i].EstResidual
		}
		out[j].EstResidual = est
		out[j].Weight = d.weights[j]
	}
	if hasBayesian {
		out = append(out, locator.WeightedResidual{PickIdx: locator.NoPick, IsBayesianDepth: true, EstResidual: bayesianEst})
	}
	return out
}

// Retained returns how many eigenvectors the last Decorrelate call kept.
func (d *Decorrelator) Retained() int {
	if d.vectors == nil {
		return 0
	}
	_, m := d.vectors.Dims()
	return m
}
