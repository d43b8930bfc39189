package locator

// NoPick is the sentinel PickIdx value used by the one WeightedResidual row
// that carries the Bayesian depth pseudo-pick (spec §3).
const NoPick = -1

// WeightedResidual is one row the estimator (C2) operates on: either a
// real pick's residual or the Bayesian-depth pseudo-row. Rebuilt in full
// by the phase identifier (C5) each pass; its order is scrambled by the
// RSE's sorts, so PickIdx -- not array position -- identifies the source
// pick (spec §3 "Lifetime").
type WeightedResidual struct {
	PickIdx        int // index into Event.picks, or NoPick
	IsBayesianDepth bool

	Residual float64 // r
	Weight   float64 // w

	// Spatial derivatives of travel time w.r.t. the three hypocenter
	// parameters, in the order the estimator expects them.
	DtDLat   float64
	DtDLon   float64
	DtDDepth float64

	// EstResidual (r_e) is the linearized estimate used by the step
	// search; it is never produced by re-running the travel-time service
	// (spec §4.2).
	EstResidual float64

	// DemedianedLat/Lon/Depth hold the design-row values after subtracting
	// the design-matrix median established by demedianDesignMatrix (spec
	// §4.1); zero until that method runs.
	DemedianedLat   float64
	DemedianedLon   float64
	DemedianedDepth float64

	// SortKey is scratch space for the RSE's residual-order sort.
	SortKey float64
}

// Derivatives returns the three spatial derivatives as a [3]float64 in
// (lat, lon, depth) order, the order steepestDescent sums over.
func (r WeightedResidual) Derivatives() [3]float64 {
	return [3]float64{r.DtDLat, r.DtDLon, r.DtDDepth}
}

// DemedianedDerivatives returns the post-demedian design row.
func (r WeightedResidual) DemedianedDerivatives() [3]float64 {
	return [3]float64{r.DemedianedLat, r.DemedianedLon, r.DemedianedDepth}
}

// SetDemedianedDerivatives stores the post-demedian design row.
func (r *WeightedResidual) SetDemedianedDerivatives(d [3]float64) {
	r.DemedianedLat, r.DemedianedLon, r.DemedianedDepth = d[0], d[1], d[2]
}
