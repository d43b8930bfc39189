// Package closeout implements Close-out (C9): once the stepper's final
// stage converges, it computes azimuthal gap, marginal 90% errors, the
// 3-D error ellipsoid, pick importances, and the quality grade (spec
// §4.8).
package closeout

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	"hypolocator/internal/locate/rse"
)

// Axis is one principal axis of the error ellipsoid.
type Axis struct {
	SemiLengthKm float64
	AzimuthDeg   float64
	PlungeDeg    float64
}

// Result is the full set of close-out statistics (spec §4.8, §6 output).
type Result struct {
	Status locator.Status

	GapDeg       float64
	RobustGapDeg float64

	ResidualErrorSec float64
	OriginTimeErrorSec float64

	MarginalErrorKm [3]float64 // lat, lon, depth directions, in the normal-matrix basis

	Axes                []Axis // descending by SemiLengthKm; always 3 entries (none when the eigendecomposition fails)
	EquivHorizRadiusKm  float64
	MaxHorizKm          float64
	MaxVertKm           float64

	PickImportance       map[int]float64 // by pick index
	BayesianDepthImportance float64

	Quality byte // 'A'..'D', or 'G'
}

// kmPerDeg converts the locator's degree-scaled lat/lon derivatives into
// kilometres for the marginal-error and ellipsoid outputs; the engine's
// derivatives are computed in a spherical approximation (spec §4.3), so a
// single constant suffices here rather than a latitude-dependent radius
// of curvature.
const kmPerDeg = 111.195

// Grade assigns a quality letter from the close-out context. Exposed as
// a pluggable function (SPEC_FULL §10.2) so callers can substitute a
// network-specific grading policy without touching the numerical core.
type Grade func(ctx GradeContext, cfg *config.Config) byte

// GradeContext is everything DefaultGrade needs to assign A/B/C/D/G.
type GradeContext struct {
	EquivHorizRadiusKm float64
	DepthErrorKm       float64
	NUsed              int
	LongestSemiAxisKm  float64
	IsGT5              bool
}

// DefaultGrade implements spec §4.8 step 8: walks thresholds A..D
// narrowest-first, demotes on large ellipse aspect ratio (approximated
// here via the semi-axis cap), and promotes to 'G' when the GT5
// criterion holds.
func DefaultGrade(ctx GradeContext, cfg *config.Config) byte {
	if ctx.IsGT5 {
		return 'G'
	}
	grades := []byte{'A', 'B', 'C', 'D'}
	for i, g := range grades {
		if ctx.EquivHorizRadiusKm <= cfg.QualityHorizRadiusKm[i] &&
			ctx.DepthErrorKm <= cfg.QualityVertErrorKm[i] &&
			ctx.NUsed > cfg.QualityMinNUsed[i] &&
			ctx.LongestSemiAxisKm <= cfg.QualitySemiAxisKm[i] {
			return g
		}
	}
	return 'D'
}

// Compute runs the full close-out pipeline of spec §4.8 over ev's
// current (converged) state.
func Compute(ev *locator.Event, cfg *config.Config, grade Grade) Result {
	if grade == nil {
		grade = DefaultGrade
	}

	gap, robustGap := azimuthalGap(ev)

	rows := ev.ResidualsRaw
	if ev.UseDecorrelation && len(ev.ResidualsProjected) > 0 {
		rows = ev.ResidualsProjected
	}

	residualRSE := rse.New(append([]locator.WeightedResidual(nil), rows...))
	residualRSE.Median()
	residualErr := residualRSE.Spread(cfg.MadNorm)

	n := ev.NUsed()
	// Origin time is solved as a nuisance parameter via the residual
	// median rather than a fourth normal-equation row, so its error is
	// the standard error of that median rather than a matrix diagonal.
	originTimeErr := cfg.PerPt1D * residualErr / math.Sqrt(math.Max(float64(n), 1))
	comp := 1.0
	if !ev.UseDecorrelation {
		comp = math.Sqrt(math.Max(cfg.EffOffset-cfg.EffSlope*math.Log10(float64(n+1)), 1e-6))
	}

	demedianRows := append([]locator.WeightedResidual(nil), rows...)
	demedianEstimator := rse.New(demedianRows)
	_, tok := demedianEstimator.Median()
	demedianEstimator.DemedianDesignMatrix(tok)

	normal := buildNormalMatrix(demedianRows)
	inv, singular := invert3(normal)
	if singular {
		return Result{Status: locator.StatusSingularMatrix, GapDeg: gap, RobustGapDeg: robustGap}
	}

	marginal := [3]float64{}
	for i := 0; i < 3; i++ {
		marginal[i] = cfg.PerPt1D / comp * math.Sqrt(math.Max(inv.At(i, i), 0))
	}
	marginalKm := [3]float64{marginal[0] * kmPerDeg, marginal[1] * kmPerDeg, marginal[2]}

	// Degrees of freedom is forced to 3 here even when depth is held
	// (spec §4.8 step 3): scenario 1 (held hypocenter) expects a full
	// 3-axis ellipse, so the 2-axis reduction of step 6 is not modelled
	// as a function of DepthHeld -- a singular normal matrix already
	// exits SINGULAR_MATRIX before reaching this point.
	axes, maxHoriz, maxVert, equivHoriz := ellipsoid(inv, cfg, comp)

	rawNormal := buildNormalMatrix(rows)
	rawInv, rawSingular := invert3(rawNormal)
	importance := make(map[int]float64, len(rows))
	bayesImportance := 0.0
	if !rawSingular {
		for _, row := range rows {
			d := row.Derivatives()
			imp := quadForm(rawInv, d)
			if row.IsBayesianDepth {
				bayesImportance = rawInv.At(2, 2) * row.Weight * row.Weight
				continue
			}
			importance[row.PickIdx] = imp
		}
	}

	nLocal := countLocal(ev)
	minDist := minDistanceDeg(ev)
	isGT5 := n >= 10 && nLocal >= 10 && minDist <= 30.0/kmPerDeg*kmPerDeg && gap <= 180 && robustGap <= 180

	q := grade(GradeContext{
		EquivHorizRadiusKm: equivHoriz,
		DepthErrorKm:       marginalKm[2],
		NUsed:              n,
		LongestSemiAxisKm:  longestAxis(axes),
		IsGT5:              isGT5,
	}, cfg)

	return Result{
		Status:                  locator.StatusSuccess,
		GapDeg:                  gap,
		RobustGapDeg:            robustGap,
		ResidualErrorSec:        residualErr,
		OriginTimeErrorSec:      originTimeErr,
		MarginalErrorKm:         marginalKm,
		Axes:                    axes,
		EquivHorizRadiusKm:      equivHoriz,
		MaxHorizKm:              maxHoriz,
		MaxVertKm:               maxVert,
		PickImportance:          importance,
		BayesianDepthImportance: bayesImportance,
		Quality:                 q,
	}
}

func azimuthalGap(ev *locator.Event) (gap, robustGap float64) {
	var az []float64
	for _, g := range ev.Groups {
		used := false
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			if ev.Picks[pi].Used {
				used = true
				break
			}
		}
		if used {
			az = append(az, g.AzimuthDeg)
		}
	}
	if len(az) <= 1 {
		return 360, 360
	}
	sort.Float64s(az)
	gap = maxGap(az)
	robustGap = gap
	for i := range az {
		trial := append(append([]float64(nil), az[:i]...), az[i+1:]...)
		if len(trial) <= 1 {
			continue
		}
		g := maxGap(trial)
		if g > robustGap {
			robustGap = g
		}
	}
	return gap, robustGap
}

func maxGap(sortedAz []float64) float64 {
	n := len(sortedAz)
	maxG := 0.0
	for i := 0; i < n; i++ {
		next := sortedAz[(i+1)%n]
		cur := sortedAz[i]
		g := next - cur
		if g < 0 {
			g += 360
		}
		if g > maxG {
			maxG = g
		}
	}
	return maxG
}

func buildNormalMatrix(rows []locator.WeightedResidual) *mat.SymDense {
	m := mat.NewSymDense(3, nil)
	for _, row := range rows {
		d := row.DemedianedDerivatives()
		w2 := row.Weight * row.Weight
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				m.SetSym(i, j, m.At(i, j)+w2*d[i]*d[j])
			}
		}
	}
	return m
}

func invert3(m *mat.SymDense) (*mat.Dense, bool) {
	var inv mat.Dense
	err := inv.Inverse(m)
	if err != nil {
		return nil, true
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(inv.At(i, i)) || math.IsInf(inv.At(i, i), 0) {
			return nil, true
		}
	}
	return &inv, false
}

func quadForm(inv *mat.Dense, d [3]float64) float64 {
	var out float64
	for i := 0; i < 3; i++ {
		var row float64
		for j := 0; j < 3; j++ {
			row += inv.At(i, j) * d[j]
		}
		out += d[i] * row
	}
	return out
}

// ellipsoid eigendecomposes the inverse normal matrix to get the error
// ellipsoid's principal axes (spec §4.8 step 6).
func ellipsoid(inv *mat.Dense, cfg *config.Config, comp float64) (axes []Axis, maxHoriz, maxVert, equivHoriz float64) {
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, inv.At(i, j))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, 0, 0, 0
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, 3)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	for k := 0; k < 3; k++ {
		idx := order[k]
		lambda := math.Max(values[idx], 0)
		semi := cfg.PerPt3D / comp * math.Sqrt(lambda)
		vx, vy, vz := vecs.At(0, idx), vecs.At(1, idx), vecs.At(2, idx)
		az := math.Atan2(vy, vx) * 180 / math.Pi
		if az < 0 {
			az += 360
		}
		// Sign of the vertical component disambiguates the azimuth
		// convention (spec §4.8 step 6).
		if vz < 0 {
			az += 180
			if az >= 360 {
				az -= 360
			}
		}
		plunge := math.Atan2(math.Abs(vz), math.Hypot(vx, vy)) * 180 / math.Pi
		axes = append(axes, Axis{SemiLengthKm: semi * kmPerDeg, AzimuthDeg: az, PlungeDeg: plunge})
	}

	sort.Slice(axes, func(i, j int) bool { return axes[i].SemiLengthKm > axes[j].SemiLengthKm })

	if len(axes) >= 2 {
		equivHoriz = math.Sqrt(axes[0].SemiLengthKm * axes[1].SemiLengthKm)
		maxHoriz = axes[0].SemiLengthKm
	}
	if len(axes) == 3 {
		maxVert = axes[2].SemiLengthKm
	}
	return axes, maxHoriz, maxVert, equivHoriz
}

func longestAxis(axes []Axis) float64 {
	if len(axes) == 0 {
		return 0
	}
	return axes[0].SemiLengthKm
}

func countLocal(ev *locator.Event) int {
	n := 0
	for _, g := range ev.Groups {
		if g.DistanceDeg > 150.0/kmPerDeg {
			continue
		}
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			if ev.Picks[pi].Used {
				n++
			}
		}
	}
	return n
}

func minDistanceDeg(ev *locator.Event) float64 {
	min := math.Inf(1)
	for _, g := range ev.Groups {
		used := false
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			if ev.Picks[pi].Used {
				used = true
				break
			}
		}
		if used && g.DistanceDeg < min {
			min = g.DistanceDeg
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}
