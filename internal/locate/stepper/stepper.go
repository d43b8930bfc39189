// Package stepper implements the Stepper / iteration controller (C8): it
// couples C2-C7 -- RSE, linear step search, decorrelator, phase
// identifier, and Bayesian depth selector -- into the multi-stage
// location loop of spec §4.7. Per the data-model note in spec §3 ("Event
// owns... two RSE instances... a Decorrelator"), the Stepper is where
// those instances actually live; keeping them off Event itself avoids an
// import cycle between domain/locator and the algorithm packages
// (documented in DESIGN.md).
package stepper

import (
	"math"

	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	"hypolocator/internal/locate/bayesdepth"
	"hypolocator/internal/locate/closeout"
	"hypolocator/internal/locate/decorrelate"
	"hypolocator/internal/locate/linearstep"
	"hypolocator/internal/locate/phaseid"
	"hypolocator/internal/locate/rse"
	"hypolocator/ports"
)

// Stepper runs the outer iteration loop for one event against one bound
// travel-time session and one auxiliary data provider.
type Stepper struct {
	cfg    *config.Config
	sess   ports.TravelTimeSession
	aux    ports.AuxDataProvider
	cov    ports.CovarianceModel
	decorr *decorrelate.Decorrelator
	grade  closeout.Grade
}

// New builds a Stepper. aux and cov may be nil; a nil aux disables the
// Bayesian depth selector's slab/zone lookups (falls back to the default
// prior) and a nil cov disables decorrelation regardless of
// ev.UseDecorrelation. grade may be nil to use closeout.DefaultGrade.
func New(cfg *config.Config, sess ports.TravelTimeSession, aux ports.AuxDataProvider, cov ports.CovarianceModel, grade closeout.Grade) *Stepper {
	return &Stepper{
		cfg:    cfg,
		sess:   sess,
		aux:    aux,
		cov:    cov,
		decorr: decorrelate.New(cfg.MaxPicksDecorr, cfg.EigenLimit, cfg.EigenThresh),
		grade:  grade,
	}
}

// Run executes the outer multi-stage loop of spec §4.7 until a terminal
// status is reached, then invokes Close-out (C9) (spec §4.7 "When the
// final stage converges, invoke Close-out").
func (st *Stepper) Run(ev *locator.Event) (locator.Status, closeout.Result) {
	if ev.IsLocationHeld {
		phaseid.Identify(ev, st.sess, st.cfg, false)
		if !ev.IsBayesianDepthFixed {
			ev.BayesianDepth = bayesdepth.Select(ev.Hypo.Lat, ev.Hypo.Lon, ev.Hypo.Depth, st.aux, st.cfg)
			updateBayesianRow(ev)
		}
		ev.AddAudit(0, 0, locator.StatusHeldHypocenter)
		return locator.StatusHeldHypocenter, closeout.Compute(ev, st.cfg, st.grade)
	}

	prevStepLen := 0.0
	for stage := 0; stage < st.cfg.StageLimit; stage++ {
		stageCfg := st.cfg.Stage(stage)
		if stage == 1 {
			for i := range ev.Picks {
				ev.Picks[i].Used = ev.Picks[i].ExternalUse
			}
			if st.cov != nil {
				ev.UseDecorrelation = true
			}
		}

		status, lastStepLen, terminal := st.runStage(ev, stage, stageCfg, prevStepLen)
		prevStepLen = lastStepLen
		if terminal {
			if status == locator.StatusInsufficientData {
				return status, closeout.Result{Status: status}
			}
			return status, closeout.Compute(ev, st.cfg, st.grade)
		}
	}
	return locator.StatusSuccess, closeout.Compute(ev, st.cfg, st.grade)
}

// runStage iterates within one stage (spec §4.7 "Within a stage,
// iterate"). Returns the status if it is terminal (ends the whole run);
// terminal=false means the stage converged and the outer loop should
// move to the next stage.
func (st *Stepper) runStage(ev *locator.Event, stage int, stageCfg config.Stage, prevStepLen float64) (status locator.Status, lastStep float64, terminal bool) {
	noReIDDefault := stage == 0
	stepLen := prevStepLen

	for iter := 0; iter < stageCfg.Iter; iter++ {
		changed, nUsed := phaseid.Identify(ev, st.sess, st.cfg, noReIDDefault)
		if nUsed < 3 {
			ev.AddAudit(stage, iter, locator.StatusInsufficientData)
			return locator.StatusInsufficientData, stepLen, true
		}

		if !ev.IsBayesianDepthFixed {
			ev.BayesianDepth = bayesdepth.Select(ev.Hypo.Lat, ev.Hypo.Lon, ev.Hypo.Depth, st.aux, st.cfg)
			updateBayesianRow(ev)
		}

		rows := ev.ResidualsRaw
		if ev.UseDecorrelation && st.cov != nil {
			ev.SaveOriginalResiduals()
			rows = st.decorrelated(ev)
			ev.ResidualsProjected = rows
		}

		primary := rse.New(rows)
		_, tok := primary.Median()
		primary.DemedianResiduals()
		primary.DemedianDesignMatrix(tok)
		D := primary.Dispersion()
		bayesBefore := primary.BayesianContribution()
		dof := ev.Hypo.DegreesOfFreedom()
		u := primary.SteepestDescent(dof)

		if u == [3]float64{} {
			ev.AddAudit(stage, iter, locator.StatusDidNotConverge)
			return locator.StatusDidNotConverge, stepLen, true
		}

		evaluate := func(s float64) (float64, float64) {
			for i := range rows {
				d := rows[i].DemedianedDerivatives()
				rows[i].EstResidual = rows[i].Residual - s*(u[0]*d[0]+u[1]*d[1]+u[2]*d[2])
			}
			primary.LinEstMedian()
			primary.DemedianEst()
			return 0, primary.EstDispersion()
		}

		s0 := math.Max(stepLen, 2*stageCfg.Conv)
		if iter == 0 && stage == 0 && stepLen == 0 {
			s0 = 0.01
		}
		res := linearstep.Search(evaluate, s0, stageCfg.Conv, stageCfg.StepMax, D)

		if res.NoStep || (res.Dispersion >= D && res.StepLen < stageCfg.Conv) {
			ev.AddAudit(stage, iter, locator.StatusSuccess)
			return locator.StatusSuccess, 0, false
		}

		goodAudit := ev.AddAudit(stage, iter, locator.StatusSuccess)

		ev.UpdateStep(res.StepLen, u, 0)
		reidChanged, _ := phaseid.Identify(ev, st.sess, st.cfg, true)
		newMedian := medianOfResiduals(ev)
		ev.UpdateOriginTime(newMedian)

		if reidChanged || changed {
			ev.AddAudit(stage, iter, locator.StatusPhaseIDChanged)
			continue
		}

		rowsAfter := ev.ResidualsRaw
		if ev.UseDecorrelation && st.cov != nil {
			ev.SaveOriginalResiduals()
			rowsAfter = st.decorrelated(ev)
			ev.ResidualsProjected = rowsAfter
		}
		after := rse.New(rowsAfter)
		_, afterTok := after.Median()
		after.DemedianResiduals()
		after.DemedianDesignMatrix(afterTok)
		newD := after.Dispersion()
		bayesAfter := after.BayesianContribution()

		adjusted := newD - (bayesAfter - bayesBefore)
		if adjusted < D {
			stepLen = res.StepLen
			if res.StepLen <= stageCfg.Conv {
				return locator.StatusSuccess, 0, false
			}
			continue
		}

		finalStatus, ok := st.damp(ev, stage, iter, stageCfg, u, res.StepLen, D, goodAudit)
		if !ok {
			return finalStatus, stepLen, true
		}
		stepLen = 0
	}

	ev.AddAudit(stage, stageCfg.Iter, locator.StatusDidNotConverge)
	return locator.StatusDidNotConverge, stepLen, true
}

// damp implements spec §4.7 step 7's damping path: halve the step
// repeatedly, restoring from the last good audit each try, until
// dispersion drops or the step falls below CONV[s].
func (st *Stepper) damp(ev *locator.Event, stage, iter int, stageCfg config.Stage, u [3]float64, stepLen, baseline float64, goodAudit locator.HypoAudit) (locator.Status, bool) {
	s := stepLen
	for s > stageCfg.Conv {
		s *= st.cfg.Dampening
		ev.Restore(goodAudit)
		ev.UpdateStep(s, u, 0)
		phaseid.Identify(ev, st.sess, st.cfg, true)

		rows := ev.ResidualsRaw
		r := rse.New(rows)
		r.Median()
		r.DemedianResiduals()
		D := r.Dispersion()

		ev.AddAudit(stage, iter, locator.StatusDampStepLength)
		if D < baseline {
			return locator.StatusSuccess, true
		}
	}

	ev.Restore(goodAudit)
	switch {
	case math.Abs(s-stageCfg.Conv) < stageCfg.Conv*0.5:
		return locator.StatusNearlyConverged, false
	case s > stageCfg.StepMax*0.5:
		return locator.StatusUnstableSolution, false
	default:
		return locator.StatusDidNotConverge, false
	}
}

// decorrelated runs the decorrelator over ev's current raw residuals
// (excluding the Bayesian row) and returns the projected rows with the
// Bayesian row appended unchanged (spec §4.4).
func (st *Stepper) decorrelated(ev *locator.Event) []locator.WeightedResidual {
	var rows []locator.WeightedResidual
	var covariates []ports.PickCovariate
	var bayesian *locator.WeightedResidual

	for i := range ev.ResidualsRaw {
		row := ev.ResidualsRaw[i]
		if row.IsBayesianDepth {
			b := row
			bayesian = &b
			continue
		}
		rows = append(rows, row)
		pick := ev.Picks[row.PickIdx]
		station := ev.Stations[pick.StationIdx]
		covariates = append(covariates, ports.PickCovariate{
			Lat:        station.Lat,
			Lon:        station.Lon,
			PhaseType:  phaseTypeByte(pick.CurrentPhaseCode),
			ArrivalSec: pick.ArrivalTime,
			WindowSec:  1,
		})
	}

	result := st.decorr.Decorrelate(rows, covariates, st.cov, ev.Picks, bayesian)
	return result.Projected
}

func phaseTypeByte(code string) byte {
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

// updateBayesianRow refreshes (or appends) the Bayesian pseudo-row in
// ev.ResidualsRaw to reflect a freshly selected depth prior, without
// re-running the full phase-identification pass.
func updateBayesianRow(ev *locator.Event) {
	w := 0.0
	if ev.BayesianDepth.Spread > 0 {
		w = 1 / ev.BayesianDepth.Spread
	}
	row := locator.WeightedResidual{
		PickIdx:         locator.NoPick,
		IsBayesianDepth: true,
		Residual:        ev.Hypo.Depth - ev.BayesianDepth.Depth,
		Weight:          w,
		DtDDepth:        1,
	}
	for i := range ev.ResidualsRaw {
		if ev.ResidualsRaw[i].IsBayesianDepth {
			ev.ResidualsRaw[i] = row
			return
		}
	}
	ev.ResidualsRaw = append(ev.ResidualsRaw, row)
}

func medianOfResiduals(ev *locator.Event) float64 {
	var vals []float64
	for _, p := range ev.Picks {
		if p.Used {
			vals = append(vals, p.Residual)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	for i := 1; i < len(vals); i++ {
		v := vals[i]
		j := i - 1
		for j >= 0 && vals[j] > v {
			vals[j+1] = vals[j]
			j--
		}
		vals[j+1] = v
	}
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
