// Package locate is the top-level orchestrator tying the Initial
// Phase-ID pass (C6), the Stepper (C8), and Close-out (C9) into the
// external interface of spec §6: one Locate call per event, translating
// the caller's input envelope into an Event, running the engine, and
// translating the result back into the output envelope.
package locate

import (
	"sort"
	"strings"

	"hypolocator/domain/core"
	"hypolocator/domain/locator"
	"hypolocator/internal/config"
	apperr "hypolocator/internal/errors"
	"hypolocator/internal/locate/closeout"
	"hypolocator/internal/locate/initialid"
	"hypolocator/internal/locate/stepper"
	"hypolocator/ports"
)

// InputPick is one arrival observation on the input envelope (spec §6).
type InputPick struct {
	ID string

	Network, Station, Channel, Location string
	Lat, Lon                            float64
	ElevationM                          float64

	AgencyID string
	Author   string
	AuthorType string // "ContributedAutomatic" | "LocalAutomatic" | "ContributedHuman" | "LocalHuman"

	TimeMillis      int64
	PickedPhase     string
	AssociatedPhase string
	Use             bool
	QualitySec      float64
	Affinity        float64 // >=0, 0 => default by author type
}

// Input is the per-event input envelope (spec §6).
type Input struct {
	ID             string
	EarthModel     string
	SlabResolution string

	SourceOriginTimeMillis int64
	SourceLatitude         float64
	SourceLongitude        float64
	SourceDepthKm          float64

	IsLocationHeld  bool
	IsDepthHeld     bool
	IsBayesianDepth bool
	BayesianDepthKm   float64
	BayesianSpreadKm  float64
	IsLocationNew     bool
	UseDecorrelation  bool // "useSVD" on the envelope

	Picks []InputPick
}

// OutputAxis is one semi-axis of the reported error ellipse (spec §6).
type OutputAxis struct {
	SemiLengthKm float64
	AzimuthDeg   float64
	PlungeDeg    float64
}

// OutputPick mirrors one input pick with the fields the engine adds
// (spec §6 "supporting pick array").
type OutputPick struct {
	ID            string
	Residual      float64
	DistanceDeg   float64
	AzimuthDeg    float64
	Weight        float64
	Importance    float64
	LocatedPhase  string
	Used          bool
}

// Output is the per-event output envelope (spec §6).
type Output struct {
	ID       string
	ExitCode string

	OriginTimeMillis int64
	Latitude         float64
	Longitude        float64
	DepthKm          float64

	OriginTimeErrorSec float64
	LatErrorKm         float64
	LonErrorKm         float64
	DepthErrorKm       float64

	Axes               []OutputAxis
	MaxHorizontalKm    float64
	MaxVerticalKm      float64
	EquivHorizRadiusKm float64

	NAssociated     int
	NUsedStations   int
	NUsedPhases     int
	GapDeg          float64
	SecondaryGapDeg float64
	MinDistanceDeg  float64
	RMSResidualSec  float64

	BayesianDepthKm         float64
	BayesianDepthRangeKm    float64
	BayesianDepthImportance float64

	Picks []OutputPick

	Quality byte
}

// Deps bundles the external collaborators Locate needs (spec §6's
// travel-time and auxiliary-data providers, plus the optional
// covariance model and quality-grading hook).
type Deps struct {
	TravelTimes ports.TravelTimeProvider
	Aux         ports.AuxDataProvider
	Covariance  ports.CovarianceModel
	Grade       closeout.Grade
}

// Locate runs one event through the full engine: builds the Event from
// in, runs the Initial Phase-ID pass, then the Stepper (which itself
// invokes Close-out on a terminal status), and renders the result as an
// Output envelope.
func Locate(cfg *config.Config, deps Deps, in Input) (Output, error) {
	eventID, err := core.ParseEventID(in.ID)
	if err != nil {
		return Output{ExitCode: "BadInput"}, err
	}

	ev, err := buildEvent(eventID, cfg, in)
	if err != nil {
		return Output{ID: in.ID, ExitCode: "BadInput"}, err
	}

	depthKm := ev.Hypo.Depth
	sess, err := deps.TravelTimes.NewSession(in.EarthModel, depthKm, nil, ev.Hypo.Lat, ev.Hypo.Lon, true, true, false, false)
	if err != nil {
		return Output{ID: in.ID, ExitCode: "CouldNotReadTTData"}, apperr.CouldNotReadTT(err)
	}

	initialid.Run(ev, sess, cfg)

	st := stepper.New(cfg, sess, deps.Aux, deps.Covariance, deps.Grade)
	status, result := st.Run(ev)

	return render(in, ev, status, result), nil
}

func buildEvent(id core.EventID, cfg *config.Config, in Input) (*locator.Event, error) {
	originTime := float64(in.SourceOriginTimeMillis) / 1000
	hypo := locator.NewHypocenter(originTime, in.SourceLatitude, in.SourceLongitude, in.SourceDepthKm, in.IsDepthHeld)

	ev := locator.NewEvent(id, hypo, cfg.DepthMin, cfg.DepthMax, 64)
	ev.IsLocationHeld = in.IsLocationHeld
	ev.IsDepthHeld = in.IsDepthHeld
	ev.IsLocationNew = in.IsLocationNew
	ev.UseDecorrelation = in.UseDecorrelation

	if in.IsBayesianDepth {
		ev.IsBayesianDepthFixed = true
		ev.BayesianDepth = locator.BayesianDepthRecord{
			Depth: in.BayesianDepthKm, Spread: in.BayesianSpreadKm, Source: locator.DepthSourceShallow,
		}
	}

	stationIdx := make(map[string]int)
	for _, ip := range in.Picks {
		st := locator.Station{
			Network: ip.Network, Code: ip.Station, Location: ip.Location,
			Lat: ip.Lat, Lon: ip.Lon, ElevKm: ip.ElevationM / 1000,
		}
		key := st.ID()
		if _, ok := stationIdx[key]; !ok {
			stationIdx[key] = len(ev.Stations)
			ev.Stations = append(ev.Stations, st)
		}
	}

	byStation := make(map[int][]int) // station idx -> input pick positions
	for i, ip := range in.Picks {
		si := stationIdx[locator.Station{Network: ip.Network, Code: ip.Station, Location: ip.Location}.ID()]
		byStation[si] = append(byStation[si], i)
	}

	stationOrder := make([]int, 0, len(byStation))
	for si := range byStation {
		stationOrder = append(stationOrder, si)
	}
	sort.Ints(stationOrder)

	for _, si := range stationOrder {
		positions := byStation[si]
		sort.SliceStable(positions, func(a, b int) bool {
			return in.Picks[positions[a]].TimeMillis < in.Picks[positions[b]].TimeMillis
		})
		start := len(ev.Picks)
		for _, pos := range positions {
			ip := in.Picks[pos]
			author := parseAuthorType(ip.AuthorType)
			affinity := ip.Affinity
			if affinity <= 0 {
				affinity = author.DefaultAffinity()
			}
			p := locator.Pick{
				StationIdx:        si,
				ExternalID:        ip.ID,
				ArrivalTime:       float64(ip.TimeMillis) / 1000,
				Channel:           ip.Channel,
				Quality:           ip.QualitySec,
				ExternalUse:       ip.Use,
				Affinity:          affinity,
				OriginalPhaseCode: ip.PickedPhase,
				CurrentPhaseCode:  ip.PickedPhase,
				BestPhaseCode:     ip.PickedPhase,
				Author:            author,
				Automatic:         author.IsAutomatic(),
				Used:              ip.Use,
			}
			if ip.PickedPhase == "Lg" || ip.PickedPhase == "LR" {
				p.SurfaceWave = true
			}
			ev.Picks = append(ev.Picks, p)
		}
		ev.Groups = append(ev.Groups, locator.PickGroup{StationIdx: si, PickStart: start, PickEnd: len(ev.Picks)})
	}

	ev.Update(originTime, in.SourceLatitude, in.SourceLongitude, in.SourceDepthKm)

	sort.SliceStable(ev.Groups, func(i, j int) bool {
		return ev.Picks[ev.Groups[i].PickStart].TravelTime < ev.Picks[ev.Groups[j].PickStart].TravelTime
	})

	return ev, nil
}

func parseAuthorType(s string) locator.AuthorType {
	switch strings.ToLower(s) {
	case "contributedautomatic":
		return locator.AuthorContributedAuto
	case "localautomatic":
		return locator.AuthorLocalAuto
	case "contributedhuman":
		return locator.AuthorContributedHuman
	case "localhuman":
		return locator.AuthorLocalHuman
	default:
		return locator.AuthorUnknown
	}
}

func render(in Input, ev *locator.Event, status locator.Status, result closeout.Result) Output {
	out := Output{
		ID:       in.ID,
		ExitCode: status.ExternalCode(),

		OriginTimeMillis: int64(ev.Hypo.OriginTime * 1000),
		Latitude:         ev.Hypo.Lat,
		Longitude:        ev.Hypo.Lon,
		DepthKm:          ev.Hypo.Depth,

		OriginTimeErrorSec: result.OriginTimeErrorSec,
		LatErrorKm:         result.MarginalErrorKm[0],
		LonErrorKm:         result.MarginalErrorKm[1],
		DepthErrorKm:       result.MarginalErrorKm[2],

		MaxHorizontalKm:    result.MaxHorizKm,
		MaxVerticalKm:      result.MaxVertKm,
		EquivHorizRadiusKm: result.EquivHorizRadiusKm,

		NAssociated:   len(ev.Picks),
		NUsedStations: countUsedStations(ev),
		NUsedPhases:   ev.NUsed(),
		GapDeg:        result.GapDeg,
		SecondaryGapDeg: result.RobustGapDeg,
		MinDistanceDeg: minDistance(ev),
		RMSResidualSec: result.ResidualErrorSec,

		BayesianDepthKm:         ev.BayesianDepth.Depth,
		BayesianDepthRangeKm:    3 * ev.BayesianDepth.Spread,
		BayesianDepthImportance: result.BayesianDepthImportance,

		Quality: result.Quality,
	}

	for _, a := range result.Axes {
		out.Axes = append(out.Axes, OutputAxis{SemiLengthKm: a.SemiLengthKm, AzimuthDeg: a.AzimuthDeg, PlungeDeg: a.PlungeDeg})
	}

	for gi := range ev.Groups {
		g := ev.Groups[gi]
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			p := ev.Picks[pi]
			op := OutputPick{
				ID:           p.ExternalID,
				Residual:     p.Residual,
				DistanceDeg:  g.DistanceDeg,
				AzimuthDeg:   g.AzimuthDeg,
				Weight:       p.Weight,
				Importance:   result.PickImportance[pi],
				LocatedPhase: p.CurrentPhaseCode,
				Used:         p.Used,
			}
			out.Picks = append(out.Picks, op)
		}
	}

	return out
}

func countUsedStations(ev *locator.Event) int {
	n := 0
	for _, g := range ev.Groups {
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			if ev.Picks[pi].Used {
				n++
				break
			}
		}
	}
	return n
}

func minDistance(ev *locator.Event) float64 {
	min := -1.0
	for _, g := range ev.Groups {
		used := false
		for pi := g.PickStart; pi < g.PickEnd; pi++ {
			if ev.Picks[pi].Used {
				used = true
				break
			}
		}
		if used && (min < 0 || g.DistanceDeg < min) {
			min = g.DistanceDeg
		}
	}
	if min < 0 {
		return 0
	}
	return min
}
