// Package config groups every tunable of the locator engine into one
// struct passed by reference, following spec §9's "Explicit configuration"
// design note. Values load from the environment (with an optional .env
// file via godotenv, mirroring the teacher's internal/config/config.go)
// or fall back to Default(), the locator's published constants.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	apperr "hypolocator/internal/errors"
)

// Stage holds the per-stage controller limits used by the Stepper (C8).
type Stage struct {
	Conv    float64 // convergence tolerance, km
	StepMax float64 // per-stage step cap, km
	Iter    int     // iteration cap
}

// Config groups all locator tunables named in spec §9.
type Config struct {
	DepthMin float64 // DEPTH_MIN, km
	DepthMax float64 // DEPTH_MAX, km

	DefaultDepth   float64 // DEFAULT_DEPTH, km
	DefaultDepthSE float64 // DEFAULT_DEPTH_SE, km

	PerPt1D float64 // PERPT1D: 90% marginal error scale factor
	PerPt2D float64 // PERPT2D: 90% scale factor for the 2-axis ellipse
	PerPt3D float64 // PERPT3D: 90% scale factor for the 3-axis ellipsoid

	EffOffset float64 // EFF_OFFSET
	EffSlope  float64 // EFF_SLOPE

	MadNorm  float64 // MADNORM, normalized MAD scale factor
	BadRatio float64 // BAD_RATIO, initial phase-ID complex-mode threshold

	MaxPicksDecorr int     // MAX_PICKS_DECORR
	EigenLimit     float64 // EIGEN_LIMIT, cumulative-variance retention fraction
	EigenThresh    float64 // EIGEN_THRESH, next-eigenvalue cutoff fraction

	Stages     []Stage // one entry per location stage, indexed by stage number
	StageLimit int     // STAGE_LIMIT

	AssocTol float64 // ASSOC_TOL, seconds

	DownWeight   float64 // DOWNWEIGHT
	GroupWeight  float64 // GROUPWEIGHT
	TypeWeight   float64 // TYPEWEIGHT
	ObservMin    float64 // OBSERV_MIN
	OtherWeight  float64 // multiplier when GROUPWEIGHT does not apply, i.e. the groups do not match (spec §4.3 step 5)
	StickyWeight float64 // multiplier when a candidate phase equals the pick's previous current phase (spec §4.3 step 5)

	DeepestShallow      float64 // DEEPEST_SHALLOW, km
	SlabMergeDepth      float64 // SLAB_MERGE_DEPTH, km
	SlabMaxShallowDepth float64 // SLAB_MAX_SHALLOW_DEPTH, km

	Dampening float64 // step-damping multiplier in (0,1)

	// Quality thresholds, one entry per grade A..D, narrowest-first.
	QualityHorizRadiusKm [4]float64 // equivalent horizontal error radius
	QualityVertErrorKm   [4]float64 // depth marginal error
	QualityMinNUsed      [4]int     // minimum nUsed
	QualitySemiAxisKm    [4]float64 // longest semi-axis cap

	MaxNegResidual float64 // MAX_NEG_RESIDUAL, seconds (Pick invariant bound)
}

// Default returns the locator's published default configuration so tests
// and the CLI never require an environment to run.
func Default() *Config {
	return &Config{
		DepthMin: 0, DepthMax: 750,

		DefaultDepth:   7.5,
		DefaultDepthSE: 15,

		PerPt1D: 1.6449, // 90% two-sided (95% one-sided) normal quantile
		PerPt2D: 2.1460,
		PerPt3D: 2.5003,

		EffOffset: 1.6,
		EffSlope:  0.4,

		MadNorm:  1.4826,
		BadRatio: 0.4,

		MaxPicksDecorr: 25,
		EigenLimit:     0.99,
		EigenThresh:    0.05,

		Stages: []Stage{
			{Conv: 0.01, StepMax: 5, Iter: 15},
			{Conv: 0.01, StepMax: 25, Iter: 15},
			{Conv: 0.01, StepMax: 50, Iter: 15},
		},
		StageLimit: 3,

		AssocTol: 5,

		DownWeight:   0.5,
		GroupWeight:  2.0,
		TypeWeight:   0.5,
		ObservMin:    0.1,
		OtherWeight:  1.0,
		StickyWeight: 1.5,

		DeepestShallow:      30,
		SlabMergeDepth:      35,
		SlabMaxShallowDepth: 60,

		Dampening: 0.5,

		QualityHorizRadiusKm: [4]float64{5, 15, 50, 1e9},
		QualityVertErrorKm:   [4]float64{5, 15, 50, 1e9},
		QualityMinNUsed:      [4]int{20, 10, 5, 0},
		QualitySemiAxisKm:    [4]float64{10, 30, 100, 1e9},

		MaxNegResidual: 60,
	}
}

// Stage returns the controller limits for stage s, clamping to the last
// configured stage if s exceeds the configured list, so every stage past
// the end repeats the last entry's limits.
func (c *Config) Stage(s int) Stage {
	if s < 0 {
		s = 0
	}
	if s >= len(c.Stages) {
		s = len(c.Stages) - 1
	}
	return c.Stages[s]
}

// Load reads overrides from the environment (after loading .env if
// present) on top of Default(), then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence of a .env file is not an error

	cfg := Default()

	cfg.DepthMin = envFloat("LOCATOR_DEPTH_MIN", cfg.DepthMin)
	cfg.DepthMax = envFloat("LOCATOR_DEPTH_MAX", cfg.DepthMax)
	cfg.DefaultDepth = envFloat("LOCATOR_DEFAULT_DEPTH", cfg.DefaultDepth)
	cfg.DefaultDepthSE = envFloat("LOCATOR_DEFAULT_DEPTH_SE", cfg.DefaultDepthSE)
	cfg.MaxPicksDecorr = envInt("LOCATOR_MAX_PICKS_DECORR", cfg.MaxPicksDecorr)
	cfg.StageLimit = envInt("LOCATOR_STAGE_LIMIT", cfg.StageLimit)
	cfg.Dampening = envFloat("LOCATOR_DAMPENING", cfg.Dampening)

	if err := cfg.Validate(); err != nil {
		return nil, apperr.Wrap(err, "failed to load locator configuration")
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the engine relies on.
func (c *Config) Validate() error {
	if c.DepthMin < 0 || c.DepthMax <= c.DepthMin {
		return apperr.ConfigInvalid("depth range invalid: DepthMin must be >= 0 and < DepthMax")
	}
	if c.MaxPicksDecorr < 2 {
		return apperr.ConfigInvalid("MaxPicksDecorr must be >= 2")
	}
	if c.Dampening <= 0 || c.Dampening >= 1 {
		return apperr.ConfigInvalid("Dampening must be in (0,1)")
	}
	if len(c.Stages) == 0 {
		return apperr.ConfigInvalid("at least one Stage is required")
	}
	if c.EigenLimit <= 0 || c.EigenLimit > 1 {
		return apperr.ConfigInvalid("EigenLimit must be in (0,1]")
	}
	return nil
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
