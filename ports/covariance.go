package ports

// PickCovariate is the minimal geometry/phase context the covariance
// model needs to price the correlation between two picks (spec §4.4
// step 1: "station separation, phase type, and time window").
type PickCovariate struct {
	Lat, Lon   float64
	PhaseType  byte // 'P' or 'S'
	ArrivalSec float64
	WindowSec  float64
}

// CovarianceModel is the empirical correlation model k(pick_i, pick_j)
// the decorrelator (C4) uses to build the residual covariance matrix.
// Supplied by the travel-time ecosystem; not implemented here (spec §4.4,
// §6).
type CovarianceModel interface {
	Covariance(a, b PickCovariate) float64
}
