package locator

import "math"

// Hypocenter holds the four location parameters plus the derived
// trigonometric quantities used repeatedly by derivative rotations
// (spec §3). Caching cos/sin avoids recomputing them once per pick, once
// per stage, for the life of a location run.
type Hypocenter struct {
	OriginTime float64 // t0, seconds since epoch
	Lat        float64 // geographic latitude, degrees
	Lon        float64 // longitude, degrees
	Depth      float64 // z, km

	depthHeld bool

	coLatSin float64
	coLatCos float64
	lonSin   float64
	lonCos   float64
}

// NewHypocenter builds a Hypocenter and populates its derived fields.
func NewHypocenter(originTime, lat, lon, depth float64, depthHeld bool) Hypocenter {
	h := Hypocenter{OriginTime: originTime, Lat: lat, Lon: lon, Depth: depth, depthHeld: depthHeld}
	h.refreshTrig()
	return h
}

func (h *Hypocenter) refreshTrig() {
	coLat := 90 - geocentricLatitude(h.Lat)
	rad := coLat * math.Pi / 180
	h.coLatSin, h.coLatCos = math.Sin(rad), math.Cos(rad)
	lonRad := h.Lon * math.Pi / 180
	h.lonSin, h.lonCos = math.Sin(lonRad), math.Cos(lonRad)
}

// geocentricLatitude converts geographic latitude to geocentric latitude
// using the WGS84 flattening-derived factor, so co-latitude derivatives
// used in the travel-time rotation match the ellipsoidal Earth rather
// than a spherical approximation.
func geocentricLatitude(geographicLatDeg float64) float64 {
	const flatteningFactor = 0.993305616 // (1-f)^2 for WGS84, f = 1/298.257223563
	rad := geographicLatDeg * math.Pi / 180
	geocentricRad := math.Atan(flatteningFactor * math.Tan(rad))
	return geocentricRad * 180 / math.Pi
}

// CoLatSinCos returns the cached sine/cosine of geocentric co-latitude.
func (h Hypocenter) CoLatSinCos() (sin, cos float64) { return h.coLatSin, h.coLatCos }

// LonSinCos returns the cached sine/cosine of longitude.
func (h Hypocenter) LonSinCos() (sin, cos float64) { return h.lonSin, h.lonCos }

// DepthHeld reports whether depth is fixed for this event (spec §3: when
// held, z never changes and degrees of freedom drops to 2).
func (h Hypocenter) DepthHeld() bool { return h.depthHeld }

// DegreesOfFreedom returns 3, or 2 when depth is held (spec §3).
func (h Hypocenter) DegreesOfFreedom() int {
	if h.depthHeld {
		return 2
	}
	return 3
}

// ClampDepth clamps z into [min, max], per spec §3's invariant that step
// vectors must clamp depth into range. Returns the (possibly adjusted)
// depth and whether clamping occurred.
func ClampDepth(z, min, max float64) (float64, bool) {
	if z < min {
		return min, true
	}
	if z > max {
		return max, true
	}
	return z, false
}

// Apply returns a new Hypocenter with the origin time and spatial
// increment applied; depth is clamped into [depthMin, depthMax] and, when
// DepthHeld is true, left untouched regardless of dz (spec §3 invariant).
func (h Hypocenter) Apply(dOriginTime, dLat, dLon, dDepth, depthMin, depthMax float64) Hypocenter {
	next := h
	next.OriginTime += dOriginTime
	next.Lat += dLat
	next.Lon += dLon
	if !h.depthHeld {
		z, _ := ClampDepth(h.Depth+dDepth, depthMin, depthMax)
		next.Depth = z
	}
	next.refreshTrig()
	return next
}

// WithOriginTime returns a copy with only the origin time changed -- the
// cheap path used by Event.updateOriginTime (spec §4.9), since t0 has no
// bearing on the cached trig.
func (h Hypocenter) WithOriginTime(t0 float64) Hypocenter {
	next := h
	next.OriginTime = t0
	return next
}
