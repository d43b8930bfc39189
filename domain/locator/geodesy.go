package locator

import "math"

// DistanceAzimuth returns the great-circle distance (degrees) and azimuth
// (degrees, clockwise from north) from (lat0,lon0) to (lat1,lon1), used to
// refresh each PickGroup's Delta/Azimuth whenever the hypocenter moves
// (spec §3 PickGroup, §4.9 Event state operations).
func DistanceAzimuth(lat0, lon0, lat1, lon1 float64) (distDeg, azimuthDeg float64) {
	const d2r = math.Pi / 180
	const r2d = 180 / math.Pi

	phi0, phi1 := lat0*d2r, lat1*d2r
	dLon := (lon1 - lon0) * d2r

	cosDist := math.Sin(phi0)*math.Sin(phi1) + math.Cos(phi0)*math.Cos(phi1)*math.Cos(dLon)
	cosDist = clamp(cosDist, -1, 1)
	dist := math.Acos(cosDist) * r2d

	y := math.Sin(dLon) * math.Cos(phi1)
	x := math.Cos(phi0)*math.Sin(phi1) - math.Sin(phi0)*math.Cos(phi1)*math.Cos(dLon)
	az := math.Atan2(y, x) * r2d
	if az < 0 {
		az += 360
	}
	return dist, az
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
