package locator

// Station identifies a seismic recording site. It is immutable for the
// life of an event (spec §3).
type Station struct {
	Network  string
	Code     string
	Location string // SEED "location" code, may be empty

	Lat      float64
	Lon      float64
	ElevKm   float64 // elevation above sea level, km
}

// ID returns the network.station.location identity tuple used as this
// station's map key within an Event.
func (s Station) ID() string {
	return s.Network + "." + s.Code + "." + s.Location
}
