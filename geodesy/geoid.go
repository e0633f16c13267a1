package geodesy

// Geoid supplies the offset between the reference ellipsoid and mean sea
// level. It is consulted only at encoding boundaries to convert heights
// above mean sea level to heights above the ellipsoid:
//
//	HAE = AMSL + Undulation(lat, lon)
type Geoid interface {
	// Undulation returns the ellipsoid-to-mean-sea-level offset in meters
	// at the given latitude and longitude (radians).
	Undulation(lat, lon float64) float64
}

type zeroGeoid struct{}

// ZeroGeoid returns a geoid coincident with the ellipsoid. It is the default
// when no geoid model is configured.
func ZeroGeoid() Geoid {
	return zeroGeoid{}
}

func (zeroGeoid) Undulation(lat, lon float64) float64 { return 0 }

type staticGeoid struct {
	offset float64
}

// StaticGeoid returns a geoid at a constant offset from the ellipsoid. Real
// deployments substitute a gridded model; a constant is adequate over the
// extent of a single site.
func StaticGeoid(offset float64) Geoid {
	return staticGeoid{offset: offset}
}

func (g staticGeoid) Undulation(lat, lon float64) float64 { return g.offset }
