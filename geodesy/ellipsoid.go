package geodesy

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/geekmug/posed/spatialmath"
)

// ECEFFrameName is the name of the Earth-centered, Earth-fixed body frame
// every frame forest hangs off of.
const ECEFFrameName = "ECEF"

// Ellipsoid maps between geodetic coordinates and the Earth-centered,
// Earth-fixed Cartesian frame.
type Ellipsoid interface {
	// BodyFrameName identifies the ECEF frame all transforms hang off of.
	BodyFrameName() string

	// ToECEF converts a geodetic point to ECEF coordinates in meters.
	ToECEF(p GeodeticPoint) r3.Vector

	// FromECEF converts ECEF coordinates to a geodetic point. It errors
	// when the conversion is degenerate (e.g. at the geocenter, where
	// latitude is undefined).
	FromECEF(v r3.Vector) (GeodeticPoint, error)

	// TopocentricRotation returns the rotation operator taking ECEF
	// coordinates into the topocentric (North, East, Down) frame at the
	// given point.
	TopocentricRotation(p GeodeticPoint) quat.Number
}

// ellipsoid is a reference ellipsoid of revolution.
type ellipsoid struct {
	name string
	a    float64 // semi-major axis (meters)
	f    float64 // flattening
	b    float64 // semi-minor axis (meters)
	e2   float64 // first eccentricity squared
}

// WGS84 returns the World Geodetic System 1984 reference ellipsoid.
func WGS84() Ellipsoid {
	return NewEllipsoid("WGS-84", 6378137.0, 1.0/298.257223563)
}

// NewEllipsoid builds a reference ellipsoid from a semi-major axis in meters
// and a flattening.
func NewEllipsoid(name string, semiMajorAxis, flattening float64) Ellipsoid {
	return &ellipsoid{
		name: name,
		a:    semiMajorAxis,
		f:    flattening,
		b:    semiMajorAxis * (1 - flattening),
		e2:   flattening * (2 - flattening),
	}
}

func (e *ellipsoid) BodyFrameName() string {
	return ECEFFrameName
}

// primeVerticalRadius returns the radius of curvature in the prime vertical
// at the given geodetic latitude.
func (e *ellipsoid) primeVerticalRadius(sinLat float64) float64 {
	return e.a / math.Sqrt(1-e.e2*sinLat*sinLat)
}

func (e *ellipsoid) ToECEF(p GeodeticPoint) r3.Vector {
	sinLat, cosLat := math.Sincos(p.Latitude)
	sinLon, cosLon := math.Sincos(p.Longitude)
	n := e.primeVerticalRadius(sinLat)
	return r3.Vector{
		X: (n + p.Altitude) * cosLat * cosLon,
		Y: (n + p.Altitude) * cosLat * sinLon,
		Z: (n*(1-e.e2) + p.Altitude) * sinLat,
	}
}

// fromECEFIterations is enough for sub-micrometer convergence of the
// latitude iteration anywhere outside the deep interior of the Earth.
const fromECEFIterations = 6

func (e *ellipsoid) FromECEF(v r3.Vector) (GeodeticPoint, error) {
	p := math.Hypot(v.X, v.Y)
	if p == 0 && v.Z == 0 {
		return GeodeticPoint{}, errors.New("geodetic coordinates are undefined at the geocenter")
	}
	lon := math.Atan2(v.Y, v.X)

	// Iterate latitude starting from the estimate for a point on the
	// ellipsoid surface.
	lat := math.Atan2(v.Z, p*(1-e.e2))
	for i := 0; i < fromECEFIterations; i++ {
		sinLat := math.Sin(lat)
		n := e.primeVerticalRadius(sinLat)
		lat = math.Atan2(v.Z+e.e2*n*sinLat, p)
	}

	// This altitude form stays well-conditioned at the poles, where the
	// horizontal distance carries no height information.
	sinLat, cosLat := math.Sincos(lat)
	alt := p*cosLat + v.Z*sinLat - e.a*math.Sqrt(1-e.e2*sinLat*sinLat)
	point := GeodeticPoint{Latitude: lat, Longitude: lon, Altitude: alt}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsNaN(alt) {
		return GeodeticPoint{}, errors.Errorf("geodetic conversion diverged for %v", v)
	}
	return point, nil
}

func (e *ellipsoid) TopocentricRotation(p GeodeticPoint) quat.Number {
	sinLat, cosLat := math.Sincos(p.Latitude)
	sinLon, cosLon := math.Sincos(p.Longitude)
	north := r3.Vector{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat}
	east := r3.Vector{X: -sinLon, Y: cosLon, Z: 0}
	down := r3.Vector{X: -cosLat * cosLon, Y: -cosLat * sinLon, Z: -sinLat}
	return spatialmath.QuatFromAxes(north, east, down)
}
