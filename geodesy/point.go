// Package geodesy models the Earth reference ellipsoid and the geodetic
// coordinates used to anchor frame subgraphs to it.
package geodesy

import (
	"fmt"

	geo "github.com/kellydunn/golang-geo"

	"github.com/geekmug/posed/spatialmath"
)

// GeodeticPoint is a position relative to the reference ellipsoid: latitude
// and longitude in radians, and height above the ellipsoid in meters.
type GeodeticPoint struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// NewGeodeticPointFromDegrees builds a point from latitude and longitude in
// degrees and height above the ellipsoid in meters.
func NewGeodeticPointFromDegrees(latDeg, lonDeg, altitude float64) GeodeticPoint {
	return GeodeticPoint{
		Latitude:  spatialmath.DegToRad(latDeg),
		Longitude: spatialmath.DegToRad(lonDeg),
		Altitude:  altitude,
	}
}

// NewGeodeticPointFromGeoPoint builds a point from a geo.Point (degrees) and
// a height above the ellipsoid in meters.
func NewGeodeticPointFromGeoPoint(p *geo.Point, altitude float64) GeodeticPoint {
	return NewGeodeticPointFromDegrees(p.Lat(), p.Lng(), altitude)
}

// GeoPoint returns the latitude/longitude of the point as a geo.Point in
// degrees, dropping the altitude.
func (p GeodeticPoint) GeoPoint() *geo.Point {
	return geo.NewPoint(spatialmath.RadToDeg(p.Latitude), spatialmath.RadToDeg(p.Longitude))
}

func (p GeodeticPoint) String() string {
	return fmt.Sprintf("{lat=%.7f, lon=%.7f, alt=%.3f}",
		spatialmath.RadToDeg(p.Latitude), spatialmath.RadToDeg(p.Longitude), p.Altitude)
}

// GeodeticPose is a geodetic position plus an orientation expressed in the
// topocentric (North, East, Down) frame at that position.
type GeodeticPose struct {
	Position    GeodeticPoint
	Orientation spatialmath.NauticalAngles
}

// AlmostEqual reports whether two geodetic poses agree within angularTol
// radians (latitude, longitude, and orientation) and linearTol meters
// (altitude).
func (p GeodeticPose) AlmostEqual(other GeodeticPose, linearTol, angularTol float64) bool {
	dLat := p.Position.Latitude - other.Position.Latitude
	dLon := p.Position.Longitude - other.Position.Longitude
	dAlt := p.Position.Altitude - other.Position.Altitude
	if dLat > angularTol || dLat < -angularTol ||
		dLon > angularTol || dLon < -angularTol ||
		dAlt > linearTol || dAlt < -linearTol {
		return false
	}
	return p.Orientation.AlmostEqual(other.Orientation, angularTol)
}

func (p GeodeticPose) String() string {
	return fmt.Sprintf("{%s %s}", p.Position, p.Orientation)
}
