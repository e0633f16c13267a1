package geodesy

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/geekmug/posed/spatialmath"
)

func TestToECEFKnownPoints(t *testing.T) {
	e := WGS84()

	// Equator at the prime meridian sits on the x-axis at the semi-major
	// axis.
	v := e.ToECEF(GeodeticPoint{})
	test.That(t, v.X, test.ShouldAlmostEqual, 6378137.0, 1e-8)
	test.That(t, v.Y, test.ShouldAlmostEqual, 0, 1e-8)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0, 1e-8)

	// The north pole sits on the z-axis at the semi-minor axis.
	v = e.ToECEF(NewGeodeticPointFromDegrees(90, 0, 0))
	test.That(t, math.Hypot(v.X, v.Y), test.ShouldAlmostEqual, 0, 1e-8)
	test.That(t, v.Z, test.ShouldAlmostEqual, 6356752.314245, 1e-5)

	// Longitude +/-180 lands on the negative x-axis either way.
	east := e.ToECEF(NewGeodeticPointFromDegrees(0, 180, 0))
	west := e.ToECEF(NewGeodeticPointFromDegrees(0, -180, 0))
	test.That(t, east.X, test.ShouldAlmostEqual, -6378137.0, 1e-6)
	test.That(t, east.Sub(west).Norm(), test.ShouldAlmostEqual, 0, 1e-6)
}

func TestECEFRoundTrip(t *testing.T) {
	e := WGS84()
	for _, lat := range []float64{-90, -89.999999, -60, -37.5, 0, 12.25, 45, 89.999999, 90} {
		for _, lon := range []float64{-180, -120, -1e-9, 0, 33.3, 120, 180} {
			for _, alt := range []float64{-100, 0, 1360, 35786000} {
				in := NewGeodeticPointFromDegrees(lat, lon, alt)
				out, err := e.FromECEF(e.ToECEF(in))
				test.That(t, err, test.ShouldBeNil)
				test.That(t, out.Latitude, test.ShouldAlmostEqual, in.Latitude, 1e-9)
				test.That(t, out.Altitude, test.ShouldAlmostEqual, in.Altitude, 1e-6)
				// Longitude is undefined at the poles and wraps
				// at the antimeridian.
				if math.Abs(lat) < 90 {
					dLon := math.Remainder(out.Longitude-in.Longitude, 2*math.Pi)
					test.That(t, dLon, test.ShouldAlmostEqual, 0, 1e-9)
				}
			}
		}
	}
}

func TestFromECEFGeocenter(t *testing.T) {
	_, err := WGS84().FromECEF(r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTopocentricRotationAtEquator(t *testing.T) {
	e := WGS84()
	q := e.TopocentricRotation(GeodeticPoint{})

	// At (0, 0): north is +z, east is +y, down is -x.
	north := spatialmath.Rotate(q, r3.Vector{Z: 1})
	test.That(t, north.Sub(r3.Vector{X: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
	east := spatialmath.Rotate(q, r3.Vector{Y: 1})
	test.That(t, east.Sub(r3.Vector{Y: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
	down := spatialmath.Rotate(q, r3.Vector{X: -1})
	test.That(t, down.Sub(r3.Vector{Z: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestTopocentricRotationAtPole(t *testing.T) {
	e := WGS84()
	q := e.TopocentricRotation(NewGeodeticPointFromDegrees(90, 0, 0))

	// Looking down from the north pole, down is -z and north is -x.
	down := spatialmath.Rotate(q, r3.Vector{Z: -1})
	test.That(t, down.Sub(r3.Vector{Z: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
	north := spatialmath.Rotate(q, r3.Vector{X: -1})
	test.That(t, north.Sub(r3.Vector{X: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestGeoPointInterop(t *testing.T) {
	p := NewGeodeticPointFromDegrees(37.233333, -115.808333, 1360)
	gp := p.GeoPoint()
	test.That(t, gp.Lat(), test.ShouldAlmostEqual, 37.233333, 1e-12)
	test.That(t, gp.Lng(), test.ShouldAlmostEqual, -115.808333, 1e-12)
	back := NewGeodeticPointFromGeoPoint(gp, p.Altitude)
	test.That(t, back.Latitude, test.ShouldAlmostEqual, p.Latitude, 1e-15)
	test.That(t, back.Altitude, test.ShouldEqual, 1360)
}

func TestGeoid(t *testing.T) {
	test.That(t, ZeroGeoid().Undulation(0.5, -1.2), test.ShouldEqual, 0)
	test.That(t, StaticGeoid(-23.5).Undulation(0.5, -1.2), test.ShouldEqual, -23.5)
}
