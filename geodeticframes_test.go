package posed

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/geekmug/posed/geodesy"
	"github.com/geekmug/posed/spatialmath"
)

var testPosition = geodesy.NewGeodeticPointFromDegrees(37.233333, -115.808333, 1360)

func TestMakeTransformMapsPositionToOrigin(t *testing.T) {
	ellipsoid := geodesy.WGS84()
	for _, pose := range []geodesy.GeodeticPose{
		{},
		{Position: testPosition},
		{Position: testPosition, Orientation: spatialmath.NewNauticalAngles(0.1, -0.2, 0.3)},
	} {
		xfrm := MakeTransform(ellipsoid, pose)
		got := xfrm.Apply(ellipsoid.ToECEF(pose.Position))
		test.That(t, got.Norm(), test.ShouldBeLessThan, 1e-6)
	}
}

func TestMakeTransformMatchesTopocentricConstruction(t *testing.T) {
	// The composed form must agree with assembling the same transform by
	// hand from the ECEF translation and the topocentric rotation.
	ellipsoid := geodesy.WGS84()
	orientation := spatialmath.NewNauticalAngles(0.25, -0.5, 1.25)
	pose := geodesy.GeodeticPose{Position: testPosition, Orientation: orientation}
	xfrm := MakeTransform(ellipsoid, pose)

	ecef := ellipsoid.ToECEF(testPosition)
	topo := ellipsoid.TopocentricRotation(testPosition)
	orient := orientation.ToQuat()
	for _, v := range []r3.Vector{
		{}, {X: 1}, {Y: -2, Z: 3}, {X: 1e6, Y: 1e6, Z: 1e6},
	} {
		want := spatialmath.Rotate(orient, spatialmath.Rotate(topo, v.Sub(ecef)))
		test.That(t, xfrm.Apply(v).Sub(want).Norm(), test.ShouldBeLessThan, 1e-6)
	}
}

func TestGeodeticPoseFromTransformRoundTrip(t *testing.T) {
	ellipsoid := geodesy.WGS84()
	for _, pose := range []geodesy.GeodeticPose{
		{},
		{Position: testPosition},
		{Position: testPosition, Orientation: spatialmath.NewNauticalAngles(0.3, 0.4, -2.0)},
		{Position: geodesy.NewGeodeticPointFromDegrees(-45, 179.5, -200)},
	} {
		toECEF := MakeTransform(ellipsoid, pose).Inverse()
		got, err := geodeticPoseFromECEFTransform(ellipsoid, toECEF)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.AlmostEqual(pose, 1e-6, 1e-7), test.ShouldBeTrue)
	}
}
