// Package posed maintains a live forest of rigid coordinate frames anchored
// to an Earth reference ellipsoid and answers queries that convert pose data
// between frames, or between a frame and geodetic coordinates.
package posed

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/geekmug/posed/geodesy"
	"github.com/geekmug/posed/spatialmath"
)

// MakeTransform creates the transform taking ECEF coordinates into the frame
// placed by the given geodetic pose: translate the ECEF position of the
// point to the origin, then rotate into the topocentric frame there and on
// through the pose's orientation. This is the canonical transform installed
// when a subgraph root is geolocated.
func MakeTransform(ellipsoid geodesy.Ellipsoid, pose geodesy.GeodeticPose) spatialmath.Transform {
	// The orientation of a geodetic pose is defined in reference to the
	// topocentric frame at the position, so recover the rotation of the
	// topocentric frame with respect to the body frame and compose the
	// given orientation with it.
	topo := ellipsoid.TopocentricRotation(pose.Position)
	rot := quat.Mul(pose.Orientation.ToQuat(), topo)
	return spatialmath.NewTranslationTransform(ellipsoid.ToECEF(pose.Position).Mul(-1)).
		Compose(spatialmath.NewRotationTransform(rot))
}

// geodeticPoseFromECEFTransform recovers the geodetic pose of a frame from
// the transform taking that frame's coordinates into ECEF.
func geodeticPoseFromECEFTransform(
	ellipsoid geodesy.Ellipsoid, toECEF spatialmath.Transform,
) (geodesy.GeodeticPose, error) {
	// The frame origin in ECEF is the transform's translation.
	point, err := ellipsoid.FromECEF(toECEF.Translation)
	if err != nil {
		return geodesy.GeodeticPose{}, err
	}
	topo := ellipsoid.TopocentricRotation(point)
	orientation := spatialmath.NauticalAnglesFromQuat(
		quat.Conj(quat.Mul(topo, toECEF.Rotation)))
	return geodesy.GeodeticPose{Position: point, Orientation: orientation}, nil
}
