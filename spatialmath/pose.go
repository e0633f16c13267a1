package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a position and orientation in some coordinate frame. It describes
// the placement of a child frame within a parent: the child's origin sits at
// Position and its axes are rotated from the parent's by Orientation.
type Pose struct {
	Position    r3.Vector
	Orientation NauticalAngles
}

// NewZeroPose returns a pose at the origin with no roll, pitch, or yaw.
func NewZeroPose() Pose {
	return Pose{}
}

// Transform returns the transform from the parent frame into the frame this
// pose places: translate by the negated position, then rotate.
func (p Pose) Transform() Transform {
	return NewTranslationTransform(p.Position.Mul(-1)).
		Compose(NewRotationTransform(p.Orientation.ToTransformQuat()))
}

// PoseFromTransform recovers the pose of the transform's source frame as
// seen from its destination frame.
func PoseFromTransform(x Transform) Pose {
	return Pose{
		Position:    x.Translation,
		Orientation: NauticalAnglesFromQuat(quat.Conj(x.Rotation)),
	}
}

// AlmostEqual reports whether two poses agree within linearTol meters and
// angularTol radians.
func (p Pose) AlmostEqual(other Pose, linearTol, angularTol float64) bool {
	return p.Position.Sub(other.Position).Norm() <= linearTol &&
		p.Orientation.AlmostEqual(other.Orientation, angularTol)
}

func (p Pose) String() string {
	return fmt.Sprintf("{(%.3f, %.3f, %.3f) %s}",
		p.Position.X, p.Position.Y, p.Position.Z, p.Orientation)
}
