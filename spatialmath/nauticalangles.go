package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// poleEpsilon bounds the squared horizontal components of the rotated x-axis
// below which the rotation is treated as pointing straight along the z-axis
// (gimbal lock). Values constructed from angles at exactly +/-pi/2 land
// within a few ulps of zero here, while a pitch even 1e-9 off the pole is
// orders of magnitude larger.
const poleEpsilon = 1e-29

// NauticalAngles is a collection of angles representing rotation about three
// axes. Positive angles correspond to clockwise movement about the axis, from
// the perspective of the origin. The rotations are applied in the order of
// nautical/Cardan angles, which are applied as z-y'-x''.
type NauticalAngles struct {
	// Roll is the angle around the x-axis, in [-pi, pi].
	Roll float64
	// Pitch is the angle around the y-axis, in [-pi/2, pi/2].
	Pitch float64
	// Yaw is the angle around the z-axis, in [-pi, pi].
	Yaw float64
}

// NewNauticalAngles returns a set of angles normalized so that pitch is
// between +/-pi/2 and roll and yaw are between +/-pi. A raw pitch beyond the
// pole is reflected through it, adding pi to both roll and yaw.
func NewNauticalAngles(roll, pitch, yaw float64) NauticalAngles {
	r := normalizeAngle(roll, 0)
	p := normalizeAngle(pitch, math.Pi/2)
	y := normalizeAngle(yaw, 0)
	if p > math.Pi/2 {
		r = normalizeAngle(r+math.Pi, 0)
		p = math.Pi - p
		y = normalizeAngle(y+math.Pi, 0)
	}
	return NauticalAngles{Roll: r, Pitch: p, Yaw: y}
}

// NauticalAnglesFromQuat extracts nautical angles from a rotation operator.
//
// At the poles (the rotated x-axis pointing straight up or down) the roll and
// yaw rotations are the same effective rotation and only their combination is
// recoverable. Since a rotation around +z is yaw when not looking nadir or
// zenith, the whole z-rotation is reported as yaw and roll is set to zero.
func NauticalAnglesFromQuat(q quat.Number) NauticalAngles {
	q = Normalize(q)
	v1 := Rotate(q, r3.Vector{Z: 1})
	v2 := RotateInverse(q, r3.Vector{X: 1})
	pitch := -math.Asin(math.Max(-1, math.Min(1, v2.Z)))

	if v2.X*v2.X+v2.Y*v2.Y <= poleEpsilon {
		// The rotation around +z can still be recovered from the
		// quaternion itself to preserve the remaining degree of freedom.
		yaw := -math.Copysign(2, q.Real*q.Jmag) * math.Atan2(q.Imag, q.Real)
		return NauticalAngles{Roll: 0, Pitch: pitch, Yaw: normalizeAngle(yaw, 0)}
	}
	return NauticalAngles{
		Roll:  math.Atan2(v1.Y, v1.Z),
		Pitch: pitch,
		Yaw:   math.Atan2(v2.Y, v2.X),
	}
}

// ToQuat returns the rotation operator for these angles: the frame-transform
// composition of yaw about z, then pitch about y', then roll about x''.
func (a NauticalAngles) ToQuat() quat.Number {
	qz := QuatFromAxisAngle(r3.Vector{Z: 1}, -a.Yaw)
	qy := QuatFromAxisAngle(r3.Vector{Y: 1}, -a.Pitch)
	qx := QuatFromAxisAngle(r3.Vector{X: 1}, -a.Roll)
	return quat.Mul(qx, quat.Mul(qy, qz))
}

// ToTransformQuat returns the same rotation built the way a Transform
// consumes it: rotations about the negated basis vectors composed in x-y-z
// order. The sign flip reflects the frame-transform/vector-operator duality;
// the result is numerically interchangeable with ToQuat.
func (a NauticalAngles) ToTransformQuat() quat.Number {
	qx := QuatFromAxisAngle(r3.Vector{X: -1}, a.Roll)
	qy := QuatFromAxisAngle(r3.Vector{Y: -1}, a.Pitch)
	qz := QuatFromAxisAngle(r3.Vector{Z: -1}, a.Yaw)
	return quat.Mul(qx, quat.Mul(qy, qz))
}

// AlmostEqual reports whether two sets of angles agree within tol radians,
// comparing each angle modulo 2*pi.
func (a NauticalAngles) AlmostEqual(other NauticalAngles, tol float64) bool {
	return math.Abs(normalizeAngle(a.Roll-other.Roll, 0)) <= tol &&
		math.Abs(normalizeAngle(a.Pitch-other.Pitch, 0)) <= tol &&
		math.Abs(normalizeAngle(a.Yaw-other.Yaw, 0)) <= tol
}

func (a NauticalAngles) String() string {
	return fmt.Sprintf("{r=%.6f, p=%.6f, y=%.6f}",
		RadToDeg(a.Roll), RadToDeg(a.Pitch), RadToDeg(a.Yaw))
}
